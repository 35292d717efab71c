package main

import (
	"context"
	"errors"
	"flag"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/clinicore/peds-scheduling/internal/logging"
	"github.com/clinicore/peds-scheduling/internal/scheduling"
)

// simulate runs a concurrent booking storm against an in-process service
// and then checks that no slot ended up with more active appointments than
// its capacity.
func main() {
	var (
		workers  = flag.Int("workers", 32, "concurrent booking workers")
		patients = flag.Int("patients", 200, "patients in the pool")
		slots    = flag.Int("slots", 20, "slots in the pool")
		attempts = flag.Int("attempts", 2000, "booking attempts per worker pool")
	)
	flag.Parse()

	log := logging.New(os.Getenv("APP_ENV"), "simulate")
	gofakeit.Seed(time.Now().UnixNano())

	repo := scheduling.NewMemoryRepository()
	svc := scheduling.NewService(repo, scheduling.NewLocalLocker(), scheduling.NoopNotifier{}, log)

	patientIDs := make([]uuid.UUID, *patients)
	for i := range patientIDs {
		patientIDs[i] = uuid.New()
		repo.AddPatient(scheduling.Patient{
			ID:        patientIDs[i],
			Name:      gofakeit.Name(),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		})
	}

	date := scheduling.DateOf(time.Now()).AddDays(1)
	slotIDs := make([]uuid.UUID, *slots)
	capacities := make(map[uuid.UUID]int, *slots)
	for i := range slotIDs {
		slotIDs[i] = uuid.New()
		capacity := gofakeit.Number(1, 5)
		capacities[slotIDs[i]] = capacity
		repo.AddSlot(scheduling.ScheduleSlot{
			ID:        slotIDs[i],
			Date:      date,
			StartTime: scheduling.TimeOfDay{Hour: 9 + i%7},
			EndTime:   scheduling.TimeOfDay{Hour: 10 + i%7},
			Capacity:  capacity,
			Types:     []scheduling.AppointmentType{scheduling.TypeCheckup},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		})
	}

	var booked, full, failed int64

	start := time.Now()
	var wg sync.WaitGroup
	perWorker := *attempts / *workers
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := svc.Book(context.Background(), scheduling.BookingRequest{
					SlotID:    slotIDs[rand.Intn(len(slotIDs))],
					PatientID: patientIDs[rand.Intn(len(patientIDs))],
					Type:      scheduling.TypeCheckup,
					Concerns:  "simulated booking",
				})
				switch {
				case err == nil:
					atomic.AddInt64(&booked, 1)
				case errors.Is(err, scheduling.ErrSlotFull):
					atomic.AddInt64(&full, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}
	wg.Wait()

	log.Info().
		Int64("booked", booked).
		Int64("slot_full", full).
		Int64("failed", failed).
		Dur("took", time.Since(start)).
		Msg("storm complete")

	overbooked := 0
	for id, capacity := range capacities {
		active, err := repo.CountActiveForSlot(context.Background(), id)
		if err != nil {
			log.Fatal().Err(err).Msg("count active")
		}
		if active > capacity {
			overbooked++
			log.Error().
				Str("slot_id", id.String()).
				Int("capacity", capacity).
				Int("active", active).
				Msg("capacity invariant violated")
		}
	}

	if overbooked > 0 {
		log.Fatal().Int("slots", overbooked).Msg("overbooking detected")
	}
	log.Info().Msg("capacity invariant held for every slot")
}
