package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/peds-scheduling/internal/db"
	"github.com/clinicore/peds-scheduling/internal/logging"
	"github.com/clinicore/peds-scheduling/internal/scheduling"
)

//go:embed schema.sql
var schemaSQL string

func main() {
	log := logging.New(os.Getenv("APP_ENV"), "seed")
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if _, err := pool.Exec(context.Background(), schemaSQL); err != nil {
		log.Fatal().Err(err).Msg("apply schema")
	}
	log.Info().Msg("schema applied")

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	log.Info().Msg("patients seeded")

	days := 30
	if err := seedSlots(context.Background(), pool, days); err != nil {
		log.Fatal().Err(err).Msg("seed slots")
	}
	log.Info().Int("days", days).Msg("slots seeded")

	log.Info().Msg("seed complete")
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			email := gofakeit.Email()
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), gofakeit.Name(), email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}

// seedSlots configures a rolling window of hourly slots, Monday through
// Saturday. Morning slots take every appointment type; the 13:00 and 14:00
// slots are reserved for vaccinations, mirroring the clinic's real program.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, days int) error {
	allTypes := []string{
		string(scheduling.TypeCheckup),
		string(scheduling.TypeVaccination),
		string(scheduling.TypeConsultation),
		string(scheduling.TypeFollowUp),
	}
	vaccinationOnly := []string{string(scheduling.TypeVaccination)}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	today := scheduling.DateOf(time.Now())
	for d := 0; d < days; d++ {
		date := today.AddDays(d)
		if date.Time().Weekday() == time.Sunday {
			continue
		}

		for hour := 9; hour <= 15; hour++ {
			if hour == 12 {
				// Lunch break.
				continue
			}

			types := allTypes
			if hour == 13 || hour == 14 {
				types = vaccinationOnly
			}
			capacity := gofakeit.Number(3, 6)

			_, err := tx.Exec(ctx, `
				INSERT INTO schedule_slots (
					id, slot_date, start_time, end_time, capacity,
					appointment_types, created_at, updated_at
				)
				VALUES ($1, $2, $3, $4, $5, $6, now(), now())
				ON CONFLICT (slot_date, start_time) DO NOTHING
			`, uuid.New(), date.Time(),
				fmt.Sprintf("%02d:00", hour), fmt.Sprintf("%02d:00", hour+1),
				capacity, types)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}
