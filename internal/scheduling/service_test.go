package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	svc := NewService(repo, NewLocalLocker(), NoopNotifier{}, zerolog.Nop())
	return svc, repo
}

func addPatient(repo *MemoryRepository) uuid.UUID {
	id := uuid.New()
	repo.AddPatient(Patient{ID: id, Name: "Test Patient"})
	return id
}

func addSlot(repo *MemoryRepository, date Date, capacity int, types ...AppointmentType) uuid.UUID {
	if len(types) == 0 {
		types = []AppointmentType{TypeCheckup, TypeVaccination, TypeConsultation, TypeFollowUp}
	}
	id := uuid.New()
	repo.AddSlot(ScheduleSlot{
		ID:        id,
		Date:      date,
		StartTime: TimeOfDay{Hour: 9},
		EndTime:   TimeOfDay{Hour: 10},
		Capacity:  capacity,
		Types:     types,
	})
	return id
}

func mustBook(t *testing.T, svc *Service, slotID, patientID uuid.UUID, apptType AppointmentType) *Appointment {
	t.Helper()
	appt, err := svc.Book(context.Background(), BookingRequest{
		SlotID:    slotID,
		PatientID: patientID,
		Type:      apptType,
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	return appt
}

func remaining(t *testing.T, svc *Service, date Date, slotID uuid.UUID) int {
	t.Helper()
	avail, err := svc.Availability(context.Background(), date, "")
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	for _, av := range avail {
		if av.Slot.ID == slotID {
			return av.Remaining
		}
	}
	t.Fatalf("slot %s not in availability", slotID)
	return 0
}

func TestBookCancelRebookScenario(t *testing.T) {
	svc, repo := newTestService(t)
	date := Date{Year: 2026, Month: time.September, Day: 14}
	slotID := addSlot(repo, date, 1)
	patient1 := addPatient(repo)
	patient2 := addPatient(repo)

	first := mustBook(t, svc, slotID, patient1, TypeCheckup)
	if first.Status != StatusPending {
		t.Fatalf("new appointment status = %s, want pending", first.Status)
	}
	if got := remaining(t, svc, date, slotID); got != 0 {
		t.Fatalf("remaining after first booking = %d, want 0", got)
	}

	_, err := svc.Book(context.Background(), BookingRequest{
		SlotID: slotID, PatientID: patient2, Type: TypeCheckup,
	})
	if !errors.Is(err, ErrSlotFull) {
		t.Fatalf("second booking error = %v, want ErrSlotFull", err)
	}

	if _, err := svc.Cancel(context.Background(), first.ID, "schedule conflict"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := remaining(t, svc, date, slotID); got != 1 {
		t.Fatalf("remaining after cancel = %d, want 1", got)
	}

	mustBook(t, svc, slotID, patient2, TypeCheckup)
	if got := remaining(t, svc, date, slotID); got != 0 {
		t.Fatalf("remaining after rebook = %d, want 0", got)
	}
}

func TestBookValidation(t *testing.T) {
	svc, repo := newTestService(t)
	date := Date{Year: 2026, Month: time.September, Day: 14}
	patientID := addPatient(repo)
	checkupOnly := addSlot(repo, date, 5, TypeCheckup)

	t.Run("unknown slot", func(t *testing.T) {
		_, err := svc.Book(context.Background(), BookingRequest{
			SlotID: uuid.New(), PatientID: patientID, Type: TypeCheckup,
		})
		if !errors.Is(err, ErrSlotNotFound) {
			t.Fatalf("err = %v, want ErrSlotNotFound", err)
		}
	})

	t.Run("unknown patient", func(t *testing.T) {
		_, err := svc.Book(context.Background(), BookingRequest{
			SlotID: checkupOnly, PatientID: uuid.New(), Type: TypeCheckup,
		})
		if !errors.Is(err, ErrPatientNotFound) {
			t.Fatalf("err = %v, want ErrPatientNotFound", err)
		}
	})

	t.Run("ineligible type", func(t *testing.T) {
		_, err := svc.Book(context.Background(), BookingRequest{
			SlotID: checkupOnly, PatientID: patientID, Type: TypeVaccination,
		})
		if !errors.Is(err, ErrTypeNotEligible) {
			t.Fatalf("err = %v, want ErrTypeNotEligible", err)
		}
	})

	t.Run("vaccination without vaccine type", func(t *testing.T) {
		slotID := addSlot(repo, date.AddDays(1), 5)
		_, err := svc.Book(context.Background(), BookingRequest{
			SlotID: slotID, PatientID: patientID, Type: TypeVaccination,
		})
		if !errors.Is(err, ErrMissingVaccine) {
			t.Fatalf("err = %v, want ErrMissingVaccine", err)
		}
	})
}

func TestConcurrentBookingRespectsCapacity(t *testing.T) {
	svc, repo := newTestService(t)
	date := Date{Year: 2026, Month: time.September, Day: 14}
	const capacity = 3
	slotID := addSlot(repo, date, capacity)

	const bookers = 24
	patientIDs := make([]uuid.UUID, bookers)
	for i := range patientIDs {
		patientIDs[i] = addPatient(repo)
	}

	var wg sync.WaitGroup
	errs := make([]error, bookers)
	for i := 0; i < bookers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(context.Background(), BookingRequest{
				SlotID: slotID, PatientID: patientIDs[i], Type: TypeCheckup,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrSlotFull):
		default:
			t.Fatalf("unexpected booking error: %v", err)
		}
	}
	if succeeded != capacity {
		t.Fatalf("%d bookings succeeded, want %d", succeeded, capacity)
	}

	active, err := repo.CountActiveForSlot(context.Background(), slotID)
	if err != nil {
		t.Fatalf("CountActiveForSlot: %v", err)
	}
	if active > capacity {
		t.Fatalf("active count %d exceeds capacity %d", active, capacity)
	}
}

func TestCancelRequiresReason(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, Date{Year: 2026, Month: time.September, Day: 14}, 2)
	appt := mustBook(t, svc, slotID, addPatient(repo), TypeCheckup)

	if _, err := svc.Cancel(context.Background(), appt.ID, ""); !errors.Is(err, ErrEmptyCancelReason) {
		t.Fatalf("err = %v, want ErrEmptyCancelReason", err)
	}

	got, err := svc.GetAppointment(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("status = %s, want pending after rejected cancel", got.Status)
	}
}

func TestIllegalTransitionLeavesStateUnchanged(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, Date{Year: 2026, Month: time.September, Day: 14}, 2)

	created := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	appt := Appointment{
		ID:        uuid.New(),
		SlotID:    slotID,
		PatientID: addPatient(repo),
		Type:      TypeCheckup,
		Status:    StatusCompleted,
		CreatedAt: created,
		UpdatedAt: created,
	}
	repo.PutAppointment(appt)

	if _, err := svc.Approve(context.Background(), appt.ID); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("err = %v, want ErrIllegalTransition", err)
	}

	got, err := svc.GetAppointment(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if !got.UpdatedAt.Equal(created) {
		t.Fatalf("updated_at changed on rejected transition: %s", got.UpdatedAt)
	}
}

func TestCompleteVaccinationRequiresRecord(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, Date{Year: 2026, Month: time.September, Day: 14}, 2)
	patientID := addPatient(repo)

	appt, err := svc.Book(context.Background(), BookingRequest{
		SlotID:      slotID,
		PatientID:   patientID,
		Type:        TypeVaccination,
		VaccineType: "MMR",
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := svc.Approve(context.Background(), appt.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if _, err := svc.Complete(context.Background(), appt.ID, nil); !errors.Is(err, ErrMissingVaccinationRecord) {
		t.Fatalf("err = %v, want ErrMissingVaccinationRecord", err)
	}

	got, err := svc.GetAppointment(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if got.Status != StatusApproved {
		t.Fatalf("status = %s, want approved after rejected completion", got.Status)
	}

	dateGiven, _ := ParseDate("2026-09-14")
	updated, err := svc.Complete(context.Background(), appt.ID, &VaccinationRecord{
		VaccineName: "MMR",
		DoseNumber:  1,
		DateGiven:   dateGiven,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if updated.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", updated.Status)
	}
	if updated.Vaccination == nil || updated.Vaccination.VaccineName != "MMR" {
		t.Fatalf("vaccination record not stored: %+v", updated.Vaccination)
	}
}

func TestChangeStatusCancelRequiresCancelPath(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, Date{Year: 2026, Month: time.September, Day: 14}, 2)
	appt := mustBook(t, svc, slotID, addPatient(repo), TypeCheckup)

	if _, err := svc.ChangeStatus(context.Background(), appt.ID, StatusCanceled); !errors.Is(err, ErrEmptyCancelReason) {
		t.Fatalf("err = %v, want ErrEmptyCancelReason", err)
	}
}

func TestAvailability(t *testing.T) {
	svc, repo := newTestService(t)
	date := Date{Year: 2026, Month: time.September, Day: 14}
	slotID := addSlot(repo, date, 2, TypeCheckup)
	patientID := addPatient(repo)

	t.Run("empty date yields empty list", func(t *testing.T) {
		avail, err := svc.Availability(context.Background(), date.AddDays(7), "")
		if err != nil {
			t.Fatalf("Availability: %v", err)
		}
		if len(avail) != 0 {
			t.Fatalf("got %d entries, want 0", len(avail))
		}
	})

	t.Run("type with no eligible slots yields empty list", func(t *testing.T) {
		avail, err := svc.Availability(context.Background(), date, TypeVaccination)
		if err != nil {
			t.Fatalf("Availability: %v", err)
		}
		if len(avail) != 0 {
			t.Fatalf("got %d entries, want 0", len(avail))
		}
	})

	t.Run("idempotent without writes", func(t *testing.T) {
		first, err := svc.Availability(context.Background(), date, TypeCheckup)
		if err != nil {
			t.Fatalf("Availability: %v", err)
		}
		second, err := svc.Availability(context.Background(), date, TypeCheckup)
		if err != nil {
			t.Fatalf("Availability: %v", err)
		}
		if len(first) != len(second) {
			t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].Slot.ID != second[i].Slot.ID || first[i].Remaining != second[i].Remaining {
				t.Fatalf("entry %d differs: %+v vs %+v", i, first[i], second[i])
			}
		}
	})

	t.Run("fully booked slot still listed", func(t *testing.T) {
		mustBook(t, svc, slotID, patientID, TypeCheckup)
		mustBook(t, svc, slotID, addPatient(repo), TypeCheckup)

		avail, err := svc.Availability(context.Background(), date, TypeCheckup)
		if err != nil {
			t.Fatalf("Availability: %v", err)
		}
		if len(avail) != 1 {
			t.Fatalf("got %d entries, want 1", len(avail))
		}
		if avail[0].Remaining != 0 {
			t.Fatalf("remaining = %d, want 0", avail[0].Remaining)
		}
	})
}

func TestSlotsForDate(t *testing.T) {
	svc, repo := newTestService(t)
	date := Date{Year: 2026, Month: time.September, Day: 14}
	addSlot(repo, date, 2)
	addSlot(repo, date, 3)
	addSlot(repo, date.AddDays(1), 1)

	slots, err := svc.SlotsForDate(context.Background(), date)
	if err != nil {
		t.Fatalf("SlotsForDate: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}

	slots, err = svc.SlotsForDate(context.Background(), date.AddDays(30))
	if err != nil {
		t.Fatalf("SlotsForDate on empty date: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("got %d slots on empty date, want 0", len(slots))
	}
}

func TestAvailabilityRange(t *testing.T) {
	svc, repo := newTestService(t)
	start := Date{Year: 2026, Month: time.September, Day: 14}
	end := start.AddDays(2)
	addSlot(repo, start, 2)
	addSlot(repo, end, 3)

	t.Run("inverted range rejected", func(t *testing.T) {
		if _, err := svc.AvailabilityRange(context.Background(), end, start, ""); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("err = %v, want ErrInvalidRange", err)
		}
		if _, err := svc.SlotsForRange(context.Background(), end, start); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("SlotsForRange err = %v, want ErrInvalidRange", err)
		}
	})

	t.Run("batched by date", func(t *testing.T) {
		byDate, err := svc.AvailabilityRange(context.Background(), start, end, "")
		if err != nil {
			t.Fatalf("AvailabilityRange: %v", err)
		}
		if len(byDate) != 2 {
			t.Fatalf("got %d dates, want 2", len(byDate))
		}
		if len(byDate[start]) != 1 || len(byDate[end]) != 1 {
			t.Fatalf("unexpected grouping: %+v", byDate)
		}
		if _, ok := byDate[start.AddDays(1)]; ok {
			t.Fatal("slotless date should be absent from the map")
		}
	})
}

func TestSweepStalePending(t *testing.T) {
	svc, repo := newTestService(t)
	past := Date{Year: 2026, Month: time.September, Day: 10}
	today := past.AddDays(4)

	staleSlot := addSlot(repo, past, 2)
	freshSlot := addSlot(repo, today, 2)
	patientID := addPatient(repo)

	stale := mustBook(t, svc, staleSlot, patientID, TypeCheckup)
	fresh := mustBook(t, svc, freshSlot, patientID, TypeCheckup)

	approvedStale := mustBook(t, svc, staleSlot, addPatient(repo), TypeCheckup)
	if _, err := svc.Approve(context.Background(), approvedStale.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	swept, err := svc.SweepStalePending(context.Background(), today)
	if err != nil {
		t.Fatalf("SweepStalePending: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	got, _ := svc.GetAppointment(context.Background(), stale.ID)
	if got.Status != StatusCanceled {
		t.Fatalf("stale pending status = %s, want canceled", got.Status)
	}
	if got.CancelReason == nil || *got.CancelReason == "" {
		t.Fatal("sweep must record a cancel reason")
	}

	got, _ = svc.GetAppointment(context.Background(), fresh.ID)
	if got.Status != StatusPending {
		t.Fatalf("fresh pending status = %s, want pending", got.Status)
	}
	got, _ = svc.GetAppointment(context.Background(), approvedStale.ID)
	if got.Status != StatusApproved {
		t.Fatalf("approved status = %s, want approved (sweep only touches pending)", got.Status)
	}
}

func TestBookingWritesEventLog(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, Date{Year: 2026, Month: time.September, Day: 14}, 1)
	appt := mustBook(t, svc, slotID, addPatient(repo), TypeCheckup)

	events := repo.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].EventType != EventAppointmentBooked {
		t.Fatalf("event type = %s, want %s", events[0].EventType, EventAppointmentBooked)
	}
	if events[0].AppointmentID == nil || *events[0].AppointmentID != appt.ID {
		t.Fatal("event not linked to the appointment")
	}
}
