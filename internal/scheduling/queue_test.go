package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func queueEntry(slot *ScheduleSlot, status AppointmentStatus, created time.Time, id uuid.UUID) AppointmentDetail {
	return AppointmentDetail{
		Appointment: Appointment{
			ID:        id,
			SlotID:    slot.ID,
			Status:    status,
			CreatedAt: created,
		},
		Slot: slot,
	}
}

func TestOrderQueueDeterminism(t *testing.T) {
	date := Date{Year: 2026, Month: time.September, Day: 14}
	slot := &ScheduleSlot{ID: uuid.New(), Date: date}

	t1 := time.Date(2026, 9, 10, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	// C shares A's timestamp but has the larger id, so the order must be
	// A, C, B regardless of input order.
	idA := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	idC := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	idB := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	a := queueEntry(slot, StatusApproved, t1, idA)
	b := queueEntry(slot, StatusApproved, t2, idB)
	c := queueEntry(slot, StatusApproved, t1, idC)

	got := OrderQueue([]AppointmentDetail{b, c, a}, date)
	want := []uuid.UUID{idA, idC, idB}
	if len(got) != len(want) {
		t.Fatalf("queue length = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("queue[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestOrderQueueFilters(t *testing.T) {
	date := Date{Year: 2026, Month: time.September, Day: 14}
	slot := &ScheduleSlot{ID: uuid.New(), Date: date}
	otherSlot := &ScheduleSlot{ID: uuid.New(), Date: date.AddDays(1)}
	now := time.Now()

	entries := []AppointmentDetail{
		queueEntry(slot, StatusPending, now, uuid.New()),
		queueEntry(slot, StatusCanceled, now, uuid.New()),
		queueEntry(slot, StatusCompleted, now, uuid.New()),
		queueEntry(otherSlot, StatusApproved, now, uuid.New()),
		queueEntry(slot, StatusApproved, now, uuid.New()),
	}

	got := OrderQueue(entries, date)
	if len(got) != 1 {
		t.Fatalf("queue length = %d, want 1 (approved on the date only)", len(got))
	}
	if got[0].Status != StatusApproved || got[0].Slot.Date != date {
		t.Fatalf("unexpected queue entry: %+v", got[0])
	}
}

func TestOrderQueueEmpty(t *testing.T) {
	date := Date{Year: 2026, Month: time.September, Day: 14}
	if got := OrderQueue(nil, date); len(got) != 0 {
		t.Fatalf("queue length = %d, want 0", len(got))
	}
}
