package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository for tests, the booking
// simulator and infra-less dev runs. Mutations copy on write so callers
// never share memory with the store.
type MemoryRepository struct {
	mu           sync.RWMutex
	patients     map[uuid.UUID]Patient
	slots        map[uuid.UUID]ScheduleSlot
	appointments map[uuid.UUID]Appointment
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		slots:        make(map[uuid.UUID]ScheduleSlot),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

// Fixture loaders.

func (r *MemoryRepository) AddPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *MemoryRepository) AddSlot(s ScheduleSlot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[s.ID] = s
}

// PutAppointment installs an appointment verbatim, bypassing the booking
// path. Test fixtures only.
func (r *MemoryRepository) PutAppointment(a Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments[a.ID] = a
}

func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

// Repository implementation.

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetSlotByID(_ context.Context, id uuid.UUID) (*ScheduleSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) ListSlotsByDate(_ context.Context, date Date) ([]ScheduleSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ScheduleSlot
	for _, s := range r.slots {
		if s.Date == date {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListSlotsByRange(_ context.Context, start, end Date) ([]ScheduleSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ScheduleSlot
	for _, s := range r.slots {
		if !s.Date.Before(start) && !s.Date.After(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRepository) CountActiveForSlot(_ context.Context, slotID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countActiveLocked(slotID), nil
}

func (r *MemoryRepository) countActiveLocked(slotID uuid.UUID) int {
	n := 0
	for _, a := range r.appointments {
		if a.SlotID == slotID && a.Status != StatusCanceled {
			n++
		}
	}
	return n
}

func (r *MemoryRepository) CountActiveForSlots(_ context.Context, slotIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[uuid.UUID]int, len(slotIDs))
	for _, id := range slotIDs {
		counts[id] = r.countActiveLocked(id)
	}
	return counts, nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *appt
	r.appointments[stored.ID] = stored
	out := stored
	return &out, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return r.detailLocked(a), nil
}

func (r *MemoryRepository) detailLocked(a Appointment) *AppointmentDetail {
	d := AppointmentDetail{Appointment: a}
	if s, ok := r.slots[a.SlotID]; ok {
		slot := s
		d.Slot = &slot
	}
	return &d
}

func (r *MemoryRepository) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []AppointmentDetail
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			all = append(all, *r.detailLocked(a))
		}
	}
	sortDetailsByCreatedDesc(all)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryRepository) ListAppointmentsByDate(_ context.Context, date Date) ([]AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []AppointmentDetail
	for _, a := range r.appointments {
		s, ok := r.slots[a.SlotID]
		if !ok || s.Date != date {
			continue
		}
		out = append(out, *r.detailLocked(a))
	}
	return out, nil
}

func (r *MemoryRepository) TransitionStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	out := a
	return &out, nil
}

func (r *MemoryRepository) CancelAppointment(_ context.Context, id uuid.UUID, from AppointmentStatus, reason string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = StatusCanceled
	a.CancelReason = &reason
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	out := a
	return &out, nil
}

func (r *MemoryRepository) CompleteAppointment(_ context.Context, id uuid.UUID, rec *VaccinationRecord) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != StatusApproved {
		return nil, ErrAppointmentNotFound
	}
	a.Status = StatusCompleted
	if rec != nil {
		cp := *rec
		a.Vaccination = &cp
	}
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	out := a
	return &out, nil
}

func (r *MemoryRepository) FindStalePending(_ context.Context, before Date) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.Status != StatusPending {
			continue
		}
		s, ok := r.slots[a.SlotID]
		if !ok || !s.Date.Before(before) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

func sortDetailsByCreatedDesc(list []AppointmentDetail) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
