package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentApproved  = "APPOINTMENT_APPROVED"
	EventAppointmentCanceled  = "APPOINTMENT_CANCELED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
)

var (
	ErrInvalidRange             = errors.New("start date is after end date")
	ErrTypeNotEligible          = errors.New("appointment type is not eligible for this slot")
	ErrMissingVaccine           = errors.New("vaccination_type is required for vaccination appointments")
	ErrSlotFull                 = errors.New("slot has no remaining capacity")
	ErrIllegalTransition        = errors.New("illegal status transition")
	ErrEmptyCancelReason        = errors.New("cancellation reason is required")
	ErrMissingVaccinationRecord = errors.New("vaccination record is required to complete a vaccination appointment")
)

// Notifier is the boundary to the notification collaborator. Delivery
// (email, SMS) happens outside this core.
type Notifier interface {
	AppointmentChanged(ctx context.Context, appt *Appointment, event string)
}

// NoopNotifier discards notifications.
type NoopNotifier struct{}

func (NoopNotifier) AppointmentChanged(context.Context, *Appointment, string) {}

type BookingRequest struct {
	SlotID             uuid.UUID
	PatientID          uuid.UUID
	Type               AppointmentType
	Concerns           string
	AdditionalServices []string
	VaccineType        string
}

type Service struct {
	repo     Repository
	locker   Locker
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, locker Locker, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// SlotsForDate returns all slots configured for the date. A date with no
// slots yields an empty list, not an error.
func (s *Service) SlotsForDate(ctx context.Context, date Date) ([]ScheduleSlot, error) {
	slots, err := s.repo.ListSlotsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

func (s *Service) SlotsForRange(ctx context.Context, start, end Date) ([]ScheduleSlot, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}
	slots, err := s.repo.ListSlotsByRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list slots in range: %w", err)
	}
	return slots, nil
}

// Availability computes remaining capacity per slot for the date, filtered
// to slots eligible for apptType. Fully booked slots are included with
// Remaining == 0 so callers can render them as such.
func (s *Service) Availability(ctx context.Context, date Date, apptType AppointmentType) ([]Availability, error) {
	slots, err := s.repo.ListSlotsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return s.availabilityForSlots(ctx, slots, apptType)
}

// AvailabilityRange batches Availability over an inclusive date range,
// keyed by date. Used for month-level calendars. Dates with no slots
// configured are absent from the map entirely; only fully booked slots
// show up as zero-availability entries.
func (s *Service) AvailabilityRange(ctx context.Context, start, end Date, apptType AppointmentType) (map[Date][]Availability, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}
	slots, err := s.repo.ListSlotsByRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list slots in range: %w", err)
	}

	all, err := s.availabilityForSlots(ctx, slots, apptType)
	if err != nil {
		return nil, err
	}

	byDate := make(map[Date][]Availability)
	for _, av := range all {
		byDate[av.Slot.Date] = append(byDate[av.Slot.Date], av)
	}
	return byDate, nil
}

func (s *Service) availabilityForSlots(ctx context.Context, slots []ScheduleSlot, apptType AppointmentType) ([]Availability, error) {
	eligible := make([]ScheduleSlot, 0, len(slots))
	ids := make([]uuid.UUID, 0, len(slots))
	for _, slot := range slots {
		if apptType != "" && !slot.Eligible(apptType) {
			continue
		}
		eligible = append(eligible, slot)
		ids = append(ids, slot.ID)
	}
	if len(eligible) == 0 {
		return []Availability{}, nil
	}

	counts, err := s.repo.CountActiveForSlots(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count active appointments: %w", err)
	}

	out := make([]Availability, 0, len(eligible))
	for i := range eligible {
		slot := eligible[i]
		remaining := slot.Capacity - counts[slot.ID]
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, Availability{Slot: &slot, Remaining: remaining})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Slot, out[j].Slot
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		return a.StartTime.Before(b.StartTime)
	})
	return out, nil
}

// Book reserves a slot for a patient. The capacity re-check and the insert
// run inside a per-slot lock so concurrent bookings on the same slot cannot
// both commit past capacity.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	slot, err := s.repo.GetSlotByID(ctx, req.SlotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if !slot.Eligible(req.Type) {
		return nil, ErrTypeNotEligible
	}
	if req.Type == TypeVaccination && req.VaccineType == "" {
		return nil, ErrMissingVaccine
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slot.ID, func(lockCtx context.Context) error {
		active, err := s.repo.CountActiveForSlot(lockCtx, slot.ID)
		if err != nil {
			return fmt.Errorf("count active appointments: %w", err)
		}
		if active >= slot.Capacity {
			return ErrSlotFull
		}

		now := s.now()
		appt := &Appointment{
			ID:                 uuid.New(),
			SlotID:             slot.ID,
			PatientID:          req.PatientID,
			Type:               req.Type,
			Concerns:           req.Concerns,
			AdditionalServices: req.AdditionalServices,
			Status:             StatusPending,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if req.VaccineType != "" {
			vt := req.VaccineType
			appt.VaccineType = &vt
		}

		created, err = s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		s.logEvent(lockCtx, created.ID, EventAppointmentBooked, map[string]any{
			"slot_id":    slot.ID.String(),
			"patient_id": req.PatientID.String(),
			"type":       string(req.Type),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.AppointmentChanged(ctx, created, EventAppointmentBooked)
	return created, nil
}

// Approve moves a pending appointment to approved.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusApproved)
}

// ChangeStatus applies a staff status change. Cancellation goes through
// Cancel (a reason is mandatory) and completing a vaccination appointment
// goes through Complete with its record.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	switch to {
	case StatusApproved:
		return s.Approve(ctx, id)
	case StatusCompleted:
		return s.Complete(ctx, id, nil)
	case StatusCanceled:
		return nil, ErrEmptyCancelReason
	default:
		return nil, ErrIllegalTransition
	}
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, to) {
		return nil, ErrIllegalTransition
	}

	updated, err := s.repo.TransitionStatus(ctx, id, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with a concurrent transition.
			return nil, ErrIllegalTransition
		}
		return nil, fmt.Errorf("transition to %s: %w", to, err)
	}

	event := EventAppointmentApproved
	if to == StatusCompleted {
		event = EventAppointmentCompleted
	}
	s.logEvent(ctx, updated.ID, event, map[string]any{"from": string(appt.Status), "to": string(to)})
	s.notifier.AppointmentChanged(ctx, updated, event)
	return updated, nil
}

// Cancel moves a pending or approved appointment to canceled, freeing its
// slot capacity. The reason is mandatory.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	if reason == "" {
		return nil, ErrEmptyCancelReason
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, StatusCanceled) {
		return nil, ErrIllegalTransition
	}

	updated, err := s.repo.CancelAppointment(ctx, id, appt.Status, reason)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrIllegalTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCanceled, map[string]any{
		"from":   string(appt.Status),
		"reason": reason,
	})
	s.notifier.AppointmentChanged(ctx, updated, EventAppointmentCanceled)
	return updated, nil
}

// Complete moves an approved appointment to completed. Vaccination
// appointments must supply their record atomically with the transition.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, rec *VaccinationRecord) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, StatusCompleted) {
		return nil, ErrIllegalTransition
	}
	if appt.Type == TypeVaccination {
		if rec == nil || rec.VaccineName == "" || rec.DoseNumber <= 0 || rec.DateGiven.IsZero() {
			return nil, ErrMissingVaccinationRecord
		}
	}

	updated, err := s.repo.CompleteAppointment(ctx, id, rec)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrIllegalTransition
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	payload := map[string]any{"from": string(appt.Status)}
	if rec != nil {
		payload["vaccine_name"] = rec.VaccineName
		payload["dose_number"] = rec.DoseNumber
	}
	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, payload)
	s.notifier.AppointmentChanged(ctx, updated, EventAppointmentCompleted)
	return updated, nil
}

// Queue returns the approved appointments for the date ordered
// first-created-first-served. The first element is "now serving".
func (s *Service) Queue(ctx context.Context, date Date) ([]AppointmentDetail, error) {
	appts, err := s.repo.ListAppointmentsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments for date: %w", err)
	}
	return OrderQueue(appts, date), nil
}

// GetAppointment retrieves a fully hydrated appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ListAppointmentsByPatient retrieves appointments for a specific patient.
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

const staleCancelReason = "not approved before the scheduled date"

// SweepStalePending cancels pending appointments whose slot date has
// already passed. Intended to be called by the sweep worker periodically.
func (s *Service) SweepStalePending(ctx context.Context, today Date) (int, error) {
	stale, err := s.repo.FindStalePending(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("find stale pending appointments: %w", err)
	}

	swept := 0
	for _, appt := range stale {
		if _, err := s.Cancel(ctx, appt.ID, staleCancelReason); err != nil {
			if errors.Is(err, ErrIllegalTransition) {
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("sweep cancel failed")
			continue
		}
		swept++
	}
	return swept, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}
