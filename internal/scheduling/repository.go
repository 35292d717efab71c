package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetSlotByID(ctx context.Context, id uuid.UUID) (*ScheduleSlot, error)
	ListSlotsByDate(ctx context.Context, date Date) ([]ScheduleSlot, error)
	ListSlotsByRange(ctx context.Context, start, end Date) ([]ScheduleSlot, error)

	// Capacity accounting. Only non-canceled appointments count.
	CountActiveForSlot(ctx context.Context, slotID uuid.UUID) (int, error)
	CountActiveForSlots(ctx context.Context, slotIDs []uuid.UUID) (map[uuid.UUID]int, error)

	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error)
	ListAppointmentsByDate(ctx context.Context, date Date) ([]AppointmentDetail, error)

	// Status mutations are compare-and-set on the current status so that a
	// lost race updates nothing rather than clobbering a concurrent change.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, from AppointmentStatus, reason string) (*Appointment, error)
	CompleteAppointment(ctx context.Context, id uuid.UUID, rec *VaccinationRecord) (*Appointment, error)

	// Sweep worker support: pending appointments whose slot date is before
	// the given date.
	FindStalePending(ctx context.Context, before Date) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
