package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusApproved  AppointmentStatus = "approved"
	StatusCompleted AppointmentStatus = "completed"
	StatusCanceled  AppointmentStatus = "canceled"
)

// ParseStatus normalizes status text at the boundary. Everything past the
// handlers works with the enum only.
func ParseStatus(s string) (AppointmentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "approved":
		return StatusApproved, nil
	case "completed":
		return StatusCompleted, nil
	case "canceled", "cancelled":
		return StatusCanceled, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

type AppointmentType string

const (
	TypeCheckup      AppointmentType = "checkup"
	TypeVaccination  AppointmentType = "vaccination"
	TypeConsultation AppointmentType = "consultation"
	TypeFollowUp     AppointmentType = "follow_up"
)

func ParseAppointmentType(s string) (AppointmentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "checkup", "check-up":
		return TypeCheckup, nil
	case "vaccination":
		return TypeVaccination, nil
	case "consultation":
		return TypeConsultation, nil
	case "follow_up", "follow-up", "followup":
		return TypeFollowUp, nil
	}
	return "", fmt.Errorf("unknown appointment type %q", s)
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleSlot is a bookable (date, time-range) unit with finite capacity.
// Slots are configured by clinic staff out of band and are read-only here.
type ScheduleSlot struct {
	ID        uuid.UUID
	Date      Date
	StartTime TimeOfDay
	EndTime   TimeOfDay
	Capacity  int
	Types     []AppointmentType
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Eligible reports whether the slot accepts the given appointment type.
func (s *ScheduleSlot) Eligible(t AppointmentType) bool {
	for _, st := range s.Types {
		if st == t {
			return true
		}
	}
	return false
}

// VaccinationRecord is filled in when a vaccination appointment completes.
type VaccinationRecord struct {
	VaccineName string
	DoseNumber  int
	DateGiven   Date
}

type Appointment struct {
	ID                 uuid.UUID
	SlotID             uuid.UUID
	PatientID          uuid.UUID
	Type               AppointmentType
	Concerns           string
	AdditionalServices []string
	Status             AppointmentStatus
	CancelReason       *string
	VaccineType        *string
	Vaccination        *VaccinationRecord
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Active reports whether the appointment counts against slot capacity.
// Canceled appointments free their slot.
func (a *Appointment) Active() bool {
	return a.Status != StatusCanceled
}

// AppointmentDetail is an appointment hydrated with its slot.
type AppointmentDetail struct {
	Appointment
	Slot *ScheduleSlot
}

// Availability is the derived remaining capacity for one slot.
type Availability struct {
	Slot      *ScheduleSlot
	Remaining int
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
