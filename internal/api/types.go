package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/peds-scheduling/internal/scheduling"
)

type AvailabilityResponse struct {
	ScheduleID     uuid.UUID `json:"schedule_id"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	Capacity       int       `json:"capacity"`
	AvailableSlots int       `json:"available_slots"`
}

type CreateAppointmentRequest struct {
	ScheduleID         string   `json:"schedule_id"`
	Type               string   `json:"type"`
	Concerns           string   `json:"concerns"`
	AdditionalServices []string `json:"additional_services"`
	VaccinationType    string   `json:"vaccination_type,omitempty"`
	// Staff may book on a patient's behalf; patients always book for
	// themselves.
	PatientID string `json:"patient_id,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CancelRequest struct {
	CancelRemarks string `json:"cancel_remarks"`
}

type CompleteVaccinationRequest struct {
	VaccineName string `json:"vaccine_name"`
	DoseNumber  int    `json:"dose_number"`
	DateGiven   string `json:"date_given"`
}

type VaccinationResponse struct {
	VaccineName string `json:"vaccine_name"`
	DoseNumber  int    `json:"dose_number"`
	DateGiven   string `json:"date_given"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID            `json:"id"`
	ScheduleID         uuid.UUID            `json:"schedule_id"`
	PatientID          uuid.UUID            `json:"patient_id"`
	Type               string               `json:"type"`
	Concerns           string               `json:"concerns,omitempty"`
	AdditionalServices []string             `json:"additional_services,omitempty"`
	Status             string               `json:"status"`
	CancelRemarks      *string              `json:"cancel_remarks,omitempty"`
	VaccinationType    *string              `json:"vaccination_type,omitempty"`
	Vaccination        *VaccinationResponse `json:"vaccination,omitempty"`
	Date               string               `json:"date,omitempty"`
	StartTime          string               `json:"start_time,omitempty"`
	EndTime            string               `json:"end_time,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

type QueueResponse struct {
	Date       string                `json:"date"`
	NowServing *AppointmentResponse  `json:"now_serving"`
	Queue      []AppointmentResponse `json:"queue"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAvailabilityResponse(av scheduling.Availability) AvailabilityResponse {
	return AvailabilityResponse{
		ScheduleID:     av.Slot.ID,
		Date:           av.Slot.Date.String(),
		StartTime:      av.Slot.StartTime.String(),
		EndTime:        av.Slot.EndTime.String(),
		Capacity:       av.Slot.Capacity,
		AvailableSlots: av.Remaining,
	}
}

func toAppointmentResponse(appt *scheduling.Appointment, slot *scheduling.ScheduleSlot) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                 appt.ID,
		ScheduleID:         appt.SlotID,
		PatientID:          appt.PatientID,
		Type:               string(appt.Type),
		Concerns:           appt.Concerns,
		AdditionalServices: appt.AdditionalServices,
		Status:             string(appt.Status),
		CancelRemarks:      appt.CancelReason,
		VaccinationType:    appt.VaccineType,
		CreatedAt:          appt.CreatedAt,
		UpdatedAt:          appt.UpdatedAt,
	}
	if appt.Vaccination != nil {
		resp.Vaccination = &VaccinationResponse{
			VaccineName: appt.Vaccination.VaccineName,
			DoseNumber:  appt.Vaccination.DoseNumber,
			DateGiven:   appt.Vaccination.DateGiven.String(),
		}
	}
	if slot != nil {
		resp.Date = slot.Date.String()
		resp.StartTime = slot.StartTime.String()
		resp.EndTime = slot.EndTime.String()
	}
	return resp
}

func toDetailResponse(d scheduling.AppointmentDetail) AppointmentResponse {
	appt := d.Appointment
	return toAppointmentResponse(&appt, d.Slot)
}
