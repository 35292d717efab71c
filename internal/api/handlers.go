package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/peds-scheduling/internal/scheduling"
)

func availableSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := scheduling.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		apptType, ok := parseOptionalType(w, r.URL.Query().Get("type"))
		if !ok {
			return
		}

		avail, err := svc.Availability(r.Context(), date, apptType)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]AvailabilityResponse, 0, len(avail))
		for _, av := range avail {
			resp = append(resp, toAvailabilityResponse(av))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func availableSlotsRangeHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := scheduling.ParseDate(r.URL.Query().Get("start_date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_date", err.Error())
			return
		}
		end, err := scheduling.ParseDate(r.URL.Query().Get("end_date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_date", err.Error())
			return
		}

		apptType, ok := parseOptionalType(w, r.URL.Query().Get("type"))
		if !ok {
			return
		}

		byDate, err := svc.AvailabilityRange(r.Context(), start, end, apptType)
		if err != nil {
			if errors.Is(err, scheduling.ErrInvalidRange) {
				writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make(map[string][]AvailabilityResponse, len(byDate))
		for date, avail := range byDate {
			list := make([]AvailabilityResponse, 0, len(avail))
			for _, av := range avail {
				list = append(list, toAvailabilityResponse(av))
			}
			resp[date.String()] = list
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_identity", "no caller identity")
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.ScheduleID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_schedule_id", "schedule_id must be a valid UUID")
			return
		}

		apptType, err := scheduling.ParseAppointmentType(req.Type)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_type", err.Error())
			return
		}

		patientID := ident.Subject
		if req.PatientID != "" {
			if ident.Role != RoleStaff {
				writeError(w, http.StatusForbidden, "patient_id_not_allowed", "patients book for themselves")
				return
			}
			patientID, err = uuid.Parse(req.PatientID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
		}

		appt, err := svc.Book(r.Context(), scheduling.BookingRequest{
			SlotID:             slotID,
			PatientID:          patientID,
			Type:               apptType,
			Concerns:           req.Concerns,
			AdditionalServices: req.AdditionalServices,
			VaccineType:        req.VaccinationType,
		})
		if err != nil {
			handleBookError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt, nil))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, id, ok := identityAndID(w, r)
		if !ok {
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleLookupError(w, err)
			return
		}
		if ident.Role != RoleStaff && detail.PatientID != ident.Subject {
			writeError(w, http.StatusNotFound, "appointment_not_found", "appointment not found")
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(*detail))
	}
}

func listAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_identity", "no caller identity")
			return
		}

		patientID := ident.Subject
		if pid := r.URL.Query().Get("patient_id"); pid != "" {
			if ident.Role != RoleStaff {
				writeError(w, http.StatusForbidden, "staff_only", "patients list their own appointments")
				return
			}
			parsed, err := uuid.Parse(pid)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			patientID = parsed
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		appts, err := svc.ListAppointmentsByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for _, d := range appts {
			resp = append(resp, toDetailResponse(d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func updateStatusHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, id, ok := identityAndID(w, r)
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		status, err := scheduling.ParseStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}

		appt, err := svc.ChangeStatus(r.Context(), id, status)
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, nil))
	}
}

func cancelAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, id, ok := identityAndID(w, r)
		if !ok {
			return
		}

		var req CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if ident.Role != RoleStaff {
			appt, err := svc.GetAppointment(r.Context(), id)
			if err != nil {
				handleLookupError(w, err)
				return
			}
			if appt.PatientID != ident.Subject {
				writeError(w, http.StatusNotFound, "appointment_not_found", "appointment not found")
				return
			}
			// Patients may withdraw a request that staff have not yet
			// approved; canceling an approved visit is a staff action.
			if appt.Status != scheduling.StatusPending {
				writeError(w, http.StatusForbidden, "staff_only", "only staff may cancel an approved appointment")
				return
			}
		}

		appt, err := svc.Cancel(r.Context(), id, req.CancelRemarks)
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, nil))
	}
}

func completeVaccinationHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, id, ok := identityAndID(w, r)
		if !ok {
			return
		}

		var req CompleteVaccinationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		dateGiven, err := scheduling.ParseDate(req.DateGiven)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date_given", err.Error())
			return
		}

		appt, err := svc.Complete(r.Context(), id, &scheduling.VaccinationRecord{
			VaccineName: req.VaccineName,
			DoseNumber:  req.DoseNumber,
			DateGiven:   dateGiven,
		})
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, nil))
	}
}

func queueHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := scheduling.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		queue, err := svc.Queue(r.Context(), date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := QueueResponse{
			Date:  date.String(),
			Queue: make([]AppointmentResponse, 0, len(queue)),
		}
		for _, d := range queue {
			resp.Queue = append(resp.Queue, toDetailResponse(d))
		}
		if len(resp.Queue) > 0 {
			resp.NowServing = &resp.Queue[0]
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Helpers

func parseOptionalType(w http.ResponseWriter, raw string) (scheduling.AppointmentType, bool) {
	if raw == "" {
		return "", true
	}
	apptType, err := scheduling.ParseAppointmentType(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_type", err.Error())
		return "", false
	}
	return apptType, true
}

func identityAndID(w http.ResponseWriter, r *http.Request) (Identity, uuid.UUID, bool) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "no caller identity")
		return Identity{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return Identity{}, uuid.Nil, false
	}
	return ident, id, true
}

func handleBookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, scheduling.ErrTypeNotEligible):
		writeError(w, http.StatusBadRequest, "type_not_eligible", err.Error())
	case errors.Is(err, scheduling.ErrMissingVaccine):
		writeError(w, http.StatusBadRequest, "missing_vaccination_type", err.Error())
	case errors.Is(err, scheduling.ErrSlotFull):
		writeError(w, http.StatusConflict, "slot_full", err.Error())
	case errors.Is(err, scheduling.ErrLockBusy):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrIllegalTransition):
		writeError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, scheduling.ErrEmptyCancelReason):
		writeError(w, http.StatusBadRequest, "missing_cancel_remarks", err.Error())
	case errors.Is(err, scheduling.ErrMissingVaccinationRecord):
		writeError(w, http.StatusBadRequest, "missing_vaccination_record", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, scheduling.ErrAppointmentNotFound) {
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}
