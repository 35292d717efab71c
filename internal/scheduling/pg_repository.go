package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanSlot(row pgx.Row) (*ScheduleSlot, error) {
	var s ScheduleSlot
	var date time.Time
	var startRaw, endRaw string
	var types []string

	err := row.Scan(
		&s.ID,
		&date,
		&startRaw,
		&endRaw,
		&s.Capacity,
		&types,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.Date = DateOf(date)
	if s.StartTime, err = ParseTimeOfDay(startRaw); err != nil {
		return nil, fmt.Errorf("slot %s start_time: %w", s.ID, err)
	}
	if s.EndTime, err = ParseTimeOfDay(endRaw); err != nil {
		return nil, fmt.Errorf("slot %s end_time: %w", s.ID, err)
	}
	s.Types = make([]AppointmentType, 0, len(types))
	for _, t := range types {
		parsed, err := ParseAppointmentType(t)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", s.ID, err)
		}
		s.Types = append(s.Types, parsed)
	}
	return &s, nil
}

type apptScanner interface {
	Scan(dest ...any) error
}

func scanAppointmentCols(row apptScanner, a *Appointment) error {
	var status, apptType string
	var services []string
	var vaccineName *string
	var doseNumber *int
	var dateGiven *time.Time

	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.PatientID,
		&apptType,
		&a.Concerns,
		&services,
		&status,
		&a.CancelReason,
		&a.VaccineType,
		&vaccineName,
		&doseNumber,
		&dateGiven,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return err
	}

	a.Type = AppointmentType(apptType)
	a.Status = AppointmentStatus(status)
	a.AdditionalServices = services
	if vaccineName != nil && doseNumber != nil && dateGiven != nil {
		a.Vaccination = &VaccinationRecord{
			VaccineName: *vaccineName,
			DoseNumber:  *doseNumber,
			DateGiven:   DateOf(*dateGiven),
		}
	}
	return nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := scanAppointmentCols(row, &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

const appointmentCols = `
	a.id, a.slot_id, a.patient_id, a.appointment_type, a.concerns,
	a.additional_services, a.status, a.cancel_reason, a.vaccine_type,
	a.vaccine_name, a.dose_number, a.vaccine_date_given,
	a.created_at, a.updated_at`

const slotCols = `
	s.id, s.slot_date, s.start_time, s.end_time, s.capacity,
	s.appointment_types, s.created_at, s.updated_at`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*ScheduleSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+slotCols+`
		FROM schedule_slots s
		WHERE s.id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlotsByDate(ctx context.Context, date Date) ([]ScheduleSlot, error) {
	return r.listSlots(ctx, `
		SELECT`+slotCols+`
		FROM schedule_slots s
		WHERE s.slot_date = $1
		ORDER BY s.start_time
	`, date.Time())
}

func (r *PgRepository) ListSlotsByRange(ctx context.Context, start, end Date) ([]ScheduleSlot, error) {
	return r.listSlots(ctx, `
		SELECT`+slotCols+`
		FROM schedule_slots s
		WHERE s.slot_date BETWEEN $1 AND $2
		ORDER BY s.slot_date, s.start_time
	`, start.Time(), end.Time())
}

func (r *PgRepository) listSlots(ctx context.Context, query string, args ...any) ([]ScheduleSlot, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) CountActiveForSlot(ctx context.Context, slotID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE slot_id = $1 AND status <> 'canceled'
	`, slotID).Scan(&n)
	return n, err
}

func (r *PgRepository) CountActiveForSlots(ctx context.Context, slotIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_id, count(*)
		FROM appointments
		WHERE slot_id = ANY($1) AND status <> 'canceled'
		GROUP BY slot_id
	`, slotIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int, len(slotIDs))
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, slot_id, patient_id, appointment_type, concerns,
			additional_services, status, vaccine_type, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING`+appointmentColsBare+`
	`, appt.ID, appt.SlotID, appt.PatientID, string(appt.Type), appt.Concerns,
		appt.AdditionalServices, string(appt.Status), appt.VaccineType, appt.CreatedAt)

	return scanAppointment(row)
}

// appointmentColsBare is appointmentCols without the table alias, for
// RETURNING clauses.
const appointmentColsBare = `
	id, slot_id, patient_id, appointment_type, concerns,
	additional_services, status, cancel_reason, vaccine_type,
	vaccine_name, dose_number, vaccine_date_given,
	created_at, updated_at`

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+appointmentCols+`
		FROM appointments a
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentCols+`,`+slotCols+`
		FROM appointments a
		JOIN schedule_slots s ON s.id = a.slot_id
		WHERE a.id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details, err := collectDetails(rows)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, ErrAppointmentNotFound
	}
	return &details[0], nil
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentCols+`,`+slotCols+`
		FROM appointments a
		JOIN schedule_slots s ON s.id = a.slot_id
		WHERE a.patient_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDetails(rows)
}

func (r *PgRepository) ListAppointmentsByDate(ctx context.Context, date Date) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentCols+`,`+slotCols+`
		FROM appointments a
		JOIN schedule_slots s ON s.id = a.slot_id
		WHERE s.slot_date = $1
		ORDER BY a.created_at
	`, date.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDetails(rows)
}

func collectDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	var result []AppointmentDetail
	for rows.Next() {
		var a Appointment
		var slot ScheduleSlot
		var date time.Time
		var startRaw, endRaw string
		var types []string
		var status, apptType string
		var services []string
		var vaccineName *string
		var doseNumber *int
		var dateGiven *time.Time

		err := rows.Scan(
			&a.ID, &a.SlotID, &a.PatientID, &apptType, &a.Concerns,
			&services, &status, &a.CancelReason, &a.VaccineType,
			&vaccineName, &doseNumber, &dateGiven,
			&a.CreatedAt, &a.UpdatedAt,
			&slot.ID, &date, &startRaw, &endRaw, &slot.Capacity,
			&types, &slot.CreatedAt, &slot.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		a.Type = AppointmentType(apptType)
		a.Status = AppointmentStatus(status)
		a.AdditionalServices = services
		if vaccineName != nil && doseNumber != nil && dateGiven != nil {
			a.Vaccination = &VaccinationRecord{
				VaccineName: *vaccineName,
				DoseNumber:  *doseNumber,
				DateGiven:   DateOf(*dateGiven),
			}
		}

		slot.Date = DateOf(date)
		if slot.StartTime, err = ParseTimeOfDay(startRaw); err != nil {
			return nil, fmt.Errorf("slot %s start_time: %w", slot.ID, err)
		}
		if slot.EndTime, err = ParseTimeOfDay(endRaw); err != nil {
			return nil, fmt.Errorf("slot %s end_time: %w", slot.ID, err)
		}
		for _, t := range types {
			parsed, err := ParseAppointmentType(t)
			if err != nil {
				return nil, fmt.Errorf("slot %s: %w", slot.ID, err)
			}
			slot.Types = append(slot.Types, parsed)
		}

		s := slot
		result = append(result, AppointmentDetail{Appointment: a, Slot: &s})
	}
	return result, rows.Err()
}

func (r *PgRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING`+appointmentColsBare+`
	`, id, string(to), string(from))

	return scanAppointment(row)
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID, from AppointmentStatus, reason string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'canceled',
		    cancel_reason = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING`+appointmentColsBare+`
	`, id, reason, string(from))

	return scanAppointment(row)
}

func (r *PgRepository) CompleteAppointment(ctx context.Context, id uuid.UUID, rec *VaccinationRecord) (*Appointment, error) {
	var vaccineName *string
	var doseNumber *int
	var dateGiven *time.Time
	if rec != nil {
		vaccineName = &rec.VaccineName
		doseNumber = &rec.DoseNumber
		given := rec.DateGiven.Time()
		dateGiven = &given
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'completed',
		    vaccine_name = $2,
		    dose_number = $3,
		    vaccine_date_given = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'approved'
		RETURNING`+appointmentColsBare+`
	`, id, vaccineName, doseNumber, dateGiven)

	return scanAppointment(row)
}

func (r *PgRepository) FindStalePending(ctx context.Context, before Date) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentCols+`
		FROM appointments a
		JOIN schedule_slots s ON s.id = a.slot_id
		WHERE a.status = 'pending'
		  AND s.slot_date < $1
	`, before.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		var a Appointment
		if err := scanAppointmentCols(rows, &a); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
