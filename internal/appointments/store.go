package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/textnorm"
)

// DB abstracts the pgx pool for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores appointments and clinic_schedules.
//
// Bookings for one clinic day are serialized with a transaction-scoped
// advisory lock so two concurrent requests cannot both pass the overlap
// check.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const appointmentSelect = `
	SELECT a.id, a.clinic_id, a.patient_id, COALESCE(p.name, ''), a.date, a.start_time, a.end_time,
		a.treatment_type, a.status, a.notes, a.created_at
	FROM appointments a
	LEFT JOIN patients p ON p.id = a.patient_id`

func (s *PostgresRepository) CreateIfFree(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	day := a.DayKey()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockDay(ctx, tx, a.ClinicID, day); err != nil {
		return err
	}
	if a.Status.Occupies() {
		if err := checkFree(ctx, tx, a.ClinicID, day, "", a.Start, a.End); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, clinic_id, patient_id, date, start_time, end_time, treatment_type, status, notes, created_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.ClinicID, a.PatientID, day, a.Start.String(), a.End.String(),
		string(a.TreatmentType), string(a.Status), a.Notes, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit: %w", err)
	}
	return nil
}

func (s *PostgresRepository) MoveIfFree(ctx context.Context, clinicID, id string, start, end calendar.Clock) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var day time.Time
	err = tx.QueryRow(ctx, `SELECT date FROM appointments WHERE clinic_id = $1 AND id = $2`, clinicID, id).Scan(&day)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("appointments: load for move: %w", err)
	}
	dayKey := calendar.ISODate(day)

	if err := lockDay(ctx, tx, clinicID, dayKey); err != nil {
		return err
	}
	if err := checkFree(ctx, tx, clinicID, dayKey, id, start, end); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE appointments SET start_time = $1, end_time = $2
		WHERE clinic_id = $3 AND id = $4`, start.String(), end.String(), clinicID, id); err != nil {
		return fmt.Errorf("appointments: move: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit: %w", err)
	}
	return nil
}

func lockDay(ctx context.Context, tx pgx.Tx, clinicID, dayKey string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "appointments:"+clinicID+":"+dayKey); err != nil {
		return fmt.Errorf("appointments: lock day: %w", err)
	}
	return nil
}

// checkFree returns a *ConflictError when an occupying appointment other
// than excludeID overlaps [start, end). Zero-padded "HH:MM" text compares
// in time order.
func checkFree(ctx context.Context, tx pgx.Tx, clinicID, dayKey, excludeID string, start, end calendar.Clock) error {
	rows, err := tx.Query(ctx, appointmentSelect+`
		WHERE a.clinic_id = $1 AND a.date = $2::date AND a.status <> 'CANCELLED'
			AND a.id <> $3 AND a.start_time < $5 AND a.end_time > $4
		ORDER BY a.start_time
		LIMIT 1`, clinicID, dayKey, excludeID, start.String(), end.String())
	if err != nil {
		return fmt.Errorf("appointments: conflict check: %w", err)
	}
	defer rows.Close()
	found, err := scanAppointments(rows)
	if err != nil {
		return err
	}
	if len(found) > 0 {
		return &ConflictError{Existing: found[0]}
	}
	return nil
}

func (s *PostgresRepository) UpdateStatus(ctx context.Context, clinicID, id string, status catalog.AppointmentStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE appointments SET status = $1 WHERE clinic_id = $2 AND id = $3`,
		string(status), clinicID, id)
	if err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresRepository) Get(ctx context.Context, clinicID, id string) (*Appointment, error) {
	rows, err := s.db.Query(ctx, appointmentSelect+` WHERE a.clinic_id = $1 AND a.id = $2`, clinicID, id)
	if err != nil {
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	defer rows.Close()
	list, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

func (s *PostgresRepository) ListByDate(ctx context.Context, clinicID string, date time.Time) ([]Appointment, error) {
	return s.list(ctx, "list by date", ` WHERE a.clinic_id = $1 AND a.date = $2::date ORDER BY a.start_time`,
		clinicID, calendar.ISODate(date))
}

func (s *PostgresRepository) ListRange(ctx context.Context, clinicID string, from, to time.Time) ([]Appointment, error) {
	return s.list(ctx, "list range", ` WHERE a.clinic_id = $1 AND a.date >= $2::date AND a.date < $3::date ORDER BY a.date, a.start_time`,
		clinicID, calendar.ISODate(from), calendar.ISODate(to))
}

func (s *PostgresRepository) ListByPatient(ctx context.Context, clinicID, patientID string, from time.Time) ([]Appointment, error) {
	return s.list(ctx, "list by patient", ` WHERE a.clinic_id = $1 AND a.patient_id = $2 AND a.date >= $3::date ORDER BY a.date, a.start_time`,
		clinicID, patientID, calendar.ISODate(from))
}

func (s *PostgresRepository) SearchScheduledByPatientName(ctx context.Context, clinicID, fragment string) ([]Appointment, error) {
	return s.list(ctx, "search by patient name", ` WHERE a.clinic_id = $1 AND a.status = 'SCHEDULED'
		AND p.name_folded LIKE '%' || $2 || '%' ESCAPE '\' ORDER BY a.date, a.start_time`,
		clinicID, textnorm.LikeFolded(fragment))
}

func (s *PostgresRepository) list(ctx context.Context, op, where string, args ...any) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, appointmentSelect+where, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: %s: %w", op, err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresRepository) Schedules(ctx context.Context, clinicID string) ([]Schedule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT clinic_id, weekday, start_time, end_time, slot_duration, is_active
		FROM clinic_schedules WHERE clinic_id = $1 ORDER BY weekday`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("appointments: schedules: %w", err)
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		var sc Schedule
		var weekday int
		var start, end string
		if err := rows.Scan(&sc.ClinicID, &weekday, &start, &end, &sc.SlotMinutes, &sc.Active); err != nil {
			return nil, fmt.Errorf("appointments: scan schedule: %w", err)
		}
		sc.Weekday = time.Weekday(weekday)
		if sc.Start, err = calendar.ParseClock(start); err != nil {
			return nil, fmt.Errorf("appointments: schedule start: %w", err)
		}
		if sc.End, err = calendar.ParseClock(end); err != nil {
			return nil, fmt.Errorf("appointments: schedule end: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *PostgresRepository) SaveSchedules(ctx context.Context, clinicID string, schedules []Schedule) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM clinic_schedules WHERE clinic_id = $1`, clinicID); err != nil {
		return fmt.Errorf("appointments: clear schedules: %w", err)
	}
	for _, sc := range schedules {
		if _, err := tx.Exec(ctx, `
			INSERT INTO clinic_schedules (clinic_id, weekday, start_time, end_time, slot_duration, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			clinicID, int(sc.Weekday), sc.Start.String(), sc.End.String(), sc.SlotMinutes, sc.Active); err != nil {
			return fmt.Errorf("appointments: insert schedule: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit schedules: %w", err)
	}
	return nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		var a Appointment
		var start, end, treatment, status string
		if err := rows.Scan(&a.ID, &a.ClinicID, &a.PatientID, &a.PatientName, &a.Date, &start, &end,
			&treatment, &status, &a.Notes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		var err error
		if a.Start, err = calendar.ParseClock(start); err != nil {
			return nil, fmt.Errorf("appointments: scan start: %w", err)
		}
		if a.End, err = calendar.ParseClock(end); err != nil {
			return nil, fmt.Errorf("appointments: scan end: %w", err)
		}
		a.TreatmentType = catalog.TreatmentCategory(treatment)
		a.Status = catalog.AppointmentStatus(status)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows: %w", err)
	}
	return out, nil
}
