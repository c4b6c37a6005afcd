package patients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/erdincayar/klinik-asistan-sub000/internal/textnorm"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients in the patients table. name_folded
// keeps the folded name so LIKE searches agree with textnorm.Fold.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const patientColumns = `id, clinic_id, name, phone, email, notes, created_at`

func (s *PostgresRepository) Create(ctx context.Context, p *Patient) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO patients (id, clinic_id, name, name_folded, phone, email, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.ClinicID, p.Name, textnorm.Fold(p.Name), p.Phone, p.Email, p.Notes, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("patients: create: %w", err)
	}
	return nil
}

func (s *PostgresRepository) Delete(ctx context.Context, clinicID, id string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM patients WHERE clinic_id = $1 AND id = $2`, clinicID, id)
	if err != nil {
		return fmt.Errorf("patients: delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresRepository) Get(ctx context.Context, clinicID, id string) (*Patient, error) {
	row := s.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE clinic_id = $1 AND id = $2`, clinicID, id)
	p, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patients: get: %w", err)
	}
	return p, nil
}

func (s *PostgresRepository) SearchByName(ctx context.Context, clinicID, fragment string, limit int) ([]Patient, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE clinic_id = $1 AND name_folded LIKE '%' || $2 || '%' ESCAPE '\'
		ORDER BY created_at ASC, id ASC
		LIMIT $3`, clinicID, textnorm.LikeFolded(fragment), limit)
	if err != nil {
		return nil, fmt.Errorf("patients: search by name: %w", err)
	}
	defer rows.Close()
	return scanPatients(rows)
}

func (s *PostgresRepository) ListRecent(ctx context.Context, clinicID string, limit int) ([]Patient, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE clinic_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, clinicID, limit)
	if err != nil {
		return nil, fmt.Errorf("patients: list recent: %w", err)
	}
	defer rows.Close()
	return scanPatients(rows)
}

func (s *PostgresRepository) Count(ctx context.Context, clinicID string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE clinic_id = $1`, clinicID).Scan(&n); err != nil {
		return 0, fmt.Errorf("patients: count: %w", err)
	}
	return n, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.ClinicID, &p.Name, &p.Phone, &p.Email, &p.Notes, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPatients(rows pgx.Rows) ([]Patient, error) {
	var out []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("patients: scan: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patients: rows: %w", err)
	}
	return out, nil
}
