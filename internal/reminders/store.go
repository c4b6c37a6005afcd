package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores reminder_rules and reminder_logs.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (s *PostgresRepository) CreateRule(ctx context.Context, r *Rule) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO reminder_rules (id, clinic_id, treatment_category, interval_days, message_template, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.ClinicID, string(r.Category), r.IntervalDays, r.MessageTemplate, r.Active, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("reminders: create rule: %w", err)
	}
	return nil
}

func (s *PostgresRepository) UpdateRule(ctx context.Context, r *Rule) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE reminder_rules
		SET treatment_category = $1, interval_days = $2, message_template = $3, is_active = $4
		WHERE clinic_id = $5 AND id = $6`,
		string(r.Category), r.IntervalDays, r.MessageTemplate, r.Active, r.ClinicID, r.ID,
	)
	if err != nil {
		return fmt.Errorf("reminders: update rule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *PostgresRepository) ListRules(ctx context.Context, clinicID string) ([]Rule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, clinic_id, treatment_category, interval_days, message_template, is_active, created_at
		FROM reminder_rules
		WHERE clinic_id = $1
		ORDER BY created_at, id`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("reminders: list rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var r Rule
		var category string
		if err := rows.Scan(&r.ID, &r.ClinicID, &category, &r.IntervalDays, &r.MessageTemplate, &r.Active, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("reminders: scan rule: %w", err)
		}
		r.Category = catalog.TreatmentCategory(category)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresRepository) CreateLog(ctx context.Context, l *Log) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	var ruleID any
	if l.RuleID != "" {
		ruleID = l.RuleID
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO reminder_logs (id, clinic_id, patient_id, rule_id, message_content, channel, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.ClinicID, l.PatientID, ruleID, l.MessageContent, string(l.Channel), string(l.Status), l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("reminders: create log: %w", err)
	}
	return nil
}

func (s *PostgresRepository) ListLogsSince(ctx context.Context, clinicID string, since time.Time) ([]Log, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, clinic_id, patient_id, COALESCE(rule_id, ''), message_content, channel, status, created_at
		FROM reminder_logs
		WHERE clinic_id = $1 AND created_at >= $2
		ORDER BY created_at`, clinicID, since)
	if err != nil {
		return nil, fmt.Errorf("reminders: list logs: %w", err)
	}
	defer rows.Close()

	var out []Log
	for rows.Next() {
		var l Log
		var channel, status string
		if err := rows.Scan(&l.ID, &l.ClinicID, &l.PatientID, &l.RuleID, &l.MessageContent, &channel, &status, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("reminders: scan log: %w", err)
		}
		l.Channel = Channel(channel)
		l.Status = LogStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}
