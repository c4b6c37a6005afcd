package patients

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// Resolver finds a patient by a loosely typed name, creating one when
// nothing matches.
//
// Matching is approximate: the first patient (in creation order) whose
// name contains the full name wins, then the first whose name contains the
// first word. Callers should echo the matched name back to the operator.
type Resolver struct {
	repo   Repository
	logger *logging.Logger
}

func NewResolver(repo Repository, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

// FindOrCreate returns the matching patient and whether it was just created.
func (r *Resolver) FindOrCreate(ctx context.Context, clinicID, name, phone string) (*Patient, bool, error) {
	p, err := r.Find(ctx, clinicID, name)
	if err != nil || p != nil {
		return p, false, err
	}
	p, err = r.Register(ctx, clinicID, name, phone)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// Find returns the matching patient, or nil when nobody matches.
func (r *Resolver) Find(ctx context.Context, clinicID, name string) (*Patient, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, apperr.Validation("patient name is required")
	}

	if p, err := r.first(ctx, clinicID, name); err != nil || p != nil {
		return p, err
	}

	firstToken := strings.Fields(name)[0]
	if firstToken != name && utf8.RuneCountInString(firstToken) >= 2 {
		return r.first(ctx, clinicID, firstToken)
	}
	return nil, nil
}

// Register creates a patient without looking for an existing match.
func (r *Resolver) Register(ctx context.Context, clinicID, name, phone string) (*Patient, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, apperr.Validation("patient name is required")
	}
	p := &Patient{ClinicID: clinicID, Name: name, Phone: strings.TrimSpace(phone)}
	if err := r.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("patients: register: %w", err)
	}
	r.logger.Info("patient created from free text", "clinic_id", clinicID, "patient_id", p.ID)
	return p, nil
}

// Remove deletes a patient registered by Register whose follow-up write
// failed.
func (r *Resolver) Remove(ctx context.Context, clinicID, id string) error {
	if err := r.repo.Delete(ctx, clinicID, id); err != nil {
		return fmt.Errorf("patients: remove: %w", err)
	}
	r.logger.Info("patient removed", "clinic_id", clinicID, "patient_id", id)
	return nil
}

// Search returns every patient whose name contains fragment.
func (r *Resolver) Search(ctx context.Context, clinicID, fragment string, limit int) ([]Patient, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, apperr.Validation("search text is required")
	}
	return r.repo.SearchByName(ctx, clinicID, fragment, limit)
}

func (r *Resolver) first(ctx context.Context, clinicID, fragment string) (*Patient, error) {
	matches, err := r.repo.SearchByName(ctx, clinicID, fragment, 1)
	if err != nil {
		return nil, fmt.Errorf("patients: find: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
