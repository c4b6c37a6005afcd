package patients

import (
	"context"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
)

// Patient is a person registered with a clinic.
type Patient struct {
	ID        string    `json:"id"`
	ClinicID  string    `json:"clinic_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

var ErrNotFound = apperr.NotFound("patient")

// Repository persists patients. Name searches fold case and Turkish
// diacritics and return matches in creation order.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	Get(ctx context.Context, clinicID, id string) (*Patient, error)
	SearchByName(ctx context.Context, clinicID, fragment string, limit int) ([]Patient, error)
	ListRecent(ctx context.Context, clinicID string, limit int) ([]Patient, error)
	Count(ctx context.Context, clinicID string) (int, error)
	Delete(ctx context.Context, clinicID, id string) error
}
