// Package httpx holds the JSON request and response helpers shared by the
// API handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/tenancy"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	return validate
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError maps err onto a status code. Unknown errors are logged and
// reported without detail.
func WriteError(w http.ResponseWriter, logger *logging.Logger, err error) {
	status := apperr.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", "error", err)
		}
		message = "internal error"
	}
	WriteJSON(w, status, map[string]string{"error": message})
}

// DecodeJSON reads a JSON body into dst and validates its struct tags.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Parse("invalid request body", err)
	}
	return ValidateStruct(dst)
}

// ValidateStruct runs validator tags on v and converts failures to a
// validation error naming the offending fields.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return apperr.Validation(strings.Join(parts, "; "))
	}
	return apperr.Validation(err.Error())
}

// ClinicID returns the clinic placed in context by the tenancy middleware.
func ClinicID(r *http.Request) (string, error) {
	clinicID, ok := tenancy.ClinicIDFromContext(r.Context())
	if !ok {
		return "", apperr.Validation("clinic id required")
	}
	return clinicID, nil
}
