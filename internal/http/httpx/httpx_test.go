package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/tenancy"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

type sampleBody struct {
	Name   string `json:"name" validate:"required"`
	Amount int64  `json:"amount" validate:"gt=0"`
}

func TestDecodeJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Kira","amount":100}`))
	var body sampleBody
	require.NoError(t, DecodeJSON(req, &body))
	assert.Equal(t, "Kira", body.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","amount":0}`))
	err := DecodeJSON(req, &body)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "Name failed required")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	err = DecodeJSON(req, &body)
	assert.True(t, apperr.Is(err, apperr.KindParse))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","amount":1,"extra":true}`))
	assert.Error(t, DecodeJSON(req, &body))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, logging.Discard(), apperr.Conflict("slot taken"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "slot taken", payload["error"])

	rec = httptest.NewRecorder()
	WriteError(rec, logging.Discard(), errors.New("pg: connection reset"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pg:")
}

func TestClinicID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ClinicID(req)
	assert.Error(t, err)

	req = req.WithContext(tenancy.WithClinicID(req.Context(), "c1"))
	id, err := ClinicID(req)
	require.NoError(t, err)
	assert.Equal(t, "c1", id)
}
