package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWalksWrappedChain(t *testing.T) {
	base := Conflict("slot taken")
	wrapped := fmt.Errorf("appointments: create: %w", base)

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindConflict))
	assert.False(t, Is(nil, KindConflict))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestWrapKeepsSentinelIdentity(t *testing.T) {
	sentinel := NotFound("product")
	cause := errors.New("no rows")
	err := fmt.Errorf("inventory: move: %w", Wrap(sentinel, cause))

	assert.True(t, errors.Is(err, sentinel))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "product not found: no rows", Wrap(sentinel, cause).Error())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Parse("bad json", nil), http.StatusBadRequest},
		{NotFound("patient"), http.StatusNotFound},
		{Conflict("overlap"), http.StatusConflict},
		{External("oracle", errors.New("timeout")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}
