package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindAndStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		status int
	}{
		{"not found", NotFoundf("order %s", "o-1"), NotFound, http.StatusNotFound},
		{"wrapped invalid", fmt.Errorf("place: %w", Invalidf("empty cart")), Invalid, http.StatusBadRequest},
		{"conflict", Conflictf("status changed"), Conflict, http.StatusConflict},
		{"unauthorized", ErrUnauthorized, Unauthorized, http.StatusUnauthorized},
		{"raw error", sql.ErrConnDone, Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.status, Status(KindOf(tt.err)))
		})
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("get: %w", Wrap(NotFound, "order", sql.ErrNoRows))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestLang(t *testing.T) {
	assert.Equal(t, "en", Lang("en-US,en;q=0.9"))
	assert.Equal(t, "ko", Lang("ko-KR"))
	assert.Equal(t, "en", Lang("fr-FR, en;q=0.5"))
	assert.Equal(t, "ko", Lang(""))
	assert.Equal(t, "ko", Lang("de"))
}

func TestMessageFallbacks(t *testing.T) {
	assert.Equal(t, "Something went wrong. Please try again.", Message(Internal, "en"))
	assert.Equal(t, Message(NotFound, "ko"), Message(NotFound, "xx"))
	assert.Equal(t, Message(Internal, "en"), Message(Kind("bogus"), "en"))
}
