package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/patient-records/internal/apperr"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), apperr.Internal},
		{"kinded", apperr.New(apperr.WrongPassword, "bad password"), apperr.WrongPassword},
		{"wrapped with fmt", fmt.Errorf("login: %w", apperr.New(apperr.NotFound, "gone")), apperr.NotFound},
		{"built with context", apperr.With(apperr.DuplicateEmail, "email", "a@b.c").Errorf("taken"), apperr.DuplicateEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.KindOf(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	assert.NoError(t, apperr.Wrap(nil, "noop"))

	infra := errors.New("connection refused")
	wrapped := apperr.Wrap(infra, "find user")
	assert.True(t, apperr.Is(wrapped, apperr.Internal))
	assert.ErrorIs(t, wrapped, infra)

	kinded := apperr.New(apperr.RefreshTokenInvalid, "expired")
	passed := apperr.Wrap(kinded, "redeem")
	assert.True(t, apperr.Is(passed, apperr.RefreshTokenInvalid))
	assert.Equal(t, kinded.Error(), passed.Error())
}

func TestIs(t *testing.T) {
	err := apperr.New(apperr.ForbiddenOwnership, "not your patient")
	assert.True(t, apperr.Is(err, apperr.ForbiddenOwnership))
	assert.False(t, apperr.Is(err, apperr.NotFound))
	assert.False(t, apperr.Is(nil, apperr.Internal))
}
