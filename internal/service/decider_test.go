package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
	"github.com/iliyamo/patient-records/internal/service"
)

func TestDeciderAuthorize(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	doctor, doctorToken := e.register(t, "drwho", model.RoleDoctor)

	ghostToken := e.tokenFor(t, &model.User{ID: 999, Username: "ghost", Role: model.RoleSuperAdmin})

	tests := []struct {
		name    string
		token   string
		allowed []model.Role
		want    apperr.Kind
	}{
		{"missing", "", service.AllRoles, apperr.MissingAuthorization},
		{"blank", "   ", service.AllRoles, apperr.MissingAuthorization},
		{"garbage", "abc.def.ghi", service.AllRoles, apperr.MalformedToken},
		{"unknown principal", ghostToken, service.AllRoles, apperr.PrincipalNotFound},
		{"role not allowed", doctorToken, []model.Role{model.RoleSuperAdmin, model.RoleAdmin}, apperr.InsufficientRole},
		{"allowed", doctorToken, []model.Role{model.RoleDoctor}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := e.decider.Authorize(ctx, tt.token, tt.allowed...)
			if tt.want == "" {
				require.NoError(t, err)
				assert.Equal(t, doctor.ID, u.ID)
				return
			}
			assert.Equal(t, tt.want, apperr.KindOf(err), "err: %v", err)
		})
	}
}

func TestDeciderRejectsDeactivatedPrincipal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	doctor, doctorToken := e.register(t, "drwho", model.RoleDoctor)

	_, err := e.users.SetActive(ctx, e.rootToken, doctor.ID, false)
	require.NoError(t, err)

	_, err = e.decider.Authorize(ctx, doctorToken, service.AllRoles...)
	assert.True(t, apperr.Is(err, apperr.AccountDeactivated))
}

func TestDeciderAuthorizeOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	doctor, doctorToken := e.register(t, "drwho", model.RoleDoctor)
	_, adminToken := e.register(t, "admin1", model.RoleAdmin)

	owner := func(id uint64) service.OwnerLoader {
		return func(context.Context) (uint64, error) { return id, nil }
	}
	loaderCalled := false
	absent := func(context.Context) (uint64, error) {
		loaderCalled = true
		return 0, apperr.New(apperr.NotFound, "gone")
	}
	doctors := []model.Role{model.RoleDoctor}

	_, err := e.decider.AuthorizeOwner(ctx, doctorToken, doctors, owner(doctor.ID))
	require.NoError(t, err)

	_, err = e.decider.AuthorizeOwner(ctx, doctorToken, doctors, owner(doctor.ID+100))
	assert.True(t, apperr.Is(err, apperr.ForbiddenOwnership))

	_, err = e.decider.AuthorizeOwner(ctx, adminToken, doctors, absent)
	assert.True(t, apperr.Is(err, apperr.InsufficientRole))
	assert.False(t, loaderCalled, "records must not be loaded before the role check passes")

	_, err = e.decider.AuthorizeOwner(ctx, doctorToken, doctors, absent)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.True(t, loaderCalled)
}
