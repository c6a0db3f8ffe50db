package service

import (
	"context"
	"strings"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
	"github.com/iliyamo/patient-records/internal/utils"
)

// AllRoles admits any authenticated principal.
var AllRoles = []model.Role{model.RoleSuperAdmin, model.RoleAdmin, model.RoleDoctor}

// OwnerLoader fetches the record under protection and returns the id of
// its owning doctor. It returns an apperr.NotFound error when the record
// does not exist.
type OwnerLoader func(ctx context.Context) (ownerID uint64, err error)

// Decider turns a bearer token into an authorized principal or exactly one
// typed error. The checks run in a fixed order: token present, token
// valid, principal exists, principal active, role allowed, and for
// ownership checks, record exists and belongs to the principal.
type Decider struct {
	users  UserRepository
	tokens *utils.TokenIssuer
}

func NewDecider(users UserRepository, tokens *utils.TokenIssuer) *Decider {
	return &Decider{users: users, tokens: tokens}
}

// Authorize performs the role-only check.
func (d *Decider) Authorize(ctx context.Context, token string, allowed ...model.Role) (*model.User, error) {
	principal, err := d.principal(ctx, token)
	if err != nil {
		return nil, err
	}
	if !roleAllowed(principal.Role, allowed) {
		return nil, apperr.With(apperr.InsufficientRole, "role", principal.Role).
			Errorf("role %s may not perform this operation", principal.Role)
	}
	return principal, nil
}

// AuthorizeOwner performs the role check followed by the ownership check.
// load runs only after the role check has passed.
func (d *Decider) AuthorizeOwner(ctx context.Context, token string, allowed []model.Role, load OwnerLoader) (*model.User, error) {
	principal, err := d.Authorize(ctx, token, allowed...)
	if err != nil {
		return nil, err
	}
	ownerID, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if ownerID != principal.ID {
		return nil, apperr.New(apperr.ForbiddenOwnership, "record belongs to another doctor")
	}
	return principal, nil
}

func (d *Decider) principal(ctx context.Context, token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.New(apperr.MissingAuthorization, "authorization token is required")
	}
	if _, err := d.tokens.Validate(token); err != nil {
		return nil, err
	}
	id, err := d.tokens.PrincipalID(token)
	if err != nil {
		return nil, err
	}
	return loadPrincipal(ctx, d.users, id)
}

// loadPrincipal resolves id to an active user.
func loadPrincipal(ctx context.Context, users UserRepository, id uint64) (*model.User, error) {
	u, err := users.FindByID(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, apperr.With(apperr.PrincipalNotFound, "user_id", id).Errorf("no user for token subject")
		}
		return nil, apperr.Wrap(err, "load principal")
	}
	if u.IsDeactivated {
		return nil, apperr.With(apperr.AccountDeactivated, "user_id", id).Errorf("account is deactivated")
	}
	return u, nil
}

func roleAllowed(r model.Role, allowed []model.Role) bool {
	for _, a := range allowed {
		if a == r {
			return true
		}
	}
	return false
}
