package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
	"github.com/iliyamo/patient-records/internal/queue"
	"github.com/iliyamo/patient-records/internal/utils"
)

// MinBootstrapPasswordLength is the shortest generated SuperAdmin password.
const MinBootstrapPasswordLength = 16

// UserService manages accounts other than through the credential flows.
type UserService struct {
	users       UserRepository
	decider     *Decider
	hasher      *utils.PasswordHasher
	refresh     *RefreshTokenStore
	passwordLen int
	audit       auditor
	log         zerolog.Logger
}

func NewUserService(users UserRepository, decider *Decider, hasher *utils.PasswordHasher, refresh *RefreshTokenStore, passwordLen int, events EventPublisher, log zerolog.Logger) *UserService {
	log = log.With().Str("component", "users").Logger()
	return &UserService{
		users:       users,
		decider:     decider,
		hasher:      hasher,
		refresh:     refresh,
		passwordLen: passwordLen,
		audit:       auditor{pub: events, log: log},
		log:         log,
	}
}

// Me returns the caller's own account.
func (s *UserService) Me(ctx context.Context, token string) (*model.User, error) {
	return s.decider.Authorize(ctx, token, AllRoles...)
}

// List returns every account.
func (s *UserService) List(ctx context.Context, token string) ([]model.User, error) {
	if _, err := s.decider.Authorize(ctx, token, model.RoleSuperAdmin, model.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "list users")
	}
	return users, nil
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, token string, id uint64) (*model.User, error) {
	if _, err := s.decider.Authorize(ctx, token, model.RoleSuperAdmin, model.RoleAdmin); err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(err, "find user")
	}
	return u, nil
}

// UpdateAccountInfo changes username and email of id. Users may edit
// themselves; editing someone else requires a role that could have
// created them.
func (s *UserService) UpdateAccountInfo(ctx context.Context, token string, id uint64, username, email string) (*model.User, error) {
	me, err := s.decider.Authorize(ctx, token, AllRoles...)
	if err != nil {
		return nil, err
	}
	target := me
	if id != me.ID {
		if target, err = s.users.FindByID(ctx, id); err != nil {
			return nil, apperr.Wrap(err, "find user")
		}
		if !me.Role.CanCreate(target.Role) {
			return nil, apperr.With(apperr.InsufficientRole, "role", me.Role, "target", target.Role).
				Errorf("%s may not edit %s accounts", me.Role, target.Role)
		}
	}

	username, email, err = model.NormalizeAccount(username, email)
	if err != nil {
		return nil, err
	}
	if err := ensureUnique(ctx, s.users, username, email, target.ID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.users.UpdateAccount(ctx, target.ID, username, email, now); err != nil {
		return nil, apperr.Wrap(err, "update user")
	}
	target.Username = username
	target.Email = email
	target.DateEdited = now
	s.audit.emit(ctx, queue.EventUserUpdated, me.ID, target.ID)
	return target, nil
}

// SetActive activates or deactivates another account. Deactivation also
// ends the target's refresh session.
func (s *UserService) SetActive(ctx context.Context, token string, id uint64, active bool) (*model.User, error) {
	me, err := s.decider.Authorize(ctx, token, model.RoleSuperAdmin, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if id == me.ID {
		return nil, apperr.New(apperr.InvalidInput, "you cannot change the activation of your own account")
	}
	target, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(err, "find user")
	}
	if !me.Role.CanCreate(target.Role) {
		return nil, apperr.With(apperr.InsufficientRole, "role", me.Role, "target", target.Role).
			Errorf("%s may not manage %s accounts", me.Role, target.Role)
	}
	if target.IsDeactivated == !active {
		return target, nil
	}

	now := time.Now().UTC()
	if err := s.users.SetDeactivated(ctx, target.ID, !active, now); err != nil {
		return nil, apperr.Wrap(err, "update user")
	}
	target.IsDeactivated = !active
	target.DateEdited = now
	ev := queue.EventUserActivated
	if !active {
		ev = queue.EventUserDeactivated
		// The decider and Refresh refuse deactivated principals, so a
		// leftover refresh token is unusable.
		if err := s.refresh.Invalidate(ctx, target.ID); err != nil {
			s.log.Warn().Err(err).Uint64("user_id", target.ID).Msg("refresh token not invalidated after deactivation")
		}
	}
	s.audit.emit(ctx, ev, me.ID, target.ID)
	return target, nil
}

// BootstrapSuperAdmin creates the first SuperAdmin with a generated
// password. It refuses once any SuperAdmin exists.
func (s *UserService) BootstrapSuperAdmin(ctx context.Context, username, email string) (*model.User, string, error) {
	n, err := s.users.CountByRole(ctx, model.RoleSuperAdmin)
	if err != nil {
		return nil, "", apperr.Wrap(err, "count super admins")
	}
	if n > 0 {
		return nil, "", apperr.New(apperr.InvalidInput, "a SuperAdmin already exists")
	}
	username, email, err = model.NormalizeAccount(username, email)
	if err != nil {
		return nil, "", err
	}
	if err := ensureUnique(ctx, s.users, username, email, 0); err != nil {
		return nil, "", err
	}

	password, err := utils.GeneratePassword(max(s.passwordLen, MinBootstrapPasswordLength))
	if err != nil {
		return nil, "", apperr.Wrap(err, "generate password")
	}
	now := time.Now().UTC()
	u := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: s.hasher.Hash(password),
		Role:         model.RoleSuperAdmin,
		DateCreated:  now,
		DateEdited:   now,
	}
	if err := s.users.Insert(ctx, u); err != nil {
		return nil, "", apperr.Wrap(err, "insert user")
	}
	// Bootstrapping runs from the CLI, which exits right after.
	s.audit.emitSync(ctx, queue.EventAdminBootstrapped, u.ID, u.ID)
	return u, password, nil
}
