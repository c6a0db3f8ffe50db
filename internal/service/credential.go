package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
	"github.com/iliyamo/patient-records/internal/queue"
	"github.com/iliyamo/patient-records/internal/utils"
)

// Session is what a successful login or refresh hands back.
type Session struct {
	AccessToken   utils.AccessToken
	RefreshToken  string
	RefreshExpiry time.Time
	User          *model.User
}

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// CredentialDeps wires a CredentialService.
type CredentialDeps struct {
	Users   UserRepository
	Decider *Decider
	Hasher  *utils.PasswordHasher
	Tokens  *utils.TokenIssuer
	Refresh *RefreshTokenStore
	Policy  PasswordPolicy
	Events  EventPublisher
	Log     zerolog.Logger
}

// CredentialService runs login, registration, token refresh, logout and
// password changes.
type CredentialService struct {
	users   UserRepository
	decider *Decider
	hasher  *utils.PasswordHasher
	tokens  *utils.TokenIssuer
	refresh *RefreshTokenStore
	policy  PasswordPolicy
	audit   auditor
	log     zerolog.Logger
}

func NewCredentialService(d CredentialDeps) *CredentialService {
	log := d.Log.With().Str("component", "credentials").Logger()
	return &CredentialService{
		users:   d.Users,
		decider: d.Decider,
		hasher:  d.Hasher,
		tokens:  d.Tokens,
		refresh: d.Refresh,
		policy:  d.Policy,
		audit:   auditor{pub: d.Events, log: log},
		log:     log,
	}
}

// Login verifies username and password and opens a session.
func (s *CredentialService) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			s.log.Debug().Str("reason", "unknown_user").Msg("login failed")
			return nil, apperr.New(apperr.PrincipalNotFound, "no user with that username")
		}
		return nil, apperr.Wrap(err, "find user")
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		s.log.Info().Uint64("user_id", u.ID).Str("reason", "wrong_password").Msg("login failed")
		return nil, apperr.New(apperr.WrongPassword, "wrong password")
	}
	if u.IsDeactivated {
		s.log.Info().Uint64("user_id", u.ID).Str("reason", "deactivated").Msg("login failed")
		return nil, apperr.New(apperr.AccountDeactivated, "account is deactivated")
	}

	sess, err := s.openSession(ctx, u)
	if err != nil {
		return nil, err
	}
	s.audit.emit(ctx, queue.EventUserLoggedIn, u.ID, u.ID)
	return sess, nil
}

func (s *CredentialService) openSession(ctx context.Context, u *model.User) (*Session, error) {
	access, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	raw, rec, err := s.refresh.Issue(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: access, RefreshToken: raw, RefreshExpiry: rec.Expiry, User: u}, nil
}

// Register creates a user of targetRole on behalf of the token's owner and
// returns an access token for the new user. Nothing is stored unless every
// check passes.
func (s *CredentialService) Register(ctx context.Context, token string, in RegisterInput, targetRole string) (utils.AccessToken, *model.User, error) {
	// Doctors may create nobody, so they are refused before the target
	// role is even looked at.
	requestor, err := s.decider.Authorize(ctx, token, model.RoleSuperAdmin, model.RoleAdmin)
	if err != nil {
		return utils.AccessToken{}, nil, err
	}
	role, err := model.ParseRole(targetRole)
	if err != nil {
		return utils.AccessToken{}, nil, err
	}
	if !requestor.Role.CanCreate(role) {
		return utils.AccessToken{}, nil, apperr.With(apperr.InsufficientRole, "role", requestor.Role, "target", role).
			Errorf("%s may not create %s accounts", requestor.Role, role)
	}

	username, email, err := model.NormalizeAccount(in.Username, in.Email)
	if err != nil {
		return utils.AccessToken{}, nil, err
	}
	if err := s.policy.Check(ctx, in.Password); err != nil {
		return utils.AccessToken{}, nil, err
	}
	if err := ensureUnique(ctx, s.users, username, email, 0); err != nil {
		return utils.AccessToken{}, nil, err
	}

	now := time.Now().UTC()
	u := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: s.hasher.Hash(in.Password),
		Role:         role,
		DateCreated:  now,
		DateEdited:   now,
	}
	if err := s.users.Insert(ctx, u); err != nil {
		return utils.AccessToken{}, nil, apperr.Wrap(err, "insert user")
	}
	access, err := s.tokens.Issue(u)
	if err != nil {
		return utils.AccessToken{}, nil, err
	}
	s.audit.emit(ctx, queue.EventUserRegistered, requestor.ID, u.ID)
	return access, u, nil
}

// Refresh trades an access token, which may have expired but must carry a
// valid signature, plus the matching refresh token for a new session.
func (s *CredentialService) Refresh(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" {
		return nil, apperr.New(apperr.MissingAuthorization, "access token is required")
	}
	claims, err := s.tokens.ValidateIgnoringExpiry(accessToken)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return nil, apperr.New(apperr.MalformedToken, "subject claim is not a user id")
	}
	u, err := loadPrincipal(ctx, s.users, id)
	if err != nil {
		return nil, err
	}

	raw, rec, err := s.refresh.Redeem(ctx, u.ID, refreshToken)
	if err != nil {
		s.log.Info().Uint64("user_id", u.ID).Str("reason", string(apperr.KindOf(err))).Msg("refresh failed")
		return nil, err
	}
	access, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	s.audit.emit(ctx, queue.EventTokenRefreshed, u.ID, u.ID)
	return &Session{AccessToken: access, RefreshToken: raw, RefreshExpiry: rec.Expiry, User: u}, nil
}

// Logout drops the caller's refresh token. The access token stays valid
// until it expires.
func (s *CredentialService) Logout(ctx context.Context, token string) error {
	me, err := s.decider.Authorize(ctx, token, AllRoles...)
	if err != nil {
		return err
	}
	if err := s.refresh.Invalidate(ctx, me.ID); err != nil {
		return err
	}
	s.audit.emit(ctx, queue.EventUserLoggedOut, me.ID, me.ID)
	return nil
}

// ChangePassword replaces the caller's password and ends their refresh
// session.
func (s *CredentialService) ChangePassword(ctx context.Context, token, current, next string) error {
	me, err := s.decider.Authorize(ctx, token, AllRoles...)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, me.PasswordHash) {
		return apperr.New(apperr.WrongPassword, "current password is wrong")
	}
	if err := s.policy.Check(ctx, next); err != nil {
		return err
	}
	me.PasswordHash = s.hasher.Hash(next)
	me.DateEdited = time.Now().UTC()
	if err := s.users.UpdatePassword(ctx, me.ID, me.PasswordHash, me.DateEdited); err != nil {
		return apperr.Wrap(err, "update password")
	}
	if err := s.refresh.Invalidate(ctx, me.ID); err != nil {
		return err
	}
	s.audit.emit(ctx, queue.EventPasswordChanged, me.ID, me.ID)
	return nil
}

// ensureUnique fails with DuplicateUsername or DuplicateEmail when another
// user than self already holds the value.
func ensureUnique(ctx context.Context, users UserRepository, username, email string, self uint64) error {
	if u, err := users.FindByUsername(ctx, username); err == nil && u.ID != self {
		return apperr.With(apperr.DuplicateUsername, "username", username).Errorf("username is taken")
	} else if err != nil && !apperr.Is(err, apperr.NotFound) {
		return apperr.Wrap(err, "check username")
	}
	if u, err := users.FindByEmail(ctx, email); err == nil && u.ID != self {
		return apperr.With(apperr.DuplicateEmail, "email", email).Errorf("email is taken")
	} else if err != nil && !apperr.Is(err, apperr.NotFound) {
		return apperr.Wrap(err, "check email")
	}
	return nil
}
