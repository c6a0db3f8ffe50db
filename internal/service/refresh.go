package service

import (
	"context"
	"time"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
	"github.com/iliyamo/patient-records/internal/utils"
)

// RefreshTokenStore issues and redeems single-use refresh tokens. Each
// user holds at most one live token; redeeming it rotates it.
type RefreshTokenStore struct {
	repo RefreshRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewRefreshTokenStore(repo RefreshRepository, ttl time.Duration) *RefreshTokenStore {
	return &RefreshTokenStore{repo: repo, ttl: ttl, now: time.Now}
}

// Issue creates a token for userID, replacing any previous one. The raw
// token is returned once and never stored.
func (s *RefreshTokenStore) Issue(ctx context.Context, userID uint64) (string, *model.RefreshToken, error) {
	raw, rec, err := s.mint(userID)
	if err != nil {
		return "", nil, err
	}
	if err := s.repo.Replace(ctx, rec); err != nil {
		return "", nil, apperr.Wrap(err, "store refresh token")
	}
	return raw, rec, nil
}

// Redeem checks raw against the user's current record and, on a match
// before expiry, swaps the record for a new one in a single transaction.
func (s *RefreshTokenStore) Redeem(ctx context.Context, userID uint64, raw string) (string, *model.RefreshToken, error) {
	nextRaw, next, err := s.mint(userID)
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	check := func(current *model.RefreshToken) error {
		if current == nil || current.ExpiredAt(now) || !utils.RefreshMatches(raw, current.TokenHash) {
			return apperr.New(apperr.RefreshTokenInvalid, "refresh token is invalid or expired")
		}
		return nil
	}
	if err := s.repo.Rotate(ctx, userID, check, next); err != nil {
		return "", nil, apperr.Wrap(err, "rotate refresh token")
	}
	return nextRaw, next, nil
}

// Invalidate removes the user's refresh token.
func (s *RefreshTokenStore) Invalidate(ctx context.Context, userID uint64) error {
	return apperr.Wrap(s.repo.Invalidate(ctx, userID), "invalidate refresh token")
}

func (s *RefreshTokenStore) mint(userID uint64) (string, *model.RefreshToken, error) {
	now := s.now().UTC()
	tok, err := utils.NewRefreshToken(now, s.ttl)
	if err != nil {
		return "", nil, apperr.Wrap(err, "generate refresh token")
	}
	return tok.Raw, &model.RefreshToken{
		UserID:      userID,
		TokenHash:   utils.HashRefreshRaw(tok.Raw),
		Expiry:      tok.Exp,
		DateCreated: now,
	}, nil
}
