package utils

import (
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
)

// Claims is the payload of an access token. Subject carries the user id
// in decimal form.
type Claims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AccessToken is a signed JWT along with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// TokenIssuer mints and reads HS256 access tokens. It holds no state
// beyond its configuration and is safe for concurrent use.
type TokenIssuer struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenIssuer returns an issuer signing with key and stamping issuer,
// audience and an expiry ttl after issuance.
func NewTokenIssuer(key, issuer, audience string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		key:      []byte(key),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock returns a copy of the issuer that reads the current time from
// now. Tests use it to move past the expiry window.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *i
	cp.now = now
	return &cp
}

// Issue signs an access token for u.
func (i *TokenIssuer) Issue(u *model.User) (AccessToken, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	claims := Claims{
		Email:    u.Email,
		Username: u.Username,
		Role:     string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(u.ID, 10),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return AccessToken{}, apperr.Wrap(err, "sign access token")
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// Validate verifies signature, issuer, audience and expiry of raw.
func (i *TokenIssuer) Validate(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, apperr.With(apperr.MalformedToken, "reason", err.Error()).Errorf("invalid access token")
	}
	return claims, nil
}

// ValidateIgnoringExpiry verifies signature, issuer and audience but
// accepts an expired token. The refresh flow uses it to learn which user
// an expired access token belonged to.
func (i *TokenIssuer) ValidateIgnoringExpiry(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, apperr.With(apperr.MalformedToken, "reason", err.Error()).Errorf("invalid access token")
	}
	if claims.Issuer != i.issuer || !slices.Contains(claims.Audience, i.audience) {
		return nil, apperr.New(apperr.MalformedToken, "access token issuer or audience mismatch")
	}
	return claims, nil
}

func (i *TokenIssuer) keyFunc(*jwt.Token) (interface{}, error) {
	return i.key, nil
}

// Decode parses raw without checking its signature and returns the claim
// set. Callers must only use it on tokens that were already validated.
func (i *TokenIssuer) Decode(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, apperr.With(apperr.MalformedToken, "reason", err.Error()).Errorf("token cannot be decoded")
	}
	return claims, nil
}

// PrincipalID extracts the numeric subject id from raw.
func (i *TokenIssuer) PrincipalID(raw string) (uint64, error) {
	claims, err := i.Decode(raw)
	if err != nil {
		return 0, err
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return 0, apperr.New(apperr.MalformedToken, "token has no subject claim")
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.With(apperr.MalformedToken, "sub", sub).Errorf("subject claim is not a user id")
	}
	return id, nil
}
