package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
)

func TestPasswordHasher(t *testing.T) {
	_, err := NewPasswordHasher("")
	require.Error(t, err)

	h, err := NewPasswordHasher("pepper")
	require.NoError(t, err)

	first := h.Hash("Tr0ub4dor&3x")
	assert.Equal(t, first, h.Hash("Tr0ub4dor&3x"))
	assert.NotEqual(t, first, h.Hash("Tr0ub4dor&3y"))
	assert.True(t, h.Verify("Tr0ub4dor&3x", first))
	assert.False(t, h.Verify("tr0ub4dor&3x", first))

	other, err := NewPasswordHasher("other-salt")
	require.NoError(t, err)
	assert.NotEqual(t, first, other.Hash("Tr0ub4dor&3x"))
}

func TestCheckPasswordPolicy(t *testing.T) {
	cases := []struct {
		name    string
		pw      string
		wantErr bool
	}{
		{"ok", "correct#horse1", false},
		{"too short", "ab#1", true},
		{"no digit", "correct#horse", true},
		{"no special", "correcthorse1", true},
		{"space is not special", "correct horse1", true},
		{"unicode letters count", "pässwörd!9x", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckPasswordPolicy(tc.pw, 10)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.WeakPassword))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	_, err := GeneratePassword(3)
	require.Error(t, err)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		pw, err := GeneratePassword(16)
		require.NoError(t, err)
		assert.Len(t, []rune(pw), 16)
		require.NoError(t, CheckPasswordPolicy(pw, 16))
		seen[pw] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestRefreshToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a, err := NewRefreshToken(now, 48*time.Hour)
	require.NoError(t, err)
	b, err := NewRefreshToken(now, 48*time.Hour)
	require.NoError(t, err)

	assert.Len(t, a.Raw, 96)
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.Equal(t, now.Add(48*time.Hour), a.Exp)

	hash := HashRefreshRaw(a.Raw)
	assert.Len(t, hash, 64)
	assert.True(t, RefreshMatches(a.Raw, hash))
	assert.False(t, RefreshMatches(b.Raw, hash))
	assert.False(t, RefreshMatches("", hash))
}

func testUser() *model.User {
	return &model.User{ID: 42, Username: "drsmith1", Email: "smith@clinic.test", Role: model.RoleDoctor}
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	iss := NewTokenIssuer("0123456789abcdef0123456789abcdef", "patient-records", "patient-records-api", 24*time.Hour)

	tok, err := iss.Issue(testUser())
	require.NoError(t, err)
	assert.True(t, tok.Exp.After(time.Now()))

	claims, err := iss.Validate(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "drsmith1", claims.Username)
	assert.Equal(t, "smith@clinic.test", claims.Email)
	assert.Equal(t, "Doctor", claims.Role)
	assert.NotEmpty(t, claims.ID)

	decoded, err := iss.Decode(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "Doctor", decoded["role"])
	assert.Equal(t, "patient-records", decoded["iss"])

	id, err := iss.PrincipalID(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

func TestTokenIssuerRejects(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"
	iss := NewTokenIssuer(key, "patient-records", "patient-records-api", time.Hour)
	tok, err := iss.Issue(testUser())
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		other := NewTokenIssuer("ffffffffffffffffffffffffffffffff", "patient-records", "patient-records-api", time.Hour)
		_, err := other.Validate(tok.Token)
		assert.True(t, apperr.Is(err, apperr.MalformedToken))
	})
	t.Run("wrong audience", func(t *testing.T) {
		other := NewTokenIssuer(key, "patient-records", "someone-else", time.Hour)
		_, err := other.Validate(tok.Token)
		assert.True(t, apperr.Is(err, apperr.MalformedToken))
		_, err = other.ValidateIgnoringExpiry(tok.Token)
		assert.True(t, apperr.Is(err, apperr.MalformedToken))
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := iss.Validate("not-a-jwt")
		assert.True(t, apperr.Is(err, apperr.MalformedToken))
		_, err = iss.PrincipalID("not-a-jwt")
		assert.True(t, apperr.Is(err, apperr.MalformedToken))
	})
	t.Run("expired", func(t *testing.T) {
		later := iss.WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
		_, err := later.Validate(tok.Token)
		assert.True(t, apperr.Is(err, apperr.MalformedToken))

		claims, err := later.ValidateIgnoringExpiry(tok.Token)
		require.NoError(t, err)
		assert.Equal(t, "42", claims.Subject)
	})
}

func TestPrincipalIDNonNumericSubject(t *testing.T) {
	iss := NewTokenIssuer("0123456789abcdef0123456789abcdef", "i", "a", time.Hour)
	// {"alg":"HS256","typ":"JWT"}.{"sub":"drsmith1"}.sig
	raw := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiJkcnNtaXRoMSJ9.c2ln"
	_, err := iss.PrincipalID(raw)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.MalformedToken))
}
