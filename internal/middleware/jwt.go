package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/utils"
)

// BearerAuth validates the Bearer access token and stores the raw token,
// the subject and the role claim in the context. Failures are returned as
// apperr errors so the HTTP error handler renders them like any other.
func BearerAuth(tokens *utils.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return apperr.New(apperr.MissingAuthorization, "missing bearer token")
			}
			claims, err := tokens.Validate(raw)
			if err != nil {
				return err
			}
			c.Set(ContextToken, raw)
			c.Set(ContextUserID, claims.Subject)
			c.Set(ContextRole, claims.Role)
			return next(c)
		}
	}
}

// bearerToken reads "Authorization: Bearer <token>". The scheme is
// matched case-insensitively.
func bearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, raw, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// BearerTokenOptional returns the bearer token of the request without
// validating it, or "" when none is present. The refresh endpoint uses it
// because its access token may already have expired.
func BearerTokenOptional(c echo.Context) string {
	raw, _ := bearerToken(c)
	return raw
}
