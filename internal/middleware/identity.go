package middleware

import "github.com/labstack/echo/v4"

// Context keys set by BearerAuth and RequestID.
const (
	ContextToken     = "token"
	ContextUserID    = "user_id"
	ContextRole      = "role"
	ContextRequestID = "request_id"
)

// Token returns the validated bearer token of the request, or "".
func Token(c echo.Context) string {
	s, _ := c.Get(ContextToken).(string)
	return s
}

// userID returns the authenticated subject, or "anon" on public routes.
func userID(c echo.Context) string {
	if s, ok := c.Get(ContextUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}

// role returns the role claim of the authenticated caller, or "".
func role(c echo.Context) string {
	s, _ := c.Get(ContextRole).(string)
	return s
}
