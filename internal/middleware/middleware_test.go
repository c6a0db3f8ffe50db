package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/config"
	"github.com/iliyamo/patient-records/internal/model"
	"github.com/iliyamo/patient-records/internal/utils"
)

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestBearerAuth(t *testing.T) {
	tokens := utils.NewTokenIssuer("0123456789abcdef0123456789abcdef", "i", "a", time.Hour)
	tok, err := tokens.Issue(&model.User{ID: 5, Username: "drwho", Role: model.RoleDoctor})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   apperr.Kind
	}{
		{"missing", "", apperr.MissingAuthorization},
		{"wrong scheme", "Basic abc", apperr.MissingAuthorization},
		{"empty bearer", "Bearer ", apperr.MissingAuthorization},
		{"bad token", "Bearer not.a.jwt", apperr.MalformedToken},
		{"valid", "Bearer " + tok.Token, ""},
		{"lower-case scheme", "bearer " + tok.Token, ""},
	}
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			err := BearerAuth(tokens)(ok)(c)
			if tt.want != "" {
				assert.Equal(t, tt.want, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tok.Token, Token(c))
			assert.Equal(t, "5", c.Get(ContextUserID))
			assert.Equal(t, "Doctor", c.Get(ContextRole))
		})
	}
}

func TestRequestID(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, RequestID()(ok)(c))
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, c.Get(ContextRequestID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	require.NoError(t, RequestID()(ok)(e.NewContext(req, rec)))
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/v1/auth/login", ok, RateLimit(cfg, rdb, zerolog.Nop()))

	codes := []int{}
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		last = httptest.NewRecorder()
		e.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &body))
	assert.Equal(t, "TOO_MANY_REQUESTS", body["error"])

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitPassThrough(t *testing.T) {
	e := echo.New()
	e.GET("/", ok, RateLimit(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, zerolog.Nop()))
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	e := echo.New()
	e.Use(RequestID(), Logger(log), Recovery(log))
	e.GET("/boom", func(echo.Context) error { panic("kaboom") })
	e.GET("/missing", func(echo.Context) error { return echo.ErrNotFound })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	out := buf.String()
	assert.Contains(t, out, `"panic":"kaboom"`)
	assert.Contains(t, out, `"status":500`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"request_id":"`)
}

func TestLoggerRecordsCaller(t *testing.T) {
	tokens := utils.NewTokenIssuer("0123456789abcdef0123456789abcdef", "i", "a", time.Hour)
	tok, err := tokens.Issue(&model.User{ID: 5, Username: "drwho", Role: model.RoleDoctor})
	require.NoError(t, err)

	var buf bytes.Buffer
	e := echo.New()
	e.Use(Logger(zerolog.New(&buf)))
	e.GET("/open", ok)
	e.GET("/me", ok, BearerAuth(tokens))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	e.ServeHTTP(httptest.NewRecorder(), req)
	assert.Contains(t, buf.String(), `"user_id":"5","role":"Doctor"`)

	buf.Reset()
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Contains(t, buf.String(), `"user_id":"anon","role":""`)
}
