package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/patient-records/internal/model"
	"github.com/iliyamo/patient-records/internal/queue"
	"github.com/iliyamo/patient-records/internal/repository/memstore"
	"github.com/iliyamo/patient-records/internal/service"
	"github.com/iliyamo/patient-records/internal/utils"
)

const (
	testKey        = "0123456789abcdef0123456789abcdef"
	strongPassword = "Clinic#2024-rounds"
	leakedPassword = "Password#123456"
)

type fakeLeaks map[string]bool

func (f fakeLeaks) IsLeaked(_ context.Context, p string) bool { return f[p] }

type recorder struct {
	mu     sync.Mutex
	events []queue.AuditEvent
}

func (r *recorder) Publish(_ context.Context, ev queue.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type env struct {
	store    *memstore.Store
	tokens   *utils.TokenIssuer
	hasher   *utils.PasswordHasher
	decider  *service.Decider
	refresh  *service.RefreshTokenStore
	creds    *service.CredentialService
	users    *service.UserService
	patients *service.PatientService
	metrics  *service.MetricService
	events   *recorder

	rootToken string
	root      *model.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memstore.New()
	hasher, err := utils.NewPasswordHasher("test-salt")
	require.NoError(t, err)
	tokens := utils.NewTokenIssuer(testKey, "patient-records", "patient-records-api", 24*time.Hour)
	decider := service.NewDecider(store.Users(), tokens)
	refresh := service.NewRefreshTokenStore(store.Refresh(), 48*time.Hour)
	events := &recorder{}
	log := zerolog.Nop()

	e := &env{
		store:   store,
		tokens:  tokens,
		hasher:  hasher,
		decider: decider,
		refresh: refresh,
		events:  events,
		creds: service.NewCredentialService(service.CredentialDeps{
			Users:   store.Users(),
			Decider: decider,
			Hasher:  hasher,
			Tokens:  tokens,
			Refresh: refresh,
			Policy:  service.PasswordPolicy{MinLength: 10, Leaks: fakeLeaks{leakedPassword: true}},
			Events:  events,
			Log:     log,
		}),
		users:    service.NewUserService(store.Users(), decider, hasher, refresh, 10, events, log),
		patients: service.NewPatientService(store.Patients(), decider, events, log),
		metrics:  service.NewMetricService(store.Patients(), store.Metrics(), decider, events, log),
	}

	root, _, err := e.users.BootstrapSuperAdmin(context.Background(), "root", "root@clinic.test")
	require.NoError(t, err)
	e.root = root
	e.rootToken = e.tokenFor(t, root)
	return e
}

func (e *env) tokenFor(t *testing.T, u *model.User) string {
	t.Helper()
	tok, err := e.tokens.Issue(u)
	require.NoError(t, err)
	return tok.Token
}

// register creates a user through the credential flow and returns it with
// a token of its own.
func (e *env) register(t *testing.T, username string, role model.Role) (*model.User, string) {
	t.Helper()
	tok, u, err := e.creds.Register(context.Background(), e.rootToken, service.RegisterInput{
		Username: username,
		Email:    username + "@clinic.test",
		Password: strongPassword,
	}, string(role))
	require.NoError(t, err)
	return u, tok.Token
}
