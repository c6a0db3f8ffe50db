// Package memstore keeps every repository in process memory behind one
// mutex. It backs the service tests and STORE_DRIVER=memory local runs.
// Values are copied in and out so callers never share state with the
// store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
)

// Store is the shared backing state.
type Store struct {
	mu sync.Mutex

	lastUser, lastPatient, lastMetric, lastRefresh uint64

	users    map[uint64]model.User
	refresh  map[uint64]model.RefreshToken // keyed by user id
	patients map[uint64]model.Patient
	metrics  map[uint64]model.Measurement
}

func New() *Store {
	return &Store{
		users:    map[uint64]model.User{},
		refresh:  map[uint64]model.RefreshToken{},
		patients: map[uint64]model.Patient{},
		metrics:  map[uint64]model.Measurement{},
	}
}

func (s *Store) Users() *Users       { return &Users{s} }
func (s *Store) Refresh() *Refresh   { return &Refresh{s} }
func (s *Store) Patients() *Patients { return &Patients{s} }
func (s *Store) Metrics() *Metrics   { return &Metrics{s} }

func notFound(what string, id any) error {
	return apperr.With(apperr.NotFound, what+"_id", id).Errorf("%s not found", what)
}

// Users implements the user repository.
type Users struct{ s *Store }

func (r *Users) FindByID(_ context.Context, id uint64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (r *Users) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.findBy(func(u model.User) bool { return strings.EqualFold(u.Username, username) })
}

func (r *Users) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.findBy(func(u model.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *Users) findBy(match func(model.User) bool) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "user not found")
}

// conflict reports the unique key u would violate, ignoring the row with
// u's own id. Callers hold the lock.
func (r *Users) conflict(u *model.User) error {
	for _, other := range r.s.users {
		if other.ID == u.ID {
			continue
		}
		if strings.EqualFold(other.Username, u.Username) {
			return apperr.New(apperr.DuplicateUsername, "username is taken")
		}
		if strings.EqualFold(other.Email, u.Email) {
			return apperr.New(apperr.DuplicateEmail, "email is taken")
		}
	}
	return nil
}

func (r *Users) Insert(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.ID = 0
	if err := r.conflict(u); err != nil {
		return err
	}
	r.s.lastUser++
	u.ID = r.s.lastUser
	r.s.users[u.ID] = *u
	return nil
}

func (r *Users) UpdateAccount(_ context.Context, id uint64, username, email string, at time.Time) error {
	return r.modify(id, func(u *model.User) error {
		candidate := model.User{ID: id, Username: username, Email: email}
		if err := r.conflict(&candidate); err != nil {
			return err
		}
		u.Username, u.Email = username, email
		u.DateEdited = at
		return nil
	})
}

func (r *Users) UpdatePassword(_ context.Context, id uint64, hash string, at time.Time) error {
	return r.modify(id, func(u *model.User) error {
		u.PasswordHash = hash
		u.DateEdited = at
		return nil
	})
}

func (r *Users) SetDeactivated(_ context.Context, id uint64, deactivated bool, at time.Time) error {
	return r.modify(id, func(u *model.User) error {
		u.IsDeactivated = deactivated
		u.DateEdited = at
		return nil
	})
}

// modify applies fn to the stored row of id under the lock. The row is
// left untouched when fn fails.
func (r *Users) modify(id uint64, fn func(u *model.User) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return notFound("user", id)
	}
	if err := fn(&u); err != nil {
		return err
	}
	r.s.users[id] = u
	return nil
}

func (r *Users) List(_ context.Context) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Users) CountByRole(_ context.Context, role model.Role) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, u := range r.s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// Refresh implements the refresh token repository. The store lock makes
// Rotate atomic.
type Refresh struct{ s *Store }

func (r *Refresh) Replace(_ context.Context, rec *model.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.put(rec)
	return nil
}

func (r *Refresh) Rotate(_ context.Context, userID uint64, check func(*model.RefreshToken) error, next *model.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var current *model.RefreshToken
	if rec, ok := r.s.refresh[userID]; ok {
		current = &rec
	}
	if err := check(current); err != nil {
		return err
	}
	delete(r.s.refresh, userID)
	next.UserID = userID
	r.put(next)
	return nil
}

func (r *Refresh) Invalidate(_ context.Context, userID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.refresh, userID)
	return nil
}

func (r *Refresh) put(rec *model.RefreshToken) {
	r.s.lastRefresh++
	rec.ID = r.s.lastRefresh
	r.s.refresh[rec.UserID] = *rec
}

// Patients implements the patient repository.
type Patients struct{ s *Store }

func (r *Patients) Insert(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lastPatient++
	p.ID = r.s.lastPatient
	r.s.patients[p.ID] = *p
	return nil
}

func (r *Patients) FindByID(_ context.Context, id uint64) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, notFound("patient", id)
	}
	return &p, nil
}

func (r *Patients) ListByDoctor(_ context.Context, doctorID uint64) ([]model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Patient{}
	for _, p := range r.s.patients {
		if p.DoctorID == doctorID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Patients) Update(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[p.ID]; !ok {
		return notFound("patient", p.ID)
	}
	r.s.patients[p.ID] = *p
	return nil
}

func (r *Patients) Delete(_ context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[id]; !ok {
		return notFound("patient", id)
	}
	for mid, m := range r.s.metrics {
		if m.PatientID == id {
			delete(r.s.metrics, mid)
		}
	}
	delete(r.s.patients, id)
	return nil
}

// Metrics implements the measurement repository.
type Metrics struct{ s *Store }

func (r *Metrics) Insert(_ context.Context, m *model.Measurement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[m.PatientID]; !ok {
		return notFound("patient", m.PatientID)
	}
	r.s.lastMetric++
	m.ID = r.s.lastMetric
	r.s.metrics[m.ID] = *m
	return nil
}

func (r *Metrics) FindByID(_ context.Context, id uint64) (*model.Measurement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.metrics[id]
	if !ok {
		return nil, notFound("measurement", id)
	}
	return &m, nil
}

func (r *Metrics) ListByPatient(_ context.Context, patientID uint64, kind model.MetricKind) ([]model.Measurement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Measurement{}
	for _, m := range r.s.metrics {
		if m.PatientID == patientID && (kind == "" || m.Kind == kind) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MeasuredAt.Equal(out[j].MeasuredAt) {
			return out[i].MeasuredAt.After(out[j].MeasuredAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *Metrics) Update(_ context.Context, m *model.Measurement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.metrics[m.ID]; !ok {
		return notFound("measurement", m.ID)
	}
	r.s.metrics[m.ID] = *m
	return nil
}

func (r *Metrics) Delete(_ context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.metrics[id]; !ok {
		return notFound("measurement", id)
	}
	delete(r.s.metrics, id)
	return nil
}
