// Package service holds the authorization decider, the credential flows
// and the user, patient and metric operations built on them. Every
// protected operation authorizes through Decider exactly once before it
// reads or writes data.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/patient-records/internal/model"
	"github.com/iliyamo/patient-records/internal/queue"
)

// Repositories return an apperr.NotFound error for absent rows and
// apperr.DuplicateUsername / apperr.DuplicateEmail on unique violations.

// UserRepository persists credential principals.
type UserRepository interface {
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Insert(ctx context.Context, u *model.User) error
	// The update methods write only the columns they name, so concurrent
	// changes to other columns of the same row survive.
	UpdateAccount(ctx context.Context, id uint64, username, email string, at time.Time) error
	UpdatePassword(ctx context.Context, id uint64, hash string, at time.Time) error
	SetDeactivated(ctx context.Context, id uint64, deactivated bool, at time.Time) error
	List(ctx context.Context) ([]model.User, error)
	CountByRole(ctx context.Context, role model.Role) (int, error)
}

// RefreshRepository persists the single refresh token record a user may
// hold.
type RefreshRepository interface {
	// Replace drops any record of rec.UserID and stores rec, atomically.
	Replace(ctx context.Context, rec *model.RefreshToken) error
	// Rotate locks the user's current record (nil when there is none) and
	// hands it to check. When check returns nil the record is deleted and
	// next inserted in the same transaction; otherwise check's error is
	// returned and nothing changes.
	Rotate(ctx context.Context, userID uint64, check func(current *model.RefreshToken) error, next *model.RefreshToken) error
	// Invalidate deletes the user's record, if any.
	Invalidate(ctx context.Context, userID uint64) error
}

// PatientRepository persists patients.
type PatientRepository interface {
	Insert(ctx context.Context, p *model.Patient) error
	FindByID(ctx context.Context, id uint64) (*model.Patient, error)
	ListByDoctor(ctx context.Context, doctorID uint64) ([]model.Patient, error)
	Update(ctx context.Context, p *model.Patient) error
	// Delete removes the patient and all of its measurements atomically.
	Delete(ctx context.Context, id uint64) error
}

// MetricRepository persists measurements.
type MetricRepository interface {
	Insert(ctx context.Context, m *model.Measurement) error
	FindByID(ctx context.Context, id uint64) (*model.Measurement, error)
	// ListByPatient returns measurements newest first. An empty kind
	// returns every kind.
	ListByPatient(ctx context.Context, patientID uint64, kind model.MetricKind) ([]model.Measurement, error)
	Update(ctx context.Context, m *model.Measurement) error
	Delete(ctx context.Context, id uint64) error
}

// LeakChecker reports whether a password is present in a breach corpus.
// Implementations fail open.
type LeakChecker interface {
	IsLeaked(ctx context.Context, plaintext string) bool
}

// EventPublisher ships audit events. Failures never fail the operation.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuditEvent) error
}
