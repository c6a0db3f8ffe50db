// Package queue carries audit events over RabbitMQ.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// AuditQueueName is the durable queue audit events are published to.
const AuditQueueName = "audit.events"

// Audit event types.
const (
	EventUserRegistered    = "user.registered"
	EventUserLoggedIn      = "user.logged_in"
	EventUserLoggedOut     = "user.logged_out"
	EventTokenRefreshed    = "token.refreshed"
	EventPasswordChanged   = "user.password_changed"
	EventUserUpdated       = "user.updated"
	EventUserActivated     = "user.activated"
	EventUserDeactivated   = "user.deactivated"
	EventPatientCreated    = "patient.created"
	EventPatientUpdated    = "patient.updated"
	EventPatientDeleted    = "patient.deleted"
	EventMetricRecorded    = "metric.recorded"
	EventMetricUpdated     = "metric.updated"
	EventMetricDeleted     = "metric.deleted"
	EventAdminBootstrapped = "user.bootstrapped"
)

// AuditEvent records who did what to which record. It never carries
// credentials or clinical values.
type AuditEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ActorID   uint64    `json:"actor_id"`
	SubjectID uint64    `json:"subject_id"`
	At        time.Time `json:"at"`
}

// NewAuditEvent stamps a fresh id and the current time.
func NewAuditEvent(typ string, actorID, subjectID uint64) AuditEvent {
	return AuditEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		ActorID:   actorID,
		SubjectID: subjectID,
		At:        time.Now().UTC(),
	}
}
