package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/patient-records/internal/queue"
)

const auditPublishTimeout = 5 * time.Second

// auditor publishes events off the request path.
type auditor struct {
	pub EventPublisher
	log zerolog.Logger
}

func (a auditor) emit(ctx context.Context, typ string, actorID, subjectID uint64) {
	if a.pub == nil {
		return
	}
	go a.publish(ctx, queue.NewAuditEvent(typ, actorID, subjectID))
}

// emitSync publishes before returning, for callers that exit right after.
func (a auditor) emitSync(ctx context.Context, typ string, actorID, subjectID uint64) {
	if a.pub == nil {
		return
	}
	a.publish(ctx, queue.NewAuditEvent(typ, actorID, subjectID))
}

func (a auditor) publish(ctx context.Context, ev queue.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditPublishTimeout)
	defer cancel()
	if err := a.pub.Publish(ctx, ev); err != nil {
		a.log.Warn().Err(err).Str("event", ev.Type).Str("event_id", ev.ID).Msg("audit event dropped")
	}
}
