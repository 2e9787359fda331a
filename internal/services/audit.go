package services

import (
	"context"
	"time"

	"lending/internal/store"

	"github.com/sirupsen/logrus"
)

// AuditSink receives a record of every mutation after it commits. Recording is
// best effort and never fails the caller.
type AuditSink interface {
	Record(ctx context.Context, entry store.AuditEntry)
}

type AuditLogger interface {
	Log(ctx context.Context, exec store.Execer, entry store.AuditEntry) error
}

type AuditRecorder struct {
	store   AuditLogger
	db      store.Execer
	logger  logrus.FieldLogger
	timeout time.Duration
}

func NewAuditRecorder(auditStore AuditLogger, db store.Execer, logger logrus.FieldLogger) *AuditRecorder {
	return &AuditRecorder{store: auditStore, db: db, logger: logger, timeout: 2 * time.Second}
}

func (r *AuditRecorder) Record(ctx context.Context, entry store.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.store.Log(ctx, r.db, entry); err != nil {
		r.logger.WithFields(logrus.Fields{
			"action":      entry.Action,
			"entity_type": entry.EntityType,
			"entity_id":   entry.EntityID,
		}).WithError(err).Warn("audit log write failed")
	}
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, store.AuditEntry) {}
