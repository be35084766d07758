package main

import (
	"context"
	"time"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/models"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/sirupsen/logrus"
)

// AuditPublishFunc delivers one audit message and returns its message id.
type AuditPublishFunc func(ctx context.Context, msg config.AuditMessage) (string, error)

// AuditOutboxProcessor drains audit entries queued by business transactions:
// each is published, then written to histories. A failed publish leaves the
// record for the next round.
type AuditOutboxProcessor struct {
	Logger    *logrus.Logger
	Publish   AuditPublishFunc
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewAuditOutboxProcessor(logger *logrus.Logger, publish AuditPublishFunc) *AuditOutboxProcessor {
	return &AuditOutboxProcessor{
		Logger:    logger,
		Publish:   publish,
		WorkerID:  "audit-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 50,
		Interval:  2 * time.Second,
		LockTTL:   30 * time.Second,
	}
}

func (p *AuditOutboxProcessor) Run(ctx context.Context) {
	for {
		if _, err := p.processOnce(ctx); err != nil && ctx.Err() == nil {
			config.LogError(p.Logger, "AuditOutbox", "Run", "claiming records", p.WorkerID, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

// processOnce handles one batch and returns how many records were completed.
func (p *AuditOutboxProcessor) processOnce(ctx context.Context) (int, error) {
	claimed, err := models.ClaimAuditOutbox(ctx, p.WorkerID, p.BatchSize, p.LockTTL)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, rec := range claimed {
		procCtx := utils.SetCorrelationIdInContext(ctx, rec.CorrelationId)

		var messageId string
		if p.Publish != nil {
			messageId, err = p.Publish(procCtx, rec.Message())
			if err != nil {
				p.release(procCtx, rec, err)
				continue
			}
		}
		if err := models.CompleteAuditOutbox(procCtx, rec, messageId); err != nil {
			p.release(procCtx, rec, err)
			continue
		}
		done++
	}
	return done, nil
}

func (p *AuditOutboxProcessor) release(ctx context.Context, rec models.AuditOutboxRecord, cause error) {
	p.Logger.WithFields(logrus.Fields{
		"field":          "AuditOutboxProcessor",
		"group_id":       rec.GroupId,
		"reference_type": rec.ReferenceType,
		"reference_id":   rec.ReferenceId,
		"record_id":      rec.ID,
		"correlation_id": rec.CorrelationId,
	}).Error("audit outbox processing failed: " + cause.Error())
	if err := models.ReleaseAuditOutbox(ctx, rec, cause); err != nil {
		config.LogError(p.Logger, "AuditOutbox", "release", "unlocking record", rec.ID, err)
	}
}
