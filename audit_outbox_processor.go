package main

import (
	"context"
	"os"
	"strings"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuditOutboxProcessor materializes pending audit outbox rows into audit_logs.
// It runs in-process as a background worker; claims are serialized across
// replicas with FOR UPDATE SKIP LOCKED plus a lock TTL for crashed workers.
type AuditOutboxProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewAuditOutboxProcessor(db *gorm.DB, logger *logrus.Logger) *AuditOutboxProcessor {
	return &AuditOutboxProcessor{
		DB:        db,
		Logger:    logger,
		WorkerID:  "audit-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 50,
		Interval:  2 * time.Second,
		LockTTL:   30 * time.Second,
	}
}

func shouldRunAuditOutboxProcessor() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv("AUDIT_OUTBOX_PROCESSING")))
	if val == "false" {
		return false
	}
	// Default: on. Without the processor, in-transaction audit intents would
	// sit in the outbox forever.
	return true
}

func (p *AuditOutboxProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *AuditOutboxProcessor) processOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.AuditOutbox
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("status = ?", models.OutboxStatusPending).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(p.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &p.WorkerID
			if err := tx.Model(&models.AuditOutbox{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"locked_at": claimed[i].LockedAt,
					"locked_by": claimed[i].LockedBy,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for i := range claimed {
		rec := claimed[i]
		err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return models.MaterializeAuditOutboxRecord(tx, &rec)
		})
		if err != nil {
			p.Logger.WithFields(logrus.Fields{
				"module":         "audit_outbox_processor.go",
				"outbox_id":      rec.ID,
				"correlation_id": rec.CorrelationId,
				"worker":         p.WorkerID,
			}).Error("audit outbox processing failed: " + err.Error())
			// Release the claim so a later pass (or another worker) retries.
			if uerr := p.DB.WithContext(ctx).Model(&models.AuditOutbox{}).
				Where("id = ?", rec.ID).
				Updates(map[string]interface{}{
					"locked_at":  nil,
					"locked_by":  nil,
					"attempts":   gorm.Expr("attempts + 1"),
					"last_error": err.Error(),
				}).Error; uerr != nil {
				p.Logger.WithFields(logrus.Fields{
					"module":    "audit_outbox_processor.go",
					"outbox_id": rec.ID,
				}).Error("failed to release outbox claim: " + uerr.Error())
			}
		}
	}
}
