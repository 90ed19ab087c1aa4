package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// AuditOutbox holds audit intents written inside business transactions.
// The direct processor claims pending rows and materializes them into
// audit_logs; a claimed row is marked processed in the same transaction as
// the insert, so delivery is at-least-once and duplicates cannot occur.
type AuditOutbox struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Payload       json.RawMessage `gorm:"type:text;not null" json:"payload"`
	Status        OutboxStatus    `gorm:"size:10;not null;default:PENDING;index" json:"status"`
	Attempts      int             `gorm:"not null;default:0" json:"attempts"`
	LastError     string          `gorm:"type:text" json:"last_error"`
	CorrelationId string          `gorm:"size:64;index" json:"correlation_id"`
	LockedAt      *time.Time      `gorm:"index" json:"locked_at"`
	LockedBy      *string         `gorm:"size:64" json:"locked_by"`
	ProcessedAt   *time.Time      `json:"processed_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// MaterializeAuditOutboxRecord turns one claimed outbox row into an audit_logs
// row and marks the outbox row processed, both in the supplied transaction.
func MaterializeAuditOutboxRecord(tx *gorm.DB, record *AuditOutbox) error {
	var entry AuditLog
	if err := json.Unmarshal(record.Payload, &entry); err != nil {
		// Poisoned payload: mark failed so the processor does not spin on it.
		now := time.Now()
		return tx.Model(&AuditOutbox{}).
			Where("id = ?", record.ID).
			Updates(map[string]interface{}{
				"status":       OutboxStatusFailed,
				"last_error":   err.Error(),
				"attempts":     gorm.Expr("attempts + 1"),
				"processed_at": &now,
			}).Error
	}
	entry.ID = 0

	if err := tx.Create(&entry).Error; err != nil {
		return err
	}

	now := time.Now()
	return tx.Model(&AuditOutbox{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"status":       OutboxStatusProcessed,
			"attempts":     gorm.Expr("attempts + 1"),
			"processed_at": &now,
		}).Error
}
