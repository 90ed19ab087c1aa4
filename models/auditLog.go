package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"gorm.io/gorm"
)

// AuditLog is the append-only record of a user-attributable action. Rows are
// created once and never updated or deleted; no mutation path exists in the
// public contract. Immutability is enforced by API absence, not DB triggers.
type AuditLog struct {
	ID           int         `gorm:"primary_key" json:"id"`
	UserId       int         `gorm:"index;not null" json:"user_id"`
	UserEmail    string      `gorm:"size:100" json:"user_email"`
	UserName     string      `gorm:"size:100" json:"user_name"`
	Action       AuditAction `gorm:"size:10;not null;index" json:"action"`
	Resource     string      `gorm:"size:50;not null;index" json:"resource"`
	ResourceId   int         `gorm:"index" json:"resource_id"`
	Details      string      `gorm:"type:text" json:"details"`
	OldValues    string      `gorm:"type:text" json:"old_values"`
	NewValues    string      `gorm:"type:text" json:"new_values"`
	IpAddress    string      `gorm:"size:45" json:"ip_address"`
	UserAgent    string      `gorm:"size:255" json:"user_agent"`
	Status       AuditStatus `gorm:"size:10;not null;default:success" json:"status"`
	ErrorMessage string      `gorm:"type:text" json:"error_message"`
	Timestamp    time.Time   `gorm:"not null;index" json:"timestamp"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

// AuditInput is what callers supply; actor and request metadata come from the
// context.
type AuditInput struct {
	Action       AuditAction
	Resource     string
	ResourceId   int
	Details      interface{}
	OldValues    interface{}
	NewValues    interface{}
	Status       AuditStatus
	ErrorMessage string
}

func buildAuditLog(ctx context.Context, input AuditInput) *AuditLog {
	actor := ActorFromContext(ctx)

	status := input.Status
	if status == "" {
		status = AuditStatusSuccess
	}

	entry := &AuditLog{
		UserId:       actor.UserId,
		UserEmail:    actor.UserEmail,
		UserName:     actor.UserName,
		Action:       input.Action,
		Resource:     input.Resource,
		ResourceId:   input.ResourceId,
		IpAddress:    actor.IpAddress,
		UserAgent:    actor.UserAgent,
		Status:       status,
		ErrorMessage: input.ErrorMessage,
		Timestamp:    time.Now(),
	}
	if input.Details != nil {
		b, _ := json.Marshal(input.Details)
		entry.Details = string(b)
	}
	if input.OldValues != nil {
		b, _ := json.Marshal(input.OldValues)
		entry.OldValues = string(b)
	}
	if input.NewValues != nil {
		b, _ := json.Marshal(input.NewValues)
		entry.NewValues = string(b)
	}
	return entry
}

// RecordAction appends an audit row directly, best-effort. A failed audit
// write is logged to the operational log and swallowed; it must never fail or
// block the business operation that triggered it.
func RecordAction(ctx context.Context, input AuditInput) *AuditLog {
	logger := config.GetLogger()

	entry := buildAuditLog(ctx, input)

	db := config.GetDB()
	if db == nil {
		config.LogError(logger, "auditLog.go", "RecordAction", "GetDB", input.Resource, ErrDBNotInitialized)
		return nil
	}
	if err := db.WithContext(ctx).Create(entry).Error; err != nil {
		config.LogError(logger, "auditLog.go", "RecordAction", "Create", entry, err)
		return nil
	}
	return entry
}

// RecordActionTx writes an audit intent into the outbox inside the caller's
// business transaction. The background processor materializes the audit row
// after commit, so the intent commits or rolls back atomically with the
// business mutation (at-least-once delivery, idempotent on outbox id).
func RecordActionTx(tx *gorm.DB, ctx context.Context, input AuditInput) error {
	entry := buildAuditLog(ctx, input)

	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	record := AuditOutbox{
		Payload:       payload,
		Status:        OutboxStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

// AuditLogFilter narrows QueryLogs. Zero values mean "no filter".
type AuditLogFilter struct {
	UserId   int         `form:"user_id"`
	Action   AuditAction `form:"action"`
	Resource string      `form:"resource"`
	From     *time.Time  `form:"from" time_format:"2006-01-02"`
	To       *time.Time  `form:"to" time_format:"2006-01-02"`
	Pagination
}

// auditLogQuery builds the filtered base query shared by the paginated
// listing and the export.
func auditLogQuery(ctx context.Context, filter AuditLogFilter) (*gorm.DB, error) {
	db := config.GetDB()
	if db == nil {
		return nil, ErrDBNotInitialized
	}

	q := db.WithContext(ctx).Model(&AuditLog{})
	if filter.UserId > 0 {
		q = q.Where("user_id = ?", filter.UserId)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.Resource != "" {
		q = q.Where("resource = ?", filter.Resource)
	}
	if filter.From != nil {
		q = q.Where("timestamp >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("timestamp < ?", filter.To.AddDate(0, 0, 1))
	}
	return q, nil
}

// QueryLogs returns a filtered, paginated page of audit rows, newest first.
func QueryLogs(ctx context.Context, filter AuditLogFilter) (*Page[AuditLog], error) {
	q, err := auditLogQuery(ctx, filter)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	limit, offset := filter.normalized()
	var logs []*AuditLog
	err = q.Order("timestamp DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return &Page[AuditLog]{Total: total, Rows: logs}, nil
}
