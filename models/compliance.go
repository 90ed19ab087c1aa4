package models

import (
	"context"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
)

// ComplianceReport aggregates the audit trail for a periodic security review.
// The three Ok flags are advisory heuristics, not proofs: in particular the
// gap heuristic produces false positives by design, since a flagged gap could
// equally be a quiet period.
type ComplianceReport struct {
	GeneratedAt         time.Time             `json:"generated_at"`
	TotalLogs           int64                 `json:"total_logs"`
	CountsByAction      map[AuditAction]int64 `json:"counts_by_action"`
	CountsByStatus      map[AuditStatus]int64 `json:"counts_by_status"`
	RecentActivityCount int64                 `json:"recent_activity_count"`
	CriticalEventCount  int64                 `json:"critical_event_count"`
	DataIntegrityOk     bool                  `json:"data_integrity_ok"`
	RetentionOk         bool                  `json:"retention_ok"`
	GapHeuristicOk      bool                  `json:"gap_heuristic_ok"`
}

// scanForGaps walks timestamps in descending order and reports whether any
// consecutive pair is separated by more than threshold while the newer side
// falls within business hours [bizStart, bizEnd). Quiet nights are expected;
// silence during opening hours is what the heuristic is after.
func scanForGaps(timestamps []time.Time, threshold time.Duration, bizStart, bizEnd int) bool {
	for i := 0; i+1 < len(timestamps); i++ {
		newer := timestamps[i]
		older := timestamps[i+1]
		hour := newer.Hour()
		if hour < bizStart || hour >= bizEnd {
			continue
		}
		if newer.Sub(older) > threshold {
			return true
		}
	}
	return false
}

// ComputeComplianceReport runs the aggregate counts and heuristics over the
// audit trail. Read-only; retention violations flag the report but nothing is
// purged.
func ComputeComplianceReport(ctx context.Context) (*ComplianceReport, error) {
	db := config.GetDB()
	if db == nil {
		return nil, ErrDBNotInitialized
	}

	report := &ComplianceReport{
		GeneratedAt:    time.Now(),
		CountsByAction: make(map[AuditAction]int64),
		CountsByStatus: make(map[AuditStatus]int64),
	}

	if err := db.WithContext(ctx).Model(&AuditLog{}).Count(&report.TotalLogs).Error; err != nil {
		return nil, err
	}

	type actionCount struct {
		Action AuditAction
		N      int64
	}
	var byAction []actionCount
	if err := db.WithContext(ctx).Model(&AuditLog{}).
		Select("action, COUNT(*) AS n").
		Group("action").
		Scan(&byAction).Error; err != nil {
		return nil, err
	}
	for _, row := range byAction {
		report.CountsByAction[row.Action] = row.N
	}

	type statusCount struct {
		Status AuditStatus
		N      int64
	}
	var byStatus []statusCount
	if err := db.WithContext(ctx).Model(&AuditLog{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		report.CountsByStatus[row.Status] = row.N
	}

	if err := db.WithContext(ctx).Model(&AuditLog{}).
		Where("timestamp >= ?", time.Now().Add(-24*time.Hour)).
		Count(&report.RecentActivityCount).Error; err != nil {
		return nil, err
	}

	// Critical events: destructive actions, exports, and failed logins.
	if err := db.WithContext(ctx).Model(&AuditLog{}).
		Where("action IN ? OR (action = ? AND status <> ?)",
			[]AuditAction{AuditActionDelete, AuditActionExport},
			AuditActionLogin, AuditStatusSuccess).
		Count(&report.CriticalEventCount).Error; err != nil {
		return nil, err
	}

	// Integrity: every row must carry an actor, an action, and a resource.
	var badRows int64
	if err := db.WithContext(ctx).Model(&AuditLog{}).
		Where("user_id IS NULL OR action IS NULL OR action = '' OR resource IS NULL OR resource = ''").
		Count(&badRows).Error; err != nil {
		return nil, err
	}
	report.DataIntegrityOk = badRows == 0

	// Retention: rows beyond the horizon flag only.
	horizon := time.Now().AddDate(0, 0, -config.AuditRetentionDays())
	var expiredRows int64
	if err := db.WithContext(ctx).Model(&AuditLog{}).
		Where("timestamp < ?", horizon).
		Count(&expiredRows).Error; err != nil {
		return nil, err
	}
	report.RetentionOk = expiredRows == 0

	// Tamper/gap heuristic over the most recent N rows, descending.
	var timestamps []time.Time
	if err := db.WithContext(ctx).Model(&AuditLog{}).
		Order("timestamp DESC").
		Limit(config.AuditGapScanRows()).
		Pluck("timestamp", &timestamps).Error; err != nil {
		return nil, err
	}
	bizStart, bizEnd := config.BusinessHours()
	report.GapHeuristicOk = !scanForGaps(timestamps, config.AuditGapThreshold(), bizStart, bizEnd)

	return report, nil
}
