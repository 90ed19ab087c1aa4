package config

import (
	"os"
	"strings"
	"time"
)

// Compliance report thresholds. All overridable via env so that an auditor can
// tighten or relax the heuristics without a redeploy.

// AuditRetentionDays is the retention horizon for the compliance report.
// Rows older than this only flag the report; nothing is purged.
//
// Set via env:
// - AUDIT_RETENTION_DAYS (default 365)
func AuditRetentionDays() int {
	return intFromEnv("AUDIT_RETENTION_DAYS", 365)
}

// AuditGapScanRows is how many of the most recent audit rows the tamper/gap
// heuristic scans in descending time order.
//
// Set via env:
// - AUDIT_GAP_SCAN_ROWS (default 500)
func AuditGapScanRows() int {
	return intFromEnv("AUDIT_GAP_SCAN_ROWS", 500)
}

// AuditGapThreshold is the maximum silence between consecutive audit rows
// during business hours before the report flags a suspicious gap.
//
// Set via env:
// - AUDIT_GAP_THRESHOLD_MINUTES (default 120)
func AuditGapThreshold() time.Duration {
	return time.Duration(intFromEnv("AUDIT_GAP_THRESHOLD_MINUTES", 120)) * time.Minute
}

// BusinessHours returns the [start, end) hours-of-day during which the gap
// heuristic applies. Outside business hours a quiet log is expected.
//
// Set via env:
// - BUSINESS_HOURS (default "6-22", bakery hours)
func BusinessHours() (int, int) {
	raw := strings.TrimSpace(os.Getenv("BUSINESS_HOURS"))
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return 6, 22
	}
	start := atoiOr(parts[0], 6)
	end := atoiOr(parts[1], 22)
	if start < 0 || start > 23 || end < 1 || end > 24 || start >= end {
		return 6, 22
	}
	return start, end
}

// FailedLoginLockThreshold is how many consecutive failed logins lock an
// account, and FailedLoginLockDuration for how long.
//
// Set via env:
// - FAILED_LOGIN_LOCK_THRESHOLD (default 5)
// - FAILED_LOGIN_LOCK_MINUTES (default 15)
func FailedLoginLockThreshold() int {
	return intFromEnv("FAILED_LOGIN_LOCK_THRESHOLD", 5)
}

func FailedLoginLockDuration() time.Duration {
	return time.Duration(intFromEnv("FAILED_LOGIN_LOCK_MINUTES", 15)) * time.Minute
}

func atoiOr(s string, def int) int {
	n := 0
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	return n
}
