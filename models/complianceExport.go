package models

import (
	"bytes"
	"context"

	"github.com/xuri/excelize/v2"
)

// ExportAuditLogsXLSX writes the audit rows matching filter into a workbook
// and records the export itself as an EXPORT audit action (best-effort).
func ExportAuditLogsXLSX(ctx context.Context, filter AuditLogFilter) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Audit Logs"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Timestamp", "User", "Email", "Action", "Resource", "Resource ID", "Status", "IP Address", "Error"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	// Export everything that matches, not just one page, walking pages by a
	// keyset on id: rows appended while the export runs cannot shift earlier
	// pages the way a growing offset does. Ids are monotonic with insertion,
	// so id order matches the trail's timestamp order.
	row := 2
	lastId := 0
	for {
		q, err := auditLogQuery(ctx, filter)
		if err != nil {
			return nil, err
		}
		if lastId > 0 {
			q = q.Where("id < ?", lastId)
		}
		var entries []*AuditLog
		if err := q.Order("id DESC").Limit(maxPageSize).Find(&entries).Error; err != nil {
			return nil, err
		}
		for _, entry := range entries {
			values := []interface{}{
				entry.ID,
				entry.Timestamp.Format("2006-01-02 15:04:05"),
				entry.UserName,
				entry.UserEmail,
				string(entry.Action),
				entry.Resource,
				entry.ResourceId,
				string(entry.Status),
				entry.IpAddress,
				entry.ErrorMessage,
			}
			for i, v := range values {
				cell, err := excelize.CoordinatesToCellName(i+1, row)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return nil, err
				}
			}
			row++
		}
		if len(entries) < maxPageSize {
			break
		}
		lastId = entries[len(entries)-1].ID
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}

	RecordAction(ctx, AuditInput{
		Action:   AuditActionExport,
		Resource: "audit_log",
		Details:  map[string]interface{}{"rows": row - 2, "format": "xlsx"},
	})

	return buf, nil
}
