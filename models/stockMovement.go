package models

import (
	"context"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"github.com/shopspring/decimal"
)

// StockMovement is the append-only movement ledger under the inventory items.
// Each receipt writes an "in" row carrying its batch number and unit cost so
// lots remain FIFO-traceable; each consumption writes an "out" row. Rows are
// never updated or deleted.
type StockMovement struct {
	ID              int             `gorm:"primary_key" json:"id"`
	InventoryItemId int             `gorm:"not null;index:idx_stock_movements_item_date,priority:1" json:"inventory_item_id"`
	MovementType    MovementType    `gorm:"size:5;not null" json:"movement_type"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_cost"`
	Reference       string          `gorm:"size:100" json:"reference"`
	Reason          string          `gorm:"size:255" json:"reason"`
	BatchNumber     string          `gorm:"size:64;index" json:"batch_number"`
	MovementDate    time.Time       `gorm:"not null;index:idx_stock_movements_item_date,priority:2" json:"movement_date"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type StockMovementFilter struct {
	InventoryItemId int        `form:"inventory_item_id"`
	MovementType    string     `form:"movement_type"`
	From            *time.Time `form:"from" time_format:"2006-01-02"`
	To              *time.Time `form:"to" time_format:"2006-01-02"`
	Pagination
}

func ListStockMovements(ctx context.Context, filter StockMovementFilter) (*Page[StockMovement], error) {
	db := config.GetDB()

	q := db.WithContext(ctx).Model(&StockMovement{})
	if filter.InventoryItemId > 0 {
		q = q.Where("inventory_item_id = ?", filter.InventoryItemId)
	}
	if filter.MovementType != "" {
		q = q.Where("movement_type = ?", filter.MovementType)
	}
	if filter.From != nil {
		q = q.Where("movement_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("movement_date < ?", filter.To.AddDate(0, 0, 1))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	limit, offset := filter.normalized()
	var movements []*StockMovement
	err := q.Order("movement_date DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return &Page[StockMovement]{Total: total, Rows: movements}, nil
}
