package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Purchase is a received delivery line from a supplier. Creating one drives
// the whole pipeline: the purchase unit is converted to the item's stock unit
// when they differ, then the valuation engine folds the receipt into the
// item's weighted-average cost.
type Purchase struct {
	ID              int             `gorm:"primary_key" json:"id"`
	SupplierId      *int            `gorm:"index" json:"supplier_id"`
	InventoryItemId int             `gorm:"not null;index" json:"inventory_item_id" binding:"required"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity" binding:"required"`
	UnitId          int             `gorm:"not null" json:"unit_id" binding:"required"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_cost"`
	PurchaseDate    time.Time       `gorm:"not null;index" json:"purchase_date"`
	Reference       string          `gorm:"size:100" json:"reference"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewPurchase struct {
	SupplierId      *int            `json:"supplier_id"`
	InventoryItemId int             `json:"inventory_item_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	UnitId          int             `json:"unit_id" binding:"required"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	PurchaseDate    *time.Time      `json:"purchase_date"`
	Reference       string          `json:"reference"`
}

// CreatePurchase records the delivery and feeds it through the conversion
// resolver into the stock receipt. A conversion failure here is a hard error:
// a purchase in an unconvertible unit must never be folded into stock 1:1.
// The purchase row and the receipt post in one transaction; a failed receipt
// leaves no orphan purchase behind.
func CreatePurchase(ctx context.Context, conv *ConversionService, input *NewPurchase) (*Purchase, error) {
	if !input.Quantity.IsPositive() {
		return nil, errors.New("purchased quantity must be greater than zero")
	}
	if input.UnitCost.IsNegative() {
		return nil, errors.New("unit cost cannot be negative")
	}
	if input.SupplierId != nil {
		if err := utils.ValidateResourceId[Supplier](ctx, *input.SupplierId); err != nil {
			return nil, errors.New("supplier not found")
		}
	}

	item, err := utils.FetchModel[InventoryItem](ctx, input.InventoryItemId)
	if err != nil {
		return nil, ErrItemNotFound
	}

	purchaseDate := time.Now()
	if input.PurchaseDate != nil {
		purchaseDate = *input.PurchaseDate
	}

	stockQty := input.Quantity
	stockUnitCost := input.UnitCost
	if input.UnitId != item.PrimaryUnitId {
		converted, _, err := conv.ConvertQuantity(ctx, input.Quantity, input.UnitId, item.PrimaryUnitId)
		if err != nil {
			return nil, err
		}
		if !converted.IsPositive() {
			return nil, errors.New("converted quantity must be greater than zero")
		}
		// Total purchase value is invariant under the unit change.
		stockUnitCost = input.Quantity.Mul(input.UnitCost).Div(converted)
		stockQty = converted
	}

	purchase := Purchase{
		SupplierId:      input.SupplierId,
		InventoryItemId: input.InventoryItemId,
		Quantity:        input.Quantity,
		UnitId:          input.UnitId,
		UnitCost:        input.UnitCost,
		PurchaseDate:    purchaseDate,
		Reference:       input.Reference,
	}

	db := config.GetDB()
	if db == nil {
		return nil, ErrDBNotInitialized
	}

	release := obtainItemLock(ctx, item.ID)
	defer release()

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&purchase).Error; err != nil {
			return err
		}
		if _, err := receiveStockTx(tx, ctx, item.ID, stockQty, stockUnitCost, purchaseDate, purchase.Reference); err != nil {
			return err
		}
		return RecordActionTx(tx, ctx, AuditInput{
			Action:     AuditActionCreate,
			Resource:   "purchase",
			ResourceId: purchase.ID,
			NewValues:  &purchase,
		})
	})
	if err != nil {
		return nil, err
	}

	return &purchase, nil
}

type PurchaseFilter struct {
	SupplierId      int        `form:"supplier_id"`
	InventoryItemId int        `form:"inventory_item_id"`
	From            *time.Time `form:"from" time_format:"2006-01-02"`
	To              *time.Time `form:"to" time_format:"2006-01-02"`
	Pagination
}

func ListPurchases(ctx context.Context, filter PurchaseFilter) (*Page[Purchase], error) {
	db := config.GetDB()

	q := db.WithContext(ctx).Model(&Purchase{})
	if filter.SupplierId > 0 {
		q = q.Where("supplier_id = ?", filter.SupplierId)
	}
	if filter.InventoryItemId > 0 {
		q = q.Where("inventory_item_id = ?", filter.InventoryItemId)
	}
	if filter.From != nil {
		q = q.Where("purchase_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("purchase_date < ?", filter.To.AddDate(0, 0, 1))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	limit, offset := filter.normalized()
	var purchases []*Purchase
	err := q.Order("purchase_date DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return &Page[Purchase]{Total: total, Rows: purchases}, nil
}
