package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
	"github.com/shopspring/decimal"
)

// InventoryItem tracks one stocked ingredient or good. CostPerUnit is always a
// running weighted average, never a spot price. The mutation methods maintain
// ClosingStock = OpeningStock + PurchasedQuantity - ConsumedQuantity; the
// database does not enforce it.
type InventoryItem struct {
	ID                int             `gorm:"primary_key" json:"id"`
	Code              string          `gorm:"size:30;not null;uniqueIndex" json:"code" binding:"required"`
	Name              string          `gorm:"size:100;not null" json:"name" binding:"required"`
	CurrentStock      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"current_stock"`
	OpeningStock      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"opening_stock"`
	PurchasedQuantity decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"purchased_quantity"`
	ConsumedQuantity  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"consumed_quantity"`
	ClosingStock      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"closing_stock"`
	MinLevel          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"min_level"`
	CostPerUnit       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"cost_per_unit"`
	PrimaryUnitId     int             `gorm:"not null;index" json:"primary_unit_id" binding:"required"`
	SecondaryUnitId   *int            `gorm:"index" json:"secondary_unit_id"`
	SupplierId        *int            `gorm:"index" json:"supplier_id"`
	CategoryId        int             `gorm:"index" json:"category_id"`
	LastRestocked     *time.Time      `json:"last_restocked"`
	IsActive          *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryItem struct {
	Code            string          `json:"code" binding:"required"`
	Name            string          `json:"name" binding:"required"`
	OpeningStock    decimal.Decimal `json:"opening_stock"`
	OpeningUnitCost decimal.Decimal `json:"opening_unit_cost"`
	MinLevel        decimal.Decimal `json:"min_level"`
	PrimaryUnitId   int             `json:"primary_unit_id" binding:"required"`
	SecondaryUnitId *int            `json:"secondary_unit_id"`
	SupplierId      *int            `json:"supplier_id"`
	CategoryId      int             `json:"category_id"`
}

func (input *NewInventoryItem) validate(ctx context.Context, id int) error {
	if input.OpeningStock.IsNegative() {
		return errors.New("opening stock cannot be negative")
	}
	if input.OpeningUnitCost.IsNegative() {
		return errors.New("opening unit cost cannot be negative")
	}
	if err := utils.ValidateUnique[InventoryItem](ctx, "code", input.Code, id); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Unit](ctx, input.PrimaryUnitId); err != nil {
		return errors.New("primary unit not found")
	}
	if input.SecondaryUnitId != nil {
		if err := utils.ValidateResourceId[Unit](ctx, *input.SecondaryUnitId); err != nil {
			return errors.New("secondary unit not found")
		}
	}
	if input.SupplierId != nil {
		if err := utils.ValidateResourceId[Supplier](ctx, *input.SupplierId); err != nil {
			return errors.New("supplier not found")
		}
	}
	if input.CategoryId > 0 {
		if err := utils.ValidateResourceId[ItemCategory](ctx, input.CategoryId); err != nil {
			return errors.New("category not found")
		}
	}
	return nil
}

func CreateInventoryItem(ctx context.Context, input *NewInventoryItem) (*InventoryItem, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	item := InventoryItem{
		Code:              input.Code,
		Name:              input.Name,
		CurrentStock:      input.OpeningStock,
		OpeningStock:      input.OpeningStock,
		ClosingStock:      input.OpeningStock,
		MinLevel:          input.MinLevel,
		CostPerUnit:       input.OpeningUnitCost,
		PrimaryUnitId:     input.PrimaryUnitId,
		SecondaryUnitId:   input.SecondaryUnitId,
		SupplierId:        input.SupplierId,
		CategoryId:        input.CategoryId,
		PurchasedQuantity: decimal.Zero,
		ConsumedQuantity:  decimal.Zero,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&item).Error
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, errors.New("item code already exists")
		}
		return nil, err
	}

	RecordAction(ctx, AuditInput{
		Action:     AuditActionCreate,
		Resource:   "inventory_item",
		ResourceId: item.ID,
		NewValues:  &item,
	})

	return &item, nil
}

// UpdateInventoryItem changes descriptive fields only. Stock and cost move
// exclusively through ReceiveStock/ConsumeStock so the weighted average can
// never be edited by hand.
func UpdateInventoryItem(ctx context.Context, id int, input *NewInventoryItem) (*InventoryItem, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	item, err := utils.FetchModel[InventoryItem](ctx, id)
	if err != nil {
		return nil, ErrItemNotFound
	}
	before := *item

	db := config.GetDB()
	err = db.WithContext(ctx).Model(item).Updates(map[string]interface{}{
		"Code":            input.Code,
		"Name":            input.Name,
		"MinLevel":        input.MinLevel,
		"PrimaryUnitId":   input.PrimaryUnitId,
		"SecondaryUnitId": input.SecondaryUnitId,
		"SupplierId":      input.SupplierId,
		"CategoryId":      input.CategoryId,
	}).Error
	if err != nil {
		return nil, err
	}

	RecordAction(ctx, AuditInput{
		Action:     AuditActionUpdate,
		Resource:   "inventory_item",
		ResourceId: item.ID,
		OldValues:  &before,
		NewValues:  item,
	})

	return item, nil
}

func DeleteInventoryItem(ctx context.Context, id int) (*InventoryItem, error) {

	item, err := utils.FetchModel[InventoryItem](ctx, id)
	if err != nil {
		return nil, ErrItemNotFound
	}

	var refs int64
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&ProductIngredient{}).
		Where("inventory_item_id = ?", id).Count(&refs).Error; err != nil {
		return nil, err
	}
	if refs > 0 {
		return nil, errors.New("item is used by product recipes")
	}

	err = db.WithContext(ctx).Model(item).Update("IsActive", false).Error
	if err != nil {
		return nil, err
	}

	RecordAction(ctx, AuditInput{
		Action:     AuditActionDelete,
		Resource:   "inventory_item",
		ResourceId: item.ID,
		OldValues:  item,
	})

	return item, nil
}

func GetInventoryItem(ctx context.Context, id int) (*InventoryItem, error) {
	item, err := utils.FetchModel[InventoryItem](ctx, id)
	if err != nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func ListInventoryItems(ctx context.Context, p Pagination) (*Page[InventoryItem], error) {
	db := config.GetDB()
	limit, offset := p.normalized()

	var total int64
	if err := db.WithContext(ctx).Model(&InventoryItem{}).
		Where("is_active = ?", true).Count(&total).Error; err != nil {
		return nil, err
	}

	var items []*InventoryItem
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name").
		Limit(limit).Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return &Page[InventoryItem]{Total: total, Rows: items}, nil
}

// ListLowStockItems returns active items at or below their minimum level.
func ListLowStockItems(ctx context.Context) ([]*InventoryItem, error) {
	db := config.GetDB()
	var items []*InventoryItem
	err := db.WithContext(ctx).
		Where("is_active = ? AND current_stock <= min_level", true).
		Order("name").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
