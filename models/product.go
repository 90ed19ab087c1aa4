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

// Product is a sellable good built from inventory ingredients. Cost and Margin
// are caches refreshed by UpdateProductCost, not authoritative values: they go
// stale when ingredients or ingredient costs change until a caller triggers a
// recompute.
type Product struct {
	ID          int                  `gorm:"primary_key" json:"id"`
	Name        string               `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku         string               `gorm:"size:50;not null;uniqueIndex" json:"sku" binding:"required"`
	Price       decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0" json:"price"`
	Cost        decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0" json:"cost"`
	Margin      decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0" json:"margin"`
	UnitId      int                  `gorm:"not null" json:"unit_id" binding:"required"`
	IsActive    *bool                `gorm:"not null;default:true" json:"is_active"`
	Ingredients []*ProductIngredient `gorm:"foreignKey:ProductId" json:"ingredients,omitempty"`
	CreatedAt   time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductIngredient ties a product to an inventory item with a quantity in the
// ingredient's own recorded unit, which need not match the item's stock unit.
// Ingredients are owned by their product and deleted with it.
type ProductIngredient struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ProductId       int             `gorm:"not null;index" json:"product_id"`
	InventoryItemId int             `gorm:"not null;index" json:"inventory_item_id" binding:"required"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity" binding:"required"`
	UnitId          int             `gorm:"not null" json:"unit_id" binding:"required"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductIngredient struct {
	InventoryItemId int             `json:"inventory_item_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	UnitId          int             `json:"unit_id" binding:"required"`
}

type NewProduct struct {
	Name        string                  `json:"name" binding:"required"`
	Sku         string                  `json:"sku" binding:"required"`
	Price       decimal.Decimal         `json:"price"`
	UnitId      int                     `json:"unit_id" binding:"required"`
	Ingredients []*NewProductIngredient `json:"ingredients"`
}

func (input *NewProduct) validate(ctx context.Context, id int) error {
	if input.Price.IsNegative() {
		return errors.New("price cannot be negative")
	}
	if err := utils.ValidateUnique[Product](ctx, "sku", input.Sku, id); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Unit](ctx, input.UnitId); err != nil {
		return errors.New("unit not found")
	}
	for _, ing := range input.Ingredients {
		if !ing.Quantity.IsPositive() {
			return errors.New("ingredient quantity must be greater than zero")
		}
		if err := utils.ValidateResourceId[InventoryItem](ctx, ing.InventoryItemId); err != nil {
			return errors.New("ingredient inventory item not found")
		}
		if err := utils.ValidateResourceId[Unit](ctx, ing.UnitId); err != nil {
			return errors.New("ingredient unit not found")
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	product := Product{
		Name:   input.Name,
		Sku:    input.Sku,
		Price:  input.Price,
		UnitId: input.UnitId,
	}
	for _, ing := range input.Ingredients {
		product.Ingredients = append(product.Ingredients, &ProductIngredient{
			InventoryItemId: ing.InventoryItemId,
			Quantity:        ing.Quantity,
			UnitId:          ing.UnitId,
		})
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&product).Error; err != nil {
			return err
		}
		return RecordActionTx(tx, ctx, AuditInput{
			Action:     AuditActionCreate,
			Resource:   "product",
			ResourceId: product.ID,
			NewValues:  &product,
		})
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct replaces the product's fields and its full ingredient set.
// Cost/Margin are not recomputed here; callers refresh them explicitly via
// UpdateProductCost after editing a recipe.
func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, id, "Ingredients")
	if err != nil {
		return nil, ErrItemNotFound
	}
	before := *product

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(product).Updates(map[string]interface{}{
			"Name":   input.Name,
			"Sku":    input.Sku,
			"Price":  input.Price,
			"UnitId": input.UnitId,
		}).Error; err != nil {
			return err
		}

		if err := tx.Where("product_id = ?", id).Delete(&ProductIngredient{}).Error; err != nil {
			return err
		}
		product.Ingredients = nil
		for _, ing := range input.Ingredients {
			row := &ProductIngredient{
				ProductId:       id,
				InventoryItemId: ing.InventoryItemId,
				Quantity:        ing.Quantity,
				UnitId:          ing.UnitId,
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			product.Ingredients = append(product.Ingredients, row)
		}

		return RecordActionTx(tx, ctx, AuditInput{
			Action:     AuditActionUpdate,
			Resource:   "product",
			ResourceId: id,
			OldValues:  &before,
			NewValues:  product,
		})
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes a product and its ingredient rows in one transaction.
func DeleteProduct(ctx context.Context, id int) (*Product, error) {

	product, err := utils.FetchModel[Product](ctx, id, "Ingredients")
	if err != nil {
		return nil, ErrItemNotFound
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&ProductIngredient{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&Product{}, id).Error; err != nil {
			return err
		}
		return RecordActionTx(tx, ctx, AuditInput{
			Action:     AuditActionDelete,
			Resource:   "product",
			ResourceId: id,
			OldValues:  product,
		})
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	product, err := utils.FetchModel[Product](ctx, id, "Ingredients")
	if err != nil {
		return nil, ErrItemNotFound
	}
	return product, nil
}

func ListProducts(ctx context.Context, p Pagination) (*Page[Product], error) {
	db := config.GetDB()
	limit, offset := p.normalized()

	var total int64
	if err := db.WithContext(ctx).Model(&Product{}).
		Where("is_active = ?", true).Count(&total).Error; err != nil {
		return nil, err
	}

	var products []*Product
	err := db.WithContext(ctx).
		Preload("Ingredients").
		Where("is_active = ?", true).
		Order("name").
		Limit(limit).Offset(offset).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return &Page[Product]{Total: total, Rows: products}, nil
}
