package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NextWeightedAverage applies one stock receipt to a running weighted-average
// cost. It is the single source of the formula; every receipt path goes
// through it. When the new total quantity is not positive the added cost wins,
// which also covers receipts into zero starting stock without dividing by zero.
func NextWeightedAverage(currentQty, currentCost, addedQty, addedCost decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	newQty := currentQty.Add(addedQty)
	if !newQty.IsPositive() {
		return newQty, addedCost
	}
	totalValue := currentQty.Mul(currentCost).Add(addedQty.Mul(addedCost))
	return newQty, totalValue.Div(newQty)
}

// obtainItemLock takes a best-effort redis advisory lock for an item.
// Reliability must not depend on redis: the row-level FOR UPDATE inside the
// transaction is what actually serializes concurrent writers per item.
func obtainItemLock(ctx context.Context, itemId int) func() {
	redisLock := config.GetRedisLock()
	if redisLock == nil {
		return func() {}
	}
	lock, err := redisLock.Obtain(ctx, fmt.Sprintf("lock:inventory_item:%d", itemId), 10*time.Second, nil)
	if err != nil {
		if !errors.Is(err, redislock.ErrNotObtained) {
			config.LogWarn(config.GetLogger(), "valuation.go", "obtainItemLock", "Obtain", itemId,
				"error obtaining redis lock; proceeding with row lock only: "+err.Error())
		}
		return func() {}
	}
	return func() {
		if releaseErr := lock.Release(ctx); releaseErr != nil {
			config.LogWarn(config.GetLogger(), "valuation.go", "obtainItemLock", "Release", itemId,
				"failed to release redis lock: "+releaseErr.Error())
		}
	}
}

// ReceiveStock records a stock receipt for an item: recomputes the weighted
// average once, updates every derived counter, stamps LastRestocked, and
// appends an immutable "in" movement — all inside one transaction with the
// item row locked, so concurrent receipts on the same item serialize.
func ReceiveStock(ctx context.Context, itemId int, quantity decimal.Decimal, unitCost decimal.Decimal, purchaseDate time.Time, reference string) (*InventoryItem, error) {
	db := config.GetDB()
	if db == nil {
		return nil, ErrDBNotInitialized
	}

	release := obtainItemLock(ctx, itemId)
	defer release()

	var item *InventoryItem
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		item, txErr = receiveStockTx(tx, ctx, itemId, quantity, unitCost, purchaseDate, reference)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// receiveStockTx is the receipt core, scoped to the caller's transaction so
// that a document posting (e.g. a purchase) and its stock effects commit or
// roll back together.
func receiveStockTx(tx *gorm.DB, ctx context.Context, itemId int, quantity decimal.Decimal, unitCost decimal.Decimal, purchaseDate time.Time, reference string) (*InventoryItem, error) {
	if !quantity.IsPositive() {
		return nil, errors.New("received quantity must be greater than zero")
	}
	if unitCost.IsNegative() {
		return nil, errors.New("unit cost cannot be negative")
	}

	var item InventoryItem
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, itemId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	before := item

	newStock, newCost := NextWeightedAverage(item.CurrentStock, item.CostPerUnit, quantity, unitCost)

	item.CurrentStock = newStock
	item.CostPerUnit = newCost
	item.PurchasedQuantity = item.PurchasedQuantity.Add(quantity)
	item.ClosingStock = item.OpeningStock.Add(item.PurchasedQuantity).Sub(item.ConsumedQuantity)
	item.LastRestocked = &purchaseDate

	if err := tx.Model(&item).Updates(map[string]interface{}{
		"CurrentStock":      item.CurrentStock,
		"CostPerUnit":       item.CostPerUnit,
		"PurchasedQuantity": item.PurchasedQuantity,
		"ClosingStock":      item.ClosingStock,
		"LastRestocked":     item.LastRestocked,
	}).Error; err != nil {
		return nil, err
	}

	movement := StockMovement{
		InventoryItemId: itemId,
		MovementType:    MovementTypeIn,
		Quantity:        quantity,
		UnitCost:        unitCost,
		Reference:       reference,
		BatchNumber:     uuid.NewString(),
		MovementDate:    purchaseDate,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}

	err := RecordActionTx(tx, ctx, AuditInput{
		Action:     AuditActionUpdate,
		Resource:   "inventory_item",
		ResourceId: itemId,
		Details:    map[string]interface{}{"operation": "receive_stock", "quantity": quantity, "unit_cost": unitCost, "reference": reference},
		OldValues:  &before,
		NewValues:  &item,
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ConsumeStock decrements an item's stock. Consumption never changes the
// weighted average. A consumption that would drive stock negative is rejected
// with ErrInsufficientStock; there is no clamping and no backorder state.
func ConsumeStock(ctx context.Context, itemId int, quantity decimal.Decimal, reason string) (*InventoryItem, error) {
	if !quantity.IsPositive() {
		return nil, errors.New("consumed quantity must be greater than zero")
	}

	db := config.GetDB()
	if db == nil {
		return nil, ErrDBNotInitialized
	}

	release := obtainItemLock(ctx, itemId)
	defer release()

	var item InventoryItem
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, itemId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return err
		}
		before := item

		if item.CurrentStock.LessThan(quantity) {
			return ErrInsufficientStock
		}

		item.CurrentStock = item.CurrentStock.Sub(quantity)
		item.ConsumedQuantity = item.ConsumedQuantity.Add(quantity)
		item.ClosingStock = item.OpeningStock.Add(item.PurchasedQuantity).Sub(item.ConsumedQuantity)

		if err := tx.Model(&item).Updates(map[string]interface{}{
			"CurrentStock":     item.CurrentStock,
			"ConsumedQuantity": item.ConsumedQuantity,
			"ClosingStock":     item.ClosingStock,
		}).Error; err != nil {
			return err
		}

		movement := StockMovement{
			InventoryItemId: itemId,
			MovementType:    MovementTypeOut,
			Quantity:        quantity,
			UnitCost:        item.CostPerUnit,
			Reason:          reason,
			MovementDate:    time.Now(),
		}
		if err := tx.Create(&movement).Error; err != nil {
			return err
		}

		return RecordActionTx(tx, ctx, AuditInput{
			Action:     AuditActionUpdate,
			Resource:   "inventory_item",
			ResourceId: itemId,
			Details:    map[string]interface{}{"operation": "consume_stock", "quantity": quantity, "reason": reason},
			OldValues:  &before,
			NewValues:  &item,
		})
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}
