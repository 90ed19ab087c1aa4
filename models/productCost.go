package models

import (
	"context"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
	"github.com/shopspring/decimal"
)

// ConvertFunc resolves a quantity between two units. It matches
// ConversionService.ConvertQuantity with the context already bound.
type ConvertFunc func(quantity decimal.Decimal, fromUnitId, toUnitId int) (decimal.Decimal, bool, error)

// ingredientCostLine is one recipe line joined with its inventory item's
// costing fields, ready for aggregation.
type ingredientCostLine struct {
	InventoryItemId int
	ItemName        string
	Quantity        decimal.Decimal
	RecordedUnitId  int
	ItemUnitId      int
	CostPerUnit     decimal.Decimal
}

// IngredientCost is one line of a product cost breakdown.
type IngredientCost struct {
	InventoryItemId  int             `json:"inventory_item_id"`
	ItemName         string          `json:"item_name"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitId           int             `json:"unit_id"`
	CostPerUnit      decimal.Decimal `json:"cost_per_unit"`
	Cost             decimal.Decimal `json:"cost"`
	ConversionUsed   bool            `json:"conversion_used"`
	ConversionFailed bool            `json:"conversion_failed"`
}

// ProductCostBreakdown is the result of a product cost calculation.
type ProductCostBreakdown struct {
	ProductId   int               `json:"product_id"`
	TotalCost   decimal.Decimal   `json:"total_cost"`
	Ingredients []*IngredientCost `json:"ingredients"`
}

// costIngredients sums converted ingredient quantities times their resolved
// unit cost. A failed conversion does not fail the whole calculation: the line
// degrades to the unconverted quantity with a warning and is marked
// ConversionFailed, so the total stays an estimate rather than an error.
// This asymmetry against direct ConvertQuantity calls (which fail hard) is
// deliberate and matches the costing screens' behavior.
func costIngredients(lines []ingredientCostLine, convert ConvertFunc) (decimal.Decimal, []*IngredientCost) {
	total := decimal.Zero
	breakdown := make([]*IngredientCost, 0, len(lines))

	for _, line := range lines {
		entry := &IngredientCost{
			InventoryItemId: line.InventoryItemId,
			ItemName:        line.ItemName,
			Quantity:        line.Quantity,
			UnitId:          line.ItemUnitId,
			CostPerUnit:     line.CostPerUnit,
		}

		qty := line.Quantity
		if line.RecordedUnitId != line.ItemUnitId {
			converted, used, err := convert(line.Quantity, line.RecordedUnitId, line.ItemUnitId)
			if err != nil {
				config.LogWarn(config.GetLogger(), "productCost.go", "costIngredients", "convert",
					map[string]interface{}{
						"inventory_item_id": line.InventoryItemId,
						"from_unit_id":      line.RecordedUnitId,
						"to_unit_id":        line.ItemUnitId,
					},
					"unit conversion failed; using unconverted quantity: "+err.Error())
				entry.ConversionFailed = true
				entry.UnitId = line.RecordedUnitId
			} else {
				qty = converted
				entry.ConversionUsed = used
				entry.Quantity = converted
			}
		}

		entry.Cost = qty.Mul(line.CostPerUnit)
		total = total.Add(entry.Cost)
		breakdown = append(breakdown, entry)
	}

	return total, breakdown
}

// CalculateProductCost derives a product's total cost from its ingredients and
// the current weighted-average cost of each referenced inventory item.
func CalculateProductCost(ctx context.Context, conv *ConversionService, productId int) (*ProductCostBreakdown, error) {
	product, err := utils.FetchModel[Product](ctx, productId, "Ingredients")
	if err != nil {
		return nil, ErrItemNotFound
	}

	lines := make([]ingredientCostLine, 0, len(product.Ingredients))
	for _, ing := range product.Ingredients {
		item, err := utils.FetchModel[InventoryItem](ctx, ing.InventoryItemId)
		if err != nil {
			return nil, ErrItemNotFound
		}
		lines = append(lines, ingredientCostLine{
			InventoryItemId: item.ID,
			ItemName:        item.Name,
			Quantity:        ing.Quantity,
			RecordedUnitId:  ing.UnitId,
			ItemUnitId:      item.PrimaryUnitId,
			CostPerUnit:     item.CostPerUnit,
		})
	}

	total, breakdown := costIngredients(lines, func(q decimal.Decimal, from, to int) (decimal.Decimal, bool, error) {
		return conv.ConvertQuantity(ctx, q, from, to)
	})

	return &ProductCostBreakdown{
		ProductId:   productId,
		TotalCost:   total,
		Ingredients: breakdown,
	}, nil
}

// UpdateProductCost persists a fresh cost into the product's cached Cost and
// Margin fields. This is an on-demand refresh: nothing triggers it
// automatically when ingredients or inventory costs change.
func UpdateProductCost(ctx context.Context, conv *ConversionService, productId int) (*Product, error) {
	breakdown, err := CalculateProductCost(ctx, conv, productId)
	if err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, productId)
	if err != nil {
		return nil, ErrItemNotFound
	}

	margin := decimal.Zero
	if product.Price.IsPositive() {
		margin = product.Price.Sub(breakdown.TotalCost).Div(product.Price)
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(product).Updates(map[string]interface{}{
		"Cost":   breakdown.TotalCost,
		"Margin": margin,
	}).Error
	if err != nil {
		return nil, err
	}

	return product, nil
}
