package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func snapshotConvert(snap *conversionSnapshot) ConvertFunc {
	return func(q decimal.Decimal, from, to int) (decimal.Decimal, bool, error) {
		return snap.convert(q, from, to)
	}
}

func TestCostIngredients_ConvertsRecipeUnits(t *testing.T) {
	snap := testSnapshot()

	// Recipe records 500g of an item stocked (and costed) per kilogram at 2.00:
	// converted quantity 0.5kg, line cost 1.00.
	lines := []ingredientCostLine{
		{
			InventoryItemId: 1,
			ItemName:        "flour",
			Quantity:        dec("500"),
			RecordedUnitId:  1,
			ItemUnitId:      2,
			CostPerUnit:     dec("2.00"),
		},
	}

	total, breakdown := costIngredients(lines, snapshotConvert(snap))
	if total.Cmp(dec("1.00")) != 0 {
		t.Fatalf("expected total=1.00; got %s", total.String())
	}
	if len(breakdown) != 1 {
		t.Fatalf("expected 1 breakdown line; got %d", len(breakdown))
	}
	line := breakdown[0]
	if !line.ConversionUsed || line.ConversionFailed {
		t.Fatalf("expected converted line; got used=%v failed=%v", line.ConversionUsed, line.ConversionFailed)
	}
	if line.Quantity.Cmp(dec("0.5")) != 0 {
		t.Fatalf("expected converted quantity=0.5; got %s", line.Quantity.String())
	}
	if line.UnitId != 2 {
		t.Fatalf("expected unit_id=2 after conversion; got %d", line.UnitId)
	}
}

func TestCostIngredients_SumsMultipleLines(t *testing.T) {
	snap := testSnapshot()

	lines := []ingredientCostLine{
		// 500g of kg-stocked flour at 2.00/kg = 1.00
		{InventoryItemId: 1, ItemName: "flour", Quantity: dec("500"), RecordedUnitId: 1, ItemUnitId: 2, CostPerUnit: dec("2.00")},
		// 3 pieces of eggs at 0.25/pc = 0.75, same unit, no conversion
		{InventoryItemId: 2, ItemName: "eggs", Quantity: dec("3"), RecordedUnitId: 6, ItemUnitId: 6, CostPerUnit: dec("0.25")},
	}

	total, breakdown := costIngredients(lines, snapshotConvert(snap))
	if total.Cmp(dec("1.75")) != 0 {
		t.Fatalf("expected total=1.75; got %s", total.String())
	}
	if breakdown[1].ConversionUsed {
		t.Fatal("same-unit line must not report a conversion")
	}
}

func TestCostIngredients_FailedConversionDegradesToUnconverted(t *testing.T) {
	snap := testSnapshot()

	// Weight recipe unit against a count stock unit: no conversion path. The
	// line must keep the recorded quantity, flag the failure, and still be
	// included in the total.
	lines := []ingredientCostLine{
		{InventoryItemId: 3, ItemName: "mystery", Quantity: dec("4"), RecordedUnitId: 1, ItemUnitId: 6, CostPerUnit: dec("0.50")},
	}

	total, breakdown := costIngredients(lines, snapshotConvert(snap))
	line := breakdown[0]
	if !line.ConversionFailed {
		t.Fatal("expected ConversionFailed=true")
	}
	if line.UnitId != 1 {
		t.Fatalf("failed line must keep the recorded unit; got %d", line.UnitId)
	}
	if total.Cmp(dec("2.00")) != 0 {
		t.Fatalf("expected degraded total=2.00; got %s", total.String())
	}
}

func TestCostIngredients_EmptyRecipe(t *testing.T) {
	total, breakdown := costIngredients(nil, snapshotConvert(testSnapshot()))
	if !total.IsZero() {
		t.Fatalf("expected zero total; got %s", total.String())
	}
	if len(breakdown) != 0 {
		t.Fatalf("expected empty breakdown; got %d lines", len(breakdown))
	}
}
