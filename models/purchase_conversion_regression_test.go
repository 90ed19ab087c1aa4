package models_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"bitbucket.org/ovenworks/bakehouse_backend/models"
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
	"github.com/shopspring/decimal"
)

// Regression: purchasing in a unit other than the item's stock unit must
// convert the quantity before valuation and keep the total purchase value
// invariant. A purchase in an unconvertible unit must fail hard, leaving the
// item untouched.
func TestCreatePurchase_ConvertsUnitBeforeValuation(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "bakehouse_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	gram, err := models.CreateUnit(ctx, &models.NewUnit{
		Name: "gram", Abbreviation: "g", MeasurementType: models.MeasurementTypeWeight,
		BaseUnitName: "gram", ConversionFactor: decimal.RequireFromString("1"),
	})
	if err != nil {
		t.Fatalf("CreateUnit(g): %v", err)
	}
	kg, err := models.CreateUnit(ctx, &models.NewUnit{
		Name: "kilogram", Abbreviation: "kg", MeasurementType: models.MeasurementTypeWeight,
		BaseUnitName: "gram", ConversionFactor: decimal.RequireFromString("1000"),
	})
	if err != nil {
		t.Fatalf("CreateUnit(kg): %v", err)
	}
	pcs, err := models.CreateUnit(ctx, &models.NewUnit{
		Name: "piece", Abbreviation: "pcs", MeasurementType: models.MeasurementTypeCount,
		BaseUnitName: "piece", ConversionFactor: decimal.RequireFromString("1"),
	})
	if err != nil {
		t.Fatalf("CreateUnit(pcs): %v", err)
	}

	item, err := models.CreateInventoryItem(ctx, &models.NewInventoryItem{
		Code:          "YEAST-01",
		Name:          "Dry Yeast",
		PrimaryUnitId: kg.ID,
	})
	if err != nil {
		t.Fatalf("CreateInventoryItem: %v", err)
	}

	conv := models.NewConversionService(0)

	// Buy 500g at 0.004/g into an empty kg-stocked item: 0.5kg at 4.00/kg,
	// total value 2.00 either way.
	if _, err := models.CreatePurchase(ctx, conv, &models.NewPurchase{
		InventoryItemId: item.ID,
		Quantity:        decimal.RequireFromString("500"),
		UnitId:          gram.ID,
		UnitCost:        decimal.RequireFromString("0.004"),
		Reference:       "PO-2001",
	}); err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}

	item, err = models.GetInventoryItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetInventoryItem: %v", err)
	}
	if item.CurrentStock.Cmp(decimal.RequireFromString("0.5")) != 0 {
		t.Fatalf("expected stock=0.5kg; got %s", item.CurrentStock.String())
	}
	if item.CostPerUnit.Cmp(decimal.RequireFromString("4")) != 0 {
		t.Fatalf("expected cost=4.00/kg; got %s", item.CostPerUnit.String())
	}
	value := item.CurrentStock.Mul(item.CostPerUnit)
	if value.Cmp(decimal.RequireFromString("2")) != 0 {
		t.Fatalf("purchase value not conserved: got %s", value.String())
	}
	if item.LastRestocked == nil || time.Since(*item.LastRestocked) > time.Minute {
		t.Fatal("expected LastRestocked stamped by the purchase")
	}

	// Cross-type purchase unit: hard failure, no stock movement, no fallback 1:1.
	before := item.CurrentStock
	if _, err := models.CreatePurchase(ctx, conv, &models.NewPurchase{
		InventoryItemId: item.ID,
		Quantity:        decimal.RequireFromString("3"),
		UnitId:          pcs.ID,
		UnitCost:        decimal.RequireFromString("1.00"),
	}); !models.IsConversionNotFound(err) {
		t.Fatalf("expected ConversionNotFoundError; got %v", err)
	}
	item, err = models.GetInventoryItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetInventoryItem: %v", err)
	}
	if item.CurrentStock.Cmp(before) != 0 {
		t.Fatalf("failed purchase must not change stock: %s -> %s", before.String(), item.CurrentStock.String())
	}

	// The purchase row and its stock receipt post in one transaction: force a
	// failure on the receipt side (the outbox correlation id column is
	// varchar(64), so an oversized correlation id makes the audit intent
	// insert fail) and check that the purchase row rolls back with it.
	db := config.GetDB()
	var purchasesBefore int64
	if err := db.Model(&models.Purchase{}).Count(&purchasesBefore).Error; err != nil {
		t.Fatalf("count purchases: %v", err)
	}
	badCtx := utils.SetCorrelationIdInContext(ctx, strings.Repeat("x", 100))
	if _, err := models.CreatePurchase(badCtx, conv, &models.NewPurchase{
		InventoryItemId: item.ID,
		Quantity:        decimal.RequireFromString("1"),
		UnitId:          kg.ID,
		UnitCost:        decimal.RequireFromString("2.00"),
		Reference:       "PO-2002",
	}); err == nil {
		t.Fatal("expected purchase to fail when the receipt cannot be recorded")
	}
	var purchasesAfter int64
	if err := db.Model(&models.Purchase{}).Count(&purchasesAfter).Error; err != nil {
		t.Fatalf("count purchases: %v", err)
	}
	if purchasesAfter != purchasesBefore {
		t.Fatalf("failed receipt left an orphan purchase row: %d -> %d", purchasesBefore, purchasesAfter)
	}
	item, err = models.GetInventoryItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetInventoryItem: %v", err)
	}
	if item.CurrentStock.Cmp(before) != 0 {
		t.Fatalf("rolled-back purchase must not change stock: %s -> %s", before.String(), item.CurrentStock.String())
	}
}
