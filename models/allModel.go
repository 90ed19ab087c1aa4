package models

import (
	"log"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
)

// MigrateTable runs AutoMigrate for every model. Call from main() after the
// database connection is established (and from integration tests).
func MigrateTable() {
	db := config.GetDB()
	if db == nil {
		log.Fatal("cannot migrate: database not initialized")
	}

	err := db.AutoMigrate(
		&User{},
		&Supplier{},
		&ItemCategory{},
		&Unit{},
		&UnitConversion{},
		&InventoryItem{},
		&StockMovement{},
		&Product{},
		&ProductIngredient{},
		&Purchase{},
		&AuditLog{},
		&AuditOutbox{},
	)
	if err != nil {
		log.Fatalf("auto migrate failed: %v", err)
	}
}
