// seed-reference-data seeds the measurement reference tables (units plus the
// common explicit conversions) and optionally an admin user. It is idempotent:
// existing rows are matched by name/abbreviation and left alone.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-reference-data
//   go run ./cmd/seed-reference-data -admin-email admin@example.com -admin-password '...'
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"bitbucket.org/ovenworks/bakehouse_backend/models"
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type seedUnit struct {
	Name            string
	Abbreviation    string
	MeasurementType models.MeasurementType
	BaseUnitName    string
	Factor          string
}

var seedUnits = []seedUnit{
	{"gram", "g", models.MeasurementTypeWeight, "gram", "1"},
	{"kilogram", "kg", models.MeasurementTypeWeight, "gram", "1000"},
	{"milligram", "mg", models.MeasurementTypeWeight, "gram", "0.001"},
	{"pound", "lb", models.MeasurementTypeWeight, "gram", "453.59237"},
	{"ounce", "oz", models.MeasurementTypeWeight, "gram", "28.349523125"},
	{"milliliter", "ml", models.MeasurementTypeVolume, "milliliter", "1"},
	{"liter", "l", models.MeasurementTypeVolume, "milliliter", "1000"},
	{"teaspoon", "tsp", models.MeasurementTypeVolume, "milliliter", "4.92892"},
	{"tablespoon", "tbsp", models.MeasurementTypeVolume, "milliliter", "14.78676"},
	{"cup", "cup", models.MeasurementTypeVolume, "milliliter", "236.588"},
	{"piece", "pcs", models.MeasurementTypeCount, "piece", "1"},
	{"dozen", "dz", models.MeasurementTypeCount, "piece", "12"},
	{"centimeter", "cm", models.MeasurementTypeLength, "centimeter", "1"},
	{"meter", "m", models.MeasurementTypeLength, "centimeter", "100"},
	{"celsius", "C", models.MeasurementTypeTemperature, "celsius", "1"},
}

// Explicit overrides seeded for the common paths the kitchen uses; everything
// else resolves through the shared base unit.
var seedConversions = []struct {
	FromAbbr string
	ToAbbr   string
	Factor   string
	Formula  string
}{
	{"kg", "g", "1000", "kg * 1000 = g"},
	{"l", "ml", "1000", "l * 1000 = ml"},
	{"dz", "pcs", "12", "dozen * 12 = pieces"},
}

func main() {
	adminEmail := flag.String("admin-email", "", "Optional: create an admin user with this email")
	adminPassword := flag.String("admin-password", "", "Password for the admin user (required with -admin-email)")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	models.MigrateTable()

	// Attribute seeded rows to a named system actor in the audit trail.
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "SeedReferenceData")

	unitIds := make(map[string]int, len(seedUnits))
	created := 0
	for _, su := range seedUnits {
		var existing models.Unit
		err := db.WithContext(ctx).Where("abbreviation = ?", su.Abbreviation).First(&existing).Error
		if err == nil {
			unitIds[su.Abbreviation] = existing.ID
			continue
		}
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup unit %q: %v\n", su.Abbreviation, err)
			os.Exit(1)
		}

		factor, err := decimal.NewFromString(su.Factor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad seed factor for %q: %v\n", su.Abbreviation, err)
			os.Exit(1)
		}
		unit, err := models.CreateUnit(ctx, &models.NewUnit{
			Name:             su.Name,
			Abbreviation:     su.Abbreviation,
			MeasurementType:  su.MeasurementType,
			BaseUnitName:     su.BaseUnitName,
			ConversionFactor: factor,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create unit %q: %v\n", su.Abbreviation, err)
			os.Exit(1)
		}
		unitIds[su.Abbreviation] = unit.ID
		created++
	}
	fmt.Printf("Units: %d created, %d already present\n", created, len(seedUnits)-created)

	created = 0
	for _, sc := range seedConversions {
		fromId, okFrom := unitIds[sc.FromAbbr]
		toId, okTo := unitIds[sc.ToAbbr]
		if !okFrom || !okTo {
			fmt.Fprintf(os.Stderr, "conversion %s->%s references an unknown unit\n", sc.FromAbbr, sc.ToAbbr)
			os.Exit(1)
		}

		var count int64
		if err := db.WithContext(ctx).Model(&models.UnitConversion{}).
			Where("from_unit_id = ? AND to_unit_id = ?", fromId, toId).
			Count(&count).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to lookup conversion %s->%s: %v\n", sc.FromAbbr, sc.ToAbbr, err)
			os.Exit(1)
		}
		if count > 0 {
			continue
		}

		factor, err := decimal.NewFromString(sc.Factor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad seed factor for %s->%s: %v\n", sc.FromAbbr, sc.ToAbbr, err)
			os.Exit(1)
		}
		if _, err := models.CreateUnitConversion(ctx, &models.NewUnitConversion{
			FromUnitId:       fromId,
			ToUnitId:         toId,
			ConversionFactor: factor,
			Formula:          sc.Formula,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create conversion %s->%s: %v\n", sc.FromAbbr, sc.ToAbbr, err)
			os.Exit(1)
		}
		created++
	}
	fmt.Printf("Conversions: %d created, %d already present\n", created, len(seedConversions)-created)

	// Seeded rows change the reference tables; running API instances pick the
	// change up on the next snapshot load.
	if err := models.InvalidateConversionCache(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to invalidate conversion cache: %v\n", err)
	}

	if *adminEmail != "" {
		if *adminPassword == "" {
			fmt.Fprintln(os.Stderr, "-admin-password is required with -admin-email")
			os.Exit(1)
		}
		var existing models.User
		err := db.WithContext(ctx).Where("email = ?", *adminEmail).First(&existing).Error
		if err == nil {
			fmt.Printf("Admin user %q already exists; leaving untouched\n", *adminEmail)
			return
		}
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup admin user: %v\n", err)
			os.Exit(1)
		}
		if _, err := models.CreateUser(ctx, &models.NewUser{
			Email:    *adminEmail,
			Name:     "Bakehouse Admin",
			Password: *adminPassword,
			Role:     models.UserRoleAdmin,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user %q\n", *adminEmail)
	}
}
