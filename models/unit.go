package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
	"github.com/shopspring/decimal"
)

// Unit is a measurement unit. Units of the same measurement type share a base
// unit name and are mutually convertible through it; ConversionFactor is how
// many base units equal one of this unit.
type Unit struct {
	ID               int             `gorm:"primary_key" json:"id"`
	Name             string          `gorm:"size:50;not null;uniqueIndex" json:"name" binding:"required"`
	Abbreviation     string          `gorm:"size:10;not null;uniqueIndex" json:"abbreviation" binding:"required"`
	MeasurementType  MeasurementType `gorm:"size:15;not null;index" json:"measurement_type" binding:"required"`
	BaseUnitName     string          `gorm:"size:50;not null" json:"base_unit_name" binding:"required"`
	ConversionFactor decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"conversion_factor" binding:"required"`
	IsActive         *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUnit struct {
	Name             string          `json:"name" binding:"required"`
	Abbreviation     string          `json:"abbreviation" binding:"required"`
	MeasurementType  MeasurementType `json:"measurement_type" binding:"required"`
	BaseUnitName     string          `json:"base_unit_name" binding:"required"`
	ConversionFactor decimal.Decimal `json:"conversion_factor" binding:"required"`
}

func (input *NewUnit) validate(ctx context.Context, id int) error {
	if !input.MeasurementType.IsValid() {
		return errors.New("invalid measurement type")
	}
	// Factor <= 0 would poison every conversion that divides by it.
	if !input.ConversionFactor.IsPositive() {
		return errors.New("conversion factor must be greater than zero")
	}
	if err := utils.ValidateUnique[Unit](ctx, "name", input.Name, id); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Unit](ctx, "abbreviation", input.Abbreviation, id); err != nil {
		return err
	}
	return nil
}

func CreateUnit(ctx context.Context, input *NewUnit) (*Unit, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	unit := Unit{
		Name:             input.Name,
		Abbreviation:     input.Abbreviation,
		MeasurementType:  input.MeasurementType,
		BaseUnitName:     input.BaseUnitName,
		ConversionFactor: input.ConversionFactor,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&unit).Error
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, errors.New("unit name or abbreviation already exists")
		}
		return nil, err
	}
	return &unit, nil
}

func UpdateUnit(ctx context.Context, id int, input *NewUnit) (*Unit, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	unit, err := utils.FetchModel[Unit](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(unit).Updates(map[string]interface{}{
		"Name":             input.Name,
		"Abbreviation":     input.Abbreviation,
		"MeasurementType":  input.MeasurementType,
		"BaseUnitName":     input.BaseUnitName,
		"ConversionFactor": input.ConversionFactor,
	}).Error
	if err != nil {
		return nil, err
	}
	return unit, nil
}

// DeleteUnit soft-disables a unit. Units referenced by items or recipes keep
// their id meaningful, so rows are deactivated rather than removed.
func DeleteUnit(ctx context.Context, id int) (*Unit, error) {

	unit, err := utils.FetchModel[Unit](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(unit).Update("IsActive", false).Error
	if err != nil {
		return nil, err
	}
	return unit, nil
}

func GetUnit(ctx context.Context, id int) (*Unit, error) {
	return utils.FetchModel[Unit](ctx, id)
}

// ListUnits returns all active units.
func ListUnits(ctx context.Context) ([]*Unit, error) {
	db := config.GetDB()
	var units []*Unit
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("measurement_type, name").
		Find(&units).Error
	if err != nil {
		return nil, err
	}
	return units, nil
}
