package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
	"github.com/shopspring/decimal"
)

// UnitConversion is an explicit, empirically specified conversion between two
// units. It takes precedence over the generic base-unit computation because it
// may encode corrected factors (e.g. approximate cup-to-gram for a specific
// ingredient density). Only one direction is stored; the algebraic inverse is
// honored at lookup time.
type UnitConversion struct {
	ID               int             `gorm:"primary_key" json:"id"`
	FromUnitId       int             `gorm:"not null;index:idx_unit_conversions_pair,priority:1" json:"from_unit_id" binding:"required"`
	ToUnitId         int             `gorm:"not null;index:idx_unit_conversions_pair,priority:2" json:"to_unit_id" binding:"required"`
	ConversionFactor decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"conversion_factor" binding:"required"`
	Formula          string          `gorm:"type:text" json:"formula"`
	IsActive         *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUnitConversion struct {
	FromUnitId       int             `json:"from_unit_id" binding:"required"`
	ToUnitId         int             `json:"to_unit_id" binding:"required"`
	ConversionFactor decimal.Decimal `json:"conversion_factor" binding:"required"`
	Formula          string          `json:"formula"`
}

func (input *NewUnitConversion) validate(ctx context.Context) error {
	if input.FromUnitId == input.ToUnitId {
		return errors.New("conversion must connect two different units")
	}
	// Reverse lookups divide by this factor; zero or negative would compute nonsense.
	if !input.ConversionFactor.IsPositive() {
		return errors.New("conversion factor must be greater than zero")
	}
	from, err := utils.FetchModel[Unit](ctx, input.FromUnitId)
	if err != nil {
		return errors.New("from unit not found")
	}
	to, err := utils.FetchModel[Unit](ctx, input.ToUnitId)
	if err != nil {
		return errors.New("to unit not found")
	}
	if from.MeasurementType != to.MeasurementType {
		return errors.New("cannot define a conversion across measurement types")
	}
	return nil
}

func CreateUnitConversion(ctx context.Context, input *NewUnitConversion) (*UnitConversion, error) {

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	conversion := UnitConversion{
		FromUnitId:       input.FromUnitId,
		ToUnitId:         input.ToUnitId,
		ConversionFactor: input.ConversionFactor,
		Formula:          input.Formula,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&conversion).Error
	if err != nil {
		return nil, err
	}
	return &conversion, nil
}

func UpdateUnitConversion(ctx context.Context, id int, input *NewUnitConversion) (*UnitConversion, error) {

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	conversion, err := utils.FetchModel[UnitConversion](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(conversion).Updates(map[string]interface{}{
		"FromUnitId":       input.FromUnitId,
		"ToUnitId":         input.ToUnitId,
		"ConversionFactor": input.ConversionFactor,
		"Formula":          input.Formula,
	}).Error
	if err != nil {
		return nil, err
	}
	return conversion, nil
}

func DeleteUnitConversion(ctx context.Context, id int) (*UnitConversion, error) {

	conversion, err := utils.FetchModel[UnitConversion](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(conversion).Update("IsActive", false).Error
	if err != nil {
		return nil, err
	}
	return conversion, nil
}

// ListUnitConversions returns all active explicit conversions.
func ListUnitConversions(ctx context.Context) ([]*UnitConversion, error) {
	db := config.GetDB()
	var conversions []*UnitConversion
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("from_unit_id, to_unit_id").
		Find(&conversions).Error
	if err != nil {
		return nil, err
	}
	return conversions, nil
}
