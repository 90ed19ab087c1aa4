package models

import (
	"context"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
)

type Supplier struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:100" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"size:255" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"omitempty,email"`
	Phone       string `json:"phone"`
	PhoneRegion string `json:"phone_region"`
	Address     string `json:"address"`
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {

	phone, err := utils.NormalizePhone(input.Phone, input.PhoneRegion)
	if err != nil {
		return nil, err
	}

	supplier := Supplier{
		Name:    input.Name,
		Email:   input.Email,
		Phone:   phone,
		Address: input.Address,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}

	RecordAction(ctx, AuditInput{
		Action:     AuditActionCreate,
		Resource:   "supplier",
		ResourceId: supplier.ID,
		NewValues:  &supplier,
	})

	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {

	supplier, err := utils.FetchModel[Supplier](ctx, id)
	if err != nil {
		return nil, err
	}
	before := *supplier

	phone, err := utils.NormalizePhone(input.Phone, input.PhoneRegion)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(supplier).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Email":   input.Email,
		"Phone":   phone,
		"Address": input.Address,
	}).Error
	if err != nil {
		return nil, err
	}

	RecordAction(ctx, AuditInput{
		Action:     AuditActionUpdate,
		Resource:   "supplier",
		ResourceId: id,
		OldValues:  &before,
		NewValues:  supplier,
	})

	return supplier, nil
}

func DeleteSupplier(ctx context.Context, id int) (*Supplier, error) {

	supplier, err := utils.FetchModel[Supplier](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(supplier).Update("IsActive", false).Error; err != nil {
		return nil, err
	}

	RecordAction(ctx, AuditInput{
		Action:     AuditActionDelete,
		Resource:   "supplier",
		ResourceId: id,
		OldValues:  supplier,
	})

	return supplier, nil
}

func ListSuppliers(ctx context.Context) ([]*Supplier, error) {
	db := config.GetDB()
	var suppliers []*Supplier
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name").
		Find(&suppliers).Error
	if err != nil {
		return nil, err
	}
	return suppliers, nil
}
