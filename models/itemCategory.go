package models

import (
	"context"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
)

type ItemCategory struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:50;not null;uniqueIndex" json:"name" binding:"required"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewItemCategory struct {
	Name string `json:"name" binding:"required"`
}

func CreateItemCategory(ctx context.Context, input *NewItemCategory) (*ItemCategory, error) {

	if err := utils.ValidateUnique[ItemCategory](ctx, "name", input.Name, 0); err != nil {
		return nil, err
	}

	category := ItemCategory{Name: input.Name}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}

	RecordAction(ctx, AuditInput{
		Action:     AuditActionCreate,
		Resource:   "item_category",
		ResourceId: category.ID,
		NewValues:  &category,
	})

	return &category, nil
}

func UpdateItemCategory(ctx context.Context, id int, input *NewItemCategory) (*ItemCategory, error) {

	if err := utils.ValidateUnique[ItemCategory](ctx, "name", input.Name, id); err != nil {
		return nil, err
	}

	category, err := utils.FetchModel[ItemCategory](ctx, id)
	if err != nil {
		return nil, err
	}
	before := *category

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(category).Update("Name", input.Name).Error; err != nil {
		return nil, err
	}

	RecordAction(ctx, AuditInput{
		Action:     AuditActionUpdate,
		Resource:   "item_category",
		ResourceId: id,
		OldValues:  &before,
		NewValues:  category,
	})

	return category, nil
}

func DeleteItemCategory(ctx context.Context, id int) (*ItemCategory, error) {

	category, err := utils.FetchModel[ItemCategory](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(category).Update("IsActive", false).Error; err != nil {
		return nil, err
	}

	RecordAction(ctx, AuditInput{
		Action:     AuditActionDelete,
		Resource:   "item_category",
		ResourceId: id,
		OldValues:  category,
	})

	return category, nil
}

func ListItemCategories(ctx context.Context) ([]*ItemCategory, error) {
	db := config.GetDB()
	var categories []*ItemCategory
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}
