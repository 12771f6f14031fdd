package models

import (
	"time"

	"github.com/google/uuid"
)

// UserInventory tracks how many units of a product a user holds. Rows are
// created on first acquisition and deleted when quantity reaches zero; a
// quantity below one is never persisted.
type UserInventory struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	Quantity  int       `gorm:"column:quantity;not null;default:0"`
	IsSelling bool      `gorm:"column:is_selling;not null;default:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
