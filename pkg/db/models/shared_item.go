package models

import (
	"time"

	"github.com/google/uuid"
)

// SharedItem is a cost split among whichever house members currently
// participate. TotalPriceCents is fixed for the item's lifetime; only the
// participant set varies.
type SharedItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	HouseID         uuid.UUID `gorm:"column:house_id;type:uuid;not null;index"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name            string    `gorm:"column:name;not null"`
	TotalPriceCents int       `gorm:"column:total_price_cents;not null"`
	CreatedByID     uuid.UUID `gorm:"column:created_by_id;type:uuid;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
