package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/communahq/communa-backend/pkg/enums"
)

// Product is a sellable listing. Quantity is the available stock counter the
// purchase engine decrements under a row lock.
type Product struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SellerID   uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	HouseID    uuid.UUID           `gorm:"column:house_id;type:uuid;not null;index"`
	Title      string              `gorm:"column:title;not null"`
	PriceCents int                 `gorm:"column:price_cents;not null"`
	Quantity   int                 `gorm:"column:quantity;not null;default:0"`
	Status     enums.ProductStatus `gorm:"column:status;type:product_status;not null;default:'pending'"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
