package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is the immutable sale record written once per purchased line.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID     uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID    uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Quantity    int       `gorm:"column:quantity;not null"`
	AmountCents int       `gorm:"column:amount_cents;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
