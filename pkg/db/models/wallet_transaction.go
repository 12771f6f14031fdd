package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/communahq/communa-backend/pkg/enums"
)

// WalletTransaction is the append-only record paired with every balance
// mutation. AmountCents is signed: debits are negative, credits positive.
// Rows are never updated or deleted.
type WalletTransaction struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID   *uuid.UUID            `gorm:"column:product_id;type:uuid"`
	AmountCents int                   `gorm:"column:amount_cents;not null"`
	Type        enums.TransactionType `gorm:"column:type;type:transaction_type;not null"`
	Description string                `gorm:"column:description;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
