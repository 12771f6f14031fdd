package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's custodial balance in minor currency units. The
// balance is a cached projection of the wallet's transaction rows and is only
// mutated in the same database transaction that appends the paired
// WalletTransaction. It is never persisted negative.
type Wallet struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	BalanceCents int       `gorm:"column:balance_cents;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
