package models

import (
	"time"

	"github.com/google/uuid"
)

// Participation records whether a user is currently in a shared item's
// participant set. The set of rows with IsChecked true is the authoritative
// participant set re-read at the start of every settlement.
type Participation struct {
	ItemID    uuid.UUID `gorm:"column:item_id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	IsChecked bool      `gorm:"column:is_checked;not null;default:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
