package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/communahq/communa-backend/pkg/enums"
)

// ActionLog is the append-only audit trail of settlement and administrative
// actions within a house. Rows are never updated or deleted.
type ActionLog struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	HouseID      uuid.UUID         `gorm:"column:house_id;type:uuid;not null;index"`
	UserID       uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	Action       enums.AuditAction `gorm:"column:action;type:audit_action;not null"`
	ItemName     string            `gorm:"column:item_name;not null"`
	TargetUserID *uuid.UUID        `gorm:"column:target_user_id;type:uuid"`
	ShareCents   int               `gorm:"column:share_cents;not null;default:0"`
	Details      json.RawMessage   `gorm:"column:details;type:jsonb"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
}
