package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/communahq/communa-backend/pkg/enums"
)

// HouseMembership links a user to a house with a house-scoped role.
type HouseMembership struct {
	HouseID   uuid.UUID        `gorm:"column:house_id;type:uuid;primaryKey"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;primaryKey"`
	Role      enums.MemberRole `gorm:"column:role;type:member_role;not null;default:'member'"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}
