package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/communahq/communa-backend/pkg/enums"
)

// User is the platform identity. Authentication lives outside this service;
// the core only reads id, email and role.
type User struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Email     string           `gorm:"column:email;not null;uniqueIndex"`
	Name      string           `gorm:"column:name;not null"`
	Role      enums.MemberRole `gorm:"column:role;type:member_role;not null;default:'member'"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
