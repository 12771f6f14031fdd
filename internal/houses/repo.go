package houses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/enums"
)

// Repository reads houses and their membership rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.House, error)
	FindMembership(ctx context.Context, houseID, userID uuid.UUID) (*models.HouseMembership, error)
	ListMemberIDs(ctx context.Context, houseID uuid.UUID) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a house repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.House, error) {
	var house models.House
	if err := r.db.WithContext(ctx).First(&house, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &house, nil
}

func (r *repository) FindMembership(ctx context.Context, houseID, userID uuid.UUID) (*models.HouseMembership, error) {
	var membership models.HouseMembership
	if err := r.db.WithContext(ctx).
		First(&membership, "house_id = ? AND user_id = ?", houseID, userID).Error; err != nil {
		return nil, err
	}
	return &membership, nil
}

// ListMemberIDs returns the ids of every member of the house in a stable
// order.
func (r *repository) ListMemberIDs(ctx context.Context, houseID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.HouseMembership{}).
		Where("house_id = ?", houseID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// IsOwnerOrAdmin reports whether the membership carries a house-scoped
// owner or admin role.
func IsOwnerOrAdmin(membership *models.HouseMembership) bool {
	if membership == nil {
		return false
	}
	return membership.Role == enums.MemberRoleOwner || membership.Role == enums.MemberRoleAdmin
}
