package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/communahq/communa-backend/pkg/db/models"
)

// Repository manages per-user inventory rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, userID, productID uuid.UUID) (*models.UserInventory, error)
	FindLocked(ctx context.Context, userID, productID uuid.UUID) (*models.UserInventory, error)
	Create(ctx context.Context, row *models.UserInventory) error
	UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	Delete(ctx context.Context, userID, productID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserInventory, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, userID, productID uuid.UUID) (*models.UserInventory, error) {
	var row models.UserInventory
	if err := r.db.WithContext(ctx).
		First(&row, "user_id = ? AND product_id = ?", userID, productID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindLocked(ctx context.Context, userID, productID uuid.UUID) (*models.UserInventory, error) {
	var row models.UserInventory
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "user_id = ? AND product_id = ?", userID, productID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Create(ctx context.Context, row *models.UserInventory) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.UserInventory{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Update("quantity", quantity).Error
}

func (r *repository) Delete(ctx context.Context, userID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.UserInventory{}).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserInventory, error) {
	var rows []models.UserInventory
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("product_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
