package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/pagination"
)

// Repository manages products, cart lines and order records for the
// purchase engine.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// SetLockTimeout bounds how long the transaction may wait on row locks.
	// Postgres only; a no-op on other dialects (tests run on sqlite).
	SetLockTimeout(ctx context.Context, timeout time.Duration) error

	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	// LockProducts locks product rows FOR UPDATE in ascending id order, the
	// fixed lock order for purchase flows.
	LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
	UpdateProductQuantity(ctx context.Context, id uuid.UUID, quantity int) error

	ListCartLines(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) ([]models.CartItem, error)
	UpsertCartLine(ctx context.Context, line *models.CartItem) error
	DeleteCartLines(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) error
	ListCart(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a purchase repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) SetLockTimeout(ctx context.Context, timeout time.Duration) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	// SET LOCAL scopes the timeout to the current transaction.
	return r.db.WithContext(ctx).
		Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())).Error
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	var rows []models.Product
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	products := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		products[rows[i].ID] = &rows[i]
	}
	return products, nil
}

func (r *repository) UpdateProductQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("quantity", quantity).Error
}

func (r *repository) ListCartLines(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) ([]models.CartItem, error) {
	var lines []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id IN ?", userID, productIDs).
		Order("product_id ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) UpsertCartLine(ctx context.Context, line *models.CartItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{"quantity": line.Quantity}),
		}).
		Create(line).Error
}

func (r *repository) DeleteCartLines(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id IN ?", userID, productIDs).
		Delete(&models.CartItem{}).Error
}

func (r *repository) ListCart(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var lines []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
