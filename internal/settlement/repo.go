package settlement

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

// Repository manages shared items and their participation rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// SetLockTimeout bounds how long the transaction may wait on row locks.
	// Postgres only; a no-op on other dialects (tests run on sqlite).
	SetLockTimeout(ctx context.Context, timeout time.Duration) error

	CreateItem(ctx context.Context, item *models.SharedItem) error
	FindItem(ctx context.Context, id uuid.UUID) (*models.SharedItem, error)
	FindItemLocked(ctx context.Context, id uuid.UUID) (*models.SharedItem, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
	ListItemsByHouse(ctx context.Context, houseID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.SharedItem, error)

	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)

	ListCheckedParticipants(ctx context.Context, itemID uuid.UUID) ([]uuid.UUID, error)
	ListParticipations(ctx context.Context, itemID uuid.UUID) ([]models.Participation, error)
	SeedParticipations(ctx context.Context, itemID uuid.UUID, userIDs []uuid.UUID) error
	UpsertParticipation(ctx context.Context, itemID, userID uuid.UUID, checked bool) error
	DeleteParticipations(ctx context.Context, itemID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a settlement repository bound to the provided database.
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

func (r *repository) CreateItem(ctx context.Context, item *models.SharedItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.SharedItem, error) {
	var item models.SharedItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindItemLocked(ctx context.Context, id uuid.UUID) (*models.SharedItem, error) {
	var item models.SharedItem
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.SharedItem{}, "id = ?", id).Error
}

func (r *repository) ListItemsByHouse(ctx context.Context, houseID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.SharedItem, error) {
	query := r.db.WithContext(ctx).
		Where("house_id = ?", houseID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var items []models.SharedItem
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListCheckedParticipants(ctx context.Context, itemID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Participation{}).
		Where("item_id = ? AND is_checked = ?", itemID, true).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ListParticipations(ctx context.Context, itemID uuid.UUID) ([]models.Participation, error) {
	var rows []models.Participation
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) SeedParticipations(ctx context.Context, itemID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]models.Participation, 0, len(userIDs))
	for _, userID := range userIDs {
		rows = append(rows, models.Participation{
			ItemID:    itemID,
			UserID:    userID,
			IsChecked: false,
		})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) UpsertParticipation(ctx context.Context, itemID, userID uuid.UUID, checked bool) error {
	row := models.Participation{ItemID: itemID, UserID: userID, IsChecked: checked}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"is_checked": checked}),
		}).
		Create(&row).Error
}

func (r *repository) DeleteParticipations(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Delete(&models.Participation{}).Error
}
