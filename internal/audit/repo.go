package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/pagination"
)

// Repository persists action log rows. The table is append-only; there are
// no update or delete methods on purpose.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.ActionLog) error
	ListByHouse(ctx context.Context, houseID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ActionLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, row *models.ActionLog) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListByHouse(ctx context.Context, houseID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ActionLog, error) {
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

	var rows []models.ActionLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
