package wallet

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/communahq/communa-backend/pkg/db"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/pagination"
)

// Repository manages wallet rows and their append-only transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// LockWallets ensures a wallet row exists for every id, then locks the
	// rows FOR UPDATE in ascending user-id order. Callers must pass every
	// wallet the enclosing transaction will touch in one call.
	LockWallets(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.Wallet, error)
	FindWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	UpdateBalance(ctx context.Context, userID uuid.UUID, balanceCents int) error
	CreateTransaction(ctx context.Context, row *models.WalletTransaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LockWallets(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.Wallet, error) {
	ids := dedupeAscending(userIDs)
	if len(ids) == 0 {
		return map[uuid.UUID]*models.Wallet{}, nil
	}

	// Lazily create missing wallets before taking locks so the FOR UPDATE
	// below always sees a full row set. A concurrent first-use of the same
	// wallet loses the insert race with a unique violation; the row exists
	// either way, so that loss is swallowed.
	for _, id := range ids {
		seed := models.Wallet{UserID: id, BalanceCents: 0}
		if err := r.db.WithContext(ctx).Create(&seed).Error; err != nil && !db.IsUniqueViolation(err, "") {
			return nil, err
		}
	}

	var rows []models.Wallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id IN ?", ids).
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	wallets := make(map[uuid.UUID]*models.Wallet, len(rows))
	for i := range rows {
		wallets[rows[i].UserID] = &rows[i]
	}
	return wallets, nil
}

func (r *repository) FindWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) UpdateBalance(ctx context.Context, userID uuid.UUID, balanceCents int) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Update("balance_cents", balanceCents).Error
}

func (r *repository) CreateTransaction(ctx context.Context, row *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListTransactions(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.WalletTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// dedupeAscending returns the unique ids sorted ascending by their string
// form, the canonical lock order for wallets.
func dedupeAscending(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
