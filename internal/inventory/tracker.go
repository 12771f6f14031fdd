package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/communahq/communa-backend/pkg/db"
	"github.com/communahq/communa-backend/pkg/db/models"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
)

// Tracker maintains per-user unit counts. Increment and Decrement are
// transaction-scoped: the caller owns the enclosing transaction and its lock
// order. Rows appear on first acquisition and disappear when the count
// drains to zero, so a persisted row always means "holds at least one unit".
type Tracker interface {
	Increment(ctx context.Context, tx *gorm.DB, userID, productID uuid.UUID, delta int) error
	Decrement(ctx context.Context, tx *gorm.DB, userID, productID uuid.UUID, delta int) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserInventory, error)
}

type tracker struct {
	repo Repository
}

// NewTracker wires an inventory tracker with the provided repository.
func NewTracker(repo Repository) (Tracker, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &tracker{repo: repo}, nil
}

func (t *tracker) Increment(ctx context.Context, tx *gorm.DB, userID, productID uuid.UUID, delta int) error {
	if err := validateAdjust(tx, userID, productID, delta); err != nil {
		return err
	}

	repo := t.repo.WithTx(tx)
	row, err := repo.FindLocked(ctx, userID, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return repo.Create(ctx, &models.UserInventory{
				UserID:    userID,
				ProductID: productID,
				Quantity:  delta,
			})
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading inventory row")
	}
	return repo.UpdateQuantity(ctx, userID, productID, row.Quantity+delta)
}

// Decrement removes units. Draining the row to zero deletes it; asking for
// more units than the row holds means a caller skipped its stock check, so
// it surfaces as an internal invariant violation rather than a user error.
func (t *tracker) Decrement(ctx context.Context, tx *gorm.DB, userID, productID uuid.UUID, delta int) error {
	if err := validateAdjust(tx, userID, productID, delta); err != nil {
		return err
	}

	repo := t.repo.WithTx(tx)
	row, err := repo.FindLocked(ctx, userID, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return apperrors.New(apperrors.CodeInternal,
				fmt.Sprintf("inventory underflow: user %s holds no units of product %s", userID, productID))
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading inventory row")
	}

	remaining := row.Quantity - delta
	if remaining < 0 {
		return apperrors.New(apperrors.CodeInternal,
			fmt.Sprintf("inventory underflow: user %s holds %d of product %s, removing %d",
				userID, row.Quantity, productID, delta))
	}
	if remaining == 0 {
		return repo.Delete(ctx, userID, productID)
	}
	return repo.UpdateQuantity(ctx, userID, productID, remaining)
}

func (t *tracker) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserInventory, error) {
	if userID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "user id is required")
	}
	rows, err := t.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing inventory")
	}
	return rows, nil
}

func validateAdjust(tx *gorm.DB, userID, productID uuid.UUID, delta int) error {
	if tx == nil {
		return apperrors.New(apperrors.CodeInternal, "inventory adjustments require a transaction")
	}
	if userID == uuid.Nil || productID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "user id and product id are required")
	}
	if delta <= 0 {
		return apperrors.New(apperrors.CodeValidation, "delta must be positive")
	}
	return nil
}
