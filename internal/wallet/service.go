package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/communahq/communa-backend/internal/authz"
	"github.com/communahq/communa-backend/internal/users"
	"github.com/communahq/communa-backend/pkg/db"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/enums"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
	"github.com/communahq/communa-backend/pkg/logger"
	"github.com/communahq/communa-backend/pkg/outbox"
	"github.com/communahq/communa-backend/pkg/outbox/payloads"
	"github.com/communahq/communa-backend/pkg/pagination"
)

// txRunner runs a function inside one database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EntryInput describes one ledger movement. AmountCents is always positive;
// the direction comes from calling Credit or Debit.
type EntryInput struct {
	UserID      uuid.UUID
	AmountCents int
	Type        enums.TransactionType
	ProductID   *uuid.UUID
	Description string
}

// InsufficientFundsDetails names the wallet that blocked a debit so callers
// can tell the user who could not pay and how much was missing.
type InsufficientFundsDetails struct {
	UserID        uuid.UUID `json:"user_id"`
	RequiredCents int       `json:"required_cents"`
	BalanceCents  int       `json:"balance_cents"`
}

// DepositInput is the admin top-up request.
type DepositInput struct {
	TargetEmail string
	AmountCents int
}

// Service is the wallet ledger. Credit and Debit are transaction-scoped
// primitives: the caller owns the enclosing transaction and must have locked
// the wallet rows first. Deposit, Balance and Transactions are the
// self-contained surface operations.
type Service interface {
	Credit(ctx context.Context, tx *gorm.DB, input EntryInput) error
	Debit(ctx context.Context, tx *gorm.DB, input EntryInput) error
	LockWallets(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) (map[uuid.UUID]*models.Wallet, error)

	Deposit(ctx context.Context, actor authz.Actor, input DepositInput) error
	Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Transactions(ctx context.Context, userID uuid.UUID, cursorToken string, limit int) ([]models.WalletTransaction, string, error)
}

type service struct {
	repo       Repository
	users      users.Repository
	authorizer authz.Checker
	events     *outbox.Service
	tx         txRunner
	logg       *logger.Logger
}

// NewService wires the wallet ledger with its dependencies.
func NewService(
	repo Repository,
	userRepo users.Repository,
	authorizer authz.Checker,
	events *outbox.Service,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		users:      userRepo,
		authorizer: authorizer,
		events:     events,
		tx:         tx,
		logg:       logg,
	}, nil
}

func (s *service) LockWallets(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) (map[uuid.UUID]*models.Wallet, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "wallet locks require a transaction")
	}
	return s.repo.WithTx(tx).LockWallets(ctx, userIDs)
}

// Credit adds funds and appends the paired transaction row. The wallet row
// must already be locked by the enclosing transaction.
func (s *service) Credit(ctx context.Context, tx *gorm.DB, input EntryInput) error {
	return s.apply(ctx, tx, input, +1)
}

// Debit removes funds; it refuses to take a wallet below zero. The outer
// affordability check should already have caught that case, so tripping the
// guard here means a locking bug, but the account is protected either way.
func (s *service) Debit(ctx context.Context, tx *gorm.DB, input EntryInput) error {
	return s.apply(ctx, tx, input, -1)
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, input EntryInput, sign int) error {
	if tx == nil {
		return apperrors.New(apperrors.CodeInternal, "ledger entries require a transaction")
	}
	if input.UserID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "user id is required")
	}
	if input.AmountCents <= 0 {
		return apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}
	if !input.Type.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindWallet(ctx, input.UserID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading wallet")
	}

	next := wallet.BalanceCents + sign*input.AmountCents
	if next < 0 {
		return apperrors.New(apperrors.CodeInsufficientFunds, "wallet balance too low").
			WithDetails(InsufficientFundsDetails{
				UserID:        input.UserID,
				RequiredCents: input.AmountCents,
				BalanceCents:  wallet.BalanceCents,
			})
	}

	if err := repo.UpdateBalance(ctx, input.UserID, next); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "updating wallet balance")
	}
	row := &models.WalletTransaction{
		ID:          uuid.New(),
		UserID:      input.UserID,
		ProductID:   input.ProductID,
		AmountCents: sign * input.AmountCents,
		Type:        input.Type,
		Description: input.Description,
	}
	if err := repo.CreateTransaction(ctx, row); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "appending wallet transaction")
	}
	return nil
}

func (s *service) Deposit(ctx context.Context, actor authz.Actor, input DepositInput) error {
	if err := s.authorizer.CanDeposit(ctx, actor); err != nil {
		return err
	}
	if input.TargetEmail == "" {
		return apperrors.New(apperrors.CodeValidation, "target email is required")
	}
	if input.AmountCents <= 0 {
		return apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}

	target, err := s.users.FindByEmail(ctx, input.TargetEmail)
	if err != nil {
		if db.IsNotFound(err) {
			return apperrors.New(apperrors.CodeNotFound, "no user with that email")
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "looking up deposit target")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.LockWallets(ctx, tx, []uuid.UUID{target.ID}); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "locking wallet")
		}
		if err := s.Credit(ctx, tx, EntryInput{
			UserID:      target.ID,
			AmountCents: input.AmountCents,
			Type:        enums.TransactionTypeDeposit,
			Description: "admin deposit",
		}); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWalletDeposited,
			AggregateType: enums.AggregateWallet,
			AggregateID:   target.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Version:       1,
			Data: payloads.WalletDepositedEvent{
				UserID:      target.ID,
				AmountCents: input.AmountCents,
				DepositedBy: actor.UserID,
			},
		})
	})
	if err != nil {
		return err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"target_user_id": target.ID.String(),
		"amount_cents":   input.AmountCents,
	})
	s.logg.Info(logCtx, "admin deposit applied")
	return nil
}

// Balance reports the wallet, treating a missing row as an empty wallet
// since wallets are created lazily.
func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "user id is required")
	}
	wallet, err := s.repo.FindWallet(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return &models.Wallet{UserID: userID, BalanceCents: 0}, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading wallet")
	}
	return wallet, nil
}

func (s *service) Transactions(ctx context.Context, userID uuid.UUID, cursorToken string, limit int) ([]models.WalletTransaction, string, error) {
	if userID == uuid.Nil {
		return nil, "", apperrors.New(apperrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(cursorToken)
	if err != nil {
		return nil, "", apperrors.New(apperrors.CodeValidation, "invalid cursor")
	}
	limit = pagination.NormalizeLimit(limit)

	rows, err := s.repo.ListTransactions(ctx, userID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInternal, err, "listing wallet transactions")
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}
