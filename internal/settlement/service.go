package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/communahq/communa-backend/internal/audit"
	"github.com/communahq/communa-backend/internal/authz"
	"github.com/communahq/communa-backend/internal/houses"
	"github.com/communahq/communa-backend/internal/inventory"
	"github.com/communahq/communa-backend/internal/wallet"
	"github.com/communahq/communa-backend/pkg/config"
	"github.com/communahq/communa-backend/pkg/db"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/enums"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
	"github.com/communahq/communa-backend/pkg/logger"
	"github.com/communahq/communa-backend/pkg/metrics"
	"github.com/communahq/communa-backend/pkg/money"
	"github.com/communahq/communa-backend/pkg/outbox"
	"github.com/communahq/communa-backend/pkg/outbox/payloads"
	"github.com/communahq/communa-backend/pkg/pagination"
)

// txRunner runs a function inside one database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SetParticipationInput is one toggle request against a shared item.
type SetParticipationInput struct {
	ItemID       uuid.UUID
	TargetUserID uuid.UUID
	Checked      bool
}

// SetParticipationResult reports the per-head share after the toggle.
type SetParticipationResult struct {
	NewShareCents    int
	ParticipantCount int
}

// CreateItemInput describes a new shared item.
type CreateItemInput struct {
	HouseID         uuid.UUID
	ProductID       uuid.UUID
	Name            string
	TotalPriceCents int
}

// ItemView is a shared item with its participation state, as listed to
// house members.
type ItemView struct {
	Item         models.SharedItem      `json:"item"`
	Participants []models.Participation `json:"participants"`
	ShareCents   int                    `json:"share_cents"`
	CheckedCount int                    `json:"checked_count"`
}

// Service is the settlement engine: every mutation runs as one unit of work
// that moves money, adjusts inventory, appends the audit row and queues the
// outbox event together, or does none of it.
type Service interface {
	SetParticipation(ctx context.Context, actor authz.Actor, input SetParticipationInput) (*SetParticipationResult, error)
	CreateItem(ctx context.Context, actor authz.Actor, input CreateItemInput) (*models.SharedItem, error)
	DeleteItem(ctx context.Context, actor authz.Actor, itemID uuid.UUID) error
	ListItems(ctx context.Context, actor authz.Actor, houseID uuid.UUID, cursorToken string, limit int) ([]ItemView, string, error)
}

type service struct {
	repo       Repository
	wallets    wallet.Service
	inventory  inventory.Tracker
	audit      audit.Service
	houses     houses.Repository
	authorizer authz.Checker
	events     *outbox.Service
	tx         txRunner
	logg       *logger.Logger
	cfg        config.SettlementConfig
}

// NewService wires the settlement engine with its dependencies.
func NewService(
	repo Repository,
	wallets wallet.Service,
	tracker inventory.Tracker,
	auditSvc audit.Service,
	houseRepo houses.Repository,
	authorizer authz.Checker,
	events *outbox.Service,
	tx txRunner,
	logg *logger.Logger,
	cfg config.SettlementConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("inventory tracker required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if houseRepo == nil {
		return nil, fmt.Errorf("house repository required")
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
		wallets:    wallets,
		inventory:  tracker,
		audit:      auditSvc,
		houses:     houseRepo,
		authorizer: authorizer,
		events:     events,
		tx:         tx,
		logg:       logg,
		cfg:        cfg,
	}, nil
}

// SetParticipation toggles a user in or out of a shared item's participant
// set and settles the resulting share changes. The participant set is always
// re-read under the item lock, so a client-supplied snapshot can never be
// the basis of a settlement.
func (s *service) SetParticipation(ctx context.Context, actor authz.Actor, input SetParticipationInput) (*SetParticipationResult, error) {
	started := time.Now()
	result, err := s.setParticipation(ctx, actor, input)
	metrics.SettlementDuration.Observe(time.Since(started).Seconds())
	metrics.SettlementsTotal.WithLabelValues(settlementResult(err)).Inc()
	return result, err
}

func settlementResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultApplied
	case apperrors.IsCode(err, apperrors.CodeInsufficientFunds):
		return metrics.ResultInsufficientFunds
	case apperrors.IsCode(err, apperrors.CodeConflict):
		return metrics.ResultConflict
	default:
		return metrics.ResultError
	}
}

func (s *service) setParticipation(ctx context.Context, actor authz.Actor, input SetParticipationInput) (*SetParticipationResult, error) {
	if input.ItemID == uuid.Nil || input.TargetUserID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "item id and target user id are required")
	}

	// Pre-transaction read for the permission check only; every value the
	// settlement depends on is re-read under the item lock.
	item, err := s.repo.FindItem(ctx, input.ItemID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, apperrors.New(apperrors.CodeNotFound, "shared item not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading shared item")
	}
	if err := s.authorizer.CanToggleParticipation(ctx, actor, item.HouseID, input.TargetUserID); err != nil {
		return nil, err
	}
	if _, err := s.houses.FindMembership(ctx, item.HouseID, input.TargetUserID); err != nil {
		if db.IsNotFound(err) {
			return nil, apperrors.New(apperrors.CodeNotFound, "target user is not a member of this house")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading target membership")
	}

	var result *SetParticipationResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SetLockTimeout(ctx, s.cfg.LockTimeout); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "setting lock timeout")
		}

		// Lock order: item row, then wallets ascending, then inventory.
		item, err := repo.FindItemLocked(ctx, input.ItemID)
		if err != nil {
			if db.IsNotFound(err) {
				return apperrors.New(apperrors.CodeNotFound, "shared item not found")
			}
			return err
		}
		product, err := repo.FindProduct(ctx, item.ProductID)
		if err != nil {
			if db.IsNotFound(err) {
				return apperrors.New(apperrors.CodeNotFound, "linked product not found")
			}
			return err
		}
		sellerID := product.SellerID

		oldSet, err := repo.ListCheckedParticipants(ctx, item.ID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "reading participant set")
		}
		newSet := toggled(oldSet, input.TargetUserID, input.Checked)

		oldShare := money.SplitEqual(item.TotalPriceCents, len(oldSet))
		newShare := money.SplitEqual(item.TotalPriceCents, len(newSet))

		walletIDs := append(append([]uuid.UUID{sellerID}, oldSet...), newSet...)
		wallets, err := s.wallets.LockWallets(ctx, tx, walletIDs)
		if err != nil {
			return err
		}

		oldMembers := asSet(oldSet)
		for _, userID := range newSet {
			if userID == sellerID {
				continue
			}
			available := wallets[userID].BalanceCents
			if oldMembers[userID] {
				available += oldShare
			}
			if available < newShare {
				return apperrors.New(apperrors.CodeInsufficientFunds, "participant cannot afford the new share").
					WithDetails(wallet.InsufficientFundsDetails{
						UserID:        userID,
						RequiredCents: newShare,
						BalanceCents:  wallets[userID].BalanceCents,
					})
			}
		}

		// Refund leg: unwind the old split before applying the new one so a
		// participant present in both sets never transiently overdraws.
		for _, userID := range oldSet {
			if oldShare > 0 && userID != sellerID {
				if err := s.wallets.Credit(ctx, tx, wallet.EntryInput{
					UserID:      userID,
					AmountCents: oldShare,
					Type:        enums.TransactionTypeRefund,
					ProductID:   &item.ProductID,
					Description: fmt.Sprintf("share refund: %s", item.Name),
				}); err != nil {
					return err
				}
				if err := s.wallets.Debit(ctx, tx, wallet.EntryInput{
					UserID:      sellerID,
					AmountCents: oldShare,
					Type:        enums.TransactionTypeRefund,
					ProductID:   &item.ProductID,
					Description: fmt.Sprintf("share refund issued: %s", item.Name),
				}); err != nil {
					return err
				}
			}
			if err := s.inventory.Decrement(ctx, tx, userID, item.ProductID, 1); err != nil {
				return err
			}
		}

		// Charge leg.
		for _, userID := range newSet {
			if newShare > 0 && userID != sellerID {
				if err := s.wallets.Debit(ctx, tx, wallet.EntryInput{
					UserID:      userID,
					AmountCents: newShare,
					Type:        enums.TransactionTypePayment,
					ProductID:   &item.ProductID,
					Description: fmt.Sprintf("share payment: %s", item.Name),
				}); err != nil {
					return err
				}
				if err := s.wallets.Credit(ctx, tx, wallet.EntryInput{
					UserID:      sellerID,
					AmountCents: newShare,
					Type:        enums.TransactionTypeSale,
					ProductID:   &item.ProductID,
					Description: fmt.Sprintf("share received: %s", item.Name),
				}); err != nil {
					return err
				}
			}
			if err := s.inventory.Increment(ctx, tx, userID, item.ProductID, 1); err != nil {
				return err
			}
		}

		if err := repo.UpsertParticipation(ctx, item.ID, input.TargetUserID, input.Checked); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "updating participation")
		}

		if err := s.audit.Record(ctx, tx, audit.RecordInput{
			HouseID:      item.HouseID,
			ActorID:      actor.UserID,
			Action:       enums.AuditActionParticipationToggled,
			ItemName:     item.Name,
			TargetUserID: &input.TargetUserID,
			ShareCents:   newShare,
			Details: map[string]any{
				"checked":          input.Checked,
				"old_participants": len(oldSet),
				"new_participants": len(newSet),
			},
		}); err != nil {
			return err
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementUpdated,
			AggregateType: enums.AggregateSharedItem,
			AggregateID:   item.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Version:       1,
			Data: payloads.SettlementUpdatedEvent{
				ItemID:       item.ID,
				ItemName:     item.Name,
				HouseID:      item.HouseID,
				TargetUserID: input.TargetUserID,
				Joined:       input.Checked,
				ShareCents:   newShare,
				Participants: newSet,
				TotalCents:   item.TotalPriceCents,
				SellerUserID: sellerID,
			},
		}); err != nil {
			return err
		}

		result = &SetParticipationResult{
			NewShareCents:    newShare,
			ParticipantCount: len(newSet),
		}
		return nil
	})
	if err != nil {
		if db.IsLockTimeout(err) {
			return nil, apperrors.Wrap(apperrors.CodeConflict, err, "settlement lost a lock race, retry")
		}
		return nil, err
	}

	logCtx := s.logg.WithHouseID(ctx, item.HouseID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"item_id":        input.ItemID.String(),
		"target_user_id": input.TargetUserID.String(),
		"checked":        input.Checked,
		"new_share":      result.NewShareCents,
		"participants":   result.ParticipantCount,
	})
	s.logg.Info(logCtx, "participation settled")
	return result, nil
}

// toggled returns the old set with target added or removed, preserving the
// ascending order of the input.
func toggled(oldSet []uuid.UUID, target uuid.UUID, checked bool) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(oldSet)+1)
	present := false
	for _, id := range oldSet {
		if id == target {
			present = true
			if !checked {
				continue
			}
		}
		out = append(out, id)
	}
	if checked && !present {
		out = append(out, target)
	}
	return out
}

func asSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (s *service) CreateItem(ctx context.Context, actor authz.Actor, input CreateItemInput) (*models.SharedItem, error) {
	if input.HouseID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "house id and product id are required")
	}
	if input.Name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "item name is required")
	}
	if input.TotalPriceCents < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "total price cannot be negative")
	}
	if err := s.authorizer.CanManageItems(ctx, actor, input.HouseID); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindProduct(ctx, input.ProductID); err != nil {
		if db.IsNotFound(err) {
			return nil, apperrors.New(apperrors.CodeNotFound, "linked product not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading product")
	}

	memberIDs, err := s.houses.ListMemberIDs(ctx, input.HouseID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing house members")
	}

	item := &models.SharedItem{
		ID:              uuid.New(),
		HouseID:         input.HouseID,
		ProductID:       input.ProductID,
		Name:            input.Name,
		TotalPriceCents: input.TotalPriceCents,
		CreatedByID:     actor.UserID,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateItem(ctx, item); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating shared item")
		}
		if err := repo.SeedParticipations(ctx, item.ID, memberIDs); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "seeding participations")
		}
		if err := s.audit.Record(ctx, tx, audit.RecordInput{
			HouseID:  item.HouseID,
			ActorID:  actor.UserID,
			Action:   enums.AuditActionItemCreated,
			ItemName: item.Name,
			Details:  map[string]any{"total_price_cents": item.TotalPriceCents},
		}); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemCreated,
			AggregateType: enums.AggregateSharedItem,
			AggregateID:   item.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Version:       1,
			Data: payloads.ItemCreatedEvent{
				ItemID:     item.ID,
				ItemName:   item.Name,
				HouseID:    item.HouseID,
				TotalCents: item.TotalPriceCents,
				CreatedBy:  actor.UserID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes a shared item. Any outstanding split is unwound first:
// every checked participant is refunded their share and the seller debited,
// so deleting an item never strands money with the seller.
func (s *service) DeleteItem(ctx context.Context, actor authz.Actor, itemID uuid.UUID) error {
	if itemID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "item id is required")
	}
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		if db.IsNotFound(err) {
			return apperrors.New(apperrors.CodeNotFound, "shared item not found")
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading shared item")
	}
	if err := s.authorizer.CanManageItems(ctx, actor, item.HouseID); err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SetLockTimeout(ctx, s.cfg.LockTimeout); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "setting lock timeout")
		}
		item, err := repo.FindItemLocked(ctx, itemID)
		if err != nil {
			if db.IsNotFound(err) {
				return apperrors.New(apperrors.CodeNotFound, "shared item not found")
			}
			return err
		}
		product, err := repo.FindProduct(ctx, item.ProductID)
		if err != nil {
			if db.IsNotFound(err) {
				return apperrors.New(apperrors.CodeNotFound, "linked product not found")
			}
			return err
		}
		sellerID := product.SellerID

		oldSet, err := repo.ListCheckedParticipants(ctx, item.ID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "reading participant set")
		}
		oldShare := money.SplitEqual(item.TotalPriceCents, len(oldSet))

		if _, err := s.wallets.LockWallets(ctx, tx, append([]uuid.UUID{sellerID}, oldSet...)); err != nil {
			return err
		}
		for _, userID := range oldSet {
			if oldShare > 0 && userID != sellerID {
				if err := s.wallets.Credit(ctx, tx, wallet.EntryInput{
					UserID:      userID,
					AmountCents: oldShare,
					Type:        enums.TransactionTypeRefund,
					ProductID:   &item.ProductID,
					Description: fmt.Sprintf("item removed, share refund: %s", item.Name),
				}); err != nil {
					return err
				}
				if err := s.wallets.Debit(ctx, tx, wallet.EntryInput{
					UserID:      sellerID,
					AmountCents: oldShare,
					Type:        enums.TransactionTypeRefund,
					ProductID:   &item.ProductID,
					Description: fmt.Sprintf("item removed, refund issued: %s", item.Name),
				}); err != nil {
					return err
				}
			}
			if err := s.inventory.Decrement(ctx, tx, userID, item.ProductID, 1); err != nil {
				return err
			}
		}

		if err := repo.DeleteParticipations(ctx, item.ID); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "deleting participations")
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "deleting shared item")
		}

		if err := s.audit.Record(ctx, tx, audit.RecordInput{
			HouseID:  item.HouseID,
			ActorID:  actor.UserID,
			Action:   enums.AuditActionItemDeleted,
			ItemName: item.Name,
			Details:  map[string]any{"refunded_participants": len(oldSet)},
		}); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemDeleted,
			AggregateType: enums.AggregateSharedItem,
			AggregateID:   item.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Version:       1,
			Data: payloads.ItemDeletedEvent{
				ItemID:   item.ID,
				ItemName: item.Name,
				HouseID:  item.HouseID,
			},
		})
	})
	if err != nil {
		if db.IsLockTimeout(err) {
			return apperrors.Wrap(apperrors.CodeConflict, err, "item deletion lost a lock race, retry")
		}
		return err
	}
	return nil
}

func (s *service) ListItems(ctx context.Context, actor authz.Actor, houseID uuid.UUID, cursorToken string, limit int) ([]ItemView, string, error) {
	if houseID == uuid.Nil {
		return nil, "", apperrors.New(apperrors.CodeValidation, "house id is required")
	}
	if err := s.authorizer.RequireMember(ctx, actor, houseID); err != nil {
		return nil, "", err
	}
	cursor, err := pagination.ParseCursor(cursorToken)
	if err != nil {
		return nil, "", apperrors.New(apperrors.CodeValidation, "invalid cursor")
	}
	limit = pagination.NormalizeLimit(limit)

	items, err := s.repo.ListItemsByHouse(ctx, houseID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInternal, err, "listing shared items")
	}
	next := ""
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		participations, err := s.repo.ListParticipations(ctx, item.ID)
		if err != nil {
			return nil, "", apperrors.Wrap(apperrors.CodeInternal, err, "listing participations")
		}
		checked := 0
		for _, p := range participations {
			if p.IsChecked {
				checked++
			}
		}
		views = append(views, ItemView{
			Item:         item,
			Participants: participations,
			ShareCents:   money.SplitEqual(item.TotalPriceCents, checked),
			CheckedCount: checked,
		})
	}
	return views, next, nil
}
