package purchase

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/communahq/communa-backend/internal/inventory"
	"github.com/communahq/communa-backend/internal/wallet"
	"github.com/communahq/communa-backend/pkg/config"
	"github.com/communahq/communa-backend/pkg/db"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/enums"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
	"github.com/communahq/communa-backend/pkg/logger"
	"github.com/communahq/communa-backend/pkg/metrics"
	"github.com/communahq/communa-backend/pkg/outbox"
	"github.com/communahq/communa-backend/pkg/outbox/payloads"
	"github.com/communahq/communa-backend/pkg/pagination"
)

// txRunner runs a function inside one database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CheckoutResult reports the orders created, one per purchased cart line.
type CheckoutResult struct {
	OrderIDs   []uuid.UUID
	TotalCents int
}

// BuyOneResult reports the price paid for a single-unit direct buy.
type BuyOneResult struct {
	OrderID        uuid.UUID
	UnitPriceCents int
}

// Service is the purchase engine. Checkout and BuyOne run as one unit of
// work each: stock, money, inventory, order records and cart cleanup all
// commit together or not at all.
type Service interface {
	Checkout(ctx context.Context, buyerID uuid.UUID, productIDs []uuid.UUID) (*CheckoutResult, error)
	BuyOne(ctx context.Context, buyerID, productID uuid.UUID) (*BuyOneResult, error)

	AddToCart(ctx context.Context, buyerID, productID uuid.UUID, quantity int) error
	RemoveFromCart(ctx context.Context, buyerID, productID uuid.UUID) error
	ListCart(ctx context.Context, buyerID uuid.UUID) ([]models.CartItem, error)
	ListOrders(ctx context.Context, buyerID uuid.UUID, cursorToken string, limit int) ([]models.Order, string, error)
}

type service struct {
	repo      Repository
	wallets   wallet.Service
	inventory inventory.Tracker
	events    *outbox.Service
	tx        txRunner
	logg      *logger.Logger
	cfg       config.SettlementConfig
}

// NewService wires the purchase engine with its dependencies.
func NewService(
	repo Repository,
	wallets wallet.Service,
	tracker inventory.Tracker,
	events *outbox.Service,
	tx txRunner,
	logg *logger.Logger,
	cfg config.SettlementConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("inventory tracker required")
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
		repo:      repo,
		wallets:   wallets,
		inventory: tracker,
		events:    events,
		tx:        tx,
		logg:      logg,
		cfg:       cfg,
	}, nil
}

// Checkout purchases the buyer's cart lines for the selected products.
// Affordability is checked once, up front, against the full total; any stock
// shortfall on any line aborts the whole checkout.
func (s *service) Checkout(ctx context.Context, buyerID uuid.UUID, productIDs []uuid.UUID) (*CheckoutResult, error) {
	result, err := s.checkout(ctx, buyerID, productIDs)
	metrics.CheckoutsTotal.WithLabelValues(checkoutResult(err)).Inc()
	return result, err
}

func checkoutResult(err error) string {
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

func (s *service) checkout(ctx context.Context, buyerID uuid.UUID, productIDs []uuid.UUID) (*CheckoutResult, error) {
	if buyerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "buyer id is required")
	}
	ids := dedupe(productIDs)
	if len(ids) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "at least one product is required")
	}

	var result *CheckoutResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SetLockTimeout(ctx, s.cfg.LockTimeout); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "setting lock timeout")
		}

		lines, err := repo.ListCartLines(ctx, buyerID, ids)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading cart lines")
		}
		if len(lines) != len(ids) {
			return apperrors.New(apperrors.CodeNotFound, "cart line missing for a selected product")
		}

		products, err := repo.LockProducts(ctx, ids)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "locking products")
		}

		total := 0
		sellerIDs := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			product, ok := products[line.ProductID]
			if !ok {
				return apperrors.New(apperrors.CodeNotFound, "product no longer exists")
			}
			if !product.Status.Purchasable() {
				return apperrors.New(apperrors.CodeConflict,
					fmt.Sprintf("product %q is not available", product.Title))
			}
			if product.Quantity < line.Quantity {
				return apperrors.New(apperrors.CodeConflict,
					fmt.Sprintf("product %q has %d in stock, %d requested", product.Title, product.Quantity, line.Quantity))
			}
			if product.SellerID == buyerID {
				return apperrors.New(apperrors.CodeValidation, "cannot buy your own product")
			}
			total += product.PriceCents * line.Quantity
			sellerIDs = append(sellerIDs, product.SellerID)
		}

		wallets, err := s.wallets.LockWallets(ctx, tx, append([]uuid.UUID{buyerID}, sellerIDs...))
		if err != nil {
			return err
		}
		if wallets[buyerID].BalanceCents < total {
			return apperrors.New(apperrors.CodeInsufficientFunds, "buyer cannot afford this order").
				WithDetails(wallet.InsufficientFundsDetails{
					UserID:        buyerID,
					RequiredCents: total,
					BalanceCents:  wallets[buyerID].BalanceCents,
				})
		}

		orderIDs := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			product := products[line.ProductID]
			lineTotal := product.PriceCents * line.Quantity

			if err := repo.UpdateProductQuantity(ctx, product.ID, product.Quantity-line.Quantity); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "updating product stock")
			}
			if err := s.inventory.Decrement(ctx, tx, product.SellerID, product.ID, line.Quantity); err != nil {
				return err
			}
			if err := s.inventory.Increment(ctx, tx, buyerID, product.ID, line.Quantity); err != nil {
				return err
			}
			if err := s.wallets.Credit(ctx, tx, wallet.EntryInput{
				UserID:      product.SellerID,
				AmountCents: lineTotal,
				Type:        enums.TransactionTypeSale,
				ProductID:   &line.ProductID,
				Description: fmt.Sprintf("sale: %s x%d", product.Title, line.Quantity),
			}); err != nil {
				return err
			}

			order := &models.Order{
				ID:          uuid.New(),
				BuyerID:     buyerID,
				SellerID:    product.SellerID,
				ProductID:   product.ID,
				Quantity:    line.Quantity,
				AmountCents: lineTotal,
			}
			if err := repo.CreateOrder(ctx, order); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "creating order")
			}
			orderIDs = append(orderIDs, order.ID)

			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPlaced,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: buyerID},
				Version:       1,
				Data: payloads.OrderPlacedEvent{
					OrderID:      order.ID,
					BuyerID:      buyerID,
					SellerID:     product.SellerID,
					ProductID:    product.ID,
					ProductTitle: product.Title,
					Quantity:     line.Quantity,
					AmountCents:  lineTotal,
				},
			}); err != nil {
				return err
			}
		}

		// One debit for the full total, paired with a single PAYMENT row.
		if err := s.wallets.Debit(ctx, tx, wallet.EntryInput{
			UserID:      buyerID,
			AmountCents: total,
			Type:        enums.TransactionTypePayment,
			Description: fmt.Sprintf("checkout: %d items", len(lines)),
		}); err != nil {
			return err
		}

		if err := repo.DeleteCartLines(ctx, buyerID, ids); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "clearing cart lines")
		}

		result = &CheckoutResult{OrderIDs: orderIDs, TotalCents: total}
		return nil
	})
	if err != nil {
		if db.IsLockTimeout(err) {
			return nil, apperrors.Wrap(apperrors.CodeConflict, err, "checkout lost a lock race, retry")
		}
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"buyer_id":    buyerID.String(),
		"order_count": len(result.OrderIDs),
		"total_cents": result.TotalCents,
	})
	s.logg.Info(logCtx, "checkout completed")
	return result, nil
}

// BuyOne purchases exactly one unit of an active product, bypassing the cart.
func (s *service) BuyOne(ctx context.Context, buyerID, productID uuid.UUID) (*BuyOneResult, error) {
	if buyerID == uuid.Nil || productID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "buyer id and product id are required")
	}

	var result *BuyOneResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SetLockTimeout(ctx, s.cfg.LockTimeout); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "setting lock timeout")
		}

		products, err := repo.LockProducts(ctx, []uuid.UUID{productID})
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "locking product")
		}
		product, ok := products[productID]
		if !ok {
			return apperrors.New(apperrors.CodeNotFound, "product not found")
		}
		if !product.Status.Purchasable() {
			return apperrors.New(apperrors.CodeConflict, "product is not available")
		}
		if product.Quantity < 1 {
			return apperrors.New(apperrors.CodeConflict, "product is out of stock")
		}
		if product.SellerID == buyerID {
			return apperrors.New(apperrors.CodeValidation, "cannot buy your own product")
		}

		wallets, err := s.wallets.LockWallets(ctx, tx, []uuid.UUID{buyerID, product.SellerID})
		if err != nil {
			return err
		}
		if wallets[buyerID].BalanceCents < product.PriceCents {
			return apperrors.New(apperrors.CodeInsufficientFunds, "buyer cannot afford this product").
				WithDetails(wallet.InsufficientFundsDetails{
					UserID:        buyerID,
					RequiredCents: product.PriceCents,
					BalanceCents:  wallets[buyerID].BalanceCents,
				})
		}

		if err := repo.UpdateProductQuantity(ctx, product.ID, product.Quantity-1); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "updating product stock")
		}
		if err := s.inventory.Decrement(ctx, tx, product.SellerID, product.ID, 1); err != nil {
			return err
		}
		if err := s.inventory.Increment(ctx, tx, buyerID, product.ID, 1); err != nil {
			return err
		}
		if err := s.wallets.Debit(ctx, tx, wallet.EntryInput{
			UserID:      buyerID,
			AmountCents: product.PriceCents,
			Type:        enums.TransactionTypePayment,
			ProductID:   &product.ID,
			Description: fmt.Sprintf("purchase: %s", product.Title),
		}); err != nil {
			return err
		}
		if err := s.wallets.Credit(ctx, tx, wallet.EntryInput{
			UserID:      product.SellerID,
			AmountCents: product.PriceCents,
			Type:        enums.TransactionTypeSale,
			ProductID:   &product.ID,
			Description: fmt.Sprintf("sale: %s", product.Title),
		}); err != nil {
			return err
		}

		order := &models.Order{
			ID:          uuid.New(),
			BuyerID:     buyerID,
			SellerID:    product.SellerID,
			ProductID:   product.ID,
			Quantity:    1,
			AmountCents: product.PriceCents,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating order")
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: buyerID},
			Version:       1,
			Data: payloads.OrderPlacedEvent{
				OrderID:      order.ID,
				BuyerID:      buyerID,
				SellerID:     product.SellerID,
				ProductID:    product.ID,
				ProductTitle: product.Title,
				Quantity:     1,
				AmountCents:  product.PriceCents,
			},
		}); err != nil {
			return err
		}

		result = &BuyOneResult{OrderID: order.ID, UnitPriceCents: product.PriceCents}
		return nil
	})
	if err != nil {
		if db.IsLockTimeout(err) {
			return nil, apperrors.Wrap(apperrors.CodeConflict, err, "purchase lost a lock race, retry")
		}
		return nil, err
	}
	return result, nil
}

func (s *service) AddToCart(ctx context.Context, buyerID, productID uuid.UUID, quantity int) error {
	if buyerID == uuid.Nil || productID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "buyer id and product id are required")
	}
	if quantity <= 0 {
		return apperrors.New(apperrors.CodeValidation, "quantity must be positive")
	}
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return apperrors.New(apperrors.CodeNotFound, "product not found")
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading product")
	}
	if !product.Status.Purchasable() {
		return apperrors.New(apperrors.CodeConflict, "product is not available")
	}
	line := &models.CartItem{
		ID:        uuid.New(),
		UserID:    buyerID,
		ProductID: productID,
		Quantity:  quantity,
	}
	if err := s.repo.UpsertCartLine(ctx, line); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "saving cart line")
	}
	return nil
}

func (s *service) RemoveFromCart(ctx context.Context, buyerID, productID uuid.UUID) error {
	if buyerID == uuid.Nil || productID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "buyer id and product id are required")
	}
	if err := s.repo.DeleteCartLines(ctx, buyerID, []uuid.UUID{productID}); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "removing cart line")
	}
	return nil
}

func (s *service) ListCart(ctx context.Context, buyerID uuid.UUID) ([]models.CartItem, error) {
	if buyerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "buyer id is required")
	}
	lines, err := s.repo.ListCart(ctx, buyerID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing cart")
	}
	return lines, nil
}

func (s *service) ListOrders(ctx context.Context, buyerID uuid.UUID, cursorToken string, limit int) ([]models.Order, string, error) {
	if buyerID == uuid.Nil {
		return nil, "", apperrors.New(apperrors.CodeValidation, "buyer id is required")
	}
	cursor, err := pagination.ParseCursor(cursorToken)
	if err != nil {
		return nil, "", apperrors.New(apperrors.CodeValidation, "invalid cursor")
	}
	limit = pagination.NormalizeLimit(limit)

	orders, err := s.repo.ListOrdersByBuyer(ctx, buyerID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInternal, err, "listing orders")
	}
	next := ""
	if len(orders) > limit {
		orders = orders[:limit]
		last := orders[len(orders)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return orders, next, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
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
