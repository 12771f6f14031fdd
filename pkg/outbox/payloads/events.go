// Package payloads defines the Data shapes carried inside outbox event
// envelopes. Consumers (the notifier worker, external services) decode
// against these types, so field changes are wire-format changes.
package payloads

import (
	"github.com/google/uuid"
)

// SettlementUpdatedEvent is emitted whenever a shared-item participation
// toggle settles. Share amounts are the per-head split after the toggle.
type SettlementUpdatedEvent struct {
	ItemID       uuid.UUID   `json:"item_id"`
	ItemName     string      `json:"item_name"`
	HouseID      uuid.UUID   `json:"house_id"`
	TargetUserID uuid.UUID   `json:"target_user_id"`
	Joined       bool        `json:"joined"`
	ShareCents   int         `json:"share_cents"`
	Participants []uuid.UUID `json:"participants"`
	TotalCents   int         `json:"total_cents"`
	SellerUserID uuid.UUID   `json:"seller_user_id"`
}

type ItemCreatedEvent struct {
	ItemID     uuid.UUID `json:"item_id"`
	ItemName   string    `json:"item_name"`
	HouseID    uuid.UUID `json:"house_id"`
	TotalCents int       `json:"total_cents"`
	CreatedBy  uuid.UUID `json:"created_by"`
}

type ItemDeletedEvent struct {
	ItemID   uuid.UUID `json:"item_id"`
	ItemName string    `json:"item_name"`
	HouseID  uuid.UUID `json:"house_id"`
}

// OrderPlacedEvent covers one order line; a multi-line checkout emits one
// event per line so each seller gets an independent notification.
type OrderPlacedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	BuyerID      uuid.UUID `json:"buyer_id"`
	SellerID     uuid.UUID `json:"seller_id"`
	ProductID    uuid.UUID `json:"product_id"`
	ProductTitle string    `json:"product_title"`
	Quantity     int       `json:"quantity"`
	AmountCents  int       `json:"amount_cents"`
}

type WalletDepositedEvent struct {
	UserID      uuid.UUID `json:"user_id"`
	AmountCents int       `json:"amount_cents"`
	DepositedBy uuid.UUID `json:"deposited_by"`
}
