package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateSharedItem OutboxAggregateType = "shared_item"
	AggregateOrder      OutboxAggregateType = "order"
	AggregateWallet     OutboxAggregateType = "wallet"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateSharedItem,
	AggregateOrder,
	AggregateWallet,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventSettlementUpdated OutboxEventType = "settlement_updated"
	EventItemCreated       OutboxEventType = "item_created"
	EventItemDeleted       OutboxEventType = "item_deleted"
	EventOrderPlaced       OutboxEventType = "order_placed"
	EventWalletDeposited   OutboxEventType = "wallet_deposited"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSettlementUpdated,
	EventItemCreated,
	EventItemDeleted,
	EventOrderPlaced,
	EventWalletDeposited,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
