package enums

// ProductStatus tracks a listing through moderation and retirement.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusPending  ProductStatus = "pending"
	ProductStatusRejected ProductStatus = "rejected"
	ProductStatusDeleted  ProductStatus = "deleted"
	ProductStatusInactive ProductStatus = "inactive"
)

var validProductStatuses = []ProductStatus{
	ProductStatusActive,
	ProductStatusPending,
	ProductStatusRejected,
	ProductStatusDeleted,
	ProductStatusInactive,
}

// String implements fmt.Stringer.
func (p ProductStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductStatus.
func (p ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// Purchasable reports whether buyers may acquire units of a product in this state.
func (p ProductStatus) Purchasable() bool {
	return p == ProductStatusActive
}
