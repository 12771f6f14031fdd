package enums

// AuditAction identifies what kind of administrative or settlement action a
// house action log row records.
type AuditAction string

const (
	AuditActionParticipationToggled AuditAction = "participation_toggled"
	AuditActionItemCreated          AuditAction = "item_created"
	AuditActionItemDeleted          AuditAction = "item_deleted"
	AuditActionDepositMade          AuditAction = "deposit_made"
)

var validAuditActions = []AuditAction{
	AuditActionParticipationToggled,
	AuditActionItemCreated,
	AuditActionItemDeleted,
	AuditActionDepositMade,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}
