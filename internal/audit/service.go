package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/communahq/communa-backend/internal/authz"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/enums"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
	"github.com/communahq/communa-backend/pkg/pagination"
)

// RecordInput captures one audit trail entry.
type RecordInput struct {
	HouseID      uuid.UUID
	ActorID      uuid.UUID
	Action       enums.AuditAction
	ItemName     string
	TargetUserID *uuid.UUID
	ShareCents   int
	Details      any
}

// Service writes and reads the house audit trail. Record is
// transaction-scoped so the audit row commits atomically with the action it
// describes.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) error
	ListByHouse(ctx context.Context, actor authz.Actor, houseID uuid.UUID, cursorToken string, limit int) ([]models.ActionLog, string, error)
}

type service struct {
	repo       Repository
	authorizer authz.Checker
}

// NewService wires the audit trail with its dependencies.
func NewService(repo Repository, authorizer authz.Checker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer required")
	}
	return &service{repo: repo, authorizer: authorizer}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) error {
	if tx == nil {
		return apperrors.New(apperrors.CodeInternal, "audit rows require a transaction")
	}
	if input.HouseID == uuid.Nil || input.ActorID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "house id and actor id are required")
	}
	if !input.Action.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid audit action %q", input.Action))
	}

	var details json.RawMessage
	if input.Details != nil {
		encoded, err := json.Marshal(input.Details)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "encoding audit details")
		}
		details = encoded
	}

	row := &models.ActionLog{
		ID:           uuid.New(),
		HouseID:      input.HouseID,
		UserID:       input.ActorID,
		Action:       input.Action,
		ItemName:     input.ItemName,
		TargetUserID: input.TargetUserID,
		ShareCents:   input.ShareCents,
		Details:      details,
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "appending audit row")
	}
	return nil
}

func (s *service) ListByHouse(ctx context.Context, actor authz.Actor, houseID uuid.UUID, cursorToken string, limit int) ([]models.ActionLog, string, error) {
	if houseID == uuid.Nil {
		return nil, "", apperrors.New(apperrors.CodeValidation, "house id is required")
	}
	if err := s.authorizer.CanViewAudit(ctx, actor, houseID); err != nil {
		return nil, "", err
	}
	cursor, err := pagination.ParseCursor(cursorToken)
	if err != nil {
		return nil, "", apperrors.New(apperrors.CodeValidation, "invalid cursor")
	}
	limit = pagination.NormalizeLimit(limit)

	rows, err := s.repo.ListByHouse(ctx, houseID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInternal, err, "listing audit trail")
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}
