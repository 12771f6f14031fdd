// Package authz centralizes the capability checks the settlement and wallet
// surfaces share, so each service states intent ("can this actor toggle for
// that user") instead of re-deriving role rules inline.
package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/communahq/communa-backend/internal/houses"
	"github.com/communahq/communa-backend/pkg/db"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/enums"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
)

// Actor is the authenticated caller as carried by the request context.
type Actor struct {
	UserID uuid.UUID
	Role   enums.MemberRole
}

// Checker answers capability questions for an actor.
type Checker interface {
	// CanToggleParticipation allows the target themselves, a house
	// owner/admin of the item's house, or a global admin.
	CanToggleParticipation(ctx context.Context, actor Actor, houseID, targetUserID uuid.UUID) error
	// CanManageItems allows house owners/admins and global admins.
	CanManageItems(ctx context.Context, actor Actor, houseID uuid.UUID) error
	// RequireMember allows any house member (or a global admin).
	RequireMember(ctx context.Context, actor Actor, houseID uuid.UUID) error
	// CanViewAudit allows house members; the audit trail is house-internal.
	CanViewAudit(ctx context.Context, actor Actor, houseID uuid.UUID) error
	// CanDeposit allows global admins only.
	CanDeposit(ctx context.Context, actor Actor) error
}

type checker struct {
	houses houses.Repository
}

// NewChecker wires a Checker over house membership data.
func NewChecker(houseRepo houses.Repository) (Checker, error) {
	if houseRepo == nil {
		return nil, fmt.Errorf("house repository required")
	}
	return &checker{houses: houseRepo}, nil
}

func (c *checker) isGlobalAdmin(actor Actor) bool {
	return actor.Role == enums.MemberRoleAdmin
}

// membership loads the actor's row for the house, or nil when the actor is
// not a member.
func (c *checker) membership(ctx context.Context, actor Actor, houseID uuid.UUID) (*models.HouseMembership, error) {
	membership, err := c.houses.FindMembership(ctx, houseID, actor.UserID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading house membership")
	}
	return membership, nil
}

func (c *checker) CanToggleParticipation(ctx context.Context, actor Actor, houseID, targetUserID uuid.UUID) error {
	if c.isGlobalAdmin(actor) {
		return nil
	}
	membership, err := c.membership(ctx, actor, houseID)
	if err != nil {
		return err
	}
	if membership == nil {
		return apperrors.New(apperrors.CodeForbidden, "not a member of this house")
	}
	if actor.UserID == targetUserID {
		return nil
	}
	if houses.IsOwnerOrAdmin(membership) {
		return nil
	}
	return apperrors.New(apperrors.CodeForbidden, "only house owners may toggle for other members")
}

func (c *checker) CanManageItems(ctx context.Context, actor Actor, houseID uuid.UUID) error {
	if c.isGlobalAdmin(actor) {
		return nil
	}
	membership, err := c.membership(ctx, actor, houseID)
	if err != nil {
		return err
	}
	if membership == nil {
		return apperrors.New(apperrors.CodeForbidden, "not a member of this house")
	}
	if houses.IsOwnerOrAdmin(membership) {
		return nil
	}
	return apperrors.New(apperrors.CodeForbidden, "only house owners may manage shared items")
}

func (c *checker) RequireMember(ctx context.Context, actor Actor, houseID uuid.UUID) error {
	if c.isGlobalAdmin(actor) {
		return nil
	}
	membership, err := c.membership(ctx, actor, houseID)
	if err != nil {
		return err
	}
	if membership == nil {
		return apperrors.New(apperrors.CodeForbidden, "not a member of this house")
	}
	return nil
}

func (c *checker) CanViewAudit(ctx context.Context, actor Actor, houseID uuid.UUID) error {
	return c.RequireMember(ctx, actor, houseID)
}

func (c *checker) CanDeposit(_ context.Context, actor Actor) error {
	if c.isGlobalAdmin(actor) {
		return nil
	}
	return apperrors.New(apperrors.CodeForbidden, "deposits require platform admin")
}
