package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/communahq/communa-backend/pkg/db"
	"github.com/communahq/communa-backend/pkg/db/models"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
	"github.com/communahq/communa-backend/pkg/pagination"
)

// Service is the read/ack surface for in-app notifications. Rows are created
// by the Consumer; users can only list and acknowledge their own.
type Service interface {
	ListByUser(ctx context.Context, userID uuid.UUID, cursorToken string, limit int) ([]models.Notification, string, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, cursorToken string, limit int) ([]models.Notification, string, error) {
	if userID == uuid.Nil {
		return nil, "", apperrors.New(apperrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(cursorToken)
	if err != nil {
		return nil, "", apperrors.New(apperrors.CodeValidation, "invalid cursor")
	}
	limit = pagination.NormalizeLimit(limit)

	rows, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInternal, err, "listing notifications")
	}
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, apperrors.New(apperrors.CodeValidation, "user id is required")
	}
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "counting unread notifications")
	}
	return count, nil
}

// MarkRead acknowledges one notification. Other users' notifications read as
// not found rather than forbidden, so ids cannot be probed.
func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil || notificationID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "user id and notification id are required")
	}
	row, err := s.repo.FindByID(ctx, notificationID)
	if err != nil {
		if db.IsNotFound(err) {
			return apperrors.New(apperrors.CodeNotFound, "notification not found")
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading notification")
	}
	if row.UserID != userID {
		return apperrors.New(apperrors.CodeNotFound, "notification not found")
	}
	if err := s.repo.MarkRead(ctx, notificationID, time.Now()); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "marking notification read")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "user id is required")
	}
	if err := s.repo.MarkAllRead(ctx, userID, time.Now()); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "marking notifications read")
	}
	return nil
}
