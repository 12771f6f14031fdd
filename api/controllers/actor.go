package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/communahq/communa-backend/api/middleware"
	"github.com/communahq/communa-backend/internal/authz"
	"github.com/communahq/communa-backend/pkg/enums"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
)

// actorFromRequest rebuilds the authenticated actor from the context the auth
// middleware seeded.
func actorFromRequest(r *http.Request) (authz.Actor, error) {
	rawID := middleware.UserIDFromContext(r.Context())
	if rawID == "" {
		return authz.Actor{}, apperrors.New(apperrors.CodeUnauthorized, "missing credentials")
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return authz.Actor{}, apperrors.Wrap(apperrors.CodeUnauthorized, err, "invalid user id")
	}
	role, err := enums.ParseMemberRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return authz.Actor{}, apperrors.Wrap(apperrors.CodeUnauthorized, err, "invalid role")
	}
	return authz.Actor{UserID: userID, Role: role}, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
