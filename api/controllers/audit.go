package controllers

import (
	"net/http"

	"github.com/communahq/communa-backend/api/responses"
	"github.com/communahq/communa-backend/api/validators"
	auditsvc "github.com/communahq/communa-backend/internal/audit"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/logger"
)

// ListAuditTrail pages through a house's action log, newest first.
func ListAuditTrail(svc auditsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		houseID, err := pathUUID(r, "houseID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, next, err := svc.ListByHouse(r.Context(), actor, houseID, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, auditTrailResponse{Entries: entries, NextCursor: next})
	}
}

type auditTrailResponse struct {
	Entries    []models.ActionLog `json:"entries"`
	NextCursor string             `json:"next_cursor,omitempty"`
}
