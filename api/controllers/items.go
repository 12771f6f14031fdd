package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/communahq/communa-backend/api/responses"
	"github.com/communahq/communa-backend/api/validators"
	"github.com/communahq/communa-backend/internal/settlement"
	"github.com/communahq/communa-backend/pkg/logger"
)

// SetParticipation toggles the caller (or another member, role permitting)
// on or off a shared item and settles the money movement in the same call.
func SetParticipation(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := pathUUID(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setParticipationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target := actor.UserID
		if payload.TargetUserID != nil {
			target = *payload.TargetUserID
		}

		result, err := svc.SetParticipation(r.Context(), actor, settlement.SetParticipationInput{
			ItemID:       itemID,
			TargetUserID: target,
			Checked:      payload.Checked,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, setParticipationResponse{
			ShareCents:       result.NewShareCents,
			ParticipantCount: result.ParticipantCount,
		})
	}
}

type setParticipationRequest struct {
	Checked      bool       `json:"checked"`
	TargetUserID *uuid.UUID `json:"target_user_id,omitempty"`
}

type setParticipationResponse struct {
	ShareCents       int `json:"share_cents"`
	ParticipantCount int `json:"participant_count"`
}

func CreateItem(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.CreateItem(r.Context(), actor, settlement.CreateItemInput{
			HouseID:         payload.HouseID,
			ProductID:       payload.ProductID,
			Name:            payload.Name,
			TotalPriceCents: payload.TotalPriceCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

type createItemRequest struct {
	HouseID         uuid.UUID `json:"house_id" validate:"required"`
	ProductID       uuid.UUID `json:"product_id" validate:"required"`
	Name            string    `json:"name" validate:"required,max=200"`
	TotalPriceCents int       `json:"total_price_cents" validate:"min=0"`
}

func DeleteItem(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := pathUUID(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteItem(r.Context(), actor, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func ListItems(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
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

		items, next, err := svc.ListItems(r.Context(), actor, houseID, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, listItemsResponse{Items: items, NextCursor: next})
	}
}

type listItemsResponse struct {
	Items      []settlement.ItemView `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}
