package controllers

import (
	"net/http"

	"github.com/communahq/communa-backend/api/responses"
	"github.com/communahq/communa-backend/api/validators"
	"github.com/communahq/communa-backend/internal/wallet"
	"github.com/communahq/communa-backend/pkg/db/models"
	"github.com/communahq/communa-backend/pkg/logger"
)

func WalletBalance(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, balance)
	}
}

func WalletTransactions(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, next, err := svc.Transactions(r.Context(), actor.UserID, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, walletTransactionsResponse{Transactions: entries, NextCursor: next})
	}
}

type walletTransactionsResponse struct {
	Transactions []models.WalletTransaction `json:"transactions"`
	NextCursor   string                     `json:"next_cursor,omitempty"`
}

// AdminDeposit credits a user's wallet by email. Reserved for platform admins.
func AdminDeposit(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminDepositRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deposit(r.Context(), actor, wallet.DepositInput{
			TargetEmail: payload.Email,
			AmountCents: payload.AmountCents,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"status": "deposited"})
	}
}

type adminDepositRequest struct {
	Email       string `json:"email" validate:"required,email"`
	AmountCents int    `json:"amount_cents" validate:"required,min=1"`
}
