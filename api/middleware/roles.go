package middleware

import (
	"net/http"

	"github.com/communahq/communa-backend/api/responses"
	apperrors "github.com/communahq/communa-backend/pkg/errors"
	"github.com/communahq/communa-backend/pkg/logger"
)

func RequireRole(role string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != role {
				responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeForbidden, "role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
