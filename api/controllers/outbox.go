package controllers

import (
	"net/http"

	"github.com/vendaslabs/orders-backend/api/responses"
	"github.com/vendaslabs/orders-backend/internal/relay"
	"github.com/vendaslabs/orders-backend/pkg/logger"
	"github.com/vendaslabs/orders-backend/pkg/pagination"
)

// OutboxFailed lists outbox entries that exhausted their delivery attempts.
// These require operator intervention before their effects happen.
func OutboxFailed(repo relay.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, total, err := repo.ListFailed(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagination.NewPageResult(entries, params, total))
	}
}
