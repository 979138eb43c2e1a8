package controllers

import (
	"net/http"

	"github.com/vendaslabs/orders-backend/api/responses"
	"github.com/vendaslabs/orders-backend/api/validators"
	"github.com/vendaslabs/orders-backend/internal/reports"
	"github.com/vendaslabs/orders-backend/pkg/logger"
)

func ReportCustomerSummary(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := parseUUIDParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.CustomerSummary(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func ReportTopProducts(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 50)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, err := svc.TopProducts(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func ReportDailySales(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := validators.ParseQueryDate(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryDate(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		days, err := svc.DailySales(r.Context(), from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, days)
	}
}
