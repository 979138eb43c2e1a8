package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/vendaslabs/orders-backend/api/responses"
	"github.com/vendaslabs/orders-backend/api/validators"
	"github.com/vendaslabs/orders-backend/internal/catalog"
	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
	"github.com/vendaslabs/orders-backend/pkg/logger"
	"github.com/vendaslabs/orders-backend/pkg/pagination"
)

type upsertProductRequest struct {
	Name            string          `json:"name" validate:"required,min=1,max=200"`
	Attributes      map[string]any  `json:"attributes"`
	Price           decimal.Decimal `json:"price" validate:"required"`
	Available       int64           `json:"available" validate:"min=0"`
	ExpectedVersion int64           `json:"expected_version" validate:"min=0"`
}

// ProductUpsert creates or updates a catalog document. expected_version 0
// creates; any other value is a compare-and-set update.
func ProductUpsert(cat catalog.Adapter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sku := strings.TrimSpace(chi.URLParam(r, "sku"))
		if sku == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sku is required"))
			return
		}

		var req upsertProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := cat.Upsert(r.Context(), catalog.UpsertRequest{
			SKU:             sku,
			Name:            req.Name,
			Attributes:      req.Attributes,
			Price:           req.Price,
			Available:       req.Available,
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if req.ExpectedVersion == 0 {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, product)
	}
}

func ProductGet(cat catalog.Adapter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sku := strings.TrimSpace(chi.URLParam(r, "sku"))
		if sku == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sku is required"))
			return
		}

		product, err := cat.Get(r.Context(), sku)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductList(cat catalog.Adapter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := cat.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func parsePageParams(r *http.Request) (pagination.Params, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, 1_000_000)
	if err != nil {
		return pagination.Params{}, err
	}
	size, err := validators.ParseQueryInt(r, "size", pagination.DefaultSize, 1, pagination.MaxSize)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Page: page, Size: size}, nil
}
