package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/vendaslabs/orders-backend/api/middleware"
	"github.com/vendaslabs/orders-backend/api/responses"
	"github.com/vendaslabs/orders-backend/api/validators"
	"github.com/vendaslabs/orders-backend/internal/orchestrator"
	internalorders "github.com/vendaslabs/orders-backend/internal/orders"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
	"github.com/vendaslabs/orders-backend/pkg/enums"
	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
	"github.com/vendaslabs/orders-backend/pkg/logger"
)

type placeOrderLine struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type placeOrderRequest struct {
	Lines []placeOrderLine `json:"lines" validate:"required,min=1,dive"`
}

// OrderPlace accepts a new order for the authenticated customer.
func OrderPlace(orch orchestrator.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := middleware.UserIDFromContext(r.Context())
		if customerID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]orchestrator.RequestedLine, 0, len(req.Lines))
		for _, line := range req.Lines {
			lines = append(lines, orchestrator.RequestedLine{
				SKU:      line.SKU,
				Quantity: line.Quantity,
			})
		}

		order, err := orch.PlaceOrder(r.Context(), customerID, lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderGet returns one order. Customers only see their own orders; operators
// and admins see all.
func OrderGet(ledger internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := ledger.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeOrderAccess(r, order); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderList pages through orders. Customers are always scoped to their own
// orders; operators may filter by customer_id or list everything.
func OrderList(ledger internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var customerID *uuid.UUID
		if isOperator(r) {
			if raw := r.URL.Query().Get("customer_id"); raw != "" {
				parsed, err := uuid.Parse(raw)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer_id"))
					return
				}
				customerID = &parsed
			}
		} else {
			self := middleware.UserIDFromContext(r.Context())
			customerID = &self
		}

		page, err := ledger.List(r.Context(), customerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// OrderCancel cancels a pending or reserved order. Customers may cancel their
// own orders; the reservation is released asynchronously.
func OrderCancel(orch orchestrator.Service, ledger internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := ledger.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeOrderAccess(r, order); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cancelled, err := orch.CancelOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cancelled)
	}
}

// OrderConfirm moves a reserved order to confirmed.
func OrderConfirm(orch orchestrator.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(func(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
		return orch.ConfirmOrder(ctx, orderID)
	}, logg)
}

// OrderFulfill moves a confirmed order to fulfilled.
func OrderFulfill(orch orchestrator.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(func(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
		return orch.FulfillOrder(ctx, orderID)
	}, logg)
}

// OrderRefund refunds a confirmed or fulfilled order and restores stock.
func OrderRefund(orch orchestrator.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(func(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
		return orch.RefundOrder(ctx, orderID)
	}, logg)
}

func orderTransition(fn func(ctx context.Context, orderID uuid.UUID) (*models.Order, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := fn(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func isOperator(r *http.Request) bool {
	return middleware.HasRole(r.Context(), enums.RoleOperator) ||
		middleware.HasRole(r.Context(), enums.RoleAdmin)
}

func authorizeOrderAccess(r *http.Request, order *models.Order) error {
	if isOperator(r) {
		return nil
	}
	if order.CustomerID != middleware.UserIDFromContext(r.Context()) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return nil
}
