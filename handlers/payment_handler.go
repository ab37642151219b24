package handlers

import (
	"errors"
	"net/http"

	"expo-tickets/internal/status"
	"expo-tickets/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type PaymentHandler struct {
	app          *pocketbase.PocketBase
	orchestrator *services.OrchestratorService
}

func NewPaymentHandler(app *pocketbase.PocketBase, orchestrator *services.OrchestratorService) *PaymentHandler {
	return &PaymentHandler{
		app:          app,
		orchestrator: orchestrator,
	}
}

// InitiatePayment - branch between the free path and the gateway redirect
func (h *PaymentHandler) InitiatePayment(e *core.RequestEvent) error {
	reference := e.Request.PathValue("reference")
	ctx := e.Request.Context()

	result, err := h.orchestrator.Begin(ctx, reference)
	if err != nil {
		if errors.Is(err, status.ErrPurchaseNotFound) {
			return apis.NewNotFoundError("Purchase not found", err)
		}
		if errors.Is(err, status.ErrGatewayUnreachable) {
			return apis.NewApiError(http.StatusBadGateway, "Payment service unavailable, please retry", err)
		}
		return apis.NewBadRequestError("Could not start payment", err)
	}

	if result.Free || result.AlreadyPaid {
		return e.JSON(http.StatusOK, map[string]any{
			"reference": result.Reference,
			"status":    "paid",
			"next":      ticketsPath(result.Reference),
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"reference":         result.Reference,
		"redirect_url":      result.RedirectURL,
		"order_tracking_id": result.OrderTrackingID,
	})
}

// PaymentCallback - the gateway's return redirect lands here as a fresh
// page load; it may be replayed any number of times
func (h *PaymentHandler) PaymentCallback(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	trackingID := q.Get("OrderTrackingId")
	merchantRef := q.Get("OrderMerchantReference")

	ctx := e.Request.Context()

	result, err := h.orchestrator.HandleReturn(ctx, trackingID, merchantRef)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrNoTrackingID):
			return e.JSON(http.StatusBadRequest, map[string]any{
				"error": "Missing payment tracking reference",
				"next":  "/api/categories",
			})
		case errors.Is(err, status.ErrGatewayUnreachable):
			return e.JSON(http.StatusBadGateway, map[string]any{
				"error": "Could not verify payment, please retry",
				"retry": callbackPath(trackingID, merchantRef),
			})
		case errors.Is(err, status.ErrStatusAmbiguous):
			return e.JSON(http.StatusOK, map[string]any{
				"reference": merchantRef,
				"status":    "failed",
				"next":      payPath(merchantRef),
			})
		default:
			return apis.NewApiError(http.StatusInternalServerError, "Payment verification failed", err)
		}
	}

	if !result.Paid {
		return e.JSON(http.StatusOK, map[string]any{
			"reference":   result.Reference,
			"status":      "failed",
			"description": result.Description,
			"next":        payPath(result.Reference),
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"reference":         result.Reference,
		"status":            "paid",
		"payment_method":    result.PaymentMethod,
		"transaction_id":    result.TransactionID,
		"confirmation_code": result.ConfirmationCode,
		"next":              ticketsPath(result.Reference),
	})
}

func ticketsPath(reference string) string {
	return "/api/purchases/" + reference + "/tickets"
}

func payPath(reference string) string {
	return "/api/purchases/" + reference + "/pay"
}

func callbackPath(trackingID, merchantRef string) string {
	return "/api/payments/callback?OrderTrackingId=" + trackingID + "&OrderMerchantReference=" + merchantRef
}
