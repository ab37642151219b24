package services

import (
	"context"
	"fmt"
	"log/slog"

	"expo-tickets/internal/gateway"
	"expo-tickets/internal/status"
	"expo-tickets/models"
	"expo-tickets/monitoring"

	"github.com/google/uuid"
)

// OrchestratorService drives a purchase from intake-complete to a terminal
// payment status. It is the only component that talks to the gateway.
type OrchestratorService struct {
	store     Store
	gateway   gateway.Gateway
	publisher EventPublisher

	callbackURL string
	eventName   string
	logger      *slog.Logger
}

func NewOrchestratorService(store Store, gw gateway.Gateway, publisher EventPublisher, callbackURL, eventName string) *OrchestratorService {
	return &OrchestratorService{
		store:       store,
		gateway:     gw,
		publisher:   publisher,
		callbackURL: callbackURL,
		eventName:   eventName,
		logger:      slog.Default().With("service", "orchestrator"),
	}
}

// BeginResult tells the caller how the flow continues: straight to
// materialization (free or already paid) or via a gateway redirect.
type BeginResult struct {
	Reference       string `json:"reference"`
	Free            bool   `json:"free,omitempty"`
	AlreadyPaid     bool   `json:"already_paid,omitempty"`
	RedirectURL     string `json:"redirect_url,omitempty"`
	OrderTrackingID string `json:"order_tracking_id,omitempty"`
}

// Begin branches between the free short-circuit and the gateway redirect.
// Free purchases never touch the gateway.
func (s *OrchestratorService) Begin(ctx context.Context, reference string) (*BeginResult, error) {
	purchase, err := s.store.PurchaseByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if purchase.PaymentStatus == models.PaymentStatusPaid {
		return &BeginResult{Reference: reference, AlreadyPaid: true}, nil
	}

	if purchase.IsFree() {
		transactionID := fmt.Sprintf("FREE-%s", uuid.New().String())
		if err := s.store.UpdatePurchaseStatus(ctx, reference, models.PaymentStatusPaid, models.PaymentMethodFree, transactionID); err != nil {
			return nil, fmt.Errorf("free path: %w", err)
		}

		monitoring.PaymentOutcomes.WithLabelValues(models.PaymentStatusPaid).Inc()
		s.publisher.PublishPurchaseEvent(reference, map[string]any{
			"type":      "payment_success",
			"reference": reference,
			"method":    models.PaymentMethodFree,
		})

		return &BeginResult{Reference: reference, Free: true}, nil
	}

	if s.gateway == nil {
		return nil, fmt.Errorf("%w: no payment gateway configured", status.ErrGatewayUnreachable)
	}

	order := &gateway.OrderRequest{
		Reference:   reference,
		Amount:      purchase.TotalAmount,
		Currency:    purchase.Currency,
		Description: fmt.Sprintf("%s tickets (%s)", s.eventName, reference),
		CallbackURL: s.callbackURL,
		BuyerName:   purchase.BuyerName,
		BuyerEmail:  purchase.BuyerEmail,
		BuyerPhone:  purchase.BuyerPhone,
	}

	resp, err := s.gateway.SubmitOrder(ctx, order)
	if err != nil {
		monitoring.GatewayRequests.WithLabelValues("submit_order", "error").Inc()
		return nil, fmt.Errorf("%w: %v", status.ErrGatewayUnreachable, err)
	}
	monitoring.GatewayRequests.WithLabelValues("submit_order", "ok").Inc()

	s.publisher.PublishPurchaseEvent(reference, map[string]any{
		"type":              "payment_pending",
		"reference":         reference,
		"order_tracking_id": resp.OrderTrackingID,
	})

	return &BeginResult{
		Reference:       reference,
		RedirectURL:     resp.RedirectURL,
		OrderTrackingID: resp.OrderTrackingID,
	}, nil
}

// ReturnResult is the terminal user-visible outcome of a return redirect.
type ReturnResult struct {
	Reference        string `json:"reference"`
	Paid             bool   `json:"paid"`
	PaymentMethod    string `json:"payment_method,omitempty"`
	TransactionID    string `json:"transaction_id,omitempty"`
	ConfirmationCode string `json:"confirmation_code,omitempty"`
	Description      string `json:"description,omitempty"`
}

// HandleReturn runs on every hit of the gateway return URL, which is a fresh
// page load that may be replayed by refreshes or duplicate redirects. It
// re-queries the gateway each time and re-applies the same terminal status,
// so replays converge on the same result.
func (s *OrchestratorService) HandleReturn(ctx context.Context, trackingID, merchantReference string) (*ReturnResult, error) {
	if trackingID == "" {
		return nil, status.ErrNoTrackingID
	}
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: no payment gateway configured", status.ErrGatewayUnreachable)
	}

	record, err := s.gateway.TransactionStatus(ctx, trackingID)
	if err != nil {
		monitoring.GatewayRequests.WithLabelValues("transaction_status", "error").Inc()
		return nil, fmt.Errorf("%w: %v", status.ErrGatewayUnreachable, err)
	}
	monitoring.GatewayRequests.WithLabelValues("transaction_status", "ok").Inc()

	if record.PaymentStatus == "" {
		return nil, status.ErrStatusAmbiguous
	}

	reference := record.MerchantReference
	if reference == "" {
		reference = merchantReference
	}

	return s.reconcile(ctx, reference, record), nil
}

// ReconcileNotification feeds IPN pushes through the same reconcile routine
// as return redirects.
func (s *OrchestratorService) ReconcileNotification(ctx context.Context, record *status.PaymentStatus) {
	if record == nil || record.MerchantReference == "" {
		return
	}
	s.reconcile(ctx, record.MerchantReference, record)
}

// reconcile applies a gateway status record to the purchase row. The update
// is eager but non-fatal: the gateway owns the authoritative state and every
// downstream step re-derives from a fresh purchase lookup.
func (s *OrchestratorService) reconcile(ctx context.Context, reference string, record *status.PaymentStatus) *ReturnResult {
	result := &ReturnResult{
		Reference:        reference,
		ConfirmationCode: record.ConfirmationCode,
		Description:      record.Description,
	}

	if record.Completed() {
		result.Paid = true
		result.PaymentMethod = record.PaymentMethod
		result.TransactionID = record.OrderTrackingID

		if err := s.store.UpdatePurchaseStatus(ctx, reference, models.PaymentStatusPaid, record.PaymentMethod, record.OrderTrackingID); err != nil {
			s.logger.Error("purchase update after confirmed payment failed",
				"reference", reference, "err", err)
		} else {
			monitoring.PaymentOutcomes.WithLabelValues(models.PaymentStatusPaid).Inc()
		}

		s.publisher.PublishPurchaseEvent(reference, map[string]any{
			"type":      "payment_success",
			"reference": reference,
			"method":    record.PaymentMethod,
		})
		return result
	}

	// Gateway answered without the success signature: shown as failed, no
	// automatic retry. The purchase row is only moved to failed while it is
	// still pending and the gateway state is itself terminal, so a paid row
	// is never demoted and a provider-side "Pending" keeps the row open for
	// a later IPN.
	purchase, err := s.store.PurchaseByReference(ctx, reference)
	if err == nil && purchase.PaymentStatus == models.PaymentStatusPending && record.PaymentStatus != "Pending" {
		if err := s.store.UpdatePurchaseStatus(ctx, reference, models.PaymentStatusFailed, record.PaymentMethod, record.OrderTrackingID); err != nil {
			s.logger.Error("purchase update after failed payment failed",
				"reference", reference, "err", err)
		} else {
			monitoring.PaymentOutcomes.WithLabelValues(models.PaymentStatusFailed).Inc()
		}
	}

	s.publisher.PublishPurchaseEvent(reference, map[string]any{
		"type":      "payment_failed",
		"reference": reference,
		"status":    record.PaymentStatus,
	})
	return result
}
