package status

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoTrackingID means the gateway return URL carried no tracking id.
	// Fatal for that request; the user is sent back to ticket selection.
	ErrNoTrackingID = errors.New("payment: missing order tracking id")

	// ErrGatewayUnreachable covers transport failures and an open breaker.
	// Retryable on explicit user action.
	ErrGatewayUnreachable = errors.New("payment: gateway unreachable")

	// ErrStatusAmbiguous means the gateway answered without a recognized
	// success signature. Treated as a failed payment, never retried silently.
	ErrStatusAmbiguous = errors.New("payment: unrecognized transaction status")

	ErrPurchaseNotFound = errors.New("purchase: reference not found")

	// ErrCategoryAmbiguous means the materializer's fallback inference found
	// zero or several categories whose price divides the purchase total.
	ErrCategoryAmbiguous = errors.New("tickets: cannot resolve ticket category")
)

// StatusCodeCompleted is the gateway's numeric code for a settled payment.
// Success requires BOTH this code and the "Completed" status string.
const StatusCodeCompleted = 1

// PaymentStatusCompleted is the only status string accepted as success.
const PaymentStatusCompleted = "Completed"

// PaymentStatus is the provider-side view of a transaction, parsed once at
// the gateway boundary into typed values.
type PaymentStatus struct {
	Success           bool            `json:"success"`
	PaymentStatus     string          `json:"payment_status"`
	StatusCode        int             `json:"status_code"`
	Description       string          `json:"description"`
	ConfirmationCode  string          `json:"confirmation_code"`
	MerchantReference string          `json:"merchant_reference"`
	OrderTrackingID   string          `json:"order_tracking_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	PaymentMethod     string          `json:"payment_method"`
	PaymentAccount    string          `json:"payment_account"`
}

// Completed reports whether the record carries the exact success signature.
func (p *PaymentStatus) Completed() bool {
	return p.PaymentStatus == PaymentStatusCompleted && p.StatusCode == StatusCodeCompleted
}
