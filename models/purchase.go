package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// PaymentMethodFree marks purchases that short-circuited the gateway.
const PaymentMethodFree = "Free Ticket"

// Purchase is one buyer transaction, created in pending state at intake and
// moved exactly once to a terminal status after gateway confirmation.
type Purchase struct {
	ID            string          `json:"id"`
	Reference     string          `json:"reference"`
	BuyerName     string          `json:"buyer_name"`
	BuyerEmail    string          `json:"buyer_email"`
	BuyerPhone    string          `json:"buyer_phone"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	PaymentStatus string          `json:"payment_status"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Created       time.Time       `json:"created"`
}

// IsTerminal reports whether the purchase already reached paid or failed.
func (p *Purchase) IsTerminal() bool {
	return p.PaymentStatus == PaymentStatusPaid || p.PaymentStatus == PaymentStatusFailed
}

// IsFree reports whether the purchase owes nothing and can skip the gateway.
func (p *Purchase) IsFree() bool {
	return !p.TotalAmount.IsPositive()
}

// Attendee holds per-seat contact details collected at intake. Attendees are
// not persisted on their own; they travel in the manifest until tickets are
// materialized.
type Attendee struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Organization string `json:"organization,omitempty"`
}
