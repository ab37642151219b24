package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketCategory is a price tier for admission. Categories are managed by
// CMS administrators and are read-only to this service.
type TicketCategory struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	ValidFrom   time.Time       `json:"valid_from"`
	ValidUntil  time.Time       `json:"valid_until"`
	MaxPerOrder int             `json:"max_per_order"`
	IsActive    bool            `json:"is_active"`
	IsFeatured  bool            `json:"is_featured"`
}

// IsFree reports whether the category sells at zero price.
func (c *TicketCategory) IsFree() bool {
	return !c.Price.IsPositive()
}

// ValidAt reports whether the category can be sold at the given time.
// A zero validity bound is treated as open-ended.
func (c *TicketCategory) ValidAt(t time.Time) bool {
	if !c.IsActive {
		return false
	}
	if !c.ValidFrom.IsZero() && t.Before(c.ValidFrom) {
		return false
	}
	if !c.ValidUntil.IsZero() && t.After(c.ValidUntil) {
		return false
	}
	return true
}
