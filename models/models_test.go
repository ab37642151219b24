package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationPayload_EncodeDecode(t *testing.T) {
	payload := VerificationPayload{
		TicketNumber: "TIX-1756100000000-123456-T1-A1B2",
		Event:        "Investment Expo",
		AttendeeName: "Jane Doe",
		Category:     "VIP",
	}

	encoded, err := payload.Encode()
	require.NoError(t, err)
	assert.Contains(t, encoded, `"ticketNumber"`)
	assert.Contains(t, encoded, `"event"`)

	decoded, err := DecodeVerificationPayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload.TicketNumber, decoded.TicketNumber)
	assert.Equal(t, payload.Event, decoded.Event)
	assert.Equal(t, payload.AttendeeName, decoded.AttendeeName)
	assert.Equal(t, payload.Category, decoded.Category)
}

func TestVerificationPayload_OptionalFieldsOmitted(t *testing.T) {
	payload := VerificationPayload{
		TicketNumber: "TIX-1-000001-T1-FFFF",
		Event:        "Investment Expo",
	}

	encoded, err := payload.Encode()
	require.NoError(t, err)
	assert.NotContains(t, encoded, "attendeeName")
	assert.NotContains(t, encoded, "category")
}

func TestDecodeVerificationPayload_InvalidInput(t *testing.T) {
	_, err := DecodeVerificationPayload("not json at all")
	assert.Error(t, err)
}

func TestPurchase_IsTerminal(t *testing.T) {
	tests := []struct {
		status   string
		terminal bool
	}{
		{PaymentStatusPending, false},
		{PaymentStatusPaid, true},
		{PaymentStatusFailed, true},
		{"", false},
	}

	for _, tt := range tests {
		p := Purchase{PaymentStatus: tt.status}
		assert.Equal(t, tt.terminal, p.IsTerminal(), "status %q", tt.status)
	}
}

func TestPurchase_IsFree(t *testing.T) {
	free := Purchase{TotalAmount: decimal.Zero}
	assert.True(t, free.IsFree())

	paid := Purchase{TotalAmount: decimal.NewFromInt(50000)}
	assert.False(t, paid.IsFree())
}

func TestTicketCategory_IsFree(t *testing.T) {
	free := TicketCategory{Price: decimal.Zero}
	assert.True(t, free.IsFree())

	vip := TicketCategory{Price: decimal.NewFromInt(150000)}
	assert.False(t, vip.IsFree())
}

func TestTicketCategory_ValidAt(t *testing.T) {
	now := time.Now()

	t.Run("inactive category never valid", func(t *testing.T) {
		c := TicketCategory{IsActive: false}
		assert.False(t, c.ValidAt(now))
	})

	t.Run("open ended bounds", func(t *testing.T) {
		c := TicketCategory{IsActive: true}
		assert.True(t, c.ValidAt(now))
	})

	t.Run("before sales window", func(t *testing.T) {
		c := TicketCategory{
			IsActive:  true,
			ValidFrom: now.Add(time.Hour),
		}
		assert.False(t, c.ValidAt(now))
	})

	t.Run("after sales window", func(t *testing.T) {
		c := TicketCategory{
			IsActive:   true,
			ValidUntil: now.Add(-time.Hour),
		}
		assert.False(t, c.ValidAt(now))
	})

	t.Run("inside sales window", func(t *testing.T) {
		c := TicketCategory{
			IsActive:   true,
			ValidFrom:  now.Add(-time.Hour),
			ValidUntil: now.Add(time.Hour),
		}
		assert.True(t, c.ValidAt(now))
	})
}
