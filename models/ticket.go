package models

import (
	"encoding/json"
	"time"
)

// Ticket is one admission record, created once per seat of a paid purchase.
type Ticket struct {
	ID           string    `json:"id"`
	TicketNumber string    `json:"ticket_number"`
	AttendeeName string    `json:"attendee_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Organization string    `json:"organization,omitempty"`
	QRCodeData   string    `json:"qr_code_data"`
	IsCheckedIn  bool      `json:"is_checked_in"`
	PurchaseID   string    `json:"purchase"`
	CategoryID   string    `json:"ticket_category"`
	Created      time.Time `json:"created"`
}

// VerificationPayload is the document encoded into a ticket's scannable
// barcode. It is never stored as an image; scanners decode it back to JSON.
type VerificationPayload struct {
	TicketNumber string `json:"ticketNumber"`
	Event        string `json:"event"`
	AttendeeName string `json:"attendeeName,omitempty"`
	Category     string `json:"category,omitempty"`
}

// Encode serializes the payload to the string embedded in the barcode.
func (v *VerificationPayload) Encode() (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeVerificationPayload parses a scanned barcode string.
func DecodeVerificationPayload(data string) (*VerificationPayload, error) {
	var v VerificationPayload
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, err
	}
	return &v, nil
}
