package store

import (
	"context"
	"fmt"

	"expo-tickets/internal/status"
	"expo-tickets/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

// RecordStore is the CMS-side persistence layer: purchases and tickets live
// in PocketBase collections, ticket categories are administrator-managed and
// read-only here.
type RecordStore struct {
	app core.App
}

func NewRecordStore(app core.App) *RecordStore {
	return &RecordStore{app: app}
}

// CategoryByID fetches one ticket category.
func (s *RecordStore) CategoryByID(ctx context.Context, id string) (*models.TicketCategory, error) {
	record, err := s.app.FindRecordById("ticket_categories", id)
	if err != nil {
		return nil, fmt.Errorf("category %s: %w", id, err)
	}
	return categoryFromRecord(record), nil
}

// ActiveCategories lists categories currently offered for sale.
func (s *RecordStore) ActiveCategories(ctx context.Context) ([]*models.TicketCategory, error) {
	records, err := s.app.FindRecordsByFilter(
		"ticket_categories",
		"is_active = true",
		"-is_featured",
		0,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("active categories: %w", err)
	}

	categories := make([]*models.TicketCategory, 0, len(records))
	for _, r := range records {
		categories = append(categories, categoryFromRecord(r))
	}
	return categories, nil
}

// CreatePurchase persists a new purchase row and fills in its generated id.
func (s *RecordStore) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	collection, err := s.app.FindCollectionByNameOrId("purchases")
	if err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("reference", p.Reference)
	record.Set("buyer_name", p.BuyerName)
	record.Set("buyer_email", p.BuyerEmail)
	record.Set("buyer_phone", p.BuyerPhone)
	record.Set("total_amount", p.TotalAmount.InexactFloat64())
	record.Set("currency", p.Currency)
	record.Set("payment_status", p.PaymentStatus)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("create purchase %s: %w", p.Reference, err)
	}

	p.ID = record.Id
	p.Created = record.GetDateTime("created").Time()
	return nil
}

// PurchaseByReference resolves a purchase by its reference number.
func (s *RecordStore) PurchaseByReference(ctx context.Context, reference string) (*models.Purchase, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"purchases",
		"reference = {:reference}",
		dbx.Params{"reference": reference},
	)
	if err != nil {
		return nil, status.ErrPurchaseNotFound
	}
	return purchaseFromRecord(record), nil
}

// UpdatePurchaseStatus moves a purchase to a terminal payment status and
// records how it was paid. Overwriting with identical values is a no-op, so
// redirect replays are safe.
func (s *RecordStore) UpdatePurchaseStatus(ctx context.Context, reference, paymentStatus, method, transactionID string) error {
	record, err := s.app.FindFirstRecordByFilter(
		"purchases",
		"reference = {:reference}",
		dbx.Params{"reference": reference},
	)
	if err != nil {
		return status.ErrPurchaseNotFound
	}

	record.Set("payment_status", paymentStatus)
	if method != "" {
		record.Set("payment_method", method)
	}
	if transactionID != "" {
		record.Set("transaction_id", transactionID)
	}

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("update purchase %s: %w", reference, err)
	}
	return nil
}

// TicketsByReference lists the tickets already materialized for a purchase.
func (s *RecordStore) TicketsByReference(ctx context.Context, reference string) ([]*models.Ticket, error) {
	records, err := s.app.FindRecordsByFilter(
		"tickets",
		"purchase.reference = {:reference}",
		"ticket_number",
		0,
		0,
		dbx.Params{"reference": reference},
	)
	if err != nil {
		return nil, fmt.Errorf("tickets for %s: %w", reference, err)
	}

	tickets := make([]*models.Ticket, 0, len(records))
	for _, r := range records {
		tickets = append(tickets, ticketFromRecord(r))
	}
	return tickets, nil
}

// CreateTicket persists one ticket row and fills in its generated id.
func (s *RecordStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	collection, err := s.app.FindCollectionByNameOrId("tickets")
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("ticket_number", t.TicketNumber)
	record.Set("attendee_name", t.AttendeeName)
	record.Set("email", t.Email)
	record.Set("phone", t.Phone)
	record.Set("organization", t.Organization)
	record.Set("qr_code_data", t.QRCodeData)
	record.Set("is_checked_in", t.IsCheckedIn)
	record.Set("purchase", t.PurchaseID)
	record.Set("ticket_category", t.CategoryID)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("create ticket %s: %w", t.TicketNumber, err)
	}

	t.ID = record.Id
	t.Created = record.GetDateTime("created").Time()
	return nil
}

// TicketByID fetches one ticket.
func (s *RecordStore) TicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	record, err := s.app.FindRecordById("tickets", id)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, err)
	}
	return ticketFromRecord(record), nil
}

func categoryFromRecord(r *core.Record) *models.TicketCategory {
	return &models.TicketCategory{
		ID:          r.Id,
		Name:        r.GetString("name"),
		Price:       decimal.NewFromFloat(r.GetFloat("price")),
		Currency:    r.GetString("currency"),
		ValidFrom:   r.GetDateTime("valid_from").Time(),
		ValidUntil:  r.GetDateTime("valid_until").Time(),
		MaxPerOrder: r.GetInt("max_per_order"),
		IsActive:    r.GetBool("is_active"),
		IsFeatured:  r.GetBool("is_featured"),
	}
}

func purchaseFromRecord(r *core.Record) *models.Purchase {
	return &models.Purchase{
		ID:            r.Id,
		Reference:     r.GetString("reference"),
		BuyerName:     r.GetString("buyer_name"),
		BuyerEmail:    r.GetString("buyer_email"),
		BuyerPhone:    r.GetString("buyer_phone"),
		TotalAmount:   decimal.NewFromFloat(r.GetFloat("total_amount")),
		Currency:      r.GetString("currency"),
		PaymentStatus: r.GetString("payment_status"),
		PaymentMethod: r.GetString("payment_method"),
		TransactionID: r.GetString("transaction_id"),
		Created:       r.GetDateTime("created").Time(),
	}
}

func ticketFromRecord(r *core.Record) *models.Ticket {
	return &models.Ticket{
		ID:           r.Id,
		TicketNumber: r.GetString("ticket_number"),
		AttendeeName: r.GetString("attendee_name"),
		Email:        r.GetString("email"),
		Phone:        r.GetString("phone"),
		Organization: r.GetString("organization"),
		QRCodeData:   r.GetString("qr_code_data"),
		IsCheckedIn:  r.GetBool("is_checked_in"),
		PurchaseID:   r.GetString("purchase"),
		CategoryID:   r.GetString("ticket_category"),
		Created:      r.GetDateTime("created").Time(),
	}
}
