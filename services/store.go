package services

import (
	"context"

	"expo-tickets/internal/manifest"
	"expo-tickets/models"
)

// Store is the CMS-side persistence the purchase flow needs: read-by-filter,
// create and update-by-reference over the three collections.
type Store interface {
	CategoryByID(ctx context.Context, id string) (*models.TicketCategory, error)
	ActiveCategories(ctx context.Context) ([]*models.TicketCategory, error)

	CreatePurchase(ctx context.Context, p *models.Purchase) error
	PurchaseByReference(ctx context.Context, reference string) (*models.Purchase, error)
	UpdatePurchaseStatus(ctx context.Context, reference, paymentStatus, method, transactionID string) error

	TicketsByReference(ctx context.Context, reference string) ([]*models.Ticket, error)
	CreateTicket(ctx context.Context, t *models.Ticket) error
	TicketByID(ctx context.Context, id string) (*models.Ticket, error)
}

// ManifestStore is the reference-keyed mailbox bridging intake and
// materialization across the payment redirect.
type ManifestStore interface {
	Save(ctx context.Context, m *manifest.Manifest) error
	Load(ctx context.Context, reference string) (*manifest.Manifest, error)
	Delete(ctx context.Context, reference string) error
}
