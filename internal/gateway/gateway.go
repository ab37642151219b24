package gateway

import (
	"context"
	"fmt"

	"expo-tickets/internal/gateway/pesapal"
	"expo-tickets/internal/status"

	"github.com/shopspring/decimal"
)

// Provider represents different payment gateway providers
type Provider string

const (
	ProviderPesapal Provider = "pesapal"
)

// OrderRequest represents a generic hosted-payment order
type OrderRequest struct {
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
	CallbackURL string          `json:"callback_url"`

	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
	BuyerPhone string `json:"buyer_phone,omitempty"`
}

// OrderResponse carries the provider tracking id and the page the buyer is
// redirected to. Control transfers fully to the provider at that point.
type OrderResponse struct {
	OrderTrackingID string `json:"order_tracking_id"`
	RedirectURL     string `json:"redirect_url"`
}

// Gateway defines the common interface for payment gateway providers
type Gateway interface {
	// GetProvider returns the gateway provider type
	GetProvider() Provider

	// SubmitOrder registers an order and returns the hosted payment page
	SubmitOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error)

	// TransactionStatus checks the status of a transaction by tracking id
	TransactionStatus(ctx context.Context, trackingID string) (*status.PaymentStatus, error)

	// SetNotificationChannel sets the channel for receiving IPN records
	SetNotificationChannel(ch chan *status.PaymentStatus)

	// Close gracefully closes any connections
	Close(ctx context.Context) error
}

// Factory creates gateway instances based on provider type
type Factory struct{}

// NewFactory creates a new gateway factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateGateway creates a gateway instance based on provider type and configuration
func (f *Factory) CreateGateway(ctx context.Context, provider Provider, config interface{}) (Gateway, error) {
	switch provider {
	case ProviderPesapal:
		cfg, ok := config.(*pesapal.Config)
		if !ok {
			return nil, fmt.Errorf("invalid Pesapal config type, expected *pesapal.Config")
		}
		return NewPesapalAdapter(ctx, cfg)

	default:
		return nil, fmt.Errorf("unsupported gateway provider: %s", provider)
	}
}

// GetSupportedProviders returns list of supported gateway providers
func (f *Factory) GetSupportedProviders() []Provider {
	return []Provider{
		ProviderPesapal,
	}
}
