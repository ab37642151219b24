package gateway

import (
	"context"
	"fmt"

	"expo-tickets/internal/gateway/pesapal"
	"expo-tickets/internal/status"
	"expo-tickets/utils"
)

// PesapalAdapter wraps the Pesapal client to conform to the Gateway
// interface. All outbound calls run through a circuit breaker so a flapping
// provider trips fast instead of piling up timeouts.
type PesapalAdapter struct {
	client  *pesapal.Pesapal
	breaker *utils.CircuitBreaker
}

// NewPesapalAdapter creates a new Pesapal adapter
func NewPesapalAdapter(ctx context.Context, config *pesapal.Config) (*PesapalAdapter, error) {
	client, err := pesapal.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pesapal client: %w", err)
	}

	return &PesapalAdapter{
		client:  client,
		breaker: utils.NewCircuitBreaker("pesapal"),
	}, nil
}

// GetProvider returns the gateway provider type
func (p *PesapalAdapter) GetProvider() Provider {
	return ProviderPesapal
}

// SubmitOrder registers the order with Pesapal and returns the redirect URL
func (p *PesapalAdapter) SubmitOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	form := &pesapal.OrderForm{
		Reference:   req.Reference,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		CallbackURL: req.CallbackURL,
		BuyerName:   req.BuyerName,
		BuyerEmail:  req.BuyerEmail,
		BuyerPhone:  req.BuyerPhone,
	}

	result, err := p.breaker.Execute(ctx, func() (interface{}, error) {
		trackingID, redirectURL, err := p.client.SubmitOrder(ctx, form)
		if err != nil {
			return nil, err
		}
		return &OrderResponse{OrderTrackingID: trackingID, RedirectURL: redirectURL}, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*OrderResponse), nil
}

// TransactionStatus checks the status of a transaction
func (p *PesapalAdapter) TransactionStatus(ctx context.Context, trackingID string) (*status.PaymentStatus, error) {
	result, err := p.breaker.Execute(ctx, func() (interface{}, error) {
		return p.client.TransactionStatus(ctx, trackingID)
	})
	if err != nil {
		return nil, err
	}

	return result.(*status.PaymentStatus), nil
}

// SetNotificationChannel sets the channel for receiving IPN records
func (p *PesapalAdapter) SetNotificationChannel(ch chan *status.PaymentStatus) {
	p.client.SetNotificationChannel(ch)
}

// Close gracefully closes any connections
func (p *PesapalAdapter) Close(ctx context.Context) error {
	return p.client.Close(ctx)
}
