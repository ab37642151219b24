package services

import (
	"context"
	"sync"

	"expo-tickets/internal/gateway"
	"expo-tickets/internal/manifest"
	"expo-tickets/internal/status"
	"expo-tickets/models"

	"github.com/stretchr/testify/mock"
)

// Mock Store

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CategoryByID(ctx context.Context, id string) (*models.TicketCategory, error) {
	args := m.Called(ctx, id)
	if c := args.Get(0); c != nil {
		return c.(*models.TicketCategory), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ActiveCategories(ctx context.Context) ([]*models.TicketCategory, error) {
	args := m.Called(ctx)
	if c := args.Get(0); c != nil {
		return c.([]*models.TicketCategory), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockStore) PurchaseByReference(ctx context.Context, reference string) (*models.Purchase, error) {
	args := m.Called(ctx, reference)
	if p := args.Get(0); p != nil {
		return p.(*models.Purchase), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) UpdatePurchaseStatus(ctx context.Context, reference, paymentStatus, method, transactionID string) error {
	args := m.Called(ctx, reference, paymentStatus, method, transactionID)
	return args.Error(0)
}

func (m *MockStore) TicketsByReference(ctx context.Context, reference string) ([]*models.Ticket, error) {
	args := m.Called(ctx, reference)
	if t := args.Get(0); t != nil {
		return t.([]*models.Ticket), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockStore) TicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if t := args.Get(0); t != nil {
		return t.(*models.Ticket), args.Error(1)
	}
	return nil, args.Error(1)
}

// Mock ManifestStore

type MockManifestStore struct {
	mock.Mock
}

func (m *MockManifestStore) Save(ctx context.Context, man *manifest.Manifest) error {
	args := m.Called(ctx, man)
	return args.Error(0)
}

func (m *MockManifestStore) Load(ctx context.Context, reference string) (*manifest.Manifest, error) {
	args := m.Called(ctx, reference)
	if man := args.Get(0); man != nil {
		return man.(*manifest.Manifest), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockManifestStore) Delete(ctx context.Context, reference string) error {
	args := m.Called(ctx, reference)
	return args.Error(0)
}

// Mock Gateway

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) GetProvider() gateway.Provider {
	return gateway.ProviderPesapal
}

func (m *MockGateway) SubmitOrder(ctx context.Context, req *gateway.OrderRequest) (*gateway.OrderResponse, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*gateway.OrderResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGateway) TransactionStatus(ctx context.Context, trackingID string) (*status.PaymentStatus, error) {
	args := m.Called(ctx, trackingID)
	if r := args.Get(0); r != nil {
		return r.(*status.PaymentStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGateway) SetNotificationChannel(ch chan *status.PaymentStatus) {}

func (m *MockGateway) Close(ctx context.Context) error { return nil }

// Recording publisher

type publishedEvent struct {
	reference string
	event     map[string]any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishPurchaseEvent(reference string, event map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{reference: reference, event: event})
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		if t, ok := e.event["type"].(string); ok {
			types = append(types, t)
		}
	}
	return types
}
