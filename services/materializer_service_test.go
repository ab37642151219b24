package services

import (
	"context"
	"errors"
	"net/mail"
	"testing"

	"expo-tickets/internal/manifest"
	"expo-tickets/internal/status"
	"expo-tickets/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMaterializer(store *MockStore, manifests *MockManifestStore, publisher EventPublisher) *MaterializerService {
	return NewMaterializerService(store, manifests, publisher, nil, mail.Address{}, "Investment Expo")
}

func paidPurchase(reference string, amount int64) *models.Purchase {
	return &models.Purchase{
		ID:            "purch1",
		Reference:     reference,
		BuyerName:     "Jane Doe",
		BuyerEmail:    "jane@example.com",
		BuyerPhone:    "0700000001",
		TotalAmount:   decimal.NewFromInt(amount),
		Currency:      "UGX",
		PaymentStatus: models.PaymentStatusPaid,
	}
}

func vipCategory() *models.TicketCategory {
	return &models.TicketCategory{
		ID:       "cat-vip",
		Name:     "VIP",
		Price:    decimal.NewFromInt(150000),
		Currency: "UGX",
		IsActive: true,
	}
}

func manifestFor(reference string, quantity int) *manifest.Manifest {
	attendees := make([]models.Attendee, quantity)
	for i := range attendees {
		attendees[i] = models.Attendee{
			Name:  "Guest",
			Email: "guest@example.com",
		}
	}
	return &manifest.Manifest{
		Reference:  reference,
		CategoryID: "cat-vip",
		Quantity:   quantity,
		Attendees:  attendees,
	}
}

func TestMaterializer_CreatesOneTicketPerSeat(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	publisher := &recordingPublisher{}
	svc := newMaterializer(store, manifests, publisher)

	ref := "TIX-1-000001"
	store.On("TicketsByReference", mock.Anything, ref).Return([]*models.Ticket{}, nil)
	store.On("PurchaseByReference", mock.Anything, ref).Return(paidPurchase(ref, 300000), nil)
	manifests.On("Load", mock.Anything, ref).Return(manifestFor(ref, 2), nil)
	store.On("CategoryByID", mock.Anything, "cat-vip").Return(vipCategory(), nil)

	var created []*models.Ticket
	store.On("CreateTicket", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = append(created, args.Get(1).(*models.Ticket))
	}).Return(nil)
	manifests.On("Delete", mock.Anything, ref).Return(nil)

	tickets, err := svc.Materialize(context.Background(), ref)
	require.NoError(t, err)

	require.Len(t, tickets, 2)
	require.Len(t, created, 2)
	assert.Contains(t, created[0].TicketNumber, "-T1-")
	assert.Contains(t, created[1].TicketNumber, "-T2-")
	assert.Equal(t, "Guest", created[0].AttendeeName)
	assert.Equal(t, "cat-vip", created[0].CategoryID)
	assert.Equal(t, "purch1", created[0].PurchaseID)
	assert.False(t, created[0].IsCheckedIn)

	// Barcode data decodes back to the verification document.
	payload, err := models.DecodeVerificationPayload(created[0].QRCodeData)
	require.NoError(t, err)
	assert.Equal(t, created[0].TicketNumber, payload.TicketNumber)
	assert.Equal(t, "Investment Expo", payload.Event)
	assert.Equal(t, "VIP", payload.Category)

	assert.Equal(t, []string{"tickets_ready"}, publisher.eventTypes())
	manifests.AssertCalled(t, "Delete", mock.Anything, ref)
}

func TestMaterializer_ReentryReturnsExistingTickets(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	svc := newMaterializer(store, manifests, &recordingPublisher{})

	ref := "TIX-1-000001"
	existing := []*models.Ticket{
		{TicketNumber: ref + "-T1-AAAA"},
		{TicketNumber: ref + "-T2-BBBB"},
	}
	store.On("TicketsByReference", mock.Anything, ref).Return(existing, nil)
	store.On("PurchaseByReference", mock.Anything, ref).Return(paidPurchase(ref, 300000), nil)
	manifests.On("Load", mock.Anything, ref).Return(manifestFor(ref, 2), nil)
	store.On("CategoryByID", mock.Anything, "cat-vip").Return(vipCategory(), nil)

	tickets, err := svc.Materialize(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, existing, tickets)
	store.AssertNotCalled(t, "CreateTicket", mock.Anything, mock.Anything)
}

func TestMaterializer_TopsUpMissingSeats(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	svc := newMaterializer(store, manifests, &recordingPublisher{})

	ref := "TIX-1-000001"
	existing := []*models.Ticket{{TicketNumber: ref + "-T1-AAAA"}}
	store.On("TicketsByReference", mock.Anything, ref).Return(existing, nil)
	store.On("PurchaseByReference", mock.Anything, ref).Return(paidPurchase(ref, 300000), nil)
	manifests.On("Load", mock.Anything, ref).Return(manifestFor(ref, 2), nil)
	store.On("CategoryByID", mock.Anything, "cat-vip").Return(vipCategory(), nil)

	var created []*models.Ticket
	store.On("CreateTicket", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = append(created, args.Get(1).(*models.Ticket))
	}).Return(nil)
	manifests.On("Delete", mock.Anything, ref).Return(nil)

	tickets, err := svc.Materialize(context.Background(), ref)
	require.NoError(t, err)

	assert.Len(t, tickets, 2)
	require.Len(t, created, 1)
	assert.Contains(t, created[0].TicketNumber, "-T2-")
}

func TestMaterializer_RejectsUnpaidPurchase(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	svc := newMaterializer(store, manifests, &recordingPublisher{})

	ref := "TIX-1-000001"
	pending := paidPurchase(ref, 300000)
	pending.PaymentStatus = models.PaymentStatusPending
	store.On("TicketsByReference", mock.Anything, ref).Return([]*models.Ticket{}, nil)
	store.On("PurchaseByReference", mock.Anything, ref).Return(pending, nil)

	_, err := svc.Materialize(context.Background(), ref)
	assert.ErrorIs(t, err, ErrPurchaseNotPaid)
	store.AssertNotCalled(t, "CreateTicket", mock.Anything, mock.Anything)
}

func TestMaterializer_InfersCategoryWhenManifestLost(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	svc := newMaterializer(store, manifests, &recordingPublisher{})

	ref := "TIX-1-000001"
	store.On("TicketsByReference", mock.Anything, ref).Return([]*models.Ticket{}, nil)
	store.On("PurchaseByReference", mock.Anything, ref).Return(paidPurchase(ref, 300000), nil)
	manifests.On("Load", mock.Anything, ref).Return(nil, manifest.ErrNotFound)
	store.On("ActiveCategories", mock.Anything).Return([]*models.TicketCategory{
		vipCategory(),
		{ID: "cat-odd", Name: "Odd", Price: decimal.NewFromInt(70001), IsActive: true},
	}, nil)

	var created []*models.Ticket
	store.On("CreateTicket", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = append(created, args.Get(1).(*models.Ticket))
	}).Return(nil)
	manifests.On("Delete", mock.Anything, ref).Return(nil)

	tickets, err := svc.Materialize(context.Background(), ref)
	require.NoError(t, err)

	// 300000 / 150000 resolves to two VIP seats carrying the buyer's details.
	require.Len(t, tickets, 2)
	assert.Equal(t, "cat-vip", created[0].CategoryID)
	assert.Equal(t, "Jane Doe", created[0].AttendeeName)
	assert.Equal(t, "jane@example.com", created[0].Email)
}

func TestMaterializer_AmbiguousInference(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	svc := newMaterializer(store, manifests, &recordingPublisher{})

	ref := "TIX-1-000001"
	store.On("TicketsByReference", mock.Anything, ref).Return([]*models.Ticket{}, nil)
	store.On("PurchaseByReference", mock.Anything, ref).Return(paidPurchase(ref, 300000), nil)
	manifests.On("Load", mock.Anything, ref).Return(nil, manifest.ErrNotFound)

	// Both prices divide 300000, so no single category can be chosen.
	store.On("ActiveCategories", mock.Anything).Return([]*models.TicketCategory{
		{ID: "cat-a", Price: decimal.NewFromInt(150000), IsActive: true},
		{ID: "cat-b", Price: decimal.NewFromInt(50000), IsActive: true},
	}, nil)

	_, err := svc.Materialize(context.Background(), ref)
	assert.ErrorIs(t, err, status.ErrCategoryAmbiguous)
	store.AssertNotCalled(t, "CreateTicket", mock.Anything, mock.Anything)
}

func TestMaterializer_NoMatchingCategory(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	svc := newMaterializer(store, manifests, &recordingPublisher{})

	ref := "TIX-1-000001"
	store.On("TicketsByReference", mock.Anything, ref).Return([]*models.Ticket{}, nil)
	store.On("PurchaseByReference", mock.Anything, ref).Return(paidPurchase(ref, 12345), nil)
	manifests.On("Load", mock.Anything, ref).Return(nil, manifest.ErrNotFound)
	store.On("ActiveCategories", mock.Anything).Return([]*models.TicketCategory{vipCategory()}, nil)

	_, err := svc.Materialize(context.Background(), ref)
	assert.ErrorIs(t, err, status.ErrCategoryAmbiguous)
}

func TestMaterializer_ResolutionFailureWithExistingTickets(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	svc := newMaterializer(store, manifests, &recordingPublisher{})

	ref := "TIX-1-000001"
	existing := []*models.Ticket{{TicketNumber: ref + "-T1-AAAA"}}
	store.On("TicketsByReference", mock.Anything, ref).Return(existing, nil)
	store.On("PurchaseByReference", mock.Anything, ref).Return(paidPurchase(ref, 12345), nil)
	manifests.On("Load", mock.Anything, ref).Return(nil, manifest.ErrNotFound)
	store.On("ActiveCategories", mock.Anything).Return([]*models.TicketCategory{}, nil)

	tickets, err := svc.Materialize(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, existing, tickets)
}

func TestMaterializer_RetryFillsFailedSeat(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	svc := newMaterializer(store, manifests, &recordingPublisher{})

	// Seat 1 failed on the previous run, so only the T2 ticket exists. The
	// retry must recreate exactly seat 1 with its own attendee.
	ref := "TIX-1-000001"
	existing := []*models.Ticket{{TicketNumber: ref + "-T2-BBBB", AttendeeName: "Bob"}}
	store.On("TicketsByReference", mock.Anything, ref).Return(existing, nil)
	store.On("PurchaseByReference", mock.Anything, ref).Return(paidPurchase(ref, 300000), nil)

	man := manifestFor(ref, 2)
	man.Attendees = []models.Attendee{
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "Bob", Email: "bob@example.com"},
	}
	manifests.On("Load", mock.Anything, ref).Return(man, nil)
	store.On("CategoryByID", mock.Anything, "cat-vip").Return(vipCategory(), nil)

	var created []*models.Ticket
	store.On("CreateTicket", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = append(created, args.Get(1).(*models.Ticket))
	}).Return(nil)
	manifests.On("Delete", mock.Anything, ref).Return(nil)

	tickets, err := svc.Materialize(context.Background(), ref)
	require.NoError(t, err)

	assert.Len(t, tickets, 2)
	require.Len(t, created, 1)
	assert.Contains(t, created[0].TicketNumber, "-T1-")
	assert.Equal(t, "Alice", created[0].AttendeeName)
}

func TestMaterializer_SeatFailureDoesNotStopOthers(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	publisher := &recordingPublisher{}
	svc := newMaterializer(store, manifests, publisher)

	ref := "TIX-1-000001"
	store.On("TicketsByReference", mock.Anything, ref).Return([]*models.Ticket{}, nil)
	store.On("PurchaseByReference", mock.Anything, ref).Return(paidPurchase(ref, 300000), nil)
	manifests.On("Load", mock.Anything, ref).Return(manifestFor(ref, 2), nil)
	store.On("CategoryByID", mock.Anything, "cat-vip").Return(vipCategory(), nil)

	store.On("CreateTicket", mock.Anything, mock.Anything).Return(errors.New("unique violation")).Once()
	store.On("CreateTicket", mock.Anything, mock.Anything).Return(nil).Once()

	tickets, err := svc.Materialize(context.Background(), ref)
	require.Error(t, err)

	// The surviving seat is kept; a later call tops up the failed one.
	assert.Len(t, tickets, 1)
	assert.Empty(t, publisher.eventTypes())
	manifests.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
