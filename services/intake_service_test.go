package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"expo-tickets/internal/manifest"
	"expo-tickets/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func standardCategory() *models.TicketCategory {
	return &models.TicketCategory{
		ID:          "cat-standard",
		Name:        "Standard",
		Price:       decimal.NewFromInt(50000),
		Currency:    "UGX",
		MaxPerOrder: 10,
		IsActive:    true,
	}
}

func TestIntakeForm_StartsAtQuantityOne(t *testing.T) {
	form := NewIntakeForm(standardCategory())

	assert.Equal(t, 1, form.Quantity)
	assert.Len(t, form.Attendees(), 1)
}

func TestIntakeForm_SelectQuantity(t *testing.T) {
	form := NewIntakeForm(standardCategory())

	require.NoError(t, form.SelectQuantity(3))
	assert.Equal(t, 3, form.Quantity)
	assert.Len(t, form.Attendees(), 3)
}

func TestIntakeForm_SelectQuantity_OutOfRange(t *testing.T) {
	form := NewIntakeForm(standardCategory())

	assert.Error(t, form.SelectQuantity(0))
	assert.Error(t, form.SelectQuantity(-1))
	assert.Error(t, form.SelectQuantity(11))
	assert.Equal(t, 1, form.Quantity)
}

func TestIntakeForm_SelectQuantity_PreservesEnteredRows(t *testing.T) {
	form := NewIntakeForm(standardCategory())
	require.NoError(t, form.SelectQuantity(2))
	require.NoError(t, form.UpdateAttendee(1, "name", "Second Guest"))

	require.NoError(t, form.SelectQuantity(4))

	attendees := form.Attendees()
	assert.Equal(t, "Second Guest", attendees[1].Name)
	assert.Len(t, attendees, 4)
}

func TestIntakeForm_BuyerMirrorsIntoFirstAttendee(t *testing.T) {
	form := NewIntakeForm(standardCategory())

	form.UpdateBuyer("name", "Jane Doe")
	form.UpdateBuyer("email", "jane@example.com")
	form.UpdateBuyer("phone", "0700000001")

	first := form.Attendees()[0]
	assert.Equal(t, "Jane Doe", first.Name)
	assert.Equal(t, "jane@example.com", first.Email)
	assert.Equal(t, "0700000001", first.Phone)
}

func TestIntakeForm_MirrorStopsAfterDirectEdit(t *testing.T) {
	form := NewIntakeForm(standardCategory())

	form.UpdateBuyer("name", "Jane Doe")
	require.NoError(t, form.UpdateAttendee(0, "name", "Guest One"))

	// Later buyer edits leave the directly entered row alone.
	form.UpdateBuyer("name", "Janet Doe")

	assert.Equal(t, "Janet Doe", form.BuyerName)
	assert.Equal(t, "Guest One", form.Attendees()[0].Name)
}

func TestIntakeForm_Validate(t *testing.T) {
	form := NewIntakeForm(standardCategory())
	require.NoError(t, form.SelectQuantity(2))

	errs := form.Validate()
	assert.Contains(t, errs, "buyer_name")
	assert.Contains(t, errs, "buyer_email")
	assert.Contains(t, errs, "attendee_0_name")
	assert.Contains(t, errs, "attendee_1_email")
}

func TestIntakeForm_Validate_RejectsMalformedEmail(t *testing.T) {
	form := NewIntakeForm(standardCategory())
	form.UpdateBuyer("name", "Jane Doe")
	form.UpdateBuyer("email", "not-an-email")

	errs := form.Validate()
	assert.Equal(t, "email is not valid", errs["buyer_email"])
	assert.Contains(t, errs, "attendee_0_email")
}

func TestIntakeForm_Validate_CleanFormPasses(t *testing.T) {
	form := validForm(t, 2)
	assert.Empty(t, form.Validate())
}

func TestIntakeForm_TotalAmount(t *testing.T) {
	form := validForm(t, 2)
	assert.True(t, decimal.NewFromInt(100000).Equal(form.TotalAmount()))
}

func validForm(t *testing.T, quantity int) *IntakeForm {
	t.Helper()

	form := NewIntakeForm(standardCategory())
	require.NoError(t, form.SelectQuantity(quantity))

	form.UpdateBuyer("name", "Jane Doe")
	form.UpdateBuyer("email", "jane@example.com")
	form.UpdateBuyer("phone", "0700000001")

	for i := 1; i < quantity; i++ {
		require.NoError(t, form.SetAttendee(i, models.Attendee{
			Name:  "Guest",
			Email: "guest@example.com",
		}))
	}
	return form
}

func TestIntakeService_Submit(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	svc := NewIntakeService(store, manifests, "UGX")

	var savedManifest *manifest.Manifest
	manifests.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		savedManifest = args.Get(1).(*manifest.Manifest)
	}).Return(nil)

	var createdPurchase *models.Purchase
	store.On("CreatePurchase", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		createdPurchase = args.Get(1).(*models.Purchase)
	}).Return(nil)

	result, err := svc.Submit(context.Background(), validForm(t, 2))
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^TIX-\d+-\d{6}$`), result.Reference)
	assert.True(t, decimal.NewFromInt(100000).Equal(result.TotalAmount))
	assert.Equal(t, "UGX", result.Currency)

	// The manifest is written before the purchase and shares its reference.
	require.NotNil(t, savedManifest)
	require.NotNil(t, createdPurchase)
	assert.Equal(t, createdPurchase.Reference, savedManifest.Reference)
	assert.Equal(t, "cat-standard", savedManifest.CategoryID)
	assert.Equal(t, 2, savedManifest.Quantity)
	assert.Len(t, savedManifest.Attendees, 2)

	assert.Equal(t, models.PaymentStatusPending, createdPurchase.PaymentStatus)
	assert.Equal(t, "Jane Doe", createdPurchase.BuyerName)
	assert.True(t, decimal.NewFromInt(100000).Equal(createdPurchase.TotalAmount))
}

func TestIntakeService_Submit_InvalidForm(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	svc := NewIntakeService(store, manifests, "UGX")

	form := NewIntakeForm(standardCategory())

	_, err := svc.Submit(context.Background(), form)
	assert.ErrorIs(t, err, ErrInvalidForm)
	manifests.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "CreatePurchase", mock.Anything, mock.Anything)
}

func TestIntakeService_Submit_CategoryNotOnSale(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	svc := NewIntakeService(store, manifests, "UGX")

	form := validForm(t, 1)
	form.Category.ValidUntil = time.Now().Add(-time.Hour)

	_, err := svc.Submit(context.Background(), form)
	assert.ErrorIs(t, err, ErrCategoryNotOnSale)
}

func TestIntakeService_Submit_UsesFallbackCurrency(t *testing.T) {
	store := new(MockStore)
	manifests := new(MockManifestStore)
	svc := NewIntakeService(store, manifests, "KES")

	manifests.On("Save", mock.Anything, mock.Anything).Return(nil)
	store.On("CreatePurchase", mock.Anything, mock.Anything).Return(nil)

	form := validForm(t, 1)
	form.Category.Currency = ""

	result, err := svc.Submit(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, "KES", result.Currency)
}
