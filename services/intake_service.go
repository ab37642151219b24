package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"expo-tickets/internal/manifest"
	"expo-tickets/models"
	"expo-tickets/monitoring"
	"expo-tickets/utils"

	"github.com/shopspring/decimal"
)

// ErrInvalidForm is returned by Submit when validation has not passed.
var ErrInvalidForm = errors.New("intake: form has validation errors")

// ErrCategoryNotOnSale is returned when the selected category is inactive or
// outside its validity window.
var ErrCategoryNotOnSale = errors.New("intake: ticket category not on sale")

var emailRx = regexp.MustCompile(`^[^\s@]+@[^\s@]+$`)

// attendeeRow wraps an attendee with a touched flag. Buyer edits mirror into
// row 0 only until that row has been edited directly.
type attendeeRow struct {
	models.Attendee
	touched bool
}

// IntakeForm is the explicit state of one purchase intake. All transitions
// are pure in-memory mutations; nothing is persisted before Submit.
type IntakeForm struct {
	Category *models.TicketCategory
	Quantity int

	BuyerName  string
	BuyerEmail string
	BuyerPhone string

	attendees []attendeeRow
}

// NewIntakeForm starts a form for one category at quantity 1.
func NewIntakeForm(category *models.TicketCategory) *IntakeForm {
	return &IntakeForm{
		Category:  category,
		Quantity:  1,
		attendees: make([]attendeeRow, 1),
	}
}

// SelectQuantity resizes the attendee list to n, preserving already-entered
// rows. n is constrained to 1..MaxPerOrder; zero is never a valid quantity.
func (f *IntakeForm) SelectQuantity(n int) error {
	max := f.Category.MaxPerOrder
	if max <= 0 {
		max = 1
	}
	if n < 1 || n > max {
		return fmt.Errorf("intake: quantity %d out of range 1..%d", n, max)
	}

	rows := make([]attendeeRow, n)
	copy(rows, f.attendees)
	f.attendees = rows
	f.Quantity = n
	return nil
}

// UpdateBuyer updates a buyer contact field and mirrors name/email/phone
// into attendee row 0 as a convenience default. The mirror stops once row 0
// has been edited directly.
func (f *IntakeForm) UpdateBuyer(field, value string) {
	switch field {
	case "name":
		f.BuyerName = value
	case "email":
		f.BuyerEmail = value
	case "phone":
		f.BuyerPhone = value
	default:
		return
	}

	if len(f.attendees) == 0 || f.attendees[0].touched {
		return
	}
	switch field {
	case "name":
		f.attendees[0].Name = value
	case "email":
		f.attendees[0].Email = value
	case "phone":
		f.attendees[0].Phone = value
	}
}

// UpdateAttendee sets one field on one attendee row.
func (f *IntakeForm) UpdateAttendee(index int, field, value string) error {
	if index < 0 || index >= len(f.attendees) {
		return fmt.Errorf("intake: attendee index %d out of range", index)
	}

	row := &f.attendees[index]
	switch field {
	case "name":
		row.Name = value
	case "email":
		row.Email = value
	case "phone":
		row.Phone = value
	case "organization":
		row.Organization = value
	default:
		return fmt.Errorf("intake: unknown attendee field %q", field)
	}
	row.touched = true
	return nil
}

// SetAttendee fills a whole row at once (API submissions send complete rows).
func (f *IntakeForm) SetAttendee(index int, a models.Attendee) error {
	if index < 0 || index >= len(f.attendees) {
		return fmt.Errorf("intake: attendee index %d out of range", index)
	}
	f.attendees[index] = attendeeRow{Attendee: a, touched: true}
	return nil
}

// Attendees returns the current attendee manifest.
func (f *IntakeForm) Attendees() []models.Attendee {
	out := make([]models.Attendee, len(f.attendees))
	for i, row := range f.attendees {
		out[i] = row.Attendee
	}
	return out
}

// Validate returns a field→message map; an empty map means the form may be
// submitted. Validation errors never leave the intake step.
func (f *IntakeForm) Validate() map[string]string {
	errs := map[string]string{}

	if f.BuyerName == "" {
		errs["buyer_name"] = "name is required"
	}
	if f.BuyerEmail == "" {
		errs["buyer_email"] = "email is required"
	} else if !emailRx.MatchString(f.BuyerEmail) {
		errs["buyer_email"] = "email is not valid"
	}

	for i, row := range f.attendees {
		if row.Name == "" {
			errs[fmt.Sprintf("attendee_%d_name", i)] = "attendee name is required"
		}
		if row.Email == "" {
			errs[fmt.Sprintf("attendee_%d_email", i)] = "attendee email is required"
		} else if !emailRx.MatchString(row.Email) {
			errs[fmt.Sprintf("attendee_%d_email", i)] = "attendee email is not valid"
		}
	}

	return errs
}

// TotalAmount is quantity times unit price, exact in currency units.
func (f *IntakeForm) TotalAmount() decimal.Decimal {
	return f.Category.Price.Mul(decimal.NewFromInt(int64(f.Quantity)))
}

// SubmitResult is handed to the payment orchestrator.
type SubmitResult struct {
	Reference   string          `json:"reference"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
}

// IntakeService turns a valid form into a pending purchase plus a durable
// attendee manifest keyed by the new reference number.
type IntakeService struct {
	store     Store
	manifests ManifestStore
	currency  string
}

func NewIntakeService(store Store, manifests ManifestStore, currency string) *IntakeService {
	return &IntakeService{
		store:     store,
		manifests: manifests,
		currency:  currency,
	}
}

// Submit validates, generates the reference number, saves the manifest and
// creates the pending purchase. The manifest is written first: once the
// purchase row exists the redirect can fire at any moment, and the manifest
// must already be readable on return.
func (s *IntakeService) Submit(ctx context.Context, form *IntakeForm) (*SubmitResult, error) {
	if errs := form.Validate(); len(errs) > 0 {
		return nil, ErrInvalidForm
	}
	if !form.Category.ValidAt(time.Now()) {
		return nil, ErrCategoryNotOnSale
	}

	reference, err := utils.NewReference()
	if err != nil {
		return nil, fmt.Errorf("intake: generate reference: %w", err)
	}

	total := form.TotalAmount()
	currency := form.Category.Currency
	if currency == "" {
		currency = s.currency
	}

	if err := s.manifests.Save(ctx, &manifest.Manifest{
		Reference:  reference,
		CategoryID: form.Category.ID,
		Quantity:   form.Quantity,
		Attendees:  form.Attendees(),
		SavedAt:    time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("intake: save manifest: %w", err)
	}

	purchase := &models.Purchase{
		Reference:     reference,
		BuyerName:     form.BuyerName,
		BuyerEmail:    form.BuyerEmail,
		BuyerPhone:    form.BuyerPhone,
		TotalAmount:   total,
		Currency:      currency,
		PaymentStatus: models.PaymentStatusPending,
	}
	if err := s.store.CreatePurchase(ctx, purchase); err != nil {
		return nil, fmt.Errorf("intake: create purchase: %w", err)
	}

	monitoring.PurchasesCreated.Inc()

	return &SubmitResult{
		Reference:   reference,
		TotalAmount: total,
		Currency:    currency,
	}, nil
}
