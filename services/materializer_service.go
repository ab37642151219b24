package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"

	"expo-tickets/internal/manifest"
	"expo-tickets/internal/status"
	"expo-tickets/models"
	"expo-tickets/monitoring"
	"expo-tickets/utils"

	"github.com/pocketbase/pocketbase/tools/mailer"
)

// ErrPurchaseNotPaid is returned when materialization is requested for a
// purchase that has not reached paid status.
var ErrPurchaseNotPaid = errors.New("tickets: purchase is not paid")

// MaterializerService creates ticket rows for a paid purchase, exactly the
// right number, at most once per seat.
type MaterializerService struct {
	store     Store
	manifests ManifestStore
	publisher EventPublisher

	mail      mailer.Mailer
	sender    mail.Address
	eventName string
	logger    *slog.Logger
}

func NewMaterializerService(store Store, manifests ManifestStore, publisher EventPublisher, mailClient mailer.Mailer, sender mail.Address, eventName string) *MaterializerService {
	return &MaterializerService{
		store:     store,
		manifests: manifests,
		publisher: publisher,
		mail:      mailClient,
		sender:    sender,
		eventName: eventName,
		logger:    slog.Default().With("service", "materializer"),
	}
}

// seatPlan is the resolved quantity, category and attendee list for a
// purchase, from the manifest when it survived or from inference otherwise.
type seatPlan struct {
	category  *models.TicketCategory
	quantity  int
	attendees []models.Attendee
}

// Materialize is safe to re-enter any number of times: existing tickets are
// observed before any creation, and only missing seats are ever created.
func (s *MaterializerService) Materialize(ctx context.Context, reference string) ([]*models.Ticket, error) {
	existing, err := s.store.TicketsByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	purchase, err := s.store.PurchaseByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if purchase.PaymentStatus != models.PaymentStatusPaid {
		return nil, ErrPurchaseNotPaid
	}

	plan, err := s.resolvePlan(ctx, purchase)
	if err != nil {
		if len(existing) > 0 {
			// Already materialized; the plan is only needed for creation.
			return existing, nil
		}
		return nil, err
	}

	occupied := occupiedSeats(existing)
	if len(occupied) >= plan.quantity {
		return existing, nil
	}

	created, createErrs := s.createSeats(ctx, purchase, plan, occupied)
	tickets := append(existing, created...)

	if len(created) > 0 {
		monitoring.TicketsMaterialized.Add(float64(len(created)))
	}

	if len(createErrs) > 0 {
		// Per-seat failures never roll back created tickets; the next
		// Materialize call tops up only the missing seats.
		return tickets, fmt.Errorf("tickets: %d of %d seats failed: %w",
			len(createErrs), plan.quantity, errors.Join(createErrs...))
	}

	// Success side effects are cleanup and courtesy, never correctness.
	if err := s.manifests.Delete(ctx, reference); err != nil {
		s.logger.Warn("manifest cleanup failed", "reference", reference, "err", err)
	}

	s.publisher.PublishPurchaseEvent(reference, map[string]any{
		"type":      "tickets_ready",
		"reference": reference,
		"count":     len(tickets),
	})

	s.sendConfirmation(purchase, tickets)

	return tickets, nil
}

// resolvePlan prefers the intake manifest; with the manifest gone (storage
// cleared, different device) it falls back to price inference, and with no
// attendee data at all it replicates the buyer per seat.
func (s *MaterializerService) resolvePlan(ctx context.Context, purchase *models.Purchase) (*seatPlan, error) {
	man, err := s.manifests.Load(ctx, purchase.Reference)
	if err == nil {
		category, err := s.store.CategoryByID(ctx, man.CategoryID)
		if err != nil {
			return nil, err
		}
		monitoring.PlanSources.WithLabelValues("manifest").Inc()

		attendees := man.Attendees
		if len(attendees) == 0 {
			attendees = replicateBuyer(purchase, man.Quantity)
		}
		return &seatPlan{category: category, quantity: man.Quantity, attendees: attendees}, nil
	}
	if !errors.Is(err, manifest.ErrNotFound) {
		return nil, err
	}

	category, quantity, err := s.inferCategory(ctx, purchase)
	if err != nil {
		return nil, err
	}
	monitoring.PlanSources.WithLabelValues("inferred").Inc()

	return &seatPlan{
		category:  category,
		quantity:  quantity,
		attendees: replicateBuyer(purchase, quantity),
	}, nil
}

// inferCategory finds the single active category whose price evenly divides
// the purchase total. Zero or several matches is an ambiguity, surfaced as a
// manual retry rather than a silent guess.
func (s *MaterializerService) inferCategory(ctx context.Context, purchase *models.Purchase) (*models.TicketCategory, int, error) {
	categories, err := s.store.ActiveCategories(ctx)
	if err != nil {
		return nil, 0, err
	}

	var match *models.TicketCategory
	quantity := 0
	for _, c := range categories {
		if !c.Price.IsPositive() {
			continue
		}
		if !purchase.TotalAmount.Mod(c.Price).IsZero() {
			continue
		}
		if match != nil {
			return nil, 0, status.ErrCategoryAmbiguous
		}
		match = c
		quantity = int(purchase.TotalAmount.Div(c.Price).IntPart())
	}

	if match == nil || quantity < 1 {
		return nil, 0, status.ErrCategoryAmbiguous
	}
	return match, quantity, nil
}

// occupiedSeats maps which seat ordinals already have a ticket, read off the
// T<i> segment of each ticket number. Retries after a partial failure fill the
// exact holes instead of appending past the count.
func occupiedSeats(tickets []*models.Ticket) map[int]bool {
	occupied := make(map[int]bool, len(tickets))
	for _, t := range tickets {
		if seat := seatOrdinal(t.TicketNumber); seat > 0 {
			occupied[seat] = true
		}
	}
	return occupied
}

func seatOrdinal(number string) int {
	parts := strings.Split(number, "-")
	for _, part := range parts {
		if len(part) > 1 && part[0] == 'T' {
			if seat, err := strconv.Atoi(part[1:]); err == nil {
				return seat
			}
		}
	}
	return 0
}

// createSeats creates tickets for every seat 1..quantity not already occupied.
// Each creation is independent; one failing seat does not stop the rest.
func (s *MaterializerService) createSeats(ctx context.Context, purchase *models.Purchase, plan *seatPlan, occupied map[int]bool) ([]*models.Ticket, []error) {
	var created []*models.Ticket
	var errs []error

	for seat := 1; seat <= plan.quantity; seat++ {
		if occupied[seat] {
			continue
		}
		attendee := attendeeForSeat(plan.attendees, purchase, seat-1)

		number, err := utils.NewTicketNumber(purchase.Reference, seat)
		if err != nil {
			errs = append(errs, fmt.Errorf("seat %d: %w", seat, err))
			continue
		}

		payload := models.VerificationPayload{
			TicketNumber: number,
			Event:        s.eventName,
			AttendeeName: attendee.Name,
			Category:     plan.category.Name,
		}
		qrData, err := payload.Encode()
		if err != nil {
			errs = append(errs, fmt.Errorf("seat %d: %w", seat, err))
			continue
		}

		ticket := &models.Ticket{
			TicketNumber: number,
			AttendeeName: attendee.Name,
			Email:        attendee.Email,
			Phone:        attendee.Phone,
			Organization: attendee.Organization,
			QRCodeData:   qrData,
			IsCheckedIn:  false,
			PurchaseID:   purchase.ID,
			CategoryID:   plan.category.ID,
		}
		if err := s.store.CreateTicket(ctx, ticket); err != nil {
			s.logger.Error("ticket creation failed",
				"reference", purchase.Reference, "seat", seat, "err", err)
			errs = append(errs, fmt.Errorf("seat %d: %w", seat, err))
			continue
		}

		created = append(created, ticket)
	}

	return created, errs
}

func attendeeForSeat(attendees []models.Attendee, purchase *models.Purchase, index int) models.Attendee {
	if index < len(attendees) && attendees[index].Name != "" {
		return attendees[index]
	}
	return models.Attendee{
		Name:  purchase.BuyerName,
		Email: purchase.BuyerEmail,
		Phone: purchase.BuyerPhone,
	}
}

func replicateBuyer(purchase *models.Purchase, quantity int) []models.Attendee {
	attendees := make([]models.Attendee, quantity)
	for i := range attendees {
		attendees[i] = models.Attendee{
			Name:  purchase.BuyerName,
			Email: purchase.BuyerEmail,
			Phone: purchase.BuyerPhone,
		}
	}
	return attendees
}

// sendConfirmation emails the buyer a summary of the created tickets.
// Failures are logged and never affect the materialized state.
func (s *MaterializerService) sendConfirmation(purchase *models.Purchase, tickets []*models.Ticket) {
	if s.mail == nil || purchase.BuyerEmail == "" {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nYour %s tickets for purchase %s are ready:\n\n",
		purchase.BuyerName, s.eventName, purchase.Reference)
	for _, t := range tickets {
		fmt.Fprintf(&b, "  %s (%s)\n", t.TicketNumber, t.AttendeeName)
	}
	b.WriteString("\nPresent the QR code on each ticket at the entrance.\n")

	message := &mailer.Message{
		From:    s.sender,
		To:      []mail.Address{{Name: purchase.BuyerName, Address: purchase.BuyerEmail}},
		Subject: fmt.Sprintf("Your %s tickets (%s)", s.eventName, purchase.Reference),
		Text:    b.String(),
	}

	if err := s.mail.Send(message); err != nil {
		s.logger.Warn("confirmation email failed",
			"reference", purchase.Reference, "err", err)
	}
}
