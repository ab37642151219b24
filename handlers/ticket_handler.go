package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"expo-tickets/internal/status"
	"expo-tickets/models"
	"expo-tickets/renderer"
	"expo-tickets/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type TicketHandler struct {
	app          *pocketbase.PocketBase
	store        services.Store
	materializer *services.MaterializerService
}

func NewTicketHandler(app *pocketbase.PocketBase, store services.Store, materializer *services.MaterializerService) *TicketHandler {
	return &TicketHandler{
		app:          app,
		store:        store,
		materializer: materializer,
	}
}

// MaterializeTickets - create (or return already-created) tickets for a
// paid purchase; safe to call repeatedly
func (h *TicketHandler) MaterializeTickets(e *core.RequestEvent) error {
	reference := e.Request.PathValue("reference")
	ctx := e.Request.Context()

	tickets, err := h.materializer.Materialize(ctx, reference)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrPurchaseNotFound):
			return apis.NewNotFoundError("Purchase not found", err)
		case errors.Is(err, services.ErrPurchaseNotPaid):
			return apis.NewBadRequestError("Purchase is not paid yet", err)
		case errors.Is(err, status.ErrCategoryAmbiguous):
			// The purchase itself succeeded; expose a manual retry rather
			// than a hard failure.
			return e.JSON(http.StatusConflict, map[string]any{
				"error": "Could not determine ticket category for this purchase",
				"retry": "/api/purchases/" + reference + "/tickets",
			})
		default:
			if len(tickets) > 0 {
				// Partial batch: report what exists, the retry tops up.
				return e.JSON(http.StatusOK, map[string]any{
					"tickets": tickets,
					"partial": true,
					"retry":   "/api/purchases/" + reference + "/tickets",
				})
			}
			return apis.NewApiError(http.StatusBadGateway, "Ticket creation failed, please retry", err)
		}
	}

	return e.JSON(http.StatusOK, map[string]any{"tickets": tickets})
}

// GetTicketArtifact - render one ticket card as PNG
func (h *TicketHandler) GetTicketArtifact(e *core.RequestEvent) error {
	ticketID := e.Request.PathValue("id")
	ctx := e.Request.Context()

	ticket, err := h.store.TicketByID(ctx, ticketID)
	if err != nil {
		return apis.NewNotFoundError("Ticket not found", err)
	}

	tc, err := h.ticketContext(e, ticket)
	if err != nil {
		return err
	}

	data, err := renderer.RenderPNG(*tc)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Could not render ticket", err)
	}

	e.Response.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", ticket.TicketNumber+".png"))
	return e.Blob(http.StatusOK, "image/png", data)
}

// GetPurchaseTicketsPDF - one page per ticket for the whole purchase
func (h *TicketHandler) GetPurchaseTicketsPDF(e *core.RequestEvent) error {
	reference := e.Request.PathValue("reference")
	ctx := e.Request.Context()

	purchase, err := h.store.PurchaseByReference(ctx, reference)
	if err != nil {
		return apis.NewNotFoundError("Purchase not found", err)
	}

	tickets, err := h.store.TicketsByReference(ctx, reference)
	if err != nil {
		return apis.NewApiError(http.StatusBadGateway, "Could not load tickets", err)
	}
	if len(tickets) == 0 {
		return apis.NewNotFoundError("No tickets for this purchase yet", nil)
	}

	tcs := make([]renderer.TicketContext, 0, len(tickets))
	for _, t := range tickets {
		category, err := h.store.CategoryByID(ctx, t.CategoryID)
		if err != nil {
			category = nil
		}
		tcs = append(tcs, renderer.TicketContext{
			Ticket:   t,
			Category: category,
			Purchase: purchase,
		})
	}

	data, err := renderer.RenderPDF(tcs)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Could not render tickets", err)
	}

	e.Response.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", reference+"-tickets.pdf"))
	return e.Blob(http.StatusOK, "application/pdf", data)
}

// ListCategories - the categories currently on sale
func (h *TicketHandler) ListCategories(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	categories, err := h.store.ActiveCategories(ctx)
	if err != nil {
		return apis.NewApiError(http.StatusBadGateway, "Could not load ticket categories", err)
	}

	return e.JSON(http.StatusOK, categories)
}

func (h *TicketHandler) ticketContext(e *core.RequestEvent, ticket *models.Ticket) (*renderer.TicketContext, error) {
	ctx := e.Request.Context()

	tc := &renderer.TicketContext{Ticket: ticket}

	if ticket.CategoryID != "" {
		if category, err := h.store.CategoryByID(ctx, ticket.CategoryID); err == nil {
			tc.Category = category
		}
	}
	if ticket.PurchaseID != "" {
		if record, err := h.app.FindRecordById("purchases", ticket.PurchaseID); err == nil {
			if purchase, err := h.store.PurchaseByReference(ctx, record.GetString("reference")); err == nil {
				tc.Purchase = purchase
			}
		}
	}

	return tc, nil
}
