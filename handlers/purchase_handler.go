package handlers

import (
	"net/http"

	"expo-tickets/models"
	"expo-tickets/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type PurchaseHandler struct {
	app    *pocketbase.PocketBase
	store  services.Store
	intake *services.IntakeService
}

func NewPurchaseHandler(app *pocketbase.PocketBase, store services.Store, intake *services.IntakeService) *PurchaseHandler {
	return &PurchaseHandler{
		app:    app,
		store:  store,
		intake: intake,
	}
}

type createPurchaseRequest struct {
	TicketCategoryID string            `json:"ticket_category_id"`
	Quantity         int               `json:"quantity"`
	Buyer            buyerPayload      `json:"buyer"`
	Attendees        []models.Attendee `json:"attendees"`
}

type buyerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CreatePurchase - validate the intake form and create a pending purchase
func (h *PurchaseHandler) CreatePurchase(e *core.RequestEvent) error {
	var req createPurchaseRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ctx := e.Request.Context()

	category, err := h.store.CategoryByID(ctx, req.TicketCategoryID)
	if err != nil {
		return apis.NewNotFoundError("Ticket category not found", err)
	}

	form := services.NewIntakeForm(category)
	if req.Quantity > 0 {
		if err := form.SelectQuantity(req.Quantity); err != nil {
			return apis.NewBadRequestError(err.Error(), nil)
		}
	}

	form.UpdateBuyer("name", req.Buyer.Name)
	form.UpdateBuyer("email", req.Buyer.Email)
	form.UpdateBuyer("phone", req.Buyer.Phone)

	for i, a := range req.Attendees {
		if i >= form.Quantity {
			break
		}
		if err := form.SetAttendee(i, a); err != nil {
			return apis.NewBadRequestError(err.Error(), nil)
		}
	}

	if errs := form.Validate(); len(errs) > 0 {
		return e.JSON(http.StatusBadRequest, map[string]any{
			"message": "Validation failed",
			"errors":  errs,
		})
	}

	result, err := h.intake.Submit(ctx, form)
	if err != nil {
		return apis.NewApiError(http.StatusBadGateway, "Could not create purchase, please retry", err)
	}

	return e.JSON(http.StatusOK, result)
}

// GetPurchase - purchase details plus its materialized tickets
func (h *PurchaseHandler) GetPurchase(e *core.RequestEvent) error {
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

	return e.JSON(http.StatusOK, map[string]any{
		"purchase": purchase,
		"tickets":  tickets,
	})
}
