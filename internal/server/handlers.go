package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"parking-system/internal/logging"
	"parking-system/internal/parking"
)

// ParkingService is what the HTTP adapter needs from the core.
type ParkingService interface {
	parking.Gate
	Spots(ctx context.Context) ([]parking.Spot, error)
	History(ctx context.Context, regNumber string) ([]parking.Ticket, error)
}

type Handler struct {
	service     ParkingService
	serviceName string
}

func NewHandler(service ParkingService, serviceName string) *Handler {
	return &Handler{service: service, serviceName: serviceName}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
		Meta:    extractMeta(r.Context()),
	})
}

func (h *Handler) RecordEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := h.service.ProcessIncomingVehicle(ctx, parking.StaticInput{
		Selection:    req.VehicleType,
		Registration: req.Registration,
	})
	if err != nil {
		writeWorkflowError(ctx, w, err)
		return
	}

	resp := newTicketResponse(receipt.Ticket)
	resp.RecurringUser = receipt.RecurringUser

	message := "Vehicle parked successfully"
	if receipt.RecurringUser {
		message = "Welcome back! As a recurring user of our parking lot, you'll benefit from a 5% discount."
	}
	WriteSuccess(ctx, w, message, resp)
}

func (h *Handler) RecordExit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ExitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := h.service.ProcessExitingVehicle(ctx, parking.StaticInput{Registration: req.Registration})
	if err != nil {
		writeWorkflowError(ctx, w, err)
		return
	}

	resp := newTicketResponse(receipt.Ticket)
	resp.DiscountApplied = receipt.DiscountApplied

	WriteSuccess(ctx, w, "Please pay the parking fare", resp)
}

func (h *Handler) ListSpots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	spots, err := h.service.Spots(ctx)
	if err != nil {
		writeWorkflowError(ctx, w, err)
		return
	}

	WriteSuccess(ctx, w, "Spots retrieved successfully", newSpotsResponse(spots))
}

func (h *Handler) TicketHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	registration := chi.URLParam(r, "registration")
	tickets, err := h.service.History(ctx, registration)
	if err != nil {
		writeWorkflowError(ctx, w, err)
		return
	}
	if len(tickets) == 0 {
		WriteError(ctx, w, http.StatusNotFound, "Vehicle not found")
		return
	}

	resp := HistoryResponse{
		Registration: tickets[0].VehicleRegNumber,
		Visits:       len(tickets),
		Tickets:      make([]TicketResponse, 0, len(tickets)),
	}
	for _, t := range tickets {
		resp.Tickets = append(resp.Tickets, newTicketResponse(t))
	}

	WriteSuccess(ctx, w, "Tickets retrieved successfully", resp)
}

func writeWorkflowError(ctx context.Context, w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Error(ctx).Err(err).Int("status", status).Msg("request failed")
	}
	WriteError(ctx, w, status, message)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, parking.ErrInvalidSelection):
		return http.StatusBadRequest, "vehicle_type must be 1 (CAR) or 2 (BIKE)"
	case errors.Is(err, parking.ErrInvalidRegistration):
		return http.StatusBadRequest, "Registration number is required"
	case errors.Is(err, parking.ErrParkingFull):
		return http.StatusConflict, "Parking slots might be full"
	case errors.Is(err, parking.ErrTicketClosed):
		return http.StatusConflict, "Vehicle has already exited"
	case errors.Is(err, parking.ErrUnknownTicket):
		return http.StatusNotFound, "No ticket found for vehicle"
	case errors.Is(err, parking.ErrStore), errors.Is(err, parking.ErrSpotContention):
		return http.StatusServiceUnavailable, "Parking system temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
