package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"parking-system/internal/parking"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type EntryRequest struct {
	VehicleType  int    `json:"vehicle_type"`
	Registration string `json:"registration"`
}

type ExitRequest struct {
	Registration string `json:"registration"`
}

type TicketResponse struct {
	TicketID        int64      `json:"ticket_id"`
	Registration    string     `json:"registration"`
	SpotID          int        `json:"spot_id"`
	VehicleClass    string     `json:"vehicle_class"`
	InTime          time.Time  `json:"in_time"`
	OutTime         *time.Time `json:"out_time,omitempty"`
	Price           float64    `json:"price"`
	RecurringUser   bool       `json:"recurring_user,omitempty"`
	DiscountApplied bool       `json:"discount_applied,omitempty"`
}

type SpotStatus struct {
	SpotID       int    `json:"spot_id"`
	VehicleClass string `json:"vehicle_class"`
	Available    bool   `json:"available"`
}

type ClassAvailability struct {
	Capacity  int `json:"capacity"`
	Available int `json:"available"`
}

type SpotsResponse struct {
	Capacity  int                          `json:"capacity"`
	Occupied  int                          `json:"occupied"`
	Available int                          `json:"available"`
	ByClass   map[string]ClassAvailability `json:"by_class"`
	Spots     []SpotStatus                 `json:"spots"`
}

type HistoryResponse struct {
	Registration string           `json:"registration"`
	Visits       int              `json:"visits"`
	Tickets      []TicketResponse `json:"tickets"`
}

func newTicketResponse(t parking.Ticket) TicketResponse {
	return TicketResponse{
		TicketID:     t.ID,
		Registration: t.VehicleRegNumber,
		SpotID:       t.Spot.ID,
		VehicleClass: t.Spot.Class.String(),
		InTime:       t.InTime,
		OutTime:      t.OutTime,
		Price:        t.Price,
	}
}

func newSpotsResponse(spots []parking.Spot) SpotsResponse {
	resp := SpotsResponse{
		Capacity: len(spots),
		ByClass:  make(map[string]ClassAvailability),
		Spots:    make([]SpotStatus, 0, len(spots)),
	}

	for _, spot := range spots {
		class := spot.Class.String()
		byClass := resp.ByClass[class]
		byClass.Capacity++
		if spot.Available {
			byClass.Available++
			resp.Available++
		} else {
			resp.Occupied++
		}
		resp.ByClass[class] = byClass

		resp.Spots = append(resp.Spots, SpotStatus{
			SpotID:       spot.ID,
			VehicleClass: class,
			Available:    spot.Available,
		})
	}
	return resp
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		meta.RequestID = reqID
	}

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}
