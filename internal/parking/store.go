package parking

import (
	"context"
	"time"
)

// SpotStore persists the spot pool. SetSpotAvailability is a compare-and-swap:
// it only flips a spot whose availability differs from the requested value and
// reports whether it did.
type SpotStore interface {
	NextAvailableSpot(ctx context.Context, class VehicleClass) (int, error)
	SetSpotAvailability(ctx context.Context, id int, available bool) (bool, error)
	Spots(ctx context.Context) ([]Spot, error)
}

// TicketStore persists tickets. CloseTicket only updates a ticket whose exit
// time is still absent and reports whether it did. OpenTicketOnSpot reports
// whether any vehicle still holds an open ticket for the spot.
type TicketStore interface {
	InsertTicket(ctx context.Context, ticket Ticket) (Ticket, error)
	LatestTicket(ctx context.Context, regNumber string) (Ticket, bool, error)
	CloseTicket(ctx context.Context, id int64, price float64, outTime time.Time) (bool, error)
	CountTickets(ctx context.Context, regNumber string) (int, error)
	Tickets(ctx context.Context, regNumber string) ([]Ticket, error)
	OpenTicketOnSpot(ctx context.Context, spotID int) (bool, error)
}

// Store is the Persistence Store consumed by the allocator and the ledger.
type Store interface {
	SpotStore
	TicketStore
}

// InputSource supplies the vehicle-class selection and the registration number.
type InputSource interface {
	ReadVehicleClassSelection(ctx context.Context) (int, error)
	ReadVehicleRegistrationNumber(ctx context.Context) (string, error)
}

// StaticInput is an InputSource with fixed answers, used by request-scoped adapters.
type StaticInput struct {
	Selection    int
	Registration string
}

func (s StaticInput) ReadVehicleClassSelection(context.Context) (int, error) {
	return s.Selection, nil
}

func (s StaticInput) ReadVehicleRegistrationNumber(context.Context) (string, error) {
	return s.Registration, nil
}

// Locker serializes exit workflows per registration number.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// EventPublisher receives session lifecycle events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event SessionEvent) error
}

const (
	EventSessionOpened = "session.opened"
	EventSessionClosed = "session.closed"
)

type SessionEvent struct {
	Type             string     `json:"type"`
	TicketID         int64      `json:"ticket_id"`
	VehicleRegNumber string     `json:"vehicle_reg_number"`
	SpotID           int        `json:"spot_id"`
	VehicleClass     string     `json:"vehicle_class"`
	InTime           time.Time  `json:"in_time"`
	OutTime          *time.Time `json:"out_time,omitempty"`
	Price            float64    `json:"price"`
	RecurringUser    bool       `json:"recurring_user"`
}

func newSessionEvent(eventType string, t Ticket, recurring bool) SessionEvent {
	return SessionEvent{
		Type:             eventType,
		TicketID:         t.ID,
		VehicleRegNumber: t.VehicleRegNumber,
		SpotID:           t.Spot.ID,
		VehicleClass:     t.Spot.Class.String(),
		InTime:           t.InTime,
		OutTime:          t.OutTime,
		Price:            t.Price,
		RecurringUser:    recurring,
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, SessionEvent) error { return nil }
