package parking

import (
	"context"
	"fmt"
	"strings"
)

// VisitCountUnknown is returned by CountVisits together with an error when the
// store could not be queried, so it is never mistaken for "zero visits".
const VisitCountUnknown = -1

// TicketLedger records parking sessions and answers visit-history questions.
type TicketLedger struct {
	store TicketStore
}

func NewTicketLedger(store TicketStore) *TicketLedger {
	return &TicketLedger{store: store}
}

// Create persists a new open ticket and returns it with its assigned id.
func (l *TicketLedger) Create(ctx context.Context, ticket Ticket) (Ticket, error) {
	if strings.TrimSpace(ticket.VehicleRegNumber) == "" {
		return ticket, ErrInvalidRegistration
	}
	if !ticket.Spot.Class.Valid() {
		return ticket, fmt.Errorf("%w: spot %d", ErrUnknownVehicleClass, ticket.Spot.ID)
	}

	saved, err := l.store.InsertTicket(ctx, ticket)
	if err != nil {
		return ticket, fmt.Errorf("%w: save ticket for %s: %w", ErrStore, ticket.VehicleRegNumber, err)
	}
	return saved, nil
}

// FindLatest returns the most recent ticket of the vehicle. A vehicle that
// never entered yields found == false.
func (l *TicketLedger) FindLatest(ctx context.Context, regNumber string) (Ticket, bool, error) {
	ticket, found, err := l.store.LatestTicket(ctx, regNumber)
	if err != nil {
		return Ticket{}, false, fmt.Errorf("%w: get ticket for %s: %w", ErrStore, regNumber, err)
	}
	return ticket, found, nil
}

// Update stores the exit time and price of a ticket. Tickets without an exit
// time are rejected before the store is touched. A ticket that another exit
// already closed yields ErrTicketClosed.
func (l *TicketLedger) Update(ctx context.Context, ticket Ticket) error {
	if ticket.OutTime == nil {
		return fmt.Errorf("%w: ticket %d", ErrOpenTicketUpdate, ticket.ID)
	}

	closed, err := l.store.CloseTicket(ctx, ticket.ID, ticket.Price, *ticket.OutTime)
	if err != nil {
		return fmt.Errorf("%w: update ticket %d: %w", ErrStore, ticket.ID, err)
	}
	if !closed {
		return fmt.Errorf("%w: ticket %d", ErrTicketClosed, ticket.ID)
	}
	return nil
}

// CountVisits returns how many tickets the vehicle has, including an open one.
func (l *TicketLedger) CountVisits(ctx context.Context, regNumber string) (int, error) {
	count, err := l.store.CountTickets(ctx, regNumber)
	if err != nil {
		return VisitCountUnknown, fmt.Errorf("%w: count tickets for %s: %w", ErrStore, regNumber, err)
	}
	return count, nil
}

// SpotHeld reports whether an open ticket still occupies the spot.
func (l *TicketLedger) SpotHeld(ctx context.Context, spotID int) (bool, error) {
	held, err := l.store.OpenTicketOnSpot(ctx, spotID)
	if err != nil {
		return false, fmt.Errorf("%w: open ticket on spot %d: %w", ErrStore, spotID, err)
	}
	return held, nil
}

// History lists the vehicle's tickets, newest first.
func (l *TicketLedger) History(ctx context.Context, regNumber string) ([]Ticket, error) {
	tickets, err := l.store.Tickets(ctx, regNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: list tickets for %s: %w", ErrStore, regNumber, err)
	}
	return tickets, nil
}
