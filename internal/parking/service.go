package parking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"parking-system/internal/lock"
	"parking-system/internal/logging"
)

// EntryReceipt is what the entry workflow reports back to the gate.
type EntryReceipt struct {
	Ticket        Ticket
	RecurringUser bool
}

// ExitReceipt is what the exit workflow reports back to the gate.
type ExitReceipt struct {
	Ticket          Ticket
	DiscountApplied bool
}

// Service runs the entry and exit workflows. It holds no session state of its
// own; the store is the only shared resource.
type Service struct {
	allocator *SpotAllocator
	ledger    *TicketLedger
	fares     *FareCalculator
	locker    Locker
	events    EventPublisher
	now       func() time.Time
}

type Option func(*Service)

func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		allocator: NewSpotAllocator(store),
		ledger:    NewTicketLedger(store),
		fares:     NewFareCalculator(),
		locker:    lock.NewKeyedMutex(),
		events:    nopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Allocator() *SpotAllocator { return s.allocator }

func (s *Service) Ledger() *TicketLedger { return s.ledger }

// ProcessIncomingVehicle allocates a spot and opens a ticket.
func (s *Service) ProcessIncomingVehicle(ctx context.Context, in InputSource) (EntryReceipt, error) {
	selection, err := in.ReadVehicleClassSelection(ctx)
	if err != nil {
		return EntryReceipt{}, fmt.Errorf("read vehicle type: %w", err)
	}

	class, err := ClassFromSelection(selection)
	if err != nil {
		logging.Warn(ctx).Int("selection", selection).Msg("incorrect vehicle type selection")
		return EntryReceipt{}, err
	}

	spot, ok, err := s.allocator.Claim(ctx, class)
	if err != nil {
		logging.Error(ctx).Err(err).Str("vehicle_class", class.String()).Msg("failed to claim parking spot")
		return EntryReceipt{}, err
	}
	if !ok {
		logging.Info(ctx).Str("vehicle_class", class.String()).Msg("parking is full")
		return EntryReceipt{}, fmt.Errorf("%w: %s", ErrParkingFull, class)
	}

	regNumber, err := readRegistration(ctx, in)
	if err != nil {
		s.releaseUnbound(ctx, spot)
		return EntryReceipt{}, err
	}

	// The recurring flag is informational at entry; an unknown visit count
	// degrades to "not recurring".
	visits, err := s.ledger.CountVisits(ctx, regNumber)
	if err != nil {
		logging.Warn(ctx).Err(err).Str("registration", regNumber).Msg("visit count unavailable")
	}
	recurring := visits > 0

	ticket, err := s.ledger.Create(ctx, NewTicket(regNumber, spot, s.now()))
	if err != nil {
		logging.Error(ctx).Err(err).
			Str("registration", regNumber).
			Int("spot_id", spot.ID).
			Msg("ticket not saved, spot stays occupied")
		return EntryReceipt{}, err
	}

	logging.Info(ctx).
		Int64("ticket_id", ticket.ID).
		Str("registration", regNumber).
		Int("spot_id", spot.ID).
		Str("vehicle_class", class.String()).
		Bool("recurring_user", recurring).
		Msg("vehicle entered")

	s.publish(ctx, newSessionEvent(EventSessionOpened, ticket, recurring))

	return EntryReceipt{Ticket: ticket, RecurringUser: recurring}, nil
}

// ProcessExitingVehicle closes the vehicle's open ticket, prices it and frees the spot.
func (s *Service) ProcessExitingVehicle(ctx context.Context, in InputSource) (ExitReceipt, error) {
	regNumber, err := readRegistration(ctx, in)
	if err != nil {
		return ExitReceipt{}, err
	}

	unlock, err := s.locker.Lock(ctx, regNumber)
	if err != nil {
		return ExitReceipt{}, fmt.Errorf("lock exit for %s: %w", regNumber, err)
	}
	defer unlock()

	ticket, found, err := s.ledger.FindLatest(ctx, regNumber)
	if err != nil {
		logging.Error(ctx).Err(err).Str("registration", regNumber).Msg("failed to load ticket")
		return ExitReceipt{}, err
	}
	if !found {
		logging.Warn(ctx).Str("registration", regNumber).Msg("no ticket for vehicle")
		return ExitReceipt{}, fmt.Errorf("%w: %s", ErrUnknownTicket, regNumber)
	}
	if !ticket.Open() {
		return s.resumeExit(ctx, ticket)
	}

	ticket = ticket.WithOutTime(s.now())

	// The ticket being closed is itself one of the counted visits.
	visits, err := s.ledger.CountVisits(ctx, regNumber)
	if err != nil {
		logging.Error(ctx).Err(err).Str("registration", regNumber).Msg("failed to count visits")
		return ExitReceipt{}, err
	}
	discount := visits > 1

	ticket, err = s.fares.CloseTicket(ticket, discount)
	if err != nil {
		logging.Error(ctx).Err(err).Int64("ticket_id", ticket.ID).Msg("failed to compute fare")
		return ExitReceipt{}, err
	}

	if err := s.ledger.Update(ctx, ticket); err != nil {
		logging.Error(ctx).Err(err).
			Int64("ticket_id", ticket.ID).
			Int("spot_id", ticket.Spot.ID).
			Msg("unable to update ticket, spot stays occupied")
		return ExitReceipt{}, err
	}

	if _, err := s.allocator.Release(ctx, ticket.Spot); err != nil {
		logging.Error(ctx).Err(err).
			Int64("ticket_id", ticket.ID).
			Int("spot_id", ticket.Spot.ID).
			Msg("ticket closed but spot not released")
		return ExitReceipt{}, err
	}
	ticket.Spot = ticket.Spot.Release()

	logging.Info(ctx).
		Int64("ticket_id", ticket.ID).
		Str("registration", regNumber).
		Int("spot_id", ticket.Spot.ID).
		Float64("price", ticket.Price).
		Bool("discount", discount).
		Msg("vehicle exited")

	s.publish(ctx, newSessionEvent(EventSessionClosed, ticket, discount))

	return ExitReceipt{Ticket: ticket, DiscountApplied: discount}, nil
}

// resumeExit finishes an exit whose ticket was closed but whose spot was never
// released. Any other closed ticket is rejected with ErrTicketClosed.
func (s *Service) resumeExit(ctx context.Context, ticket Ticket) (ExitReceipt, error) {
	closedErr := fmt.Errorf("%w: %s has no open ticket", ErrTicketClosed, ticket.VehicleRegNumber)
	if ticket.Spot.Available {
		return ExitReceipt{}, closedErr
	}

	held, err := s.ledger.SpotHeld(ctx, ticket.Spot.ID)
	if err != nil {
		logging.Error(ctx).Err(err).Int("spot_id", ticket.Spot.ID).Msg("failed to check spot holder")
		return ExitReceipt{}, err
	}
	if held {
		return ExitReceipt{}, closedErr
	}

	visits, err := s.ledger.CountVisits(ctx, ticket.VehicleRegNumber)
	if err != nil {
		logging.Error(ctx).Err(err).Str("registration", ticket.VehicleRegNumber).Msg("failed to count visits")
		return ExitReceipt{}, err
	}
	discount := visits > 1

	if _, err := s.allocator.Release(ctx, ticket.Spot); err != nil {
		logging.Error(ctx).Err(err).
			Int64("ticket_id", ticket.ID).
			Int("spot_id", ticket.Spot.ID).
			Msg("spot still not released")
		return ExitReceipt{}, err
	}
	ticket.Spot = ticket.Spot.Release()

	logging.Info(ctx).
		Int64("ticket_id", ticket.ID).
		Str("registration", ticket.VehicleRegNumber).
		Int("spot_id", ticket.Spot.ID).
		Float64("price", ticket.Price).
		Msg("stranded spot released on repeated exit")

	s.publish(ctx, newSessionEvent(EventSessionClosed, ticket, discount))

	return ExitReceipt{Ticket: ticket, DiscountApplied: discount}, nil
}

// Spots lists the spot pool.
func (s *Service) Spots(ctx context.Context) ([]Spot, error) {
	return s.allocator.Spots(ctx)
}

// History lists a vehicle's tickets, newest first.
func (s *Service) History(ctx context.Context, regNumber string) ([]Ticket, error) {
	regNumber = strings.TrimSpace(regNumber)
	if regNumber == "" {
		return nil, ErrInvalidRegistration
	}
	return s.ledger.History(ctx, regNumber)
}

// releaseUnbound frees a spot claimed for an entry that never got a ticket.
func (s *Service) releaseUnbound(ctx context.Context, spot Spot) {
	if _, err := s.allocator.Release(ctx, spot); err != nil {
		logging.Error(ctx).Err(err).Int("spot_id", spot.ID).Msg("failed to release unbound spot")
	}
}

func (s *Service) publish(ctx context.Context, event SessionEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		logging.Warn(ctx).Err(err).Str("event_type", event.Type).Int64("ticket_id", event.TicketID).
			Msg("failed to publish session event")
	}
}

func readRegistration(ctx context.Context, in InputSource) (string, error) {
	regNumber, err := in.ReadVehicleRegistrationNumber(ctx)
	if err != nil {
		if errors.Is(err, ErrInvalidRegistration) {
			return "", err
		}
		return "", fmt.Errorf("read registration number: %w", err)
	}

	regNumber = strings.TrimSpace(regNumber)
	if regNumber == "" {
		return "", ErrInvalidRegistration
	}
	return regNumber, nil
}
