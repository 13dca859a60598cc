// Package memory keeps the spot pool and the ticket ledger in process memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"parking-system/internal/parking"
)

type slot struct {
	spot parking.Spot
}

// Store is a mutex-guarded parking.Store. Every method runs under one lock, so
// the compare-and-swap operations are atomic with respect to each other.
type Store struct {
	mu      sync.Mutex
	slots   []*slot
	tickets []parking.Ticket
	nextID  int64
}

// NewStore provisions car spots first, then bike spots, numbered from 1.
func NewStore(carSpots, bikeSpots int) *Store {
	slots := make([]*slot, 0, carSpots+bikeSpots)
	for i := 0; i < carSpots; i++ {
		slots = append(slots, &slot{spot: parking.Spot{ID: len(slots) + 1, Class: parking.ClassCar, Available: true}})
	}
	for i := 0; i < bikeSpots; i++ {
		slots = append(slots, &slot{spot: parking.Spot{ID: len(slots) + 1, Class: parking.ClassBike, Available: true}})
	}

	return &Store{
		slots:  slots,
		nextID: 1,
	}
}

func (s *Store) NextAvailableSpot(ctx context.Context, class parking.VehicleClass) (int, error) {
	if err := ctx.Err(); err != nil {
		return parking.NoSpot, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sl := range s.slots {
		if sl.spot.Class == class && sl.spot.Available {
			return sl.spot.ID, nil
		}
	}
	return parking.NoSpot, nil
}

func (s *Store) SetSpotAvailability(ctx context.Context, id int, available bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.find(id)
	if sl == nil {
		return false, nil
	}
	if sl.spot.Available == available {
		return false, nil
	}
	sl.spot.Available = available
	return true, nil
}

func (s *Store) Spots(ctx context.Context) ([]parking.Spot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	spots := make([]parking.Spot, 0, len(s.slots))
	for _, sl := range s.slots {
		spots = append(spots, sl.spot)
	}
	sort.Slice(spots, func(i, j int) bool {
		return spots[i].ID < spots[j].ID
	})
	return spots, nil
}

func (s *Store) InsertTicket(ctx context.Context, ticket parking.Ticket) (parking.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return ticket, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ticket.ID = s.nextID
	s.nextID++
	s.tickets = append(s.tickets, cloneTicket(ticket))
	return ticket, nil
}

func (s *Store) LatestTicket(ctx context.Context, regNumber string) (parking.Ticket, bool, error) {
	if err := ctx.Err(); err != nil {
		return parking.Ticket{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		latest parking.Ticket
		found  bool
	)
	for _, t := range s.tickets {
		if t.VehicleRegNumber != regNumber {
			continue
		}
		if !found || newer(t, latest) {
			latest, found = t, true
		}
	}
	if !found {
		return parking.Ticket{}, false, nil
	}
	return s.withSpot(cloneTicket(latest)), true, nil
}

func (s *Store) CloseTicket(ctx context.Context, id int64, price float64, outTime time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tickets {
		if s.tickets[i].ID != id {
			continue
		}
		if s.tickets[i].OutTime != nil {
			return false, nil
		}
		s.tickets[i] = s.tickets[i].Closed(outTime, price)
		return true, nil
	}
	return false, nil
}

func (s *Store) CountTickets(ctx context.Context, regNumber string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, t := range s.tickets {
		if t.VehicleRegNumber == regNumber {
			count++
		}
	}
	return count, nil
}

func (s *Store) Tickets(ctx context.Context, regNumber string) ([]parking.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var tickets []parking.Ticket
	for _, t := range s.tickets {
		if t.VehicleRegNumber == regNumber {
			tickets = append(tickets, s.withSpot(cloneTicket(t)))
		}
	}
	sort.Slice(tickets, func(i, j int) bool {
		return newer(tickets[i], tickets[j])
	})
	return tickets, nil
}

func (s *Store) OpenTicketOnSpot(ctx context.Context, spotID int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tickets {
		if t.Spot.ID == spotID && t.OutTime == nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) find(id int) *slot {
	if id < 1 || id > len(s.slots) {
		return nil
	}
	return s.slots[id-1]
}

// withSpot refreshes the ticket's spot with the current availability.
func (s *Store) withSpot(t parking.Ticket) parking.Ticket {
	if sl := s.find(t.Spot.ID); sl != nil {
		t.Spot = sl.spot
	}
	return t
}

func newer(a, b parking.Ticket) bool {
	if !a.InTime.Equal(b.InTime) {
		return a.InTime.After(b.InTime)
	}
	return a.ID > b.ID
}

func cloneTicket(t parking.Ticket) parking.Ticket {
	if t.OutTime != nil {
		out := *t.OutTime
		t.OutTime = &out
	}
	return t
}
