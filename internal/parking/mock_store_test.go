package parking

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) NextAvailableSpot(ctx context.Context, class VehicleClass) (int, error) {
	args := m.Called(ctx, class)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) SetSpotAvailability(ctx context.Context, id int, available bool) (bool, error) {
	args := m.Called(ctx, id, available)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Spots(ctx context.Context) ([]Spot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Spot), args.Error(1)
}

func (m *MockStore) InsertTicket(ctx context.Context, ticket Ticket) (Ticket, error) {
	args := m.Called(ctx, ticket)
	return args.Get(0).(Ticket), args.Error(1)
}

func (m *MockStore) LatestTicket(ctx context.Context, regNumber string) (Ticket, bool, error) {
	args := m.Called(ctx, regNumber)
	return args.Get(0).(Ticket), args.Bool(1), args.Error(2)
}

func (m *MockStore) CloseTicket(ctx context.Context, id int64, price float64, outTime time.Time) (bool, error) {
	args := m.Called(ctx, id, price, outTime)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) CountTickets(ctx context.Context, regNumber string) (int, error) {
	args := m.Called(ctx, regNumber)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) Tickets(ctx context.Context, regNumber string) ([]Ticket, error) {
	args := m.Called(ctx, regNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Ticket), args.Error(1)
}

func (m *MockStore) OpenTicketOnSpot(ctx context.Context, spotID int) (bool, error) {
	args := m.Called(ctx, spotID)
	return args.Bool(0), args.Error(1)
}

type recordingPublisher struct {
	events []SessionEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event SessionEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type failingInput struct {
	err error
}

func (f failingInput) ReadVehicleClassSelection(context.Context) (int, error) {
	return 0, f.err
}

func (f failingInput) ReadVehicleRegistrationNumber(context.Context) (string, error) {
	return "", f.err
}
