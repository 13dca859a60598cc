package parking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var serviceNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store Store, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return serviceNow })}, opts...)
	return NewService(store, opts...)
}

func TestProcessIncomingVehicle(t *testing.T) {
	store := &MockStore{}
	events := &recordingPublisher{}
	svc := newTestService(store, WithEventPublisher(events))

	store.On("NextAvailableSpot", mock.Anything, ClassCar).Return(1, nil)
	store.On("SetSpotAvailability", mock.Anything, 1, false).Return(true, nil)
	store.On("CountTickets", mock.Anything, "ABCDEF").Return(0, nil)
	store.On("InsertTicket", mock.Anything, mock.AnythingOfType("parking.Ticket")).
		Return(Ticket{ID: 1, VehicleRegNumber: "ABCDEF", Spot: Spot{ID: 1, Class: ClassCar}, InTime: serviceNow}, nil)

	receipt, err := svc.ProcessIncomingVehicle(context.Background(), StaticInput{Selection: 1, Registration: "ABCDEF"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), receipt.Ticket.ID)
	assert.Equal(t, 1, receipt.Ticket.Spot.ID)
	assert.False(t, receipt.RecurringUser)

	store.AssertExpectations(t)
	inserted := store.Calls[len(store.Calls)-1].Arguments.Get(1).(Ticket)
	assert.Equal(t, "ABCDEF", inserted.VehicleRegNumber)
	assert.True(t, inserted.InTime.Equal(serviceNow))
	assert.True(t, inserted.Open())
	assert.Zero(t, inserted.Price)
	assert.False(t, inserted.Spot.Available)

	require.Len(t, events.events, 1)
	assert.Equal(t, EventSessionOpened, events.events[0].Type)
}

func TestProcessIncomingVehicleRecurringUser(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	store.On("NextAvailableSpot", mock.Anything, ClassBike).Return(4, nil)
	store.On("SetSpotAvailability", mock.Anything, 4, false).Return(true, nil)
	store.On("CountTickets", mock.Anything, "ABCDEF").Return(1, nil)
	store.On("InsertTicket", mock.Anything, mock.AnythingOfType("parking.Ticket")).
		Return(Ticket{ID: 2, VehicleRegNumber: "ABCDEF", Spot: Spot{ID: 4, Class: ClassBike}, InTime: serviceNow}, nil)

	receipt, err := svc.ProcessIncomingVehicle(context.Background(), StaticInput{Selection: 2, Registration: "ABCDEF"})
	require.NoError(t, err)
	assert.True(t, receipt.RecurringUser)
}

func TestProcessIncomingVehicleInvalidSelection(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	_, err := svc.ProcessIncomingVehicle(context.Background(), StaticInput{Selection: 3, Registration: "ABCDEF"})
	assert.ErrorIs(t, err, ErrInvalidSelection)

	store.AssertNotCalled(t, "NextAvailableSpot", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "InsertTicket", mock.Anything, mock.Anything)
}

func TestProcessIncomingVehicleParkingFull(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	store.On("NextAvailableSpot", mock.Anything, ClassCar).Return(NoSpot, nil)

	_, err := svc.ProcessIncomingVehicle(context.Background(), StaticInput{Selection: 1, Registration: "ABCDEF"})
	assert.ErrorIs(t, err, ErrParkingFull)

	store.AssertNotCalled(t, "SetSpotAvailability", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "InsertTicket", mock.Anything, mock.Anything)
}

func TestProcessIncomingVehicleReleasesSpotOnBadRegistration(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	store.On("NextAvailableSpot", mock.Anything, ClassCar).Return(1, nil)
	store.On("SetSpotAvailability", mock.Anything, 1, false).Return(true, nil)
	store.On("SetSpotAvailability", mock.Anything, 1, true).Return(true, nil)

	_, err := svc.ProcessIncomingVehicle(context.Background(), StaticInput{Selection: 1, Registration: "   "})
	assert.ErrorIs(t, err, ErrInvalidRegistration)

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "InsertTicket", mock.Anything, mock.Anything)
}

func TestProcessIncomingVehicleCountFaultIsNotRecurring(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	store.On("NextAvailableSpot", mock.Anything, ClassCar).Return(1, nil)
	store.On("SetSpotAvailability", mock.Anything, 1, false).Return(true, nil)
	store.On("CountTickets", mock.Anything, "ABCDEF").Return(0, errors.New("timeout"))
	store.On("InsertTicket", mock.Anything, mock.AnythingOfType("parking.Ticket")).
		Return(Ticket{ID: 1, VehicleRegNumber: "ABCDEF", Spot: Spot{ID: 1, Class: ClassCar}, InTime: serviceNow}, nil)

	receipt, err := svc.ProcessIncomingVehicle(context.Background(), StaticInput{Selection: 1, Registration: "ABCDEF"})
	require.NoError(t, err)
	assert.False(t, receipt.RecurringUser)
}

func TestProcessIncomingVehicleOccupyFault(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	store.On("NextAvailableSpot", mock.Anything, ClassCar).Return(1, nil)
	store.On("SetSpotAvailability", mock.Anything, 1, false).Return(false, errors.New("connection reset"))

	_, err := svc.ProcessIncomingVehicle(context.Background(), StaticInput{Selection: 1, Registration: "ABCDEF"})
	assert.ErrorIs(t, err, ErrStore)

	store.AssertNotCalled(t, "CountTickets", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "InsertTicket", mock.Anything, mock.Anything)
	store.AssertNumberOfCalls(t, "SetSpotAvailability", 1)
}

func TestProcessIncomingVehicleInsertFaultKeepsSpot(t *testing.T) {
	store := &MockStore{}
	events := &recordingPublisher{}
	svc := newTestService(store, WithEventPublisher(events))

	store.On("NextAvailableSpot", mock.Anything, ClassCar).Return(1, nil)
	store.On("SetSpotAvailability", mock.Anything, 1, false).Return(true, nil)
	store.On("CountTickets", mock.Anything, "ABCDEF").Return(0, nil)
	store.On("InsertTicket", mock.Anything, mock.AnythingOfType("parking.Ticket")).
		Return(Ticket{}, errors.New("disk full"))

	_, err := svc.ProcessIncomingVehicle(context.Background(), StaticInput{Selection: 1, Registration: "ABCDEF"})
	assert.ErrorIs(t, err, ErrStore)

	store.AssertNotCalled(t, "SetSpotAvailability", mock.Anything, 1, true)
	assert.Empty(t, events.events)
}

func TestProcessIncomingVehicleInputFault(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)
	readErr := errors.New("stdin closed")

	_, err := svc.ProcessIncomingVehicle(context.Background(), failingInput{err: readErr})
	assert.ErrorIs(t, err, readErr)
	store.AssertNotCalled(t, "NextAvailableSpot", mock.Anything, mock.Anything)
}

func openTicket(stay time.Duration) Ticket {
	return Ticket{
		ID:               1,
		VehicleRegNumber: "ABCDEF",
		Spot:             Spot{ID: 1, Class: ClassCar, Available: false},
		InTime:           serviceNow.Add(-stay),
	}
}

func TestProcessExitingVehicle(t *testing.T) {
	store := &MockStore{}
	events := &recordingPublisher{}
	svc := newTestService(store, WithEventPublisher(events))

	store.On("LatestTicket", mock.Anything, "ABCDEF").Return(openTicket(time.Hour), true, nil)
	store.On("CountTickets", mock.Anything, "ABCDEF").Return(1, nil)
	store.On("CloseTicket", mock.Anything, int64(1), 1.5, serviceNow).Return(true, nil)
	store.On("SetSpotAvailability", mock.Anything, 1, true).Return(true, nil)

	receipt, err := svc.ProcessExitingVehicle(context.Background(), StaticInput{Registration: "ABCDEF"})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, receipt.Ticket.Price, 1e-9)
	assert.False(t, receipt.DiscountApplied)
	assert.True(t, receipt.Ticket.Spot.Available)
	require.NotNil(t, receipt.Ticket.OutTime)
	assert.True(t, receipt.Ticket.OutTime.Equal(serviceNow))

	store.AssertExpectations(t)
	require.Len(t, events.events, 1)
	assert.Equal(t, EventSessionClosed, events.events[0].Type)
}

func TestProcessExitingVehicleRecurringDiscount(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	store.On("LatestTicket", mock.Anything, "ABCDEF").Return(openTicket(time.Hour), true, nil)
	store.On("CountTickets", mock.Anything, "ABCDEF").Return(2, nil)
	store.On("CloseTicket", mock.Anything, int64(1), mock.AnythingOfType("float64"), serviceNow).Return(true, nil)
	store.On("SetSpotAvailability", mock.Anything, 1, true).Return(true, nil)

	receipt, err := svc.ProcessExitingVehicle(context.Background(), StaticInput{Registration: "ABCDEF"})
	require.NoError(t, err)
	assert.True(t, receipt.DiscountApplied)
	assert.InDelta(t, 1.425, receipt.Ticket.Price, 1e-9)
}

func TestProcessExitingVehicleUpdateFailureKeepsSpot(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	store.On("LatestTicket", mock.Anything, "ABCDEF").Return(openTicket(time.Hour), true, nil)
	store.On("CountTickets", mock.Anything, "ABCDEF").Return(1, nil)
	store.On("CloseTicket", mock.Anything, int64(1), 1.5, serviceNow).Return(false, errors.New("timeout"))

	_, err := svc.ProcessExitingVehicle(context.Background(), StaticInput{Registration: "ABCDEF"})
	assert.ErrorIs(t, err, ErrStore)

	store.AssertNotCalled(t, "SetSpotAvailability", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessExitingVehicleUnknownTicket(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	store.On("LatestTicket", mock.Anything, "GHIJKL").Return(Ticket{}, false, nil)

	_, err := svc.ProcessExitingVehicle(context.Background(), StaticInput{Registration: "GHIJKL"})
	assert.ErrorIs(t, err, ErrUnknownTicket)
	store.AssertNotCalled(t, "CloseTicket", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessExitingVehicleAlreadyClosed(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	closed := openTicket(time.Hour).Closed(serviceNow.Add(-time.Minute), 1.5)
	closed.Spot = closed.Spot.Release()
	store.On("LatestTicket", mock.Anything, "ABCDEF").Return(closed, true, nil)

	_, err := svc.ProcessExitingVehicle(context.Background(), StaticInput{Registration: "ABCDEF"})
	assert.ErrorIs(t, err, ErrTicketClosed)
	store.AssertNotCalled(t, "CountTickets", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "OpenTicketOnSpot", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "SetSpotAvailability", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessExitingVehicleReleasesStrandedSpot(t *testing.T) {
	store := &MockStore{}
	events := &recordingPublisher{}
	svc := newTestService(store, WithEventPublisher(events))

	closed := openTicket(time.Hour).Closed(serviceNow.Add(-time.Minute), 1.5)
	store.On("LatestTicket", mock.Anything, "ABCDEF").Return(closed, true, nil)
	store.On("OpenTicketOnSpot", mock.Anything, 1).Return(false, nil)
	store.On("CountTickets", mock.Anything, "ABCDEF").Return(1, nil)
	store.On("SetSpotAvailability", mock.Anything, 1, true).Return(true, nil)

	receipt, err := svc.ProcessExitingVehicle(context.Background(), StaticInput{Registration: "ABCDEF"})
	require.NoError(t, err)
	assert.True(t, receipt.Ticket.Spot.Available)
	assert.InDelta(t, 1.5, receipt.Ticket.Price, 1e-9)
	assert.False(t, receipt.DiscountApplied)

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "CloseTicket", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	require.Len(t, events.events, 1)
	assert.Equal(t, EventSessionClosed, events.events[0].Type)
}

func TestProcessExitingVehicleLeavesSpotOfAnotherVehicle(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	closed := openTicket(time.Hour).Closed(serviceNow.Add(-time.Minute), 1.5)
	store.On("LatestTicket", mock.Anything, "ABCDEF").Return(closed, true, nil)
	store.On("OpenTicketOnSpot", mock.Anything, 1).Return(true, nil)

	_, err := svc.ProcessExitingVehicle(context.Background(), StaticInput{Registration: "ABCDEF"})
	assert.ErrorIs(t, err, ErrTicketClosed)
	store.AssertNotCalled(t, "SetSpotAvailability", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessExitingVehicleSpotHolderFault(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	closed := openTicket(time.Hour).Closed(serviceNow.Add(-time.Minute), 1.5)
	store.On("LatestTicket", mock.Anything, "ABCDEF").Return(closed, true, nil)
	store.On("OpenTicketOnSpot", mock.Anything, 1).Return(false, errors.New("timeout"))

	_, err := svc.ProcessExitingVehicle(context.Background(), StaticInput{Registration: "ABCDEF"})
	assert.ErrorIs(t, err, ErrStore)
	store.AssertNotCalled(t, "SetSpotAvailability", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessExitingVehicleCountFaultAborts(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	store.On("LatestTicket", mock.Anything, "ABCDEF").Return(openTicket(time.Hour), true, nil)
	store.On("CountTickets", mock.Anything, "ABCDEF").Return(0, errors.New("timeout"))

	_, err := svc.ProcessExitingVehicle(context.Background(), StaticInput{Registration: "ABCDEF"})
	assert.ErrorIs(t, err, ErrStore)
	store.AssertNotCalled(t, "CloseTicket", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessExitingVehicleReleaseFault(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	store.On("LatestTicket", mock.Anything, "ABCDEF").Return(openTicket(time.Hour), true, nil)
	store.On("CountTickets", mock.Anything, "ABCDEF").Return(1, nil)
	store.On("CloseTicket", mock.Anything, int64(1), 1.5, serviceNow).Return(true, nil)
	store.On("SetSpotAvailability", mock.Anything, 1, true).Return(false, errors.New("timeout"))

	_, err := svc.ProcessExitingVehicle(context.Background(), StaticInput{Registration: "ABCDEF"})
	assert.ErrorIs(t, err, ErrStore)
}

func TestProcessExitingVehicleEmptyRegistration(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	_, err := svc.ProcessExitingVehicle(context.Background(), StaticInput{Registration: ""})
	assert.ErrorIs(t, err, ErrInvalidRegistration)
	store.AssertNotCalled(t, "LatestTicket", mock.Anything, mock.Anything)
}

func TestPublishFailureDoesNotFailWorkflow(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store, WithEventPublisher(&recordingPublisher{err: errors.New("broker down")}))

	store.On("LatestTicket", mock.Anything, "ABCDEF").Return(openTicket(20*time.Minute), true, nil)
	store.On("CountTickets", mock.Anything, "ABCDEF").Return(1, nil)
	store.On("CloseTicket", mock.Anything, int64(1), 0.0, serviceNow).Return(true, nil)
	store.On("SetSpotAvailability", mock.Anything, 1, true).Return(true, nil)

	receipt, err := svc.ProcessExitingVehicle(context.Background(), StaticInput{Registration: "ABCDEF"})
	require.NoError(t, err)
	assert.Zero(t, receipt.Ticket.Price)
}

func TestServiceHistory(t *testing.T) {
	store := &MockStore{}
	svc := newTestService(store)

	store.On("Tickets", mock.Anything, "ABCDEF").Return([]Ticket{{ID: 2}, {ID: 1}}, nil)

	tickets, err := svc.History(context.Background(), " ABCDEF ")
	require.NoError(t, err)
	assert.Len(t, tickets, 2)

	_, err = svc.History(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidRegistration)
}
