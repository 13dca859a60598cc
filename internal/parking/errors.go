package parking

import "errors"

var (
	// ErrInvalidSelection is returned when the vehicle-class selection is neither CAR nor BIKE.
	ErrInvalidSelection = errors.New("parking: invalid vehicle type selection")

	// ErrUnknownVehicleClass is returned when a spot carries no recognized vehicle class.
	ErrUnknownVehicleClass = errors.New("parking: unknown vehicle class")

	// ErrParkingFull is returned when no spot of the requested class is free.
	ErrParkingFull = errors.New("parking: no spot available")

	// ErrUnknownTicket is returned when an exit is requested for a vehicle that never entered.
	ErrUnknownTicket = errors.New("parking: unknown ticket")

	// ErrTicketClosed is returned when the latest ticket of a vehicle already has an exit time.
	ErrTicketClosed = errors.New("parking: ticket already closed")

	// ErrInvalidInterval is returned when the exit time is absent or precedes the entry time.
	ErrInvalidInterval = errors.New("parking: invalid parking interval")

	// ErrOpenTicketUpdate is returned when a ticket update carries no exit time.
	ErrOpenTicketUpdate = errors.New("parking: ticket update without exit time")

	// ErrInvalidRegistration is returned for an empty registration number.
	ErrInvalidRegistration = errors.New("parking: invalid vehicle registration number")

	// ErrSpotContention is returned when concurrent entries keep taking the candidate spot.
	ErrSpotContention = errors.New("parking: spot claim contention")

	// ErrStore wraps every persistence fault.
	ErrStore = errors.New("parking: store failure")
)
