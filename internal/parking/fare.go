package parking

import (
	"fmt"
	"time"
)

const (
	CarRatePerHour  = 1.5
	BikeRatePerHour = 1.0

	// GracePeriod is always free.
	GracePeriod = 30 * time.Minute

	// RecurringDiscount is the fare reduction for vehicles with a prior ticket.
	RecurringDiscount = 0.05
)

// FareSchedule maps every vehicle class to its hourly rate.
type FareSchedule map[VehicleClass]float64

func DefaultFareSchedule() FareSchedule {
	return FareSchedule{
		ClassCar:  CarRatePerHour,
		ClassBike: BikeRatePerHour,
	}
}

// FareCalculator prices closed sessions. It is pure; it never touches a store.
type FareCalculator struct {
	rates FareSchedule
}

func NewFareCalculator() *FareCalculator {
	return &FareCalculator{rates: DefaultFareSchedule()}
}

// ComputeFare returns the price of a session with a known exit time.
// Durations are measured in fractional hours.
func (fc *FareCalculator) ComputeFare(ticket Ticket, applyDiscount bool) (float64, error) {
	if ticket.OutTime == nil {
		return 0, fmt.Errorf("%w: exit time is missing", ErrInvalidInterval)
	}
	if ticket.OutTime.Before(ticket.InTime) {
		return 0, fmt.Errorf("%w: exit time %s precedes entry time %s",
			ErrInvalidInterval, ticket.OutTime.Format(time.RFC3339), ticket.InTime.Format(time.RFC3339))
	}

	rate, ok := fc.rates[ticket.Spot.Class]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownVehicleClass, ticket.Spot.Class)
	}

	duration := ticket.OutTime.Sub(ticket.InTime).Hours()
	if duration < GracePeriod.Hours() {
		return 0, nil
	}

	price := duration * rate
	if applyDiscount {
		price = price * (1 - RecurringDiscount)
	}
	return price, nil
}

// CloseTicket computes the fare and returns the closed snapshot.
func (fc *FareCalculator) CloseTicket(ticket Ticket, applyDiscount bool) (Ticket, error) {
	price, err := fc.ComputeFare(ticket, applyDiscount)
	if err != nil {
		return ticket, err
	}
	return ticket.Closed(*ticket.OutTime, price), nil
}
