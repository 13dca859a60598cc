package parking

import (
	"fmt"
	"strings"
)

// VehicleClass restricts which spots a vehicle may use and which hourly rate applies.
type VehicleClass int

const (
	// ClassUnknown is the zero value and never a valid class.
	ClassUnknown VehicleClass = iota
	ClassCar
	ClassBike
)

// Selection values accepted from an input source.
const (
	SelectionCar  = 1
	SelectionBike = 2
)

func (c VehicleClass) String() string {
	switch c {
	case ClassCar:
		return "CAR"
	case ClassBike:
		return "BIKE"
	default:
		return "UNKNOWN"
	}
}

func (c VehicleClass) Valid() bool {
	return c == ClassCar || c == ClassBike
}

// ClassFromSelection maps a menu selection (1 = CAR, 2 = BIKE) to a class.
func ClassFromSelection(selection int) (VehicleClass, error) {
	switch selection {
	case SelectionCar:
		return ClassCar, nil
	case SelectionBike:
		return ClassBike, nil
	default:
		return ClassUnknown, fmt.Errorf("%w: %d", ErrInvalidSelection, selection)
	}
}

// ParseVehicleClass accepts the stored names "CAR" and "BIKE", case-insensitively.
func ParseVehicleClass(s string) (VehicleClass, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CAR":
		return ClassCar, nil
	case "BIKE":
		return ClassBike, nil
	default:
		return ClassUnknown, fmt.Errorf("%w: %q", ErrUnknownVehicleClass, s)
	}
}
