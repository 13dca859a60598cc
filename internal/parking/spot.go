package parking

import "fmt"

// NoSpot is returned by stores when no spot of a class is free.
const NoSpot = 0

// Spot is a physical parking location. Only Available ever changes.
type Spot struct {
	ID        int
	Class     VehicleClass
	Available bool
}

func NewSpot(id int, class VehicleClass, available bool) (Spot, error) {
	if id <= 0 {
		return Spot{}, fmt.Errorf("parking: invalid spot id %d", id)
	}
	if !class.Valid() {
		return Spot{}, fmt.Errorf("%w: spot %d", ErrUnknownVehicleClass, id)
	}
	return Spot{ID: id, Class: class, Available: available}, nil
}

// Occupy returns a copy of the spot marked unavailable.
func (s Spot) Occupy() Spot {
	s.Available = false
	return s
}

// Release returns a copy of the spot marked available.
func (s Spot) Release() Spot {
	s.Available = true
	return s
}
