package parking

import (
	"context"
	"errors"
	"fmt"
)

const maxClaimAttempts = 5

// SpotAllocator picks and toggles spots through the store.
type SpotAllocator struct {
	store SpotStore
}

func NewSpotAllocator(store SpotStore) *SpotAllocator {
	return &SpotAllocator{store: store}
}

// NextAvailableSpot returns the lowest-numbered free spot of the class.
// A full facility is reported with ok == false, not an error.
func (a *SpotAllocator) NextAvailableSpot(ctx context.Context, class VehicleClass) (Spot, bool, error) {
	if !class.Valid() {
		return Spot{}, false, fmt.Errorf("%w: %s", ErrUnknownVehicleClass, class)
	}

	id, err := a.store.NextAvailableSpot(ctx, class)
	if err != nil {
		return Spot{}, false, fmt.Errorf("%w: next available %s spot: %w", ErrStore, class, err)
	}
	if id <= NoSpot {
		return Spot{}, false, nil
	}

	return Spot{ID: id, Class: class, Available: true}, true, nil
}

// Occupy marks the spot unavailable. It returns ErrSpotContention when the
// spot was already taken.
func (a *SpotAllocator) Occupy(ctx context.Context, spot Spot) (Spot, error) {
	changed, err := a.store.SetSpotAvailability(ctx, spot.ID, false)
	if err != nil {
		return spot, fmt.Errorf("%w: occupy spot %d: %w", ErrStore, spot.ID, err)
	}
	if !changed {
		return spot, fmt.Errorf("%w: spot %d already occupied", ErrSpotContention, spot.ID)
	}
	return spot.Occupy(), nil
}

// Release marks the spot available. Releasing a free spot is a no-op.
func (a *SpotAllocator) Release(ctx context.Context, spot Spot) (Spot, error) {
	if _, err := a.store.SetSpotAvailability(ctx, spot.ID, true); err != nil {
		return spot, fmt.Errorf("%w: release spot %d: %w", ErrStore, spot.ID, err)
	}
	return spot.Release(), nil
}

// Claim selects and occupies the lowest free spot of the class as one step.
// Losing the compare-and-swap to a concurrent entry moves on to the next candidate.
func (a *SpotAllocator) Claim(ctx context.Context, class VehicleClass) (Spot, bool, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		spot, ok, err := a.NextAvailableSpot(ctx, class)
		if err != nil || !ok {
			return Spot{}, false, err
		}

		occupied, err := a.Occupy(ctx, spot)
		if err == nil {
			return occupied, true, nil
		}
		if !errors.Is(err, ErrSpotContention) {
			return Spot{}, false, err
		}
	}
	return Spot{}, false, fmt.Errorf("%w: %s after %d attempts", ErrSpotContention, class, maxClaimAttempts)
}

// Spots lists the whole pool ordered by id.
func (a *SpotAllocator) Spots(ctx context.Context) ([]Spot, error) {
	spots, err := a.store.Spots(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list spots: %w", ErrStore, err)
	}
	return spots, nil
}
