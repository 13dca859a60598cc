package postgres

import (
	"context"
	"fmt"

	"parking-system/internal/parking"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS parking (
		number    INTEGER PRIMARY KEY,
		type      VARCHAR(10) NOT NULL CHECK (type IN ('CAR', 'BIKE')),
		available BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS ticket (
		id                 BIGSERIAL PRIMARY KEY,
		parking_number     INTEGER NOT NULL REFERENCES parking(number),
		vehicle_reg_number VARCHAR(64) NOT NULL,
		price              DOUBLE PRECISION NOT NULL DEFAULT 0,
		in_time            TIMESTAMPTZ NOT NULL,
		out_time           TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ticket_vehicle_reg_number ON ticket(vehicle_reg_number, in_time DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_parking_type_available ON parking(type, available, number)`,
}

func Migrate(ctx context.Context, db Querier) error {
	for _, m := range migrations {
		if _, err := db.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Seed provisions car spots first, then bike spots, numbered from 1. Spots
// that already exist keep their availability.
func Seed(ctx context.Context, db Querier, carSpots, bikeSpots int) error {
	query, args, err := seedQuery(carSpots, bikeSpots)
	if err != nil {
		return fmt.Errorf("build seed query: %w", err)
	}
	if query == "" {
		return nil
	}

	if _, err := db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("seed parking spots: %w", err)
	}
	return nil
}

func seedQuery(carSpots, bikeSpots int) (string, []any, error) {
	if carSpots+bikeSpots == 0 {
		return "", nil, nil
	}

	insert := psql.Insert("parking").Columns("number", "type", "available")
	number := 1
	for i := 0; i < carSpots; i++ {
		insert = insert.Values(number, parking.ClassCar.String(), true)
		number++
	}
	for i := 0; i < bikeSpots; i++ {
		insert = insert.Values(number, parking.ClassBike.String(), true)
		number++
	}

	return insert.Suffix("ON CONFLICT (number) DO NOTHING").ToSql()
}
