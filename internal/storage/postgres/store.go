package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"parking-system/internal/parking"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var ticketColumns = []string{
	"t.id",
	"t.parking_number",
	"t.vehicle_reg_number",
	"t.price",
	"t.in_time",
	"t.out_time",
	"p.type",
	"p.available",
}

// Store implements parking.Store. Availability flips and ticket closing are
// conditional updates, so concurrent gates racing on the same row see exactly
// one winner.
type Store struct {
	db Querier
}

func NewStore(db Querier) *Store {
	return &Store{db: db}
}

func (s *Store) NextAvailableSpot(ctx context.Context, class parking.VehicleClass) (int, error) {
	query, args, err := psql.Select("number").
		From("parking").
		Where(sq.Eq{"type": class.String(), "available": true}).
		OrderBy("number").
		Limit(1).
		ToSql()
	if err != nil {
		return parking.NoSpot, fmt.Errorf("build next spot query: %w", err)
	}

	var number int
	err = s.db.QueryRow(ctx, query, args...).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return parking.NoSpot, nil
	}
	if err != nil {
		return parking.NoSpot, fmt.Errorf("query next %s spot: %w", class, err)
	}
	return number, nil
}

func (s *Store) SetSpotAvailability(ctx context.Context, id int, available bool) (bool, error) {
	query, args, err := psql.Update("parking").
		Set("available", available).
		Where(sq.Eq{"number": id}).
		Where(sq.NotEq{"available": available}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build spot update: %w", err)
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update spot %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Spots(ctx context.Context) ([]parking.Spot, error) {
	query, args, err := psql.Select("number", "type", "available").
		From("parking").
		OrderBy("number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build spots query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query spots: %w", err)
	}
	defer rows.Close()

	var spots []parking.Spot
	for rows.Next() {
		var (
			spot      parking.Spot
			className string
		)
		if err := rows.Scan(&spot.ID, &className, &spot.Available); err != nil {
			return nil, err
		}
		if spot.Class, err = parking.ParseVehicleClass(className); err != nil {
			return nil, err
		}
		spots = append(spots, spot)
	}
	return spots, rows.Err()
}

func (s *Store) InsertTicket(ctx context.Context, ticket parking.Ticket) (parking.Ticket, error) {
	query, args, err := psql.Insert("ticket").
		Columns("parking_number", "vehicle_reg_number", "price", "in_time", "out_time").
		Values(ticket.Spot.ID, ticket.VehicleRegNumber, ticket.Price, ticket.InTime, ticket.OutTime).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return ticket, fmt.Errorf("build ticket insert: %w", err)
	}

	if err := s.db.QueryRow(ctx, query, args...).Scan(&ticket.ID); err != nil {
		return ticket, fmt.Errorf("insert ticket: %w", err)
	}
	return ticket, nil
}

func (s *Store) LatestTicket(ctx context.Context, regNumber string) (parking.Ticket, bool, error) {
	query, args, err := ticketsQuery(regNumber).Limit(1).ToSql()
	if err != nil {
		return parking.Ticket{}, false, fmt.Errorf("build latest ticket query: %w", err)
	}

	ticket, err := scanTicket(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return parking.Ticket{}, false, nil
	}
	if err != nil {
		return parking.Ticket{}, false, fmt.Errorf("query latest ticket: %w", err)
	}
	return ticket, true, nil
}

func (s *Store) CloseTicket(ctx context.Context, id int64, price float64, outTime time.Time) (bool, error) {
	query, args, err := psql.Update("ticket").
		Set("price", price).
		Set("out_time", outTime).
		Where(sq.Eq{"id": id, "out_time": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build ticket update: %w", err)
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update ticket %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CountTickets(ctx context.Context, regNumber string) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("ticket").
		Where(sq.Eq{"vehicle_reg_number": regNumber}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build ticket count: %w", err)
	}

	var count int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return count, nil
}

func (s *Store) Tickets(ctx context.Context, regNumber string) ([]parking.Ticket, error) {
	query, args, err := ticketsQuery(regNumber).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tickets query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []parking.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func (s *Store) OpenTicketOnSpot(ctx context.Context, spotID int) (bool, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("ticket").
		Where(sq.Eq{"parking_number": spotID, "out_time": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build open ticket query: %w", err)
	}

	var count int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("query open ticket on spot %d: %w", spotID, err)
	}
	return count > 0, nil
}

func ticketsQuery(regNumber string) sq.SelectBuilder {
	return psql.Select(ticketColumns...).
		From("ticket t").
		Join("parking p ON p.number = t.parking_number").
		Where(sq.Eq{"t.vehicle_reg_number": regNumber}).
		OrderBy("t.in_time DESC", "t.id DESC")
}

func scanTicket(row pgx.Row) (parking.Ticket, error) {
	var (
		ticket    parking.Ticket
		className string
	)
	err := row.Scan(
		&ticket.ID,
		&ticket.Spot.ID,
		&ticket.VehicleRegNumber,
		&ticket.Price,
		&ticket.InTime,
		&ticket.OutTime,
		&className,
		&ticket.Spot.Available,
	)
	if err != nil {
		return parking.Ticket{}, err
	}

	if ticket.Spot.Class, err = parking.ParseVehicleClass(className); err != nil {
		return parking.Ticket{}, err
	}
	return ticket, nil
}
