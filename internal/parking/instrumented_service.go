package parking

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type InstrumentedService struct {
	*Service
	telemetry *TelemetryProvider

	// Metrics
	entryOperations   metric.Int64Counter
	exitOperations    metric.Int64Counter
	occupancyGauge    metric.Int64UpDownCounter
	fareAmount        metric.Float64Histogram
	operationDuration metric.Float64Histogram
}

func NewInstrumentedService(service *Service, telemetry *TelemetryProvider) (*InstrumentedService, error) {
	meter := telemetry.Meter()

	entryOperations, err := meter.Int64Counter("parking_entry_operations_total",
		metric.WithDescription("Total number of vehicle entry workflows"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	exitOperations, err := meter.Int64Counter("parking_exit_operations_total",
		metric.WithDescription("Total number of vehicle exit workflows"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	occupancyGauge, err := meter.Int64UpDownCounter("parking_occupied_spots",
		metric.WithDescription("Spots occupied through this instance"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	fareAmount, err := meter.Float64Histogram("parking_fare_amount",
		metric.WithDescription("Fare charged per closed session"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("parking_operation_duration_seconds",
		metric.WithDescription("Duration of parking workflows"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &InstrumentedService{
		Service:           service,
		telemetry:         telemetry,
		entryOperations:   entryOperations,
		exitOperations:    exitOperations,
		occupancyGauge:    occupancyGauge,
		fareAmount:        fareAmount,
		operationDuration: operationDuration,
	}, nil
}

func (is *InstrumentedService) ProcessIncomingVehicle(ctx context.Context, in InputSource) (EntryReceipt, error) {
	ctx, span := is.telemetry.Tracer().Start(ctx, "parking.process_incoming_vehicle")
	defer span.End()

	start := time.Now()
	span.AddEvent("claiming_spot")

	receipt, err := is.Service.ProcessIncomingVehicle(ctx, in)

	duration := time.Since(start).Seconds()
	labels := []attribute.KeyValue{
		attribute.String("operation", "entry"),
		attribute.String("status", outcome(err)),
	}

	if err != nil {
		recordFailure(span, err)
	} else {
		labels = append(labels, attribute.String("vehicle_class", receipt.Ticket.Spot.Class.String()))
		span.SetAttributes(
			attribute.String("vehicle.registration_number", receipt.Ticket.VehicleRegNumber),
			attribute.Int("parking.spot_id", receipt.Ticket.Spot.ID),
			attribute.Int64("parking.ticket_id", receipt.Ticket.ID),
			attribute.Bool("parking.recurring_user", receipt.RecurringUser),
		)
		span.AddEvent("ticket_opened", trace.WithAttributes(
			attribute.Int("spot_id", receipt.Ticket.Spot.ID),
		))
		is.occupancyGauge.Add(ctx, 1, metric.WithAttributes(
			attribute.String("vehicle_class", receipt.Ticket.Spot.Class.String()),
		))
	}

	is.entryOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	is.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return receipt, err
}

func (is *InstrumentedService) ProcessExitingVehicle(ctx context.Context, in InputSource) (ExitReceipt, error) {
	ctx, span := is.telemetry.Tracer().Start(ctx, "parking.process_exiting_vehicle")
	defer span.End()

	start := time.Now()
	span.AddEvent("closing_ticket")

	receipt, err := is.Service.ProcessExitingVehicle(ctx, in)

	duration := time.Since(start).Seconds()
	labels := []attribute.KeyValue{
		attribute.String("operation", "exit"),
		attribute.String("status", outcome(err)),
	}

	if err != nil {
		recordFailure(span, err)
	} else {
		class := receipt.Ticket.Spot.Class.String()
		labels = append(labels, attribute.String("vehicle_class", class))
		span.SetAttributes(
			attribute.String("vehicle.registration_number", receipt.Ticket.VehicleRegNumber),
			attribute.Int("parking.spot_id", receipt.Ticket.Spot.ID),
			attribute.Int64("parking.ticket_id", receipt.Ticket.ID),
			attribute.Float64("parking.price", receipt.Ticket.Price),
			attribute.Bool("parking.discount_applied", receipt.DiscountApplied),
		)
		span.AddEvent("spot_released")
		is.occupancyGauge.Add(ctx, -1, metric.WithAttributes(attribute.String("vehicle_class", class)))
		is.fareAmount.Record(ctx, receipt.Ticket.Price, metric.WithAttributes(
			attribute.String("vehicle_class", class),
			attribute.Bool("discount_applied", receipt.DiscountApplied),
		))
	}

	is.exitOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	is.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return receipt, err
}

func (is *InstrumentedService) Spots(ctx context.Context) ([]Spot, error) {
	ctx, span := is.telemetry.Tracer().Start(ctx, "parking.spots")
	defer span.End()

	spots, err := is.Service.Spots(ctx)
	if err != nil {
		recordFailure(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("parking.spot_count", len(spots)))
	return spots, nil
}

func (is *InstrumentedService) History(ctx context.Context, regNumber string) ([]Ticket, error) {
	ctx, span := is.telemetry.Tracer().Start(ctx, "parking.history",
		trace.WithAttributes(attribute.String("vehicle.registration_number", regNumber)))
	defer span.End()

	tickets, err := is.Service.History(ctx, regNumber)
	if err != nil {
		recordFailure(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("parking.ticket_count", len(tickets)))
	return tickets, nil
}

func recordFailure(span trace.Span, err error) {
	// Business outcomes are events, not span errors.
	switch outcome(err) {
	case "failed", "store_error":
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.AddEvent("workflow_aborted", trace.WithAttributes(attribute.String("reason", err.Error())))
	}
}

// outcome maps a workflow error to a low-cardinality metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidSelection), errors.Is(err, ErrInvalidRegistration):
		return "invalid_input"
	case errors.Is(err, ErrParkingFull):
		return "full"
	case errors.Is(err, ErrUnknownTicket):
		return "unknown_ticket"
	case errors.Is(err, ErrTicketClosed):
		return "already_closed"
	case errors.Is(err, ErrStore):
		return "store_error"
	default:
		return "failed"
	}
}
