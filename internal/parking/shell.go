package parking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Gate is the pair of workflows a terminal or an HTTP adapter drives.
type Gate interface {
	ProcessIncomingVehicle(ctx context.Context, in InputSource) (EntryReceipt, error)
	ProcessExitingVehicle(ctx context.Context, in InputSource) (ExitReceipt, error)
}

const (
	menuIncoming = 1
	menuExiting  = 2
	menuShutdown = 3
)

// ConsoleInput reads answers line by line and prints the matching prompt first.
type ConsoleInput struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func NewConsoleInput(r io.Reader, w io.Writer) *ConsoleInput {
	return &ConsoleInput{scanner: bufio.NewScanner(r), out: w}
}

func (c *ConsoleInput) readLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.scanner.Text()), nil
}

// readInt returns -1 for anything that is not a number.
func (c *ConsoleInput) readInt() (int, error) {
	line, err := c.readLine()
	if err != nil {
		return -1, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		fmt.Fprintln(c.out, "Error while reading user input from Shell")
		return -1, nil
	}
	return n, nil
}

func (c *ConsoleInput) ReadVehicleClassSelection(context.Context) (int, error) {
	fmt.Fprintln(c.out, "Please select vehicle type from menu")
	fmt.Fprintln(c.out, "1 CAR")
	fmt.Fprintln(c.out, "2 BIKE")
	return c.readInt()
}

func (c *ConsoleInput) ReadVehicleRegistrationNumber(context.Context) (string, error) {
	fmt.Fprintln(c.out, "Please type the vehicle registration number and press enter key")
	line, err := c.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return "", ErrInvalidRegistration
	}
	return line, nil
}

type InteractiveShell struct {
	gate      Gate
	input     *ConsoleInput
	out       io.Writer
	telemetry *TelemetryProvider
}

func NewInteractiveShell(gate Gate, r io.Reader, w io.Writer, telemetry *TelemetryProvider) *InteractiveShell {
	return &InteractiveShell{
		gate:      gate,
		input:     NewConsoleInput(r, w),
		out:       w,
		telemetry: telemetry,
	}
}

// Run serves the menu until shutdown is chosen, input ends, or ctx is cancelled.
func (s *InteractiveShell) Run(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")
	fmt.Fprintln(s.out, "Welcome to Parking System!")

	for ctx.Err() == nil {
		s.printMenu()

		option, err := s.input.readInt()
		if err != nil {
			break
		}

		cmdCtx, cmdSpan := tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.Int("command.option", option)))
		keepRunning := s.processCommand(cmdCtx, option)
		cmdSpan.End()

		if !keepRunning {
			break
		}
	}

	span.AddEvent("shell_ended")
}

func (s *InteractiveShell) printMenu() {
	fmt.Fprintln(s.out, "Please select an option. Simply enter the number to choose an action")
	fmt.Fprintln(s.out, "1 New Vehicle Entering - allocate Parking Space")
	fmt.Fprintln(s.out, "2 Vehicle Exiting - generate Ticket Price")
	fmt.Fprintln(s.out, "3 Shutdown System")
}

func (s *InteractiveShell) processCommand(ctx context.Context, option int) bool {
	switch option {
	case menuIncoming:
		s.handleIncoming(ctx)
	case menuExiting:
		s.handleExiting(ctx)
	case menuShutdown:
		fmt.Fprintln(s.out, "Exiting from the system!")
		return false
	default:
		trace.SpanFromContext(ctx).AddEvent("unknown_command", trace.WithAttributes(
			attribute.Int("command.option", option),
		))
		fmt.Fprintln(s.out, "Unsupported option. Please enter a number corresponding to the provided menu")
	}
	return true
}

func (s *InteractiveShell) handleIncoming(ctx context.Context) {
	_, span := s.telemetry.Tracer().Start(ctx, "shell.incoming_vehicle")
	defer span.End()

	receipt, err := s.gate.ProcessIncomingVehicle(ctx, s.input)
	if err != nil {
		span.AddEvent("entry_failed")
		fmt.Fprintln(s.out, entryFailureMessage(err))
		return
	}

	if receipt.RecurringUser {
		fmt.Fprintln(s.out, "Welcome back! As a recurring user of our parking lot, you'll benefit from a 5% discount.")
	}
	fmt.Fprintln(s.out, "Generated Ticket and saved in DB")
	fmt.Fprintf(s.out, "Please park your vehicle in spot number: %d\n", receipt.Ticket.Spot.ID)
	fmt.Fprintf(s.out, "Recorded in-time for vehicle number: %s is: %s\n",
		receipt.Ticket.VehicleRegNumber, receipt.Ticket.InTime.Format(time.RFC1123))
}

func (s *InteractiveShell) handleExiting(ctx context.Context) {
	_, span := s.telemetry.Tracer().Start(ctx, "shell.exiting_vehicle")
	defer span.End()

	receipt, err := s.gate.ProcessExitingVehicle(ctx, s.input)
	if err != nil {
		span.AddEvent("exit_failed")
		fmt.Fprintln(s.out, exitFailureMessage(err))
		return
	}

	fmt.Fprintf(s.out, "Please pay the parking fare: %.2f\n", receipt.Ticket.Price)
	fmt.Fprintf(s.out, "Recorded out-time for vehicle number: %s is: %s\n",
		receipt.Ticket.VehicleRegNumber, receipt.Ticket.OutTime.Format(time.RFC1123))
}

func entryFailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSelection):
		return "Incorrect input provided"
	case errors.Is(err, ErrInvalidRegistration):
		return "Invalid input provided"
	case errors.Is(err, ErrParkingFull):
		return "Error fetching parking number from DB. Parking slots might be full"
	default:
		return "Unable to process incoming vehicle"
	}
}

func exitFailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRegistration):
		return "Invalid input provided"
	case errors.Is(err, ErrUnknownTicket):
		return "Unknown ticket for this vehicle"
	case errors.Is(err, ErrTicketClosed):
		return "This vehicle has already exited"
	default:
		return "Unable to update ticket information. Error occurred"
	}
}
