package parking

import "time"

// Ticket is a snapshot of one parking session. Methods return new snapshots
// instead of mutating the receiver.
type Ticket struct {
	ID               int64
	VehicleRegNumber string
	Spot             Spot
	InTime           time.Time
	OutTime          *time.Time
	Price            float64
}

// NewTicket opens a session for the vehicle on the given spot.
func NewTicket(regNumber string, spot Spot, inTime time.Time) Ticket {
	return Ticket{
		VehicleRegNumber: regNumber,
		Spot:             spot,
		InTime:           inTime,
	}
}

// Open reports whether the session has no exit time yet.
func (t Ticket) Open() bool {
	return t.OutTime == nil
}

// WithOutTime returns a copy carrying the given exit time. Price is left
// untouched; it becomes meaningful only after the fare is computed.
func (t Ticket) WithOutTime(out time.Time) Ticket {
	t.OutTime = &out
	return t
}

// Closed returns a copy carrying the exit time and the computed fare.
func (t Ticket) Closed(out time.Time, price float64) Ticket {
	t = t.WithOutTime(out)
	t.Price = price
	return t
}

// Duration is zero for open tickets.
func (t Ticket) Duration() time.Duration {
	if t.OutTime == nil {
		return 0
	}
	return t.OutTime.Sub(t.InTime)
}
