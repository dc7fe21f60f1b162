package domain

import "time"

// Event is a fixed-capacity bookable event. SoldCount is mutated only by
// the reservation engine, inside a row-locked transaction.
type Event struct {
	ID            string
	Name          string
	Date          time.Time
	TotalCapacity int
	SoldCount     int
	PriceCents    int64
}

// Remaining returns the number of unsold tickets.
func (e *Event) Remaining() int {
	return e.TotalCapacity - e.SoldCount
}

// IsFull reports whether no capacity remains.
func (e *Event) IsFull() bool {
	return e.SoldCount >= e.TotalCapacity
}

// Availability is the read-only capacity view exposed to clients.
type Availability struct {
	Available int
	Total     int
}

func (a Availability) SoldOut() bool {
	return a.Available <= 0
}
