package calendar

import "time"

// Slot is a time interval considered for scheduling a meeting. A Slot is a
// candidate until it is inserted into the remote calendar.
type Slot struct {
	Start    time.Time
	Duration time.Duration
	Title    string
	Attendee string
}

// End returns the exclusive end of the interval.
func (s Slot) End() time.Time {
	return s.Start.Add(s.Duration)
}

// Event is an existing calendar entry overlapping a queried window. End is
// zero for all-day entries, which carry only a date.
type Event struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
}

// CreatedEvent is the remote record of a booked slot.
type CreatedEvent struct {
	ID       string
	HTMLLink string
}
