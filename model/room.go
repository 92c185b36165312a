package model

import "time"

// DateLayout is the canonical textual form of a screening closing date.
const DateLayout = time.DateOnly

type Room struct {
	Number    int        `json:"number"`
	Screening *Screening `json:"screening"`
}

// Empty reports whether the room has no screening scheduled.
func (r *Room) Empty() bool {
	return r == nil || r.Screening == nil
}

type Screening struct {
	Title       string `json:"title"`
	Genre       string `json:"genre"`
	MinimumAge  int    `json:"minimum_age"`
	Seats       int    `json:"seats"`
	ClosingDate string `json:"closing_date"`
}

// Closing parses ClosingDate. Dates stored by the service are always ISO.
func (s Screening) Closing() (time.Time, error) {
	return time.Parse(DateLayout, s.ClosingDate)
}
