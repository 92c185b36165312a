package model

import "time"

// IssuedAtLayout renders issuance instants in UTC with an explicit offset.
const IssuedAtLayout = "2006-01-02T15:04:05.000000-07:00"

// Ticket field names on the wire. The signature covers every field but
// FieldSignature.
const (
	FieldID        = "id"
	FieldRoom      = "room"
	FieldFilm      = "film"
	FieldIssuedAt  = "issued_at"
	FieldSeat      = "seat"
	FieldSignature = "signature"
)

type Ticket struct {
	ID        string  `json:"id"`
	Room      int     `json:"room"`
	Film      string  `json:"film"`
	IssuedAt  string  `json:"issued_at"`
	Seat      *string `json:"seat"`
	Signature []byte  `json:"-"`
}

// Fields returns the signed portion of the ticket keyed by wire name.
func (t Ticket) Fields() map[string]any {
	var seat any
	if t.Seat != nil {
		seat = *t.Seat
	}
	return map[string]any{
		FieldID:       t.ID,
		FieldRoom:     t.Room,
		FieldFilm:     t.Film,
		FieldIssuedAt: t.IssuedAt,
		FieldSeat:     seat,
	}
}

// Issued parses IssuedAt.
func (t Ticket) Issued() (time.Time, error) {
	return time.Parse(IssuedAtLayout, t.IssuedAt)
}

// VerifiedTicket is the view returned once a ticket has been accepted.
// RecordWarning is set when the redemption could not be persisted; the
// ticket is still valid for this presentation.
type VerifiedTicket struct {
	Ticket
	RecordWarning error
}
