package ticket

import "errors"

// Failure kinds of the ticket protocol. Callers match them with errors.Is;
// anything else is an I/O or programming fault.
var (
	ErrMalformedTicket      = errors.New("ticket: required fields missing")
	ErrMissingSignature     = errors.New("ticket: signature missing")
	ErrBadSignatureEncoding = errors.New("ticket: signature is not valid hex")
	ErrInvalidSignature     = errors.New("ticket: invalid signature")
	ErrAlreadyRedeemed      = errors.New("ticket: already redeemed")
	ErrEmptyRoom            = errors.New("ticket: room has no screening")
	ErrSoldOut              = errors.New("ticket: sold out")
	ErrKeyUnavailable       = errors.New("ticket: signing key unavailable")
	ErrInvalidText          = errors.New("ticket: text is not valid UTF-8")
)

var messages = []struct {
	err  error
	text string
}{
	{ErrMalformedTicket, "Invalid ticket: required fields are missing."},
	{ErrMissingSignature, "Invalid ticket: it carries no signature."},
	{ErrBadSignatureEncoding, "Invalid ticket: the signature is not readable."},
	{ErrInvalidSignature, "Invalid signature: this ticket was not issued here or has been altered."},
	{ErrAlreadyRedeemed, "Ticket already used."},
	{ErrEmptyRoom, "Room is empty: no film is scheduled."},
	{ErrSoldOut, "Tickets sold out for this screening."},
	{ErrKeyUnavailable, "The ticket signing key is unavailable."},
	{ErrInvalidText, "Invalid ticket: a field is not valid UTF-8."},
}

// Message maps err to the sentence shown to the operator. Unknown errors
// get a generic verdict; raw error text is never used as a verdict.
func Message(err error) string {
	if err == nil {
		return "Valid ticket."
	}
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.text
		}
	}
	return "The ticket could not be checked."
}

// Known reports whether err is one of the protocol failure kinds.
func Known(err error) bool {
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return true
		}
	}
	return false
}
