package ticket

import (
	"crypto/rsa"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"bilheteria-cli/clock"
	"bilheteria-cli/model"
)

// PrivateKeySource loads the signing key. Implemented by keystore.Store.
type PrivateKeySource interface {
	LoadPrivate(passphrase string) (*rsa.PrivateKey, error)
}

// Issuer admits one spectator per call: it is the only place a seat
// counter is decremented.
type Issuer struct {
	keys       PrivateKeySource
	passphrase string
	clock      clock.Clock
	logger     *slog.Logger
}

// NewIssuer returns an Issuer that unlocks keys with passphrase on every
// issuance. A nil clock means the real clock; a nil logger discards.
func NewIssuer(keys PrivateKeySource, passphrase string, clk clock.Clock, logger *slog.Logger) *Issuer {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Issuer{keys: keys, passphrase: passphrase, clock: clk, logger: logger}
}

// Issue takes one seat from room's screening and returns a signed ticket.
//
// The seat is given back if the ticket cannot be signed, so a failed
// issuance never consumes inventory. Issue does not lock; callers sharing
// a room across goroutines must serialize calls.
func (i *Issuer) Issue(room *model.Room) (model.Ticket, error) {
	if room.Empty() {
		return model.Ticket{}, ErrEmptyRoom
	}
	screening := room.Screening
	if screening.Seats <= 0 {
		return model.Ticket{}, ErrSoldOut
	}

	screening.Seats--
	t, err := i.sign(model.Ticket{
		ID:       newTicketID(),
		Room:     room.Number,
		Film:     screening.Title,
		IssuedAt: i.clock.Now().UTC().Format(model.IssuedAtLayout),
	})
	if err != nil {
		screening.Seats++
		i.logger.Warn("ticket issuance rolled back", "room", room.Number, "error", err)
		return model.Ticket{}, err
	}

	i.logger.Info("ticket issued", "room", room.Number, "ticket", t.ID, "seats_left", screening.Seats)
	return t, nil
}

func (i *Issuer) sign(t model.Ticket) (model.Ticket, error) {
	private, err := i.keys.LoadPrivate(i.passphrase)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	payload, err := Payload(t)
	if err != nil {
		return model.Ticket{}, err
	}
	signature, err := Sign(private, payload)
	if err != nil {
		return model.Ticket{}, err
	}
	t.Signature = signature
	return t, nil
}

func newTicketID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
