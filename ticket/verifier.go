package ticket

import (
	"crypto/rsa"
	"fmt"
	"io"
	"log/slog"

	"bilheteria-cli/model"
)

// PublicKeySource loads the verification key. Implemented by keystore.Store.
type PublicKeySource interface {
	LoadPublic() (*rsa.PublicKey, error)
}

// ReplaySet is the durable used-ticket record. Implemented by
// store.ReplayGuard.
type ReplaySet interface {
	Contains(id string) bool
	Record(id string) error
}

// Verifier accepts each validly signed ticket exactly once.
type Verifier struct {
	keys   PublicKeySource
	replay ReplaySet
	logger *slog.Logger
}

func NewVerifier(keys PublicKeySource, replay ReplaySet, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Verifier{keys: keys, replay: replay, logger: logger}
}

// VerifyBytes decodes a ticket file and verifies it.
func (v *Verifier) VerifyBytes(data []byte) (model.VerifiedTicket, error) {
	t, err := Unmarshal(data)
	if err != nil {
		return model.VerifiedTicket{}, err
	}
	return v.Verify(t)
}

// Verify checks structure, signature and replay status, then records the
// ticket as redeemed.
//
// The signature is checked before the replay set is read or written, so
// forged tickets cannot reserve identifiers. A failure to persist the
// redemption does not reject the ticket; it is reported in RecordWarning.
func (v *Verifier) Verify(t model.Ticket) (model.VerifiedTicket, error) {
	if err := checkStructure(t); err != nil {
		return model.VerifiedTicket{}, err
	}
	if len(t.Signature) == 0 {
		return model.VerifiedTicket{}, ErrMissingSignature
	}

	payload, err := Payload(t)
	if err != nil {
		return model.VerifiedTicket{}, fmt.Errorf("%w: %v", ErrMalformedTicket, err)
	}

	public, err := v.keys.LoadPublic()
	if err != nil {
		return model.VerifiedTicket{}, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	if !VerifySignature(public, payload, t.Signature) {
		v.logger.Warn("ticket rejected", "ticket", t.ID, "reason", "invalid signature")
		return model.VerifiedTicket{}, ErrInvalidSignature
	}

	if v.replay.Contains(t.ID) {
		v.logger.Warn("ticket rejected", "ticket", t.ID, "reason", "already redeemed")
		return model.VerifiedTicket{}, ErrAlreadyRedeemed
	}

	verified := model.VerifiedTicket{Ticket: t}
	if err := v.replay.Record(t.ID); err != nil {
		v.logger.Warn("redemption not recorded", "ticket", t.ID, "error", err)
		verified.RecordWarning = err
	}
	v.logger.Info("ticket redeemed", "ticket", t.ID, "room", t.Room)
	return verified, nil
}
