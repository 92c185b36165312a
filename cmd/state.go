package cmd

import (
	"errors"
	"os"

	"bilheteria-cli/auth"
	"bilheteria-cli/keystore"
	"bilheteria-cli/model"
	"bilheteria-cli/service"
	"bilheteria-cli/store"
	"bilheteria-cli/ticket"
	"bilheteria-cli/vault"
)

var (
	errNotInitialized = errors.New("no box office state found; run `bilheteria init` first")
	errKeysExist      = errors.New("a signing keypair already exists; pass --force to replace it")
)

func (a *app) paths() store.Paths {
	return a.cfg.Paths()
}

func (a *app) keyStore() *keystore.Store {
	return keystore.New(a.paths(),
		keystore.WithKeyBits(a.cfg.KeyBits),
		keystore.WithWorkFactor(a.cfg.KeyWorkFactor),
	)
}

func (a *app) vault() *vault.Vault {
	return vault.New(a.paths().State(), a.cfg.KDFIterations)
}

func (a *app) admin() *auth.Credential {
	return auth.New(a.paths().Admin(), a.cfg.BcryptCost)
}

func (a *app) replayGuard() *store.ReplayGuard {
	return store.NewReplayGuard(a.paths().Replay(), a.logger)
}

func (a *app) verifier() *ticket.Verifier {
	return ticket.NewVerifier(a.keyStore(), a.replayGuard(), a.logger)
}

func (a *app) ensureDataDir() error {
	return os.MkdirAll(a.cfg.DataDir, 0o700)
}

// session is an unlocked box office plus what is needed to write it back.
type session struct {
	office     *service.BoxOffice
	vault      *vault.Vault
	passphrase string
}

// openSession asks for the state passphrase and decrypts the rooms. issuer
// may be nil for commands that do not sell tickets.
func (a *app) openSession(issuer service.TicketIssuer) (*session, error) {
	v := a.vault()
	if !v.Exists() {
		return nil, errNotInitialized
	}
	passphrase, err := a.prompt.secret(envStatePassphrase, "State passphrase", false)
	if err != nil {
		return nil, err
	}
	state, _, err := v.Decrypt(passphrase)
	if err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithRooms(a.cfg.Rooms),
		service.WithInitialSeats(a.cfg.InitialSeats),
		service.WithClock(a.clock),
		service.WithLogger(a.logger),
	}
	if issuer != nil {
		opts = append(opts, service.WithIssuer(issuer))
	}
	return &session{
		office:     service.NewBoxOffice(state, opts...),
		vault:      v,
		passphrase: passphrase,
	}, nil
}

func (s *session) save() error {
	return s.saveState(s.office.Snapshot())
}

func (s *session) saveState(state model.State) error {
	_, err := s.vault.Encrypt(state, s.passphrase)
	return err
}

// requireAdmin checks the administrator password once one has been set.
func (a *app) requireAdmin() error {
	cred := a.admin()
	if !cred.Exists() {
		return nil
	}
	password, err := a.prompt.secret(envAdminPassword, "Admin password", false)
	if err != nil {
		return err
	}
	return cred.Verify(password)
}

// writeTicket stores t in the ticket file format at path.
func writeTicket(path string, t model.Ticket) error {
	data, err := ticket.Marshal(t)
	if err != nil {
		return err
	}
	return store.WriteFileAtomic(path, data, 0o644)
}

// describe turns err into the sentence printed after "Error:".
func describe(err error) string {
	switch {
	case errors.Is(err, vault.ErrAuthentication):
		return "wrong state passphrase, or the state file was tampered with"
	case errors.Is(err, ticket.ErrKeyUnavailable) && errors.Is(err, keystore.ErrAuthentication):
		return "wrong key passphrase; no ticket was issued and the seat was kept"
	case errors.Is(err, keystore.ErrNotFound):
		return "no signing keypair; run `bilheteria keys generate`"
	case errors.Is(err, auth.ErrWrongPassword):
		return "wrong administrator password"
	case ticket.Known(err):
		return ticket.Message(err)
	}
	return err.Error()
}
