package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"bilheteria-cli/model"
	"bilheteria-cli/service"
	"bilheteria-cli/ticket"
	"bilheteria-cli/tui"
)

const tuiLogFile = "bilheteria.log"

func (a *app) tuiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive box office",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI()
		},
	}
}

// runTUI unlocks the state, then hands the terminal to the box office
// screen. Selling is disabled when no keypair exists yet.
func (a *app) runTUI() error {
	if err := a.ensureDataDir(); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(a.cfg.DataDir, tuiLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer logFile.Close()
	// The alternate screen owns stderr until the program exits.
	a.logger = newLogger(logFile, a.cfg.SlogLevel()).With("command", "tui")

	var issuer service.TicketIssuer
	keys := a.keyStore()
	if keys.Exists() {
		passphrase, err := a.prompt.secret(envKeyPassphrase, "Key passphrase", false)
		if err != nil {
			return err
		}
		issuer = ticket.NewIssuer(keys, passphrase, a.clock, a.logger)
	}

	s, err := a.openSession(issuer)
	if err != nil {
		return err
	}

	paths := a.paths()
	deps := tui.Deps{
		Office: s.office,
		Save:   s.saveState,
		WriteTicket: func(t model.Ticket) (string, error) {
			path := paths.Ticket(t.ID)
			return path, writeTicket(path, t)
		},
		Verifier: a.verifier(),
	}
	if cred := a.admin(); cred.Exists() {
		deps.Admin = cred.Verify
	}

	a.logger.Info("box office opened", "rooms", len(s.office.Rooms()), "selling", issuer != nil)
	if _, err := tea.NewProgram(tui.New(deps), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running interactive box office: %w", err)
	}
	return nil
}
