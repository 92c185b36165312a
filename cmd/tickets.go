package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"bilheteria-cli/keystore"
	"bilheteria-cli/model"
	"bilheteria-cli/ticket"
)

func (a *app) issueCommand() *cobra.Command {
	var (
		room int
		out  string
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sell one signed ticket",
		Long: `Sell one ticket for a room and write it as a signed JSON file.
The key passphrase is read before the state passphrase.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := a.keyStore()
			if !keys.Exists() {
				return keystore.ErrNotFound
			}
			keyPassphrase, err := a.prompt.secret(envKeyPassphrase, "Key passphrase", false)
			if err != nil {
				return err
			}
			s, err := a.openSession(ticket.NewIssuer(keys, keyPassphrase, a.clock, a.logger))
			if err != nil {
				return err
			}
			if room, err = a.prompt.room("Room", room, s.office.Rooms()); err != nil {
				return err
			}

			issued, err := s.office.Issue(room)
			if err != nil {
				return err
			}
			if err := s.save(); err != nil {
				return fmt.Errorf("saving state, ticket %s discarded: %w", issued.ID, err)
			}

			path := out
			if path == "" {
				path = a.paths().Ticket(issued.ID)
			}
			if err := writeTicket(path, issued); err != nil {
				return fmt.Errorf("writing ticket %s: %w", issued.ID, err)
			}

			fmt.Fprintf(a.stdout, "Ticket %s for %q in room %d written to %s\n", issued.ID, issued.Film, issued.Room, path)
			return nil
		},
	}
	cmd.Flags().IntVar(&room, "room", 0, "room number")
	cmd.Flags().StringVarP(&out, "out", "o", "", "ticket file path (default <data-dir>/tickets/ticket_<id>.json)")
	return cmd
}

func (a *app) verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify FILE",
		Short: "Check a ticket file and mark it as used",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			verified, err := a.verifier().VerifyBytes(data)
			fmt.Fprintln(a.stdout, ticket.Message(err))
			if err != nil {
				if ticket.Known(err) {
					return exitError{code: 1}
				}
				return err
			}

			renderTicket(a.stdout, verified.Ticket)
			if verified.RecordWarning != nil {
				fmt.Fprintf(a.stderr, "Warning: the redemption could not be recorded and this ticket may be accepted again: %v\n", verified.RecordWarning)
			}
			return nil
		},
	}
}

func renderTicket(w io.Writer, t model.Ticket) {
	issued := t.IssuedAt
	if at, err := t.Issued(); err == nil {
		issued = at.Format("02/01/2006 15:04 UTC")
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendRows([]table.Row{
		{"Ticket", t.ID},
		{"Room", t.Room},
		{"Film", t.Film},
		{"Issued", issued},
	})
	tw.Render()
}
