package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"bilheteria-cli/service"
)

func (a *app) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the keypair, the encrypted rooms and the admin password",
		Long: `Create whatever is missing in the data directory: the ticket signing
keypair, the encrypted room state and the administrator password.
Existing artifacts are left alone. Piped secrets are read in that order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureDataDir(); err != nil {
				return err
			}
			created := false

			if keys := a.keyStore(); !keys.Exists() {
				passphrase, err := a.prompt.secret(envKeyPassphrase, "New key passphrase", true)
				if err != nil {
					return err
				}
				if _, err := keys.Generate(passphrase); err != nil {
					return err
				}
				a.logger.Info("signing keypair created", "bits", a.cfg.KeyBits)
				fmt.Fprintln(a.stdout, "Signing keypair created.")
				created = true
			}

			if v := a.vault(); !v.Exists() {
				passphrase, err := a.prompt.secret(envStatePassphrase, "New state passphrase", true)
				if err != nil {
					return err
				}
				if _, err := v.Encrypt(service.DefaultState(a.cfg.Rooms), passphrase); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Encrypted state created with %d empty rooms.\n", a.cfg.Rooms)
				created = true
			}

			if cred := a.admin(); !cred.Exists() {
				password, err := a.prompt.secret(envAdminPassword, "New admin password", true)
				if err != nil {
					return err
				}
				if err := cred.Set(password); err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, "Administrator password set.")
				created = true
			}

			if !created {
				fmt.Fprintf(a.stdout, "Already initialized in %s.\n", a.cfg.DataDir)
			}
			return nil
		},
	}
}

func (a *app) resetCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear every room",
		Long:  "Discard every screening and recreate the configured number of empty rooms. Requires the administrator password.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(nil)
			if err != nil {
				return err
			}
			if err := a.requireAdmin(); err != nil {
				return err
			}
			if err := a.prompt.confirm("Discard every screening", yes); err != nil {
				return err
			}
			s.office.Reset()
			if err := s.save(); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "All %d rooms are empty.\n", a.cfg.Rooms)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *app) keysCommand() *cobra.Command {
	group := &cobra.Command{
		Use:   "keys",
		Short: "Manage the ticket signing keypair",
	}

	var force bool
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Create a new signing keypair",
		Long: `Create a new signing keypair. Replacing an existing keypair needs --force and
the administrator password; tickets signed with the old key stop verifying.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureDataDir(); err != nil {
				return err
			}
			keys := a.keyStore()
			replacing := keys.Exists()
			if replacing {
				if !force {
					return errKeysExist
				}
				if err := a.requireAdmin(); err != nil {
					return err
				}
			}

			passphrase, err := a.prompt.secret(envKeyPassphrase, "New key passphrase", true)
			if err != nil {
				return err
			}
			if _, err := keys.Generate(passphrase); err != nil {
				return err
			}
			if replacing {
				a.logger.Warn("signing keypair replaced", "data_dir", a.cfg.DataDir)
				fmt.Fprintln(a.stdout, "Signing keypair replaced. Tickets issued before now will no longer verify.")
				return nil
			}
			fmt.Fprintln(a.stdout, "Signing keypair created.")
			return nil
		},
	}
	generate.Flags().BoolVar(&force, "force", false, "replace an existing keypair")

	group.AddCommand(generate)
	return group
}
