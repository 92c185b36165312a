// Package cmd implements the bilheteria command tree.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"bilheteria-cli/clock"
	"bilheteria-cli/config"
)

type app struct {
	version string

	configPath string
	dataDir    string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
	clock  clock.Clock

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	prompt *prompter
}

// exitError ends the process with code after the command already told the
// operator why.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute runs the CLI against the process streams and returns the exit code.
func Execute(version string) int {
	a := &app{
		version: version,
		clock:   clock.Real(),
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	return a.run(newRootCommand(a))
}

func (a *app) run(root *cobra.Command) int {
	err := root.Execute()
	if err == nil {
		return 0
	}
	var exit exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintln(a.stderr, "Error:", describe(err))
	return 1
}

func newRootCommand(a *app) *cobra.Command {
	a.prompt = newPrompter(a.stdin, a.stderr)

	root := &cobra.Command{
		Use:   "bilheteria",
		Short: "Cinema box office",
		Long: `Schedule films into rooms, sell signed tickets and check them at the door.
Running without a command opens the interactive box office.`,
		Version:           a.version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI()
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML configuration file (default $BILHETERIA_CONFIG)")
	flags.StringVar(&a.dataDir, "data-dir", "", "directory holding state, keys and tickets")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		a.initCommand(),
		a.roomsCommand(),
		a.filterCommand(),
		a.scheduleCommand(),
		a.unscheduleCommand(),
		a.issueCommand(),
		a.verifyCommand(),
		a.resetCommand(),
		a.keysCommand(),
		a.tuiCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(a.stderr, cfg.SlogLevel()).With("command", cmd.Name())
	return nil
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "bilheteria %s\n", a.version)
		},
	}
}
