// Package cli wires configuration, logging and the collaborator clients
// into the docreport commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-docreport/pkg/config"
	"github.com/benjaminschreck/go-docreport/pkg/logging"
)

// DateLayout is the format of the --date flag.
const DateLayout = "2006-01-02"

// CollaboratorFactory builds the remote services a command talks to.
type CollaboratorFactory func(ctx context.Context, cfg *config.Config, fs afero.Fs, log zerolog.Logger) (*Collaborators, error)

// Options configures the CLI.
type Options struct {
	// Fs holds templates, working copies and outputs. Defaults to the OS.
	Fs afero.Fs
	// Output receives command results, Logs the log stream.
	Output io.Writer
	Logs   io.Writer
	// Collaborators defaults to NewCollaborators.
	Collaborators CollaboratorFactory
	Version       string
	// Now defaults to time.Now and dates runs without --date.
	Now func() time.Time
}

// CLI represents the command-line interface.
type CLI struct {
	opts    Options
	cfg     *config.Config
	log     zerolog.Logger
	rootCmd *cobra.Command

	configPath string
	logLevel   string
	envFile    string
}

// NewCLI creates a new CLI instance.
func NewCLI(opts Options) *CLI {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Logs == nil {
		opts.Logs = os.Stderr
	}
	if opts.Collaborators == nil {
		opts.Collaborators = NewCollaborators
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cli := &CLI{
		opts: opts,
		log:  logging.New(opts.Logs, "info", logging.FormatConsole),
	}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// Execute runs the command line. Failures are logged before they are
// returned.
func (cli *CLI) Execute(ctx context.Context) error {
	err := cli.rootCmd.ExecuteContext(ctx)
	if err != nil {
		cli.log.Error().Err(err).Msg("command failed")
	}
	return err
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "docreport",
		Short:             "Weekly status report and letter generator",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: cli.setup,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cli.configPath, "config", "", "config file (YAML)")
	flags.StringVar(&cli.logLevel, "log-level", "", "log level: debug, info, warn, error, off")
	flags.StringVar(&cli.envFile, "env-file", ".env", "dotenv file with credentials, skipped when absent")

	cmd.AddCommand(cli.newReportCmd())
	cmd.AddCommand(cli.newLettersCmd())
	cmd.AddCommand(cli.newValidateCmd())
	cmd.AddCommand(cli.newVersionCmd())
	return cmd
}

// setup loads the environment file and the configuration, then hands the
// configured logger to the command through its context.
func (cli *CLI) setup(cmd *cobra.Command, _ []string) error {
	if cli.envFile != "" {
		if err := godotenv.Load(cli.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", cli.envFile, err)
		}
	}

	cfg, err := config.Load(cli.configPath)
	if err != nil {
		return err
	}
	if cli.logLevel != "" {
		cfg.Log.Level = cli.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cli.cfg = cfg
	cli.log = logging.New(cli.opts.Logs, cfg.Log.Level, cfg.Log.Format)
	cmd.SetContext(cli.log.WithContext(cmd.Context()))
	return nil
}

// reportDate parses the --date flag, defaulting to today.
func (cli *CLI) reportDate(value string) (time.Time, error) {
	if value == "" {
		now := cli.opts.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
	}
	date, err := time.ParseInLocation(DateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", value)
	}
	return date, nil
}
