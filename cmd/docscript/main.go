package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/andreyvit/docstore"
	"github.com/andreyvit/docstore/internal/config"
	"github.com/andreyvit/docstore/script"
)

var (
	version = "dev"
	commit  = "none"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 64
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// usageError is returned for bad command lines; run prints the usage line
// and exits with exitUsage.
type usageError struct {
	cmd *cobra.Command
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

// errFailed reports a failure that has already been logged.
var errFailed = errors.New("failed")

func run(args []string, stdout, stderr io.Writer) int {
	logger := logrus.New()
	logger.SetOutput(stderr)

	root := newRootCmd(logger, stdout)
	if args == nil {
		args = []string{} // cobra falls back to os.Args on nil
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	var uerr *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &uerr):
		fmt.Fprintf(stderr, "%v\nUsage: %s\n", uerr.err, uerr.cmd.UseLine())
		return exitUsage
	case errors.Is(err, errFailed):
		return exitFailure
	default:
		logger.WithError(err).Error("docscript failed")
		return exitFailure
	}
}

func newRootCmd(logger *logrus.Logger, stdout io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docscript <script>",
		Short: "Run a Lua script against docstore databases",
		Long: `docscript runs a Lua script that manipulates document databases
through the global couch table (couch.open, db:save, db:get, db:changes...).`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		Args:          exactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd, logger, args[0])
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{cmd, err}
	})
	config.AddFlags(rootCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "dump <db-file>",
		Short: "Print the contents of a database",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, logger, stdout, args[0])
		},
	})

	return rootCmd
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{cmd, err}
		}
		return nil
	}
}

func setupLogging(logger *logrus.Logger, cfg *config.Config) {
	cfg.ConfigureLogger(logger)
	if cfg.Verbose && !logger.IsLevelEnabled(logrus.DebugLevel) {
		logger.SetLevel(logrus.DebugLevel)
	}
}

func runScript(cmd *cobra.Command, logger *logrus.Logger, path string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(logger, cfg)

	env := script.New(script.Options{
		Logger: logger,
		DB:     cfg.DBOptions(),
	})
	defer env.Close()

	err = env.DoFile(path)
	if err != nil {
		entry := logger.WithField("script", path)
		if e := script.AsError(err); e != nil {
			entry = entry.WithFields(logrus.Fields{
				"kind": e.Kind.String(),
				"op":   e.Op,
			})
		}
		entry.WithError(err).Error("Error running script")
		return errFailed
	}
	return nil
}

func runDump(cmd *cobra.Command, logger *logrus.Logger, stdout io.Writer, path string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(logger, cfg)

	opt := cfg.DBOptions()
	opt.Logf = logger.Debugf
	db, err := docstore.Open(path, docstore.OpenReadOnly, opt)
	if err != nil {
		logger.WithField("db", path).WithError(err).Error("Error opening database")
		return errFailed
	}
	defer db.Close()

	out, err := db.Dump(docstore.DumpAll)
	if err != nil {
		logger.WithField("db", path).WithError(err).Error("Error dumping database")
		return errFailed
	}
	_, err = io.WriteString(stdout, out)
	return err
}
