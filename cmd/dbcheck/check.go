package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/willibrandon/dbcheck/internal/config"
	"github.com/willibrandon/dbcheck/internal/db"
	"github.com/willibrandon/dbcheck/internal/logger"
	"github.com/willibrandon/dbcheck/internal/report"
	"golang.org/x/term"
)

// newCheckCmd creates the check subcommand. Running dbcheck with no
// subcommand does the same thing.
func newCheckCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Connect, ping and report (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheck(cmd)
		},
	}
}

// loadConfig loads configuration and applies the flags that have no
// config key of their own.
func (c *cli) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(c.configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if c.debug {
		cfg.Log.Level = "debug"
	}
	if c.legacy {
		cfg.Parser = config.ParserLegacy
	}
	if c.insecure {
		cfg.TLS.Verify = false
	}
	if err := config.LoadEnvFile(cfg.EnvFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *cli) runCheck(cmd *cobra.Command) error {
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return &exitError{code: ExitConfigError, err: err}
	}

	format, err := report.ParseFormat(cfg.Output)
	if err != nil {
		return &exitError{code: ExitConfigError, err: err}
	}

	runID := uuid.NewString()
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return &exitError{code: ExitConfigError, err: err}
	}
	logger.InitLogger(level, cfg.Log.File, "run_id", runID)
	defer logger.Close()

	logger.Debug("Configuration loaded",
		"config_file", cfg.File,
		"env_var", cfg.EnvVar,
		"parser", cfg.Parser,
		"tls_verify", cfg.TLS.Verify,
		"timeout", cfg.Timeout,
	)

	out := cmd.OutOrStdout()
	opts := report.Options{
		Format:  format,
		Verbose: cfg.Verbose,
		Color:   colorEnabled(out),
		RunID:   runID,
	}

	var res db.Result
	raw, err := config.ResolveURL(cfg, c.lookupEnv)
	if err != nil {
		logger.Error("No connection string", "env_var", cfg.EnvVar, "error", err)
		res = db.Result{
			Kind:      db.KindConfig,
			Err:       &db.CheckError{Kind: db.KindConfig, Err: err},
			CheckedAt: time.Now(),
		}
	} else {
		res = c.newChecker(cfg.Timeout).CheckURL(cmd.Context(), db.Request{
			URL:       raw,
			Legacy:    cfg.Parser == config.ParserLegacy,
			TLSVerify: cfg.TLS.Verify,
			CAPath:    cfg.TLS.CAFile,
		})
	}

	if err := report.Render(out, res, opts); err != nil {
		return &exitError{code: ExitCheckFailed, err: fmt.Errorf("write report: %w", err)}
	}

	if code := exitCode(res); code != ExitSuccess && !c.exitZero {
		return &exitError{code: code}
	}
	return nil
}

// exitCode maps a check result to the process exit code.
func exitCode(r db.Result) int {
	switch {
	case r.OK:
		return ExitSuccess
	case r.Kind == db.KindParse, r.Kind == db.KindConfig:
		return ExitConfigError
	default:
		return ExitCheckFailed
	}
}

// colorEnabled reports whether w is a terminal that accepts color.
func colorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
