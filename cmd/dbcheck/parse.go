package main

import (
	"github.com/spf13/cobra"
	"github.com/willibrandon/dbcheck/internal/config"
	"github.com/willibrandon/dbcheck/internal/connstr"
	"github.com/willibrandon/dbcheck/internal/report"
)

// newParseCmd creates the parse subcommand, which validates the connection
// string without touching the network.
func newParseCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "parse",
		Short: "Parse and validate the connection string without connecting",
		Long: `Parse the connection string, validate it and print it with the password
masked. No connection is attempted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return &exitError{code: ExitConfigError, err: err}
			}
			format, err := report.ParseFormat(cfg.Output)
			if err != nil {
				return &exitError{code: ExitConfigError, err: err}
			}

			raw, err := config.ResolveURL(cfg, c.lookupEnv)
			if err != nil {
				return &exitError{code: ExitConfigError, err: err}
			}

			parse := connstr.Parse
			if cfg.Parser == config.ParserLegacy {
				parse = connstr.ParseLegacy
			}
			target, err := parse(raw)
			if err != nil {
				return &exitError{code: ExitConfigError, err: err}
			}
			target.TLSVerify = cfg.TLS.Verify
			target.TLSCAPath = cfg.TLS.CAFile
			if err := connstr.Validate(target); err != nil {
				return &exitError{code: ExitConfigError, err: err}
			}

			return report.RenderTarget(cmd.OutOrStdout(), target, format)
		},
	}
}
