package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/willibrandon/dbcheck/internal/certs"
)

// newGenCertsCmd creates the gen-certs subcommand, which writes a throwaway
// CA and server certificate for exercising verified TLS against a local
// database.
func newGenCertsCmd() *cobra.Command {
	var (
		outputDir  string
		commonName string
		hosts      []string
		validDays  int
	)

	cmd := &cobra.Command{
		Use:   "gen-certs",
		Short: "Generate a test CA and server certificate",
		Long: `Generate a CA and a server certificate signed by it.

This creates:
  - ca.crt                    CA certificate, pass it to --ca-file
  - server.crt, server.key    Server certificate and key for the database

Example:
  dbcheck gen-certs --output-dir ./certs --hosts localhost,127.0.0.1,db.internal`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return &exitError{code: ExitConfigError, err: fmt.Errorf("get home dir: %w", err)}
				}
				outputDir = filepath.Join(home, ".config", "dbcheck", "certs")
			}

			result, err := certs.Generate(certs.Config{
				OutputDir:  outputDir,
				CommonName: commonName,
				Hosts:      hosts,
				ValidDays:  validDays,
			})
			if err != nil {
				return &exitError{code: ExitCheckFailed, err: err}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Generated files:")
			fmt.Fprintf(out, "  CA:     %s\n", result.CACert)
			fmt.Fprintf(out, "  Server: %s, %s\n", result.ServerCert, result.ServerKey)
			fmt.Fprintf(out, "\nCheck with: dbcheck --ca-file %s\n", result.CACert)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory (default ~/.config/dbcheck/certs)")
	cmd.Flags().StringVar(&commonName, "cn", "", "certificate common name prefix (default dbcheck-test)")
	cmd.Flags().StringSliceVar(&hosts, "hosts", nil, "server certificate SANs (default localhost,127.0.0.1)")
	cmd.Flags().IntVar(&validDays, "days", 0, "validity in days (default 1)")

	return cmd
}
