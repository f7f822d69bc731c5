// Package report renders connectivity check results for people and scripts.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/willibrandon/dbcheck/internal/connstr"
	"github.com/willibrandon/dbcheck/internal/db"
	"gopkg.in/yaml.v3"
)

// Format selects the report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// Success and failure lines of the text report.
const (
	SuccessMessage = "Connection successful!"
	FailurePrefix  = "Connection error: "
)

// Options control rendering.
type Options struct {
	Format  Format
	Verbose bool   // text only: add the detail block
	Color   bool   // text only
	RunID   string // correlates the report with the log file
}

// Target is the connection target as reported. It has no password field.
type Target struct {
	Scheme    string `json:"scheme" yaml:"scheme"`
	Driver    string `json:"driver" yaml:"driver"`
	User      string `json:"user" yaml:"user"`
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`
	Database  string `json:"database" yaml:"database"`
	TLSVerify bool   `json:"tls_verify" yaml:"tls_verify"`
	CAFile    string `json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
}

// Document is the machine-readable report.
type Document struct {
	OK        bool      `json:"ok" yaml:"ok"`
	Kind      string    `json:"kind" yaml:"kind"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	Target    *Target   `json:"target,omitempty" yaml:"target,omitempty"`
	LatencyMS float64   `json:"latency_ms" yaml:"latency_ms"`
	CheckedAt time.Time `json:"checked_at" yaml:"checked_at"`
	RunID     string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

// NewDocument converts a result into its report form.
func NewDocument(r db.Result, runID string) Document {
	doc := Document{
		OK:        r.OK,
		Kind:      r.Kind.String(),
		LatencyMS: float64(r.Latency) / float64(time.Millisecond),
		CheckedAt: r.CheckedAt.UTC(),
		RunID:     runID,
	}
	if r.Err != nil {
		doc.Error = r.Err.Error()
	}
	if r.Target.Host != "" {
		t := NewTarget(r.Target)
		doc.Target = &t
	}
	return doc
}

// NewTarget converts a connection config into its report form.
func NewTarget(c connstr.ConnectionConfig) Target {
	t := Target{
		Scheme:    c.Scheme,
		Driver:    c.Driver(),
		User:      c.User,
		Host:      c.Host,
		Port:      c.Port,
		Database:  c.Database,
		TLSVerify: c.TLSVerify,
	}
	if c.TLSVerify {
		t.CAFile = c.TLSCAPath
	}
	return t
}

// RenderTarget writes the redacted connection target: the masked URL in
// text mode, a Target document otherwise.
func RenderTarget(w io.Writer, c connstr.ConnectionConfig, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewTarget(c))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewTarget(c)); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		_, err := fmt.Fprintln(w, c.Redacted())
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// Render writes r to w in the requested format.
func Render(w io.Writer, r db.Result, opts Options) error {
	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewDocument(r, opts.RunID))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewDocument(r, opts.RunID)); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return renderText(w, r, opts)
	default:
		return fmt.Errorf("unknown output format %q", opts.Format)
	}
}
