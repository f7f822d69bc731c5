// Package db runs connectivity checks against remote databases over TLS.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/willibrandon/dbcheck/internal/connstr"
	"github.com/willibrandon/dbcheck/internal/logger"
	"github.com/willibrandon/dbcheck/internal/trust"
)

// Result is the outcome of one connectivity check.
type Result struct {
	Target    connstr.ConnectionConfig
	OK        bool
	Kind      ErrorKind
	Err       error // a *CheckError when OK is false
	Latency   time.Duration
	CheckedAt time.Time
	// Bundle is the trust anchor file used, nil when verification is off
	// or the check failed before TLS setup.
	Bundle *trust.Bundle
}

// Request describes a check before its connection string is parsed.
type Request struct {
	URL       string
	Legacy    bool // split the string the old way instead of parsing it as a URL
	TLSVerify bool
	CAPath    string
}

// Checker opens a single connection, pings it and closes it.
type Checker struct {
	drivers map[string]Driver
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithDriver registers d, replacing any driver with the same name.
func WithDriver(d Driver) Option {
	return func(c *Checker) { c.drivers[d.Name()] = d }
}

// WithTimeout bounds the whole check. Zero leaves the drivers' defaults.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) { c.timeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// NewChecker returns a Checker with the MySQL and PostgreSQL drivers registered.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		drivers: map[string]Driver{},
		now:     time.Now,
	}
	WithDriver(MySQLDriver{})(c)
	WithDriver(PostgresDriver{})(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckURL parses req.URL and checks the resulting target. Parse failures
// come back as a KindParse result without touching the network.
func (c *Checker) CheckURL(ctx context.Context, req Request) Result {
	parse := connstr.Parse
	if req.Legacy {
		parse = connstr.ParseLegacy
	}

	cfg, err := parse(req.URL)
	if err != nil {
		logger.Error("Failed to parse connection string", "error", err)
		return c.failed(connstr.ConnectionConfig{}, c.now(), nil, err)
	}

	cfg.TLSVerify = req.TLSVerify
	cfg.TLSCAPath = req.CAPath
	return c.Check(ctx, cfg)
}

// Check validates cfg, opens a TLS connection with the matching driver,
// pings it and closes it. It never returns a bare error: every failure is
// classified into the Result.
func (c *Checker) Check(ctx context.Context, cfg connstr.ConnectionConfig) Result {
	start := c.now()

	if err := connstr.Validate(cfg); err != nil {
		logger.Error("Invalid connection config", "error", err)
		return c.failed(cfg, start, nil, err)
	}

	tlsCfg, bundle, err := trust.ClientConfig(cfg.Host, cfg.TLSVerify, cfg.TLSCAPath)
	if err != nil {
		logger.Error("Failed to load trust anchors", "ca_file", cfg.TLSCAPath, "error", err)
		return c.failed(cfg, start, nil, err)
	}
	if bundle != nil {
		logger.Debug("Loaded trust anchors",
			"ca_file", bundle.Path,
			"certificates", bundle.Certificates,
		)
	}

	driver, ok := c.drivers[cfg.Driver()]
	if !ok {
		return c.failed(cfg, start, bundle, fmt.Errorf("%w %q", ErrNoDriver, cfg.Scheme))
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logger.Debug("Checking database connectivity",
		"target", cfg.Redacted(),
		"driver", driver.Name(),
		"tls_verify", cfg.TLSVerify,
		"timeout", c.timeout,
	)

	session, err := driver.Open(ctx, cfg, tlsCfg)
	if err != nil {
		logger.Error("Failed to open connection", "target", cfg.Redacted(), "error", err)
		return c.failed(cfg, start, bundle, err)
	}

	// Close must still reach the server if the check's deadline has passed.
	closeCtx := context.WithoutCancel(ctx)

	if err := session.Ping(ctx); err != nil {
		logger.Error("Connection check failed", "target", cfg.Redacted(), "error", err)
		if cerr := session.Close(closeCtx); cerr != nil {
			logger.Debug("Close after failed ping", "error", cerr)
		}
		return c.failed(cfg, start, bundle, err)
	}
	latency := c.now().Sub(start)

	if err := session.Close(closeCtx); err != nil {
		logger.Warn("Failed to close connection", "target", cfg.Redacted(), "error", err)
	}

	logger.Info("Database connection successful",
		"target", cfg.Redacted(),
		"latency", latency,
	)

	return Result{
		Target:    cfg,
		OK:        true,
		Kind:      KindNone,
		Latency:   latency,
		CheckedAt: start,
		Bundle:    bundle,
	}
}

func (c *Checker) failed(cfg connstr.ConnectionConfig, start time.Time, bundle *trust.Bundle, err error) Result {
	kind := Classify(err)
	return Result{
		Target:    cfg,
		Kind:      kind,
		Err:       &CheckError{Kind: kind, Err: err},
		Latency:   c.now().Sub(start),
		CheckedAt: start,
		Bundle:    bundle,
	}
}
