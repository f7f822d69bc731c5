package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/willibrandon/dbcheck/internal/connstr"
	"github.com/willibrandon/dbcheck/internal/logger"
)

// Test hook (replaceable in unit tests).
var connectPostgres = func(ctx context.Context, cfg *pgx.ConnConfig) (Session, error) {
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// PostgresDriver speaks the PostgreSQL protocol through pgx.
type PostgresDriver struct{}

// Name implements Driver.
func (PostgresDriver) Name() string { return connstr.DriverPostgres }

// Open implements Driver. Unlike MySQL, pgx connects here, so network,
// TLS and authentication failures surface from Open.
func (PostgresDriver) Open(ctx context.Context, cfg connstr.ConnectionConfig, tlsCfg *tls.Config) (Session, error) {
	pcfg, err := newPostgresConfig(ctx, cfg, tlsCfg)
	if err != nil {
		logger.Error("Failed to build PostgreSQL config", "error", err)
		return nil, err
	}

	logger.Debug("Opening PostgreSQL session",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
		"user", cfg.User,
	)

	conn, err := connectPostgres(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Address(), err)
	}
	return conn, nil
}

// newPostgresConfig builds a pgx config for cfg. TLS is mandatory: the
// config carries tlsCfg and no plaintext fallback.
func newPostgresConfig(ctx context.Context, cfg connstr.ConnectionConfig, tlsCfg *tls.Config) (*pgx.ConnConfig, error) {
	sslmode := "verify-full"
	if tlsCfg.InsecureSkipVerify {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Address(),
		Path:   "/" + cfg.Database,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	q.Set("application_name", "dbcheck")
	if deadline, ok := ctx.Deadline(); ok {
		// connect_timeout is whole seconds; round up so it never becomes 0.
		secs := int(time.Until(deadline).Seconds()) + 1
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u.RawQuery = q.Encode()

	pcfg, err := pgx.ParseConfig(u.String())
	if err != nil {
		// The parse error can echo the DSN; report the redacted target instead.
		return nil, fmt.Errorf("failed to parse connection config for %s", cfg.Redacted())
	}

	pcfg.TLSConfig = tlsCfg
	pcfg.Fallbacks = nil
	return pcfg, nil
}
