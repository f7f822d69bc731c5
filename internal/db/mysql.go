package db

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/willibrandon/dbcheck/internal/connstr"
	"github.com/willibrandon/dbcheck/internal/logger"
)

// Test hook (replaceable in unit tests).
var openMySQL = func(cfg *mysql.Config) (*sql.DB, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// MySQLDriver speaks the MySQL protocol (MySQL, MariaDB, TiDB) through
// go-sql-driver/mysql.
type MySQLDriver struct{}

// Name implements Driver.
func (MySQLDriver) Name() string { return connstr.DriverMySQL }

// Open implements Driver. No network traffic happens until Ping.
func (MySQLDriver) Open(ctx context.Context, cfg connstr.ConnectionConfig, tlsCfg *tls.Config) (Session, error) {
	// The driver looks TLS configs up by name, so each session registers
	// its own under a unique key.
	tlsKey := "dbcheck-" + uuid.NewString()
	if err := mysql.RegisterTLSConfig(tlsKey, tlsCfg); err != nil {
		return nil, fmt.Errorf("register TLS config: %w", err)
	}

	mcfg := newMySQLConfig(ctx, cfg, tlsKey)

	logger.Debug("Opening MySQL session",
		"addr", mcfg.Addr,
		"database", mcfg.DBName,
		"user", mcfg.User,
		"tls", tlsKey,
	)

	db, err := openMySQL(mcfg)
	if err != nil {
		mysql.DeregisterTLSConfig(tlsKey)
		return nil, fmt.Errorf("open mysql connector: %w", err)
	}
	// One check, one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &mysqlSession{db: db, tlsKey: tlsKey}, nil
}

// newMySQLConfig maps a connection config onto the driver's config. A
// deadline on ctx bounds the dial and the handshake reads and writes,
// which the driver does not tie to the context.
func newMySQLConfig(ctx context.Context, cfg connstr.ConnectionConfig, tlsKey string) *mysql.Config {
	mcfg := mysql.NewConfig()
	mcfg.User = cfg.User
	mcfg.Passwd = cfg.Password
	mcfg.Net = "tcp"
	mcfg.Addr = cfg.Address()
	mcfg.DBName = cfg.Database
	mcfg.TLSConfig = tlsKey

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			mcfg.Timeout = remaining
			mcfg.ReadTimeout = remaining
			mcfg.WriteTimeout = remaining
		}
	}
	return mcfg
}

type mysqlSession struct {
	db     *sql.DB
	tlsKey string
}

func (s *mysqlSession) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *mysqlSession) Close(context.Context) error {
	defer mysql.DeregisterTLSConfig(s.tlsKey)
	return s.db.Close()
}
