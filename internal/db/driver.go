package db

import (
	"context"
	"crypto/tls"

	"github.com/willibrandon/dbcheck/internal/connstr"
)

// Session is one open connection to a database server.
type Session interface {
	// Ping round-trips to the server, establishing the connection if the
	// driver connects lazily.
	Ping(ctx context.Context) error
	// Close releases the connection.
	Close(ctx context.Context) error
}

// Driver opens sessions for one family of wire protocols.
type Driver interface {
	// Name is the value ConnectionConfig.Driver returns for schemes this
	// driver serves.
	Name() string
	// Open prepares a session for cfg secured with tlsCfg. tlsCfg is never nil.
	Open(ctx context.Context, cfg connstr.ConnectionConfig, tlsCfg *tls.Config) (Session, error)
}
