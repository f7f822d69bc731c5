package db

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/willibrandon/dbcheck/internal/connstr"
	"github.com/willibrandon/dbcheck/internal/trust"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	hostnameErr := x509.HostnameError{Certificate: &x509.Certificate{}, Host: "db.example.com"}

	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{"nil", nil, KindNone},
		{"parse error", &connstr.ParseError{Kind: connstr.ErrEmpty}, KindParse},
		{"wrapped parse error", fmt.Errorf("wrap: %w", &connstr.ParseError{Kind: connstr.ErrMissingPort}), KindParse},
		{"ca bundle", fmt.Errorf("%w: read /x: missing", trust.ErrCABundle), KindConfig},
		{"no driver", fmt.Errorf("%w %q", ErrNoDriver, "redis"), KindConfig},
		{"already classified", &CheckError{Kind: KindAuth, Err: errors.New("x")}, KindAuth},

		{"mysql access denied", &mysql.MySQLError{Number: 1045, Message: "Access denied"}, KindAuth},
		{"mysql db access denied", &mysql.MySQLError{Number: 1044}, KindAuth},
		{"mysql no password", &mysql.MySQLError{Number: 1698}, KindAuth},
		{"mysql unknown database", &mysql.MySQLError{Number: 1049}, KindDatabase},
		{"mysql other", &mysql.MySQLError{Number: 1064}, KindUnknown},
		{"mysql server without tls", mysql.ErrNoTLS, KindTLS},

		{"pg bad password", &pgconn.PgError{Code: "28P01"}, KindAuth},
		{"pg bad auth spec", &pgconn.PgError{Code: "28000"}, KindAuth},
		{"pg unknown database", &pgconn.PgError{Code: "3D000"}, KindDatabase},
		{"pg other", &pgconn.PgError{Code: "53300"}, KindUnknown},

		{"unknown authority", x509.UnknownAuthorityError{}, KindTLS},
		{"hostname mismatch", &tls.CertificateVerificationError{Err: hostnameErr}, KindTLS},
		{"expired", x509.CertificateInvalidError{Reason: x509.Expired}, KindTLS},
		{"not tls", tls.RecordHeaderError{Msg: "first record does not look like a TLS handshake"}, KindTLS},
		{"tls alert over net", &net.OpError{Op: "remote error", Err: tls.AlertError(42)}, KindTLS},

		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", &net.OpError{Op: "dial", Net: "tcp", Err: timeoutErr{}}, KindTimeout},

		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, KindNetwork},
		{"dns", &net.DNSError{Err: "no such host", Name: "db.invalid"}, KindNetwork},
		{"bare errno", fmt.Errorf("read: %w", syscall.ECONNRESET), KindNetwork},

		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestErrorKind_String(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		expected string
	}{
		{KindNone, "none"},
		{KindParse, "parse"},
		{KindConfig, "config"},
		{KindNetwork, "network"},
		{KindTimeout, "timeout"},
		{KindTLS, "tls"},
		{KindAuth, "auth"},
		{KindDatabase, "database"},
		{KindUnknown, "unknown"},
		{ErrorKind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.String())
			text, err := tt.kind.MarshalText()
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, string(text))
		})
	}
}

func TestCheckError(t *testing.T) {
	cause := &mysql.MySQLError{Number: 1045, Message: "Access denied for user 'alice'"}
	err := &CheckError{Kind: KindAuth, Err: cause}

	assert.Equal(t, "auth error: Error 1045: Access denied for user 'alice'", err.Error())
	assert.ErrorIs(t, err, cause)
}
