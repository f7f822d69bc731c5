package db

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/willibrandon/dbcheck/internal/connstr"
	"github.com/willibrandon/dbcheck/internal/trust"
)

// ErrorKind says which stage of a check failed.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindParse
	KindConfig
	KindNetwork
	KindTimeout
	KindTLS
	KindAuth
	KindDatabase
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindParse:
		return "parse"
	case KindConfig:
		return "config"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindTLS:
		return "tls"
	case KindAuth:
		return "auth"
	case KindDatabase:
		return "database"
	default:
		return "unknown"
	}
}

// MarshalText lets encoders write the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// CheckError is a classified check failure.
type CheckError struct {
	Kind ErrorKind
	Err  error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *CheckError) Unwrap() error { return e.Err }

// ErrNoDriver is returned when no registered driver serves a scheme.
var ErrNoDriver = errors.New("db: no driver for scheme")

// MySQL server error numbers.
const (
	mysqlDBAccessDenied   = 1044 // ER_DBACCESS_DENIED_ERROR
	mysqlAccessDenied     = 1045 // ER_ACCESS_DENIED_ERROR
	mysqlBadDB            = 1049 // ER_BAD_DB_ERROR
	mysqlAccessDeniedNoPW = 1698 // ER_ACCESS_DENIED_NO_PASSWORD_ERROR
)

// PostgreSQL SQLSTATE codes.
const (
	pgInvalidAuthSpec   = "28000"
	pgInvalidPassword   = "28P01"
	pgInvalidCatalog    = "3D000"
	pgInsufficientPrivs = "42501"
)

// Classify maps an error from parsing, TLS setup, or a driver onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var ce *CheckError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	var pe *connstr.ParseError
	if errors.As(err, &pe) {
		return KindParse
	}
	if errors.Is(err, trust.ErrCABundle) || errors.Is(err, ErrNoDriver) {
		return KindConfig
	}

	if isTLSError(err) {
		return KindTLS
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlAccessDenied, mysqlDBAccessDenied, mysqlAccessDeniedNoPW:
			return KindAuth
		case mysqlBadDB:
			return KindDatabase
		}
		return KindUnknown
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInvalidAuthSpec, pgInvalidPassword, pgInsufficientPrivs:
			return KindAuth
		case pgInvalidCatalog:
			return KindDatabase
		}
		return KindUnknown
	}

	if isTimeout(err) {
		return KindTimeout
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var addrErr *net.AddrError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &addrErr) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return KindNetwork
	}

	return KindUnknown
}

func isTLSError(err error) bool {
	if errors.Is(err, mysql.ErrNoTLS) {
		return true
	}

	var verifyErr *tls.CertificateVerificationError
	var recordErr tls.RecordHeaderError
	var alertErr tls.AlertError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
