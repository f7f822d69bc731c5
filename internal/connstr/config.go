// Package connstr turns database connection strings into connection configs.
package connstr

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultCAPath is the trust anchor bundle used when nothing else is configured.
const DefaultCAPath = "/etc/ssl/certs/ca-certificates.crt"

// Driver names returned by ConnectionConfig.Driver.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// schemeDrivers maps accepted URL schemes to the driver that speaks their protocol.
var schemeDrivers = map[string]string{
	"mysql":      DriverMySQL,
	"tidb":       DriverMySQL,
	"postgres":   DriverPostgres,
	"postgresql": DriverPostgres,
}

// ConnectionConfig holds everything needed for a single connection attempt.
type ConnectionConfig struct {
	Scheme    string `json:"scheme" yaml:"scheme"`
	User      string `json:"user" yaml:"user" validate:"required"`
	Password  string `json:"-" yaml:"-"`
	Host      string `json:"host" yaml:"host" validate:"required"`
	Port      int    `json:"port" yaml:"port" validate:"min=1,max=65535"`
	Database  string `json:"database" yaml:"database" validate:"required"`
	TLSVerify bool   `json:"tls_verify" yaml:"tls_verify"`
	TLSCAPath string `json:"tls_ca_path,omitempty" yaml:"tls_ca_path,omitempty" validate:"required_if=TLSVerify true"`
}

// Driver returns the driver name for the config's scheme, or "" if unknown.
func (c ConnectionConfig) Driver() string {
	return schemeDrivers[strings.ToLower(c.Scheme)]
}

// Address returns host:port, bracketing IPv6 hosts.
func (c ConnectionConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Redacted returns the config as a URL-like string with the password masked.
func (c ConnectionConfig) Redacted() string {
	creds := c.User
	if c.Password != "" {
		creds += ":" + redactedPassword
	}
	return fmt.Sprintf("%s://%s@%s/%s", c.Scheme, creds, c.Address(), c.Database)
}

// String implements fmt.Stringer. It never includes the password.
func (c ConnectionConfig) String() string {
	return c.Redacted()
}

const redactedPassword = "xxxxx"

var validate = validator.New()

// Validate checks that the config is complete enough for a connection attempt.
func Validate(c ConnectionConfig) error {
	if err := validate.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			first := errs[0]
			return &ParseError{
				Kind:  ErrInvalidField,
				Field: fieldName(first.Field()),
				Input: c.Redacted(),
				Err:   fmt.Errorf("failed %q check", first.Tag()),
			}
		}
		return &ParseError{Kind: ErrInvalidField, Input: c.Redacted(), Err: err}
	}
	if c.Driver() == "" {
		return &ParseError{Kind: ErrUnsupportedScheme, Field: "scheme", Input: c.Redacted()}
	}
	return nil
}

// fieldName maps struct field names to the names used in messages.
func fieldName(f string) string {
	switch f {
	case "TLSCAPath":
		return "tls_ca_path"
	default:
		return strings.ToLower(f)
	}
}
