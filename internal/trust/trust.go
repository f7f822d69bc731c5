// Package trust builds client TLS configuration from a CA bundle on disk.
package trust

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// ErrCABundle is wrapped by every error caused by the trust anchor file.
var ErrCABundle = errors.New("trust: CA bundle")

// Bundle is a parsed trust anchor file.
type Bundle struct {
	Path         string
	Pool         *x509.CertPool
	Certificates int   // number of certificates added to Pool
	Size         int64 // file size in bytes
}

// LoadCABundle reads a PEM bundle and returns it as a certificate pool.
func LoadCABundle(path string) (*Bundle, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no path configured", ErrCABundle)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrCABundle, path, err)
	}

	pool := x509.NewCertPool()
	count := 0
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			// System bundles occasionally carry entries the parser rejects.
			continue
		}
		pool.AddCert(cert)
		count++
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: no certificates found in %s", ErrCABundle, path)
	}

	return &Bundle{
		Path:         path,
		Pool:         pool,
		Certificates: count,
		Size:         int64(len(data)),
	}, nil
}

// ClientConfig returns the TLS configuration for connecting to host.
//
// With verify set, the server chain is checked against the bundle at
// caPath and the certificate must match host. Without it the handshake
// still happens but nothing is verified and the bundle is not read.
func ClientConfig(host string, verify bool, caPath string) (*tls.Config, *Bundle, error) {
	if !verify {
		return &tls.Config{
			ServerName:         host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true, //nolint:gosec // explicitly requested
		}, nil, nil
	}

	bundle, err := LoadCABundle(caPath)
	if err != nil {
		return nil, nil, err
	}

	return &tls.Config{
		ServerName: host,
		RootCAs:    bundle.Pool,
		MinVersion: tls.VersionTLS12,
	}, bundle, nil
}
