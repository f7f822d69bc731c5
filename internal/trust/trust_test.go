package trust

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/willibrandon/dbcheck/internal/certs"
)

func generate(t *testing.T) *certs.Result {
	t.Helper()
	res, err := certs.Generate(certs.Config{OutputDir: t.TempDir()})
	require.NoError(t, err)
	return res
}

func TestLoadCABundle(t *testing.T) {
	res := generate(t)

	bundle, err := LoadCABundle(res.CACert)
	require.NoError(t, err)
	assert.Equal(t, res.CACert, bundle.Path)
	assert.Equal(t, 1, bundle.Certificates)
	assert.Greater(t, bundle.Size, int64(0))
	assert.NotNil(t, bundle.Pool)
}

func TestLoadCABundle_MultipleCertificates(t *testing.T) {
	a, b := generate(t), generate(t)
	pemA, err := os.ReadFile(a.CACert)
	require.NoError(t, err)
	pemB, err := os.ReadFile(b.CACert)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bundle.crt")
	require.NoError(t, os.WriteFile(path, append(pemA, pemB...), 0644))

	bundle, err := LoadCABundle(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bundle.Certificates)
}

func TestLoadCABundle_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.crt")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0644))

	// A key file is PEM but holds no certificate.
	res := generate(t)

	tests := []struct {
		name     string
		path     string
		notExist bool
	}{
		{"empty path", "", false},
		{"missing file", filepath.Join(dir, "missing.crt"), true},
		{"not pem", garbage, false},
		{"pem without certificates", res.ServerKey, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCABundle(tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCABundle)
			assert.Equal(t, tt.notExist, errors.Is(err, os.ErrNotExist))
		})
	}
}

func TestClientConfig_NoVerify(t *testing.T) {
	cfg, bundle, err := ClientConfig("db.example.com", false, "/does/not/exist")
	require.NoError(t, err)
	assert.Nil(t, bundle)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, "db.example.com", cfg.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestClientConfig_Verify(t *testing.T) {
	res := generate(t)

	cfg, bundle, err := ClientConfig("localhost", true, res.CACert)
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.False(t, cfg.InsecureSkipVerify)
	assert.Equal(t, "localhost", cfg.ServerName)
	assert.NotNil(t, cfg.RootCAs)
}

func TestClientConfig_VerifyMissingBundle(t *testing.T) {
	_, _, err := ClientConfig("localhost", true, filepath.Join(t.TempDir(), "nope.crt"))
	assert.ErrorIs(t, err, ErrCABundle)
}

// serveTLS accepts one connection and completes the server side of the handshake.
func serveTLS(t *testing.T, cert tls.Certificate) string {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_ = conn.(*tls.Conn).Handshake()
		_ = conn.Close()
	}()
	return ln.Addr().String()
}

func TestClientConfig_Handshake(t *testing.T) {
	server := generate(t)
	other := generate(t)

	t.Run("trusted CA", func(t *testing.T) {
		addr := serveTLS(t, server.Server)
		cfg, _, err := ClientConfig("localhost", true, server.CACert)
		require.NoError(t, err)

		conn, err := tls.Dial("tcp", addr, cfg)
		require.NoError(t, err)
		_ = conn.Close()
	})

	t.Run("untrusted CA", func(t *testing.T) {
		addr := serveTLS(t, server.Server)
		cfg, _, err := ClientConfig("localhost", true, other.CACert)
		require.NoError(t, err)

		_, err = tls.Dial("tcp", addr, cfg)
		require.Error(t, err)
		var unknown x509.UnknownAuthorityError
		assert.True(t, errors.As(err, &unknown), "expected unknown authority, got %v", err)
	})

	t.Run("host mismatch", func(t *testing.T) {
		addr := serveTLS(t, server.Server)
		cfg, _, err := ClientConfig("db.example.com", true, server.CACert)
		require.NoError(t, err)

		_, err = tls.Dial("tcp", addr, cfg)
		require.Error(t, err)
		var hostErr x509.HostnameError
		assert.True(t, errors.As(err, &hostErr), "expected hostname error, got %v", err)
	})

	t.Run("no verification", func(t *testing.T) {
		addr := serveTLS(t, server.Server)
		cfg, _, err := ClientConfig("db.example.com", false, "")
		require.NoError(t, err)

		conn, err := tls.Dial("tcp", addr, cfg)
		require.NoError(t, err)
		_ = conn.Close()
	})
}

func TestClientConfig_DialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg, _, err := ClientConfig("localhost", false, "")
	require.NoError(t, err)
	_, err = tls.Dial("tcp", addr, cfg)
	assert.Error(t, err)
}
