package certs

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	res, err := Generate(Config{OutputDir: dir, Hosts: []string{"db.local", "10.1.2.3"}})
	require.NoError(t, err)

	for _, p := range []string{res.CACert, res.ServerCert, res.ServerKey} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	info, err := os.Stat(res.ServerKey)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.Len(t, res.Server.Certificate, 1)
	leaf, err := x509.ParseCertificate(res.Server.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"db.local"}, leaf.DNSNames)
	require.Len(t, leaf.IPAddresses, 1)
	assert.Equal(t, "10.1.2.3", leaf.IPAddresses[0].String())
	assert.Equal(t, "dbcheck-test-server", leaf.Subject.CommonName)

	caPEM, err := os.ReadFile(res.CACert)
	require.NoError(t, err)
	roots := x509.NewCertPool()
	require.True(t, roots.AppendCertsFromPEM(caPEM))

	_, err = leaf.Verify(x509.VerifyOptions{DNSName: "db.local", Roots: roots})
	assert.NoError(t, err)
}
