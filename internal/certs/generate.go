// Package certs generates a throwaway CA and server certificate for
// exercising verified TLS against local endpoints.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Config holds certificate generation configuration.
type Config struct {
	// OutputDir is where the PEM files are written
	OutputDir string
	// CommonName is used for the CA and server subjects
	CommonName string
	// Hosts are SANs (hostnames and IPs) for the server certificate
	Hosts []string
	// ValidDays is the validity period
	ValidDays int
}

// Result contains paths to the generated files and the loaded server pair.
type Result struct {
	CACert     string
	ServerCert string
	ServerKey  string

	// Server is ready to use in a tls.Config for a listener.
	Server tls.Certificate
}

// Generate creates a CA and a server certificate signed by it.
func Generate(cfg Config) (*Result, error) {
	if cfg.ValidDays == 0 {
		cfg.ValidDays = 1
	}
	if cfg.CommonName == "" {
		cfg.CommonName = "dbcheck-test"
	}
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = []string{"localhost", "127.0.0.1"}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0700); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	result := &Result{
		CACert:     filepath.Join(cfg.OutputDir, "ca.crt"),
		ServerCert: filepath.Join(cfg.OutputDir, "server.crt"),
		ServerKey:  filepath.Join(cfg.OutputDir, "server.key"),
	}

	caKey, caCert, err := generateCA(cfg)
	if err != nil {
		return nil, fmt.Errorf("generate CA: %w", err)
	}
	if err := writeCert(result.CACert, caCert); err != nil {
		return nil, err
	}

	serverKey, serverCert, err := generateServerCert(cfg, caKey, caCert)
	if err != nil {
		return nil, fmt.Errorf("generate server cert: %w", err)
	}
	if err := writeKey(result.ServerKey, serverKey); err != nil {
		return nil, err
	}
	if err := writeCert(result.ServerCert, serverCert); err != nil {
		return nil, err
	}

	pair, err := tls.LoadX509KeyPair(result.ServerCert, result.ServerKey)
	if err != nil {
		return nil, fmt.Errorf("load server pair: %w", err)
	}
	result.Server = pair

	return result, nil
}

func generateCA(cfg Config) (*ecdsa.PrivateKey, *x509.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	serial, err := serialNumber()
	if err != nil {
		return nil, nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"dbcheck"},
			CommonName:   cfg.CommonName + "-ca",
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().AddDate(0, 0, cfg.ValidDays),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return key, cert, nil
}

func generateServerCert(cfg Config, caKey *ecdsa.PrivateKey, caCert *x509.Certificate) (*ecdsa.PrivateKey, *x509.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	serial, err := serialNumber()
	if err != nil {
		return nil, nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"dbcheck"},
			CommonName:   cfg.CommonName + "-server",
		},
		NotBefore:   time.Now().Add(-time.Minute),
		NotAfter:    time.Now().AddDate(0, 0, cfg.ValidDays),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	for _, h := range cfg.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, caCert, &key.PublicKey, caKey)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return key, cert, nil
}

func serialNumber() (*big.Int, error) {
	return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
}

func writeKey(path string, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	return pem.Encode(f, &pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func writeCert(path string, cert *x509.Certificate) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	return pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}
