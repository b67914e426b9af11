package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig holds the PEM paths for serving RPC over TLS. ClientCA is
// optional; when set, clients must present a certificate signed by it.
type TLSConfig struct {
	CertFile string `json:"cert_file,omitempty" mapstructure:"cert_file"`
	KeyFile  string `json:"key_file,omitempty" mapstructure:"key_file"`
	ClientCA string `json:"client_ca,omitempty" mapstructure:"client_ca"`
}

// Enabled reports whether a certificate is configured.
func (c TLSConfig) Enabled() bool { return c.CertFile != "" || c.KeyFile != "" }

// LoadTLSConfig builds a *tls.Config from the PEM paths in cfg.
// If no certificate is configured it returns (nil, nil), meaning
// the caller should fall back to plain HTTP.
func LoadTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load rpc cert/key: %w", err)
	}
	out := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}
	if cfg.ClientCA == "" {
		return out, nil
	}

	caPEM, err := os.ReadFile(cfg.ClientCA)
	if err != nil {
		return nil, fmt.Errorf("read client CA: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("failed to parse client CA certificate")
	}
	out.ClientCAs = caPool
	out.ClientAuth = tls.RequireAndVerifyClientCert
	return out, nil
}

// LoadClientTLS builds the client side: caFile verifies the server, and
// certFile/keyFile (both optional) are presented for client verification.
func LoadClientTLS(caFile, certFile, keyFile string) (*tls.Config, error) {
	out := &tls.Config{MinVersion: tls.VersionTLS13}
	if caFile != "" {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", caFile)
		}
		out.RootCAs = pool
	}
	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert/key: %w", err)
		}
		out.Certificates = []tls.Certificate{cert}
	}
	return out, nil
}
