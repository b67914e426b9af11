package certgen

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateChainsToCA(t *testing.T) {
	b, err := Generate(t.TempDir(), "ledger.internal", "ops", nil)
	require.NoError(t, err)

	caPEM, err := os.ReadFile(b.CACert)
	require.NoError(t, err)
	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM(caPEM))

	server, err := tls.LoadX509KeyPair(b.ServerCert, b.ServerKey)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(server.Certificate[0])
	require.NoError(t, err)
	_, err = leaf.Verify(x509.VerifyOptions{DNSName: "ledger.internal", Roots: pool})
	assert.NoError(t, err)
	_, err = leaf.Verify(x509.VerifyOptions{DNSName: "localhost", Roots: pool})
	assert.NoError(t, err)

	client, err := tls.LoadX509KeyPair(b.ClientCert, b.ClientKey)
	require.NoError(t, err)
	cleaf, err := x509.ParseCertificate(client.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, "ops", cleaf.Subject.CommonName)
	_, err = cleaf.Verify(x509.VerifyOptions{Roots: pool, KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}})
	assert.NoError(t, err)

	info, err := os.Stat(b.ServerKey)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestGenerateIPHost(t *testing.T) {
	b, err := Generate(t.TempDir(), "10.0.0.7", "", nil)
	require.NoError(t, err)
	pair, err := tls.LoadX509KeyPair(b.ServerCert, b.ServerKey)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)
	var ips []string
	for _, ip := range leaf.IPAddresses {
		ips = append(ips, ip.String())
	}
	assert.Contains(t, ips, "10.0.0.7")
}
