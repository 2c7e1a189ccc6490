package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostPortValueSet(t *testing.T) {
	v := &hostPortValue{}
	require.NoError(t, v.Set("0.0.0.0:8443"))
	assert.Equal(t, "0.0.0.0", v.host)
	assert.Equal(t, uint16(8443), v.port)
	assert.Equal(t, "0.0.0.0:8443", v.String())
}

func TestHostPortValueRejectsMissingColon(t *testing.T) {
	v := &hostPortValue{}
	assert.Error(t, v.Set("no-colon-here"))
}

func TestIssuerValueNamespaced(t *testing.T) {
	v := &issuerValue{}
	require.NoError(t, v.Set("namespaced:letsencrypt"))
	assert.Equal(t, "letsencrypt", v.issuer.Name)
	assert.False(t, v.issuer.Clustered)
	assert.Equal(t, "namespaced:letsencrypt", v.String())
}

func TestIssuerValueClustered(t *testing.T) {
	v := &issuerValue{}
	require.NoError(t, v.Set("clustered:letsencrypt-prod"))
	assert.Equal(t, "letsencrypt-prod", v.issuer.Name)
	assert.True(t, v.issuer.Clustered)
}

func TestIssuerValueRejectsUnknownType(t *testing.T) {
	v := &issuerValue{}
	assert.Error(t, v.Set("bogus:name"))
}

func TestIssuerValueRejectsEmptyName(t *testing.T) {
	v := &issuerValue{}
	assert.Error(t, v.Set("namespaced:"))
}

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := ParseFlags(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", opts.ListenAddress)
	assert.Equal(t, uint16(443), opts.ListenPort)
	assert.Nil(t, opts.CertManager)
	assert.Equal(t, "/etc/ingress-tls-webhook/tls", opts.TLSFolder)
	assert.Equal(t, "tls.crt", opts.TLSCertificateFileName)
	assert.Equal(t, "tls.key", opts.TLSPrivateKeyFileName)
}

func TestParseFlagsWithIssuer(t *testing.T) {
	opts, err := ParseFlags(nil, []string{
		"--issuer=clustered:letsencrypt",
		"--issuer-kind=ClusterIssuer",
		"--listen-address=127.0.0.1:9443",
	})
	require.NoError(t, err)
	require.NotNil(t, opts.CertManager)
	assert.Equal(t, "letsencrypt", opts.CertManager.Issuer.Name)
	assert.True(t, opts.CertManager.Issuer.Clustered)
	assert.Equal(t, "ClusterIssuer", opts.CertManager.Kind)
	assert.Equal(t, "127.0.0.1", opts.ListenAddress)
	assert.Equal(t, uint16(9443), opts.ListenPort)
}

func TestParseFlagsRejectsBadIssuer(t *testing.T) {
	_, err := ParseFlags(nil, []string{"--issuer=garbage"})
	assert.Error(t, err)
}
