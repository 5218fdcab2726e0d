package acme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDomains(t *testing.T) {
	tests := []struct {
		name string
		list string
		want []string
	}{
		{"comma separated", "a.com,b.com", []string{"a.com", "b.com"}},
		{"semicolon separated", "a.com;b.com", []string{"a.com", "b.com"}},
		{"mixed separators", "a.com,b.com;c.com", []string{"a.com", "b.com", "c.com"}},
		{"whitespace trimmed", "  a.com ,\tb.com ", []string{"a.com", "b.com"}},
		{"single domain", "example.com", []string{"example.com"}},
		{"wildcard preserved", "a.com, *.a.com", []string{"a.com", "*.a.com"}},
		{"empty entries dropped", "a.com,,;b.com", []string{"a.com", "b.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDomains(tt.list)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDomainsEmpty(t *testing.T) {
	for _, list := range []string{"", "  ", ",;,", " ; , "} {
		_, err := ParseDomains(list)
		assert.Error(t, err, "list %q", list)
	}
}

// The canonical identity must not depend on which separator or how much
// whitespace the caller used.
func TestCanonicalIdentitySeparatorInvariance(t *testing.T) {
	variants := []string{
		"a.com, *.a.com",
		"a.com;*.a.com",
		"  a.com ,*.a.com",
		"a.com\t; *.a.com ",
	}
	for _, list := range variants {
		domains, err := ParseDomains(list)
		require.NoError(t, err)
		assert.Equal(t, "a.com", CertificateName(domains), "list %q", list)
	}
}

func TestCertificateNameWildcard(t *testing.T) {
	domains, err := ParseDomains("*.example.com, example.com")
	require.NoError(t, err)
	assert.Equal(t, "!.example.com", CertificateName(domains))
}

func TestCertNameToken(t *testing.T) {
	tests := []struct {
		certName string
		want     string
	}{
		{"example.com", "example-com"},
		{"!.example.com", "wildcard-example-com"},
		{"sub.example.com", "sub-example-com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CertNameToken(tt.certName))
	}
}

func TestDirectoryToken(t *testing.T) {
	staging, err := DirectoryToken("https://acme-staging-v02.api.letsencrypt.org/directory")
	require.NoError(t, err)
	assert.Equal(t, "acme-staging-v02-api-letsencrypt-org", staging)

	production, err := DirectoryToken("https://acme-v02.api.letsencrypt.org/directory")
	require.NoError(t, err)
	assert.Equal(t, "acme-v02-api-letsencrypt-org", production)

	// staging and production must never collide
	assert.NotEqual(t, staging, production)
}

func TestDirectoryTokenInvalid(t *testing.T) {
	for _, u := range []string{"", "not a url at all \x00", "file:///tmp/x"} {
		_, err := DirectoryToken(u)
		assert.Error(t, err, "url %q", u)
	}
}

func TestSecretNames(t *testing.T) {
	assert.Equal(t, "acme-dir-acct-json", AccountSecretName("dir"))
	assert.Equal(t, "acme-dir-example-com-order-json", OrderSecretName("dir", "example-com"))
	assert.Equal(t, "acme-dir-wildcard-example-com-order-json", OrderSecretName("dir", "wildcard-example-com"))
}
