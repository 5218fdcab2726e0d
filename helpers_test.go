package acme

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge"
	"github.com/go-acme/lego/v4/challenge/dns01"
	"github.com/go-acme/lego/v4/registration"
	"github.com/stretchr/testify/require"
)

// testCertPEM returns a self-signed certificate for cn expiring at notAfter.
func testCertPEM(t *testing.T, cn string, notAfter time.Time) []byte {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		DNSNames:     []string{cn},
		NotBefore:    notAfter.Add(-90 * 24 * time.Hour),
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// testAccountRaw builds an encoded, registered account record.
func testAccountRaw(t *testing.T, server, contact, id string) []byte {
	t.Helper()

	rec, err := NewAccountRecord(server, contact)
	require.NoError(t, err)
	rec.ID = id
	rec.Registration = &registration.Resource{URI: id}

	raw, err := rec.Encode()
	require.NoError(t, err)
	return raw
}

// testOrderRaw builds an encoded order record holding certPEM.
func testOrderRaw(t *testing.T, accountID string, domains []string, certPEM []byte) []byte {
	t.Helper()

	res := &certificate.Resource{
		Domain:      domains[0],
		Certificate: certPEM,
		PrivateKey:  []byte("key-data"),
		CertURL:     "https://ca.test/cert/1",
	}
	rec := NewOrderRecord(accountID, CertificateName(domains), domains, res, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	raw, err := rec.Encode()
	require.NoError(t, err)
	return raw
}

// memStore is an in-memory SecretStore recording every write.
type memStore struct {
	data   map[string]string
	gets   []string
	puts   []string
	getErr error
	putErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(ctx context.Context, name string) (string, bool, error) {
	m.gets = append(m.gets, name)
	if m.getErr != nil {
		return "", false, m.getErr
	}
	value, ok := m.data[name]
	return value, ok, nil
}

func (m *memStore) Put(ctx context.Context, name, value string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.puts = append(m.puts, name)
	m.data[name] = value
	return nil
}

// stubLego implements legoAPI without any network traffic.
type stubLego struct {
	uri     string
	certPEM []byte
	keyPEM  []byte

	registerCalls  int
	updateCalls    int
	obtainCalls    int
	dnsProviderSet bool
	obtainErr      error
	registerErr    error
}

func (s *stubLego) Register(registration.RegisterOptions) (*registration.Resource, error) {
	s.registerCalls++
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &registration.Resource{URI: s.uri}, nil
}

func (s *stubLego) UpdateRegistration(registration.RegisterOptions) (*registration.Resource, error) {
	s.updateCalls++
	return &registration.Resource{URI: s.uri}, nil
}

func (s *stubLego) SetDNS01Provider(challenge.Provider, ...dns01.ChallengeOption) error {
	s.dnsProviderSet = true
	return nil
}

func (s *stubLego) Obtain(req certificate.ObtainRequest) (*certificate.Resource, error) {
	s.obtainCalls++
	if s.obtainErr != nil {
		return nil, s.obtainErr
	}
	return &certificate.Resource{
		Domain:      req.Domains[0],
		Certificate: s.certPEM,
		PrivateKey:  s.keyPEM,
		CertURL:     "https://ca.test/cert/1",
	}, nil
}
