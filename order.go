package acme

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
)

// ErrCorruptOrder marks an order document that cannot be trusted. Unlike a
// corrupt account this is recoverable; a fresh order supersedes it.
var ErrCorruptOrder = errors.New("corrupt order record")

// OrderRecord is the persisted state of one certificate order. Orders are
// disposable: a record that cannot be trusted is simply discarded and a fresh
// order is created, superseding it in the store on the next reconciliation.
//
// Account is the identifier of the ACME account the order was created under.
// An order is only ever rehydrated when that binding matches the active
// account; orders are not transferable across accounts.
//
// The certificate material is carried in dedicated fields because lego's
// certificate.Resource excludes its key and chain bytes from JSON. Parse
// restores them into Resource so callers see a fully populated resource.
type OrderRecord struct {
	Account           string               `json:"account"`
	Name              string               `json:"name"`
	Domains           []string             `json:"domains"`
	IssuedAt          time.Time            `json:"issued_at"`
	Resource          certificate.Resource `json:"resource"`
	CertificateChain  []byte               `json:"certificate_chain"`
	PrivateKey        []byte               `json:"private_key"`
	IssuerCertificate []byte               `json:"issuer_certificate,omitempty"`

	raw []byte
}

// NewOrderRecord wraps a freshly obtained certificate resource.
func NewOrderRecord(accountID, certName string, domains []string, res *certificate.Resource, now time.Time) *OrderRecord {
	return &OrderRecord{
		Account:           accountID,
		Name:              certName,
		Domains:           domains,
		IssuedAt:          now.UTC(),
		Resource:          *res,
		CertificateChain:  res.Certificate,
		PrivateKey:        res.PrivateKey,
		IssuerCertificate: res.IssuerCertificate,
	}
}

// ParseOrderRecord decodes a raw order document. Unlike account records a
// broken order is not fatal to the run; the caller discards it and forces a
// fresh order instead.
func ParseOrderRecord(raw []byte) (*OrderRecord, error) {
	rec := new(OrderRecord)
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("order: %w: %w", ErrCorruptOrder, err)
	}
	if rec.Account == "" {
		return nil, fmt.Errorf("order: %w: missing account binding", ErrCorruptOrder)
	}
	rec.Resource.Certificate = rec.CertificateChain
	rec.Resource.PrivateKey = rec.PrivateKey
	rec.Resource.IssuerCertificate = rec.IssuerCertificate
	rec.raw = raw
	return rec, nil
}

// Encode freezes the record into its raw JSON document and returns it.
func (o *OrderRecord) Encode() ([]byte, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("order: failed to encode record: %w", err)
	}
	o.raw = raw
	return raw, nil
}

// Raw returns the document as loaded or last encoded.
func (o *OrderRecord) Raw() []byte {
	return o.raw
}

// NotAfter reports the expiry of the leaf certificate held by the order, or
// the zero time when the chain is absent or unparseable.
func (o *OrderRecord) NotAfter() time.Time {
	if len(o.Resource.Certificate) == 0 {
		return time.Time{}
	}
	certs, err := certcrypto.ParsePEMBundle(o.Resource.Certificate)
	if err != nil || len(certs) == 0 {
		return time.Time{}
	}
	return certs[0].NotAfter
}
