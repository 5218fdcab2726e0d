package acme

import (
	"bytes"
	"crypto"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/registration"
)

// ErrCorruptAccount marks an account document that cannot be trusted. Callers
// must treat it as fatal; there is no safe recovery from a broken account.
var ErrCorruptAccount = errors.New("corrupt account record")

// AccountRecord is the authoritative representation of an ACME account as
// persisted in the secret store. The raw JSON document is what gets written
// back; the parsed fields are derived from it on load.
//
// The account identifier is the URI assigned by the ACME server at
// registration time. An account is created once per directory and updated in
// place when the contact changes; it is never deleted by this system.
type AccountRecord struct {
	ID           string                 `json:"id"`
	Server       string                 `json:"server"`
	Contact      string                 `json:"contact"`
	KeyData      []byte                 `json:"private_key"`
	Registration *registration.Resource `json:"registration"`

	raw []byte
	key crypto.PrivateKey
}

// NewAccountRecord builds an unregistered account record with a fresh EC256
// private key. The ID and Registration fields are filled in after the ACME
// server accepts the registration.
func NewAccountRecord(server, contact string) (*AccountRecord, error) {
	key, err := certcrypto.GeneratePrivateKey(certcrypto.EC256)
	if err != nil {
		return nil, fmt.Errorf("account: failed to generate private key: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := pem.Encode(buf, certcrypto.PEMBlock(key)); err != nil {
		return nil, fmt.Errorf("account: failed to encode private key: %w", err)
	}

	return &AccountRecord{
		Server:  server,
		Contact: contact,
		KeyData: buf.Bytes(),
		key:     key,
	}, nil
}

// ParseAccountRecord decodes a raw account document. A document that does not
// decode, carries no account identifier, or holds an unparseable key is
// corrupt; the caller must treat that as fatal rather than fall back to a new
// account, which would silently orphan the old account's certificates.
func ParseAccountRecord(raw []byte) (*AccountRecord, error) {
	rec := new(AccountRecord)
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("account: %w: %w", ErrCorruptAccount, err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("account: %w: missing account id", ErrCorruptAccount)
	}
	key, err := certcrypto.ParsePEMPrivateKey(rec.KeyData)
	if err != nil {
		return nil, fmt.Errorf("account: %w: invalid private key: %w", ErrCorruptAccount, err)
	}
	rec.key = key
	rec.raw = raw
	return rec, nil
}

// Encode freezes the record into its raw JSON document and returns it. The
// returned bytes are also what Raw reports afterwards.
func (a *AccountRecord) Encode() ([]byte, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("account: failed to encode record: %w", err)
	}
	a.raw = raw
	return raw, nil
}

// Raw returns the document as loaded or last encoded.
func (a *AccountRecord) Raw() []byte {
	return a.raw
}

// GetEmail implements lego's registration.User.
func (a *AccountRecord) GetEmail() string { return a.Contact }

// GetRegistration implements lego's registration.User.
func (a *AccountRecord) GetRegistration() *registration.Resource { return a.Registration }

// GetPrivateKey implements lego's registration.User.
func (a *AccountRecord) GetPrivateKey() crypto.PrivateKey { return a.key }
