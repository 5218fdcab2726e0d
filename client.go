package acme

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge"
	"github.com/go-acme/lego/v4/challenge/dns01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/providers/dns/cloudflare"
	"github.com/go-acme/lego/v4/registration"
)

// ObtainRequest asks the client for a certificate covering Domains. The first
// domain is the canonical certificate identity. ForceRenewal bypasses the
// renewal-window check and always orders a fresh certificate.
type ObtainRequest struct {
	Domains      []string
	ForceRenewal bool
}

// ObtainResult reports the order backing the requested certificate and
// whether a still-valid prior order was reused instead of a new ACME round
// trip.
type ObtainResult struct {
	Order  *OrderRecord
	Reused bool
}

// Client is the ACME client capability: account management and certificate
// issuance against one directory. Implementations keep their working state in
// the run-scoped Cache; whether a rehydrated order is reused or replaced is
// the client's decision, not the orchestrator's.
type Client interface {
	// Account returns the active account, or ok=false when none has been
	// rehydrated or created yet.
	Account() (rec *AccountRecord, ok bool, err error)

	// Register creates a fresh account with the given contact and makes it
	// active.
	Register(ctx context.Context, contact string) (*AccountRecord, error)

	// UpdateContact changes the active account's contact in place. The
	// account identifier is retained.
	UpdateContact(ctx context.Context, contact string) (*AccountRecord, error)

	// Obtain requests or renews the certificate for the full domain list via
	// the DNS-01 challenge.
	Obtain(ctx context.Context, req ObtainRequest) (*ObtainResult, error)
}

// legoAPI is the slice of lego's client surface the implementation touches.
// Narrowed to an interface so tests can run the full flow without network.
type legoAPI interface {
	Register(options registration.RegisterOptions) (*registration.Resource, error)
	UpdateRegistration(options registration.RegisterOptions) (*registration.Resource, error)
	SetDNS01Provider(p challenge.Provider, opts ...dns01.ChallengeOption) error
	Obtain(req certificate.ObtainRequest) (*certificate.Resource, error)
}

type legoFactory func(cfg *lego.Config) (legoAPI, error)

func defaultLegoFactory(cfg *lego.Config) (legoAPI, error) {
	client, err := lego.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &legoAdapter{client: client}, nil
}

type legoAdapter struct {
	client *lego.Client
}

func (l *legoAdapter) Register(options registration.RegisterOptions) (*registration.Resource, error) {
	return l.client.Registration.Register(options)
}

func (l *legoAdapter) UpdateRegistration(options registration.RegisterOptions) (*registration.Resource, error) {
	return l.client.Registration.UpdateRegistration(options)
}

func (l *legoAdapter) SetDNS01Provider(p challenge.Provider, opts ...dns01.ChallengeOption) error {
	return l.client.Challenge.SetDNS01Provider(p, opts...)
}

func (l *legoAdapter) Obtain(req certificate.ObtainRequest) (*certificate.Resource, error) {
	return l.client.Certificate.Obtain(req)
}

// LegoClient implements Client on top of go-acme/lego with DNS-01 challenges.
type LegoClient struct {
	cfg     *Config
	cache   *Cache
	logger  *slog.Logger
	factory legoFactory
	now     func() time.Time

	loaded  bool
	account *AccountRecord
}

// NewLegoClient creates a client bound to one directory and one working
// cache. The account, if any, is loaded lazily from the cache on first use so
// rehydration may still populate it after construction.
func NewLegoClient(cfg *Config, cache *Cache, logger *slog.Logger) *LegoClient {
	if cfg == nil || cache == nil || logger == nil {
		panic("NewLegoClient: received nil config, cache, or logger")
	}
	return &LegoClient{
		cfg:     cfg,
		cache:   cache,
		logger:  logger.With("component", "acme_client"),
		factory: defaultLegoFactory,
		now:     time.Now,
	}
}

func (c *LegoClient) load() error {
	if c.loaded {
		return nil
	}
	raw, ok, err := c.cache.ReadAccount()
	if err != nil {
		return err
	}
	if ok {
		rec, err := ParseAccountRecord(raw)
		if err != nil {
			return err
		}
		c.account = rec
	}
	c.loaded = true
	return nil
}

func (c *LegoClient) Account() (*AccountRecord, bool, error) {
	if err := c.load(); err != nil {
		return nil, false, err
	}
	return c.account, c.account != nil, nil
}

func (c *LegoClient) Register(ctx context.Context, contact string) (*AccountRecord, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := NewAccountRecord(c.cfg.CADirectoryURL, contact)
	if err != nil {
		return nil, err
	}

	api, err := c.buildAPI(rec)
	if err != nil {
		return nil, err
	}

	reg, err := api.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, fmt.Errorf("client: registration failed for %s: %w", contact, err)
	}
	rec.Registration = reg
	rec.ID = reg.URI

	if err := c.storeAccount(rec); err != nil {
		return nil, err
	}
	c.logger.Info("registered new account", "contact", contact, "account_id", rec.ID)
	return rec, nil
}

func (c *LegoClient) UpdateContact(ctx context.Context, contact string) (*AccountRecord, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	if c.account == nil {
		return nil, fmt.Errorf("client: no active account to update")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := c.account
	previous := rec.Contact
	rec.Contact = contact

	api, err := c.buildAPI(rec)
	if err != nil {
		rec.Contact = previous
		return nil, err
	}

	reg, err := api.UpdateRegistration(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		rec.Contact = previous
		return nil, fmt.Errorf("client: contact update failed for account %s: %w", rec.ID, err)
	}
	rec.Registration = reg

	if err := c.storeAccount(rec); err != nil {
		return nil, err
	}
	c.logger.Info("updated account contact", "account_id", rec.ID, "contact", contact)
	return rec, nil
}

func (c *LegoClient) Obtain(ctx context.Context, req ObtainRequest) (*ObtainResult, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	if c.account == nil {
		return nil, fmt.Errorf("client: no active account for issuance")
	}
	if len(req.Domains) == 0 {
		return nil, fmt.Errorf("client: no domains requested")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	certName := CertificateName(req.Domains)
	certToken := CertNameToken(certName)

	if !req.ForceRenewal {
		if rec, ok := c.reusableOrder(certToken, req.Domains); ok {
			c.logger.Info("reusing existing order, certificate not yet due",
				"certificate", certName, "expires", rec.NotAfter().UTC().Format(time.RFC3339))
			return &ObtainResult{Order: rec, Reused: true}, nil
		}
	}

	api, err := c.buildAPI(c.account)
	if err != nil {
		return nil, err
	}

	provider, err := c.dnsProvider()
	if err != nil {
		return nil, err
	}
	if err := api.SetDNS01Provider(provider, dns01.AddDNSTimeout(10*time.Minute)); err != nil {
		return nil, fmt.Errorf("client: failed to set DNS01 provider %q: %w", c.cfg.DNSProvider, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := api.Obtain(certificate.ObtainRequest{
		Domains: req.Domains,
		Bundle:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("client: failed to obtain certificate for %v: %w", req.Domains, err)
	}

	rec := NewOrderRecord(c.account.ID, certName, req.Domains, res, c.now())
	raw, err := rec.Encode()
	if err != nil {
		return nil, err
	}
	if err := c.cache.WriteOrder(certToken, raw); err != nil {
		return nil, err
	}

	c.logger.Info("obtained certificate", "certificate", certName, "domains", req.Domains, "certificate_url", res.CertURL)
	return &ObtainResult{Order: rec, Reused: false}, nil
}

// reusableOrder checks whether the cached order for certToken can satisfy the
// request without a new ACME round trip: it must parse, belong to the active
// account, cover exactly the requested domain list, and hold a certificate
// that is not yet inside the renewal window.
func (c *LegoClient) reusableOrder(certToken string, domains []string) (*OrderRecord, bool) {
	raw, ok, err := c.cache.ReadOrder(certToken)
	if err != nil || !ok {
		return nil, false
	}
	rec, err := ParseOrderRecord(raw)
	if err != nil {
		c.logger.Warn("cached order is unreadable, ordering fresh", "error", err)
		return nil, false
	}
	if rec.Account != c.account.ID {
		return nil, false
	}
	if !slices.Equal(rec.Domains, domains) {
		c.logger.Info("cached order covers a different domain list, ordering fresh",
			"cached", rec.Domains, "requested", domains)
		return nil, false
	}
	notAfter := rec.NotAfter()
	if notAfter.IsZero() {
		return nil, false
	}
	if notAfter.Sub(c.now()) <= c.cfg.RenewalWindow() {
		return nil, false
	}
	return rec, true
}

func (c *LegoClient) storeAccount(rec *AccountRecord) error {
	raw, err := rec.Encode()
	if err != nil {
		return err
	}
	if err := c.cache.WriteAccount(raw); err != nil {
		return err
	}
	c.account = rec
	return nil
}

func (c *LegoClient) buildAPI(user registration.User) (legoAPI, error) {
	legoCfg := lego.NewConfig(user)
	legoCfg.CADirURL = c.cfg.CADirectoryURL
	legoCfg.Certificate.KeyType = certcrypto.EC256

	api, err := c.factory(legoCfg)
	if err != nil {
		return nil, fmt.Errorf("client: failed to create ACME client: %w", err)
	}
	return api, nil
}

func (c *LegoClient) dnsProvider() (challenge.Provider, error) {
	providerCfg, ok := c.cfg.DNSProviders[c.cfg.DNSProvider]
	if !ok {
		return nil, fmt.Errorf("client: DNS provider %q not found in configuration", c.cfg.DNSProvider)
	}

	switch c.cfg.DNSProvider {
	case DNSProviderCloudflare:
		cfCfg := cloudflare.NewDefaultConfig()
		cfCfg.AuthToken = providerCfg.APIToken
		provider, err := cloudflare.NewDNSProviderConfig(cfCfg)
		if err != nil {
			return nil, fmt.Errorf("client: failed to create Cloudflare provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("client: unsupported DNS provider %q", c.cfg.DNSProvider)
	}
}
