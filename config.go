package acme

import (
	"errors"
	"fmt"
	"time"
)

const DNSProviderCloudflare = "cloudflare"

// DNSProvider holds credentials for one DNS-01 challenge provider. The values
// are passed through to the provider untouched.
type DNSProvider struct {
	APIToken string `toml:"api_token" comment:"API token for the provider (set via env)"`
}

// SecretStoreBackend selects which secret store implementation a command wires up.
type SecretStoreBackend string

const (
	BackendRestinpieces SecretStoreBackend = "restinpieces"
	BackendAWS          SecretStoreBackend = "awssm"
)

// SecretStoreConfig configures the secret store backend used to persist
// account and order records across runs.
type SecretStoreConfig struct {
	Backend   SecretStoreBackend `toml:"backend" comment:"Secret store backend: 'restinpieces' or 'awssm'"`
	AWSRegion string             `toml:"aws_region" comment:"AWS region for the 'awssm' backend"`
}

// Config holds everything one renewal run needs. It is resolved fully before
// the run starts; the orchestrator never reads ambient process state.
type Config struct {
	Email                   string                 `toml:"email" comment:"ACME account contact email"`
	Domains                 string                 `toml:"domains" comment:"Comma or semicolon separated domain names, first entry is the certificate identity"`
	CADirectoryURL          string                 `toml:"ca_directory_url" comment:"ACME directory URL (staging or production)"`
	DNSProvider             string                 `toml:"dns_provider" comment:"DNS provider for DNS-01 challenges (e.g. 'cloudflare')"`
	DNSProviders            map[string]DNSProvider `toml:"dns_providers" comment:"Per-provider credentials"`
	ForceRenewal            bool                   `toml:"force_renewal" comment:"Bypass the renewal-window check and order a fresh certificate"`
	RenewalDaysBeforeExpiry int                    `toml:"renewal_days_before_expiry" comment:"Days before expiry at which a certificate becomes due for renewal"`
	CacheDir                string                 `toml:"cache_dir" comment:"Run-scoped working directory for ACME state (empty = temp dir)"`
	SecretStore             SecretStoreConfig      `toml:"secret_store"`
}

// EnvOverrides carries the sensitive values that are injected through the
// environment rather than the config file.
type EnvOverrides struct {
	CloudflareAPIToken string `env:"CLOUDFLARE_API_TOKEN"`
	AgeIdentityPath    string `env:"AGE_IDENTITY_PATH"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
}

// Apply copies the non-empty override values into the config.
func (e *EnvOverrides) Apply(cfg *Config) {
	if e.CloudflareAPIToken == "" {
		return
	}
	if cfg.DNSProviders == nil {
		cfg.DNSProviders = make(map[string]DNSProvider)
	}
	p := cfg.DNSProviders[DNSProviderCloudflare]
	p.APIToken = e.CloudflareAPIToken
	cfg.DNSProviders[DNSProviderCloudflare] = p
}

func (c *Config) Validate() error {
	if c.Email == "" {
		return errors.New("config: email cannot be empty")
	}
	if _, err := ParseDomains(c.Domains); err != nil {
		return fmt.Errorf("config: invalid domains: %w", err)
	}
	if c.CADirectoryURL == "" {
		return errors.New("config: ca_directory_url cannot be empty")
	}
	if _, err := DirectoryToken(c.CADirectoryURL); err != nil {
		return fmt.Errorf("config: invalid ca_directory_url: %w", err)
	}
	if c.DNSProvider == "" {
		return errors.New("config: dns_provider cannot be empty")
	}
	providerCfg, ok := c.DNSProviders[c.DNSProvider]
	if !ok {
		return fmt.Errorf("config: dns_provider %q has no entry in dns_providers", c.DNSProvider)
	}
	switch c.DNSProvider {
	case DNSProviderCloudflare:
		if providerCfg.APIToken == "" {
			return fmt.Errorf("config: api_token cannot be empty for dns_provider %q", c.DNSProvider)
		}
	default:
		return fmt.Errorf("config: unsupported dns_provider %q", c.DNSProvider)
	}
	if c.RenewalDaysBeforeExpiry < 0 {
		return errors.New("config: renewal_days_before_expiry cannot be negative")
	}
	return nil
}

// RenewalWindow converts the configured day count into a duration. A zero
// value falls back to 30 days.
func (c *Config) RenewalWindow() time.Duration {
	days := c.RenewalDaysBeforeExpiry
	if days == 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}
