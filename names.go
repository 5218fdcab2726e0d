package acme

import (
	"fmt"
	"net/url"
	"strings"
)

// Secret name layout in the store:
//
//	acme-<dirtoken>-acct-json
//	acme-<dirtoken>-<certtoken>-order-json
//
// The directory token keeps staging and production state apart. The
// certificate token is the canonical certificate name made safe for
// secret-store naming rules (no dots, no wildcard marker).

const (
	secretNamePrefix = "acme"
	accountSecretKey = "acct-json"
	orderSecretKey   = "order-json"

	// wildcardMarker replaces the leading "*" of a wildcard domain in the
	// canonical certificate name. It keeps the name unambiguous while staying
	// out of the DNS label alphabet.
	wildcardMarker = "!"

	wildcardToken = "wildcard"
)

// DirectoryToken derives a deterministic, secret-name-safe token from an ACME
// directory URL. Distinct directories (staging vs production) always produce
// distinct tokens because the token is built from the lowercased host name.
func DirectoryToken(directoryURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(directoryURL))
	if err != nil {
		return "", fmt.Errorf("names: invalid directory URL %q: %w", directoryURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("names: directory URL %q has no host", directoryURL)
	}

	var b strings.Builder
	b.Grow(len(host))
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	token := strings.Trim(b.String(), "-")
	if token == "" {
		return "", fmt.Errorf("names: directory URL %q yields empty token", directoryURL)
	}
	return token, nil
}

// AccountSecretName returns the store key of the account record for a directory.
func AccountSecretName(dirToken string) string {
	return fmt.Sprintf("%s-%s-%s", secretNamePrefix, dirToken, accountSecretKey)
}

// OrderSecretName returns the store key of the order record for a certificate
// within a directory.
func OrderSecretName(dirToken, certToken string) string {
	return fmt.Sprintf("%s-%s-%s-%s", secretNamePrefix, dirToken, certToken, orderSecretKey)
}

// ParseDomains splits a comma or semicolon separated domain list, trimming
// whitespace around each entry and preserving order. The first entry is the
// authoritative certificate identity.
func ParseDomains(list string) ([]string, error) {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ';'
	})

	domains := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		domains = append(domains, f)
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("names: domain list %q contains no domains", list)
	}
	return domains, nil
}

// CertificateName returns the canonical certificate identity for a domain
// list: the first domain, with the wildcard "*" mapped to the internal marker
// ("*.example.com" becomes "!.example.com").
func CertificateName(domains []string) string {
	return strings.Replace(domains[0], "*", wildcardMarker, 1)
}

// CertNameToken maps a canonical certificate name onto the secret-name
// alphabet: dots become dashes and the wildcard marker becomes the literal
// token "wildcard". The mapping is reversible within one directory scope.
func CertNameToken(certName string) string {
	token := strings.Replace(certName, wildcardMarker+".", wildcardToken+".", 1)
	return strings.ReplaceAll(token, ".", "-")
}
