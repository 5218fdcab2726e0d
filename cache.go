package acme

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	accountFileName = "account.json"
	orderFileSuffix = "-order.json"
)

// Cache is the run-scoped working directory holding the account and order
// records while a run is in flight. It is created fresh for one invocation
// and owned exclusively by it; nothing here survives the process on purpose —
// durable state lives in the SecretStore.
//
// The directory is an explicit constructor argument, never an environment
// variable, so multiple isolated invocations can coexist in one process.
type Cache struct {
	dir string
}

// NewCache creates the working directory if needed and returns the cache.
func NewCache(dir string) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache: directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cache: failed to create directory %q: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the working directory path.
func (c *Cache) Dir() string {
	return c.dir
}

// ReadAccount returns the raw account record, or ok=false if none is cached.
func (c *Cache) ReadAccount() ([]byte, bool, error) {
	return c.read(accountFileName)
}

// WriteAccount stores the raw account record.
func (c *Cache) WriteAccount(raw []byte) error {
	return c.write(accountFileName, raw)
}

// ReadOrder returns the raw order record for a certificate token, or ok=false
// if none is cached.
func (c *Cache) ReadOrder(certToken string) ([]byte, bool, error) {
	return c.read(certToken + orderFileSuffix)
}

// WriteOrder stores the raw order record for a certificate token.
func (c *Cache) WriteOrder(certToken string, raw []byte) error {
	return c.write(certToken+orderFileSuffix, raw)
}

func (c *Cache) read(name string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: failed to read %s: %w", name, err)
	}
	return data, true, nil
}

func (c *Cache) write(name string, raw []byte) error {
	path := filepath.Join(c.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("cache: failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("cache: failed to save %s: %w", name, err)
	}
	return nil
}
