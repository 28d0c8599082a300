// Package cliconfig stores admin sessions of the CLI per server.
package cliconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

var ErrCredentialNotFound = errors.New("credential not found")

// PathEnv overrides the location of the credentials file.
const PathEnv = "OSMOSIS_CREDENTIALS"

type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

type CLIConfig struct {
	Credentials map[string]*Credential `json:"credentials"`
}

func GetConfigPath() (string, error) {
	if p := os.Getenv(PathEnv); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting user home directory: %w", err)
	}
	return filepath.Join(home, ".osmosis", "credentials.json"), nil
}

// Load reads the credentials file. A missing file yields an empty config.
func Load() (*CLIConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &CLIConfig{Credentials: make(map[string]*Credential)}, nil
		}
		return nil, fmt.Errorf("opening config file '%s': %w", path, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var cfg CLIConfig
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config file '%s': %w", path, err)
	}
	if cfg.Credentials == nil {
		cfg.Credentials = make(map[string]*Credential)
	}
	return &cfg, nil
}

func Save(cfg *CLIConfig) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory '%s': %w", dir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file '%s': %w", path, err)
	}
	return nil
}

func hostKey(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parsing server URL '%s': %w", server, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server URL '%s' has no host", server)
	}
	return u.Host, nil
}

// GetCredential returns the credential of server. Expired credentials are not returned.
func (c *CLIConfig) GetCredential(server string) (*Credential, error) {
	host, err := hostKey(server)
	if err != nil {
		return nil, err
	}
	cred, ok := c.Credentials[host]
	if !ok || (!cred.ExpiresAt.IsZero() && time.Now().After(cred.ExpiresAt)) {
		return nil, ErrCredentialNotFound
	}
	return cred, nil
}

func (c *CLIConfig) SetCredential(server string, cred Credential) error {
	host, err := hostKey(server)
	if err != nil {
		return err
	}
	if c.Credentials == nil {
		c.Credentials = make(map[string]*Credential)
	}
	c.Credentials[host] = &cred
	return nil
}

// RemoveCredential reports whether a credential for server existed.
func (c *CLIConfig) RemoveCredential(server string) (bool, error) {
	host, err := hostKey(server)
	if err != nil {
		return false, err
	}
	_, ok := c.Credentials[host]
	delete(c.Credentials, host)
	return ok, nil
}
