package cmd

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/decentraminds/osmosis-streaming-driver/internal/cliconfig"
	"github.com/decentraminds/osmosis-streaming-driver/internal/config"
	"github.com/decentraminds/osmosis-streaming-driver/pkg/client"
)

type Factory struct {
	// RemoteAddr is the address of the osmosis server to connect to.
	RemoteAddr string

	// ConfigPath is the server configuration file. Empty means defaults.
	ConfigPath string
}

func NewFactory() *Factory {
	return &Factory{}
}

// ServerAddr returns the configured remote server.
func (f *Factory) ServerAddr() (string, error) {
	server := f.RemoteAddr // prio 1: command-line flag
	if server == "" {
		server = viper.GetString(ServerAddrKey) // prio 2: config/env
	}
	if server == "" {
		return "", fmt.Errorf("server address not configured (use --server or set OSMOSIS_SERVER)")
	}
	return server, nil
}

// GetClient returns a client for remote operations, authenticated if a session is known.
func (f *Factory) GetClient() (*client.Client, error) {
	server, err := f.ServerAddr()
	if err != nil {
		return nil, err
	}

	var token string
	if cfg, err := cliconfig.Load(); err == nil {
		if cred, err := cfg.GetCredential(server); err == nil { // token prio 1: saved credential
			token = cred.Token
		}
	}
	if envToken := viper.GetString(AuthTokenKey); envToken != "" { // token prio 2: env var
		token = envToken
	}

	return client.New(server, client.WithAuthToken(token))
}

// LoadServerConfig loads the file given with --config, or the defaults.
func (f *Factory) LoadServerConfig() (*config.Config, error) {
	if f.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(f.ConfigPath)
}

func (f *Factory) bindConfigFlag(flags *pflag.FlagSet) {
	flags.StringVarP(&f.ConfigPath, "config", "c", "", "The osmosis server config file to use")
}
