// Package config binds Mofka daemon/client configuration from
// environment variables and an optional JSON config file, the way
// k6's cmd/state.GlobalState threads Env and an injectable afero.Fs
// through the rest of the codebase instead of touching os.Getenv and
// the real filesystem directly.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
)

// Daemon holds the configuration of a mofkad server process.
type Daemon struct {
	// ListenAddress is the address the Provider's transport listens on.
	ListenAddress string `envconfig:"LISTEN_ADDRESS"`
	// PoolSize bounds how many transport.Server frame-dispatch
	// goroutines may run concurrently (pkg/pool.Semaphore); 0 means
	// unbounded.
	PoolSize int `envconfig:"POOL_SIZE"`
	// PluginLibraryDir is searched for "key:lib" policy plug-ins
	// when lib is a bare filename rather than an absolute path.
	PluginLibraryDir string `envconfig:"PLUGIN_LIBRARY_DIR"`
	// LogFormat is "text" or "json".
	LogFormat string `envconfig:"LOG_FORMAT"`
}

// Client holds the configuration of a mofkactl invocation or an
// embedding client program.
type Client struct {
	// ServerAddress is the default Provider address used when a
	// command does not specify one explicitly.
	ServerAddress string `envconfig:"SERVER_ADDRESS"`
	// LogFormat is "text" or "json".
	LogFormat string `envconfig:"LOG_FORMAT"`
}

// LoadDaemon binds environment variables under the MOFKA_ prefix into
// a Daemon config, then overlays a JSON file at path if it exists.
func LoadDaemon(fs afero.Fs, path string) (Daemon, error) {
	cfg := Daemon{
		ListenAddress: "127.0.0.1:8431",
		LogFormat:     "text",
	}
	if err := envconfig.Process("mofka", &cfg); err != nil {
		return cfg, fmt.Errorf("binding daemon env config: %w", err)
	}
	if err := overlayFile(fs, path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadClient binds environment variables under the MOFKA_ prefix into
// a Client config, then overlays a JSON file at path if it exists.
func LoadClient(fs afero.Fs, path string) (Client, error) {
	cfg := Client{
		ServerAddress: "127.0.0.1:8431",
		LogFormat:     "text",
	}
	if err := envconfig.Process("mofka", &cfg); err != nil {
		return cfg, fmt.Errorf("binding client env config: %w", err)
	}
	if err := overlayFile(fs, path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func overlayFile(fs afero.Fs, path string, dst interface{}) error {
	if path == "" {
		return nil
	}
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return fmt.Errorf("checking config file %s: %w", path, err)
	}
	if !exists {
		return nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}
