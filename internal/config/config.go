// Package config handles sa-jdwp.toml server configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/orizon-lang/sajdwp/internal/provider/snapshot"
)

// FileName is the configuration file looked up when none is given.
const FileName = "sa-jdwp.toml"

// Config is the complete server configuration.
type Config struct {
	Server   Server   `toml:"server"`
	Snapshot Snapshot `toml:"snapshot"`
	Cache    Cache    `toml:"cache"`
	Log      Log      `toml:"log"`
}

// Server configures the debugger endpoint.
type Server struct {
	Address          string        `toml:"address"`
	// HandshakeTimeout bounds the greeting exchange; zero waits forever.
	HandshakeTimeout time.Duration `toml:"handshake_timeout"`
	VMStartEvent     bool          `toml:"vm_start_event"`
}

// Snapshot configures how the target image is read.
type Snapshot struct {
	Path    string `toml:"path"`
	Format  string `toml:"format"`
	Mmap    bool   `toml:"mmap"`
	// Wait blocks startup until the snapshot file exists.
	Wait    bool   `toml:"wait"`
	Workers int    `toml:"workers"`
}

// Cache configures the object mirror cache.
type Cache struct {
	SweepInterval time.Duration `toml:"sweep_interval"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server:   Server{Address: "127.0.0.1:8000"},
		Snapshot: Snapshot{Format: snapshot.FormatAuto},
		Cache:    Cache{SweepInterval: 30 * time.Second},
		Log:      Log{Verbosity: 1},
	}
}

// Load reads path over the defaults. A missing file yields the defaults
// unless required is set.
func Load(path string, required bool) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return c, nil
		}
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := Parse(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes TOML data into c and validates the result.
func Parse(data []byte, c *Config) error {
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %s", undecoded[0])
	}
	return c.Validate()
}

// Validate checks values that cannot be expressed in the TOML types.
func (c *Config) Validate() error {
	switch c.Snapshot.Format {
	case snapshot.FormatAuto, snapshot.FormatJSON, snapshot.FormatCBOR:
	default:
		return fmt.Errorf("snapshot.format must be auto, json or cbor, got %q", c.Snapshot.Format)
	}
	if c.Server.Address == "" {
		return errors.New("server.address is empty")
	}
	if c.Snapshot.Workers < 0 {
		return fmt.Errorf("snapshot.workers must not be negative, got %d", c.Snapshot.Workers)
	}
	if c.Server.HandshakeTimeout < 0 || c.Cache.SweepInterval < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

// SnapshotOptions returns the loader options.
func (c *Config) SnapshotOptions() snapshot.Options {
	return snapshot.Options{Format: c.Snapshot.Format, Mmap: c.Snapshot.Mmap, Workers: c.Snapshot.Workers}
}
