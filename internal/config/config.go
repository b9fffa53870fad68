// Package config loads and validates the TOML configuration of the
// divan server.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	TLS     TLSConfig     `toml:"tls"`
	Auth    AuthConfig    `toml:"auth"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	// Address is the plaintext (LDAP + StartTLS) listen address.
	Address string `toml:"address"`
	// LDAPSAddress is the implicit-TLS listen address. Empty disables LDAPS.
	LDAPSAddress string `toml:"ldaps_address"`
	// MaxConnections caps concurrently accepted connections. 0 means unlimited.
	MaxConnections int `toml:"max_connections"`
	// ReadTimeout bounds each frame read. 0 disables the deadline.
	ReadTimeout Duration `toml:"read_timeout"`
	// WriteTimeout bounds each message write. 0 disables the deadline.
	WriteTimeout Duration `toml:"write_timeout"`
}

// TLSConfig holds certificate settings for LDAPS and StartTLS.
type TLSConfig struct {
	CertFile   string `toml:"cert_file"`
	KeyFile    string `toml:"key_file"`
	MinVersion string `toml:"min_version"`
	MaxVersion string `toml:"max_version"`
}

// Enabled reports whether a certificate is configured.
func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// AuthConfig holds bind policy and the static user set.
type AuthConfig struct {
	// AllowAnonymous permits anonymous simple binds.
	AllowAnonymous bool `toml:"allow_anonymous"`
	// RequireTLSForBind rejects authenticated binds over plaintext with
	// confidentialityRequired (RFC 4513 Section 5.1.2 guidance).
	RequireTLSForBind bool `toml:"require_tls_for_bind"`
	// Users is the static user set for the built-in authenticator.
	Users []UserConfig `toml:"users"`
}

// UserConfig is one static user entry.
type UserConfig struct {
	DN string `toml:"dn"`
	// Password is a stored hash in {SCHEME}data form.
	Password string `toml:"password"`
}

// LoggingConfig holds logger construction settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Format is json or console.
	Format string `toml:"format"`
	// Output is stdout, stderr, or a file path.
	Output string `toml:"output"`
	// Rotation applies when Output is a file path.
	Rotation RotationConfig `toml:"rotation"`
}

// RotationConfig holds size-based log rotation settings.
type RotationConfig struct {
	// Enabled turns rotation on.
	Enabled bool `toml:"enabled"`
	// MaxSizeMB rotates the active file once it exceeds this size.
	MaxSizeMB int `toml:"max_size_mb"`
	// MaxArchives caps retained archives. 0 keeps all.
	MaxArchives int `toml:"max_archives"`
	// Compress gzips rotated files.
	Compress bool `toml:"compress"`
}

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for toml decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads a TOML configuration file, applies defaults for unset
// fields, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %q", path, undec[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a TOML configuration from a string, with defaults and
// validation as Load.
func Parse(data string) (*Config, error) {
	cfg := Default()
	meta, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("config: unknown key %q", undec[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
