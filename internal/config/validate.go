package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors.
var (
	// ErrNoListeners is returned when neither a plaintext nor an LDAPS
	// address is configured.
	ErrNoListeners = errors.New("config: no listen address configured")
	// ErrTLSIncomplete is returned when only one of cert_file/key_file is set.
	ErrTLSIncomplete = errors.New("config: tls requires both cert_file and key_file")
	// ErrLDAPSWithoutTLS is returned when ldaps_address is set without a certificate.
	ErrLDAPSWithoutTLS = errors.New("config: ldaps_address requires a tls certificate")
)

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validFormats = map[string]bool{"json": true, "console": true}
var validTLSVersions = map[string]bool{"": true, "1.0": true, "1.1": true, "1.2": true, "1.3": true}

// Validate checks the configuration for inconsistencies. It returns the
// first problem found.
func (c *Config) Validate() error {
	if c.Server.Address == "" && c.Server.LDAPSAddress == "" {
		return ErrNoListeners
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("config: max_connections must not be negative, got %d", c.Server.MaxConnections)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return errors.New("config: timeouts must not be negative")
	}

	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return ErrTLSIncomplete
	}
	if c.Server.LDAPSAddress != "" && !c.TLS.Enabled() {
		return ErrLDAPSWithoutTLS
	}
	if !validTLSVersions[c.TLS.MinVersion] {
		return fmt.Errorf("config: invalid tls min_version %q", c.TLS.MinVersion)
	}
	if !validTLSVersions[c.TLS.MaxVersion] {
		return fmt.Errorf("config: invalid tls max_version %q", c.TLS.MaxVersion)
	}

	for i, u := range c.Auth.Users {
		if u.DN == "" {
			return fmt.Errorf("config: auth.users[%d]: dn must not be empty", i)
		}
		if u.Password == "" {
			return fmt.Errorf("config: auth.users[%d]: password must not be empty", i)
		}
	}

	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("config: invalid log level %q", c.Logging.Level)
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("config: invalid log format %q", c.Logging.Format)
	}
	if c.Logging.Rotation.Enabled && c.Logging.Rotation.MaxSizeMB <= 0 {
		return errors.New("config: rotation max_size_mb must be positive")
	}
	return nil
}

// Users returns the static user set as a DN-to-hash map.
func (c *Config) Users() map[string]string {
	users := make(map[string]string, len(c.Auth.Users))
	for _, u := range c.Auth.Users {
		users[u.DN] = u.Password
	}
	return users
}
