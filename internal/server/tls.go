package server

import (
	"crypto/tls"
	"fmt"

	"github.com/KilimcininKorOglu/divan/internal/config"
)

var tlsVersions = map[string]uint16{
	"1.0": tls.VersionTLS10,
	"1.1": tls.VersionTLS11,
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

// LoadTLSConfig builds the server TLS configuration from the config
// section. Returns nil without error when TLS is not configured.
func LoadTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("server: failed to load key pair: %w", err)
	}
	tc := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if cfg.MinVersion != "" {
		v, ok := tlsVersions[cfg.MinVersion]
		if !ok {
			return nil, fmt.Errorf("server: unknown tls version %q", cfg.MinVersion)
		}
		tc.MinVersion = v
	}
	if cfg.MaxVersion != "" {
		v, ok := tlsVersions[cfg.MaxVersion]
		if !ok {
			return nil, fmt.Errorf("server: unknown tls version %q", cfg.MaxVersion)
		}
		tc.MaxVersion = v
	}
	return tc, nil
}
