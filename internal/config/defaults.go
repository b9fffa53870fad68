package config

import "time"

// Default returns a Config with production defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":389",
			LDAPSAddress:   "",
			MaxConnections: 4096,
			ReadTimeout:    Duration(5 * time.Minute),
			WriteTimeout:   Duration(30 * time.Second),
		},
		TLS: TLSConfig{
			MinVersion: "1.2",
			MaxVersion: "1.3",
		},
		Auth: AuthConfig{
			AllowAnonymous:    true,
			RequireTLSForBind: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
			Rotation: RotationConfig{
				Enabled:     false,
				MaxSizeMB:   100,
				MaxArchives: 7,
				Compress:    true,
			},
		},
	}
}
