package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KilimcininKorOglu/divan/internal/auth"
	"github.com/KilimcininKorOglu/divan/internal/config"
	"github.com/KilimcininKorOglu/divan/internal/logging"
	"github.com/KilimcininKorOglu/divan/internal/server"
)

// shutdownTimeout bounds the graceful drain on SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// serveCmd handles the serve command.
func serveCmd(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { printServeUsage(os.Stderr) }

	configFile := fs.String("config", "", "Path to configuration file")
	address := fs.String("address", "", "Listen address (overrides config)")
	ldapsAddress := fs.String("ldaps-address", "", "LDAPS listen address (overrides config)")
	logLevel := fs.String("log-level", "", "Log level (overrides config)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *address != "" {
		cfg.Server.Address = *address
	}
	if *ldapsAddress != "" {
		cfg.Server.LDAPSAddress = *ldapsAddress
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, logCloser, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Rotation: logging.RotationConfig{
			Enabled:     cfg.Logging.Rotation.Enabled,
			MaxSizeMB:   cfg.Logging.Rotation.MaxSizeMB,
			MaxArchives: cfg.Logging.Rotation.MaxArchives,
			Compress:    cfg.Logging.Rotation.Compress,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer logCloser.Close()

	tlsConfig, err := server.LoadTLSConfig(cfg.TLS)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load TLS configuration")
		return 1
	}

	srv := &server.Server{
		Authenticator: auth.NewStatic(cfg.Users()),
		TLSConfig:     tlsConfig,
		Policy: server.Policy{
			AllowAnonymous:    cfg.Auth.AllowAnonymous,
			RequireTLSForBind: cfg.Auth.RequireTLSForBind,
		},
		Logger:         logger,
		MaxConnections: cfg.Server.MaxConnections,
		ReadTimeout:    cfg.Server.ReadTimeout.Std(),
		WriteTimeout:   cfg.Server.WriteTimeout.Std(),
		VendorVersion:  version,
	}

	errCh := make(chan error, 2)
	if cfg.Server.Address != "" {
		go func() { errCh <- srv.ListenAndServe(cfg.Server.Address) }()
	}
	if cfg.Server.LDAPSAddress != "" {
		go func() { errCh <- srv.ListenAndServeTLS(cfg.Server.LDAPSAddress) }()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, server.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			return 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown did not complete cleanly")
		return 1
	}
	return 0
}

// loadConfig reads the given file, or returns the defaults when no file
// is specified.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
