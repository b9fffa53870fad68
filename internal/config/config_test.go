package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":389", cfg.Server.Address)
	assert.Equal(t, 4096, cfg.Server.MaxConnections)
	assert.True(t, cfg.Auth.AllowAnonymous)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse(`
[server]
address = ":3389"
max_connections = 100
read_timeout = "2m"
write_timeout = "10s"

[auth]
allow_anonymous = false
require_tls_for_bind = true

[[auth.users]]
dn = "cn=admin,dc=example,dc=com"
password = "{SSHA256}abcd"

[logging]
level = "debug"
format = "console"
`)
	require.NoError(t, err)
	assert.Equal(t, ":3389", cfg.Server.Address)
	assert.Equal(t, 100, cfg.Server.MaxConnections)
	assert.Equal(t, 2*time.Minute, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout.Std())
	assert.False(t, cfg.Auth.AllowAnonymous)
	assert.True(t, cfg.Auth.RequireTLSForBind)
	assert.Equal(t, "debug", cfg.Logging.Level)

	users := cfg.Users()
	assert.Equal(t, "{SSHA256}abcd", users["cn=admin,dc=example,dc=com"])
}

func TestParseRejectsUnknownKey(t *testing.T) {
	_, err := Parse(`
[server]
adress = ":389"
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
}

func TestParseRejectsBadDuration(t *testing.T) {
	_, err := Parse(`
[server]
read_timeout = "fast"
`)
	require.Error(t, err)
}

func TestValidateNoListeners(t *testing.T) {
	cfg := Default()
	cfg.Server.Address = ""
	cfg.Server.LDAPSAddress = ""
	require.ErrorIs(t, cfg.Validate(), ErrNoListeners)
}

func TestValidateTLSIncomplete(t *testing.T) {
	cfg := Default()
	cfg.TLS.CertFile = "/tmp/cert.pem"
	require.ErrorIs(t, cfg.Validate(), ErrTLSIncomplete)
}

func TestValidateLDAPSWithoutTLS(t *testing.T) {
	cfg := Default()
	cfg.Server.LDAPSAddress = ":636"
	require.ErrorIs(t, cfg.Validate(), ErrLDAPSWithoutTLS)
}

func TestValidateBadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"
	require.Error(t, cfg.Validate())
}

func TestValidateUserEntries(t *testing.T) {
	cfg := Default()
	cfg.Auth.Users = []UserConfig{{DN: "", Password: "x"}}
	require.Error(t, cfg.Validate())

	cfg.Auth.Users = []UserConfig{{DN: "cn=x", Password: ""}}
	require.Error(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "divan.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
address = "127.0.0.1:3389"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3389", cfg.Server.Address)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
