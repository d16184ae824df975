package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "lumina-server"}
	BindFlags(cmd)
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	cmd := newTestCmd()
	cfg, err := Load(cmd, []string{"/tmp/lumina.db"})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/lumina.db", cfg.DBPath)
	assert.Equal(t, "127.0.0.1", cfg.IP)
	assert.Equal(t, 4443, cfg.Port)
	assert.False(t, cfg.TLSEnabled())
	assert.False(t, cfg.MetricsEnabled())
}

func TestLoadRequiresExactlyOnePositional(t *testing.T) {
	cmd := newTestCmd()
	_, err := Load(cmd, nil)
	assert.Error(t, err)

	_, err = Load(cmd, []string{"a", "b"})
	assert.Error(t, err)
}

func TestCertWithoutKeyIsConfigError(t *testing.T) {
	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("cert", "/tmp/cert.pem"))

	_, err := Load(cmd, []string{"/tmp/lumina.db"})
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "cert/key", cfgErr.Field)
}

func TestCertWithKeyEnablesTLS(t *testing.T) {
	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("cert", "/tmp/cert.pem"))
	require.NoError(t, cmd.Flags().Set("key", "/tmp/key.pem"))

	cfg, err := Load(cmd, []string{"/tmp/lumina.db"})
	require.NoError(t, err)
	assert.True(t, cfg.TLSEnabled())
}

func TestInvalidLogLevelFailsValidation(t *testing.T) {
	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("log", "VERBOSE"))

	_, err := Load(cmd, []string{"/tmp/lumina.db"})
	assert.Error(t, err)
}

func TestMetricsAddrEnablesMetrics(t *testing.T) {
	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("metrics-addr", ":9090"))

	cfg, err := Load(cmd, []string{"/tmp/lumina.db"})
	require.NoError(t, err)
	assert.True(t, cfg.MetricsEnabled())
}
