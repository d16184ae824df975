package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the fully resolved, validated server configuration:
// CLI flags, overridden by LUMINA_* environment variables, with
// defaults filled in by viper.
type Config struct {
	DBPath         string        `mapstructure:"db" validate:"required"`
	IP             string        `mapstructure:"ip" validate:"required,ip"`
	Port           int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	Cert           string        `mapstructure:"cert"`
	Key            string        `mapstructure:"key"`
	LogLevel       string        `mapstructure:"log" validate:"required,oneof=NOTSET DEBUG INFO WARNING"`
	MetricsAddr    string        `mapstructure:"metrics-addr"`
	SessionTimeout time.Duration `mapstructure:"session-timeout" validate:"required,gt=0"`
}

// TLSEnabled reports whether both a certificate and key were supplied.
func (c *Config) TLSEnabled() bool {
	return c.Cert != "" && c.Key != ""
}

// MetricsEnabled reports whether the optional metrics/health HTTP
// surface should be started.
func (c *Config) MetricsEnabled() bool {
	return c.MetricsAddr != ""
}

var validate = validator.New()

// Load binds cmd's flags through viper (env var prefix LUMINA_,
// dashes folded to underscores), decodes them into a Config, and
// validates it. args must contain exactly the positional db path.
func Load(cmd *cobra.Command, args []string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LUMINA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, &Error{Field: "flags", Err: err}
	}

	if len(args) != 1 {
		return nil, &Error{Field: "db", Err: fmt.Errorf("expected exactly one positional db path argument, got %d", len(args))}
	}
	v.Set("db", args[0])

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &Error{Field: "unmarshal", Err: err}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return &Error{Field: "validate", Err: err}
	}
	if (cfg.Cert != "") != (cfg.Key != "") {
		return &Error{Field: "cert/key", Err: fmt.Errorf("--cert and --key must both be set to enable TLS, or both left empty")}
	}
	return nil
}

// BindFlags registers the CLI surface on cmd, matching §6 of
// SPEC_FULL.md: the reference flags (ip, port, cert, key, log) plus the
// ambient additions (metrics-addr, session-timeout).
func BindFlags(cmd *cobra.Command) {
	cmd.Flags().String("ip", "127.0.0.1", "listening IP address")
	cmd.Flags().Int("port", 4443, "listening port")
	cmd.Flags().String("cert", "", "TLS certificate file (requires --key)")
	cmd.Flags().String("key", "", "TLS private key file (requires --cert)")
	cmd.Flags().String("log", "INFO", "log level: NOTSET|DEBUG|INFO|WARNING")
	cmd.Flags().String("metrics-addr", "", "optional address to serve /healthz and /metrics on (disabled if empty)")
	cmd.Flags().Duration("session-timeout", 30*time.Second, "per-connection read/write deadline")
}
