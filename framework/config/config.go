package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/km-arc/go-beans/framework/container"
)

// Config is the central typed configuration struct.
type Config struct {
	App       AppConfig
	Log       LogConfig
	Container ContainerConfig
	Session   SessionConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Name string
	Env  string // local | production | testing
	Port string
}

type LogConfig struct {
	Level string // debug | info | warn | error
}

type ContainerConfig struct {
	AllowAliasOverriding    bool
	AllowCircularReferences bool
}

type SessionConfig struct {
	TTL     time.Duration
	Cleanup time.Duration
}

type TracingConfig struct {
	Enabled  bool
	Exporter string // stdout | none
}

// Keys are flat so each one doubles as its environment variable name.
const (
	KeyAppName                 = "app_name"
	KeyAppEnv                  = "app_env"
	KeyAppPort                 = "app_port"
	KeyLogLevel                = "log_level"
	KeyAllowAliasOverriding    = "container_allow_alias_overriding"
	KeyAllowCircularReferences = "container_allow_circular_references"
	KeySessionTTL              = "session_ttl"
	KeySessionCleanup          = "session_cleanup"
	KeyTracingEnabled          = "tracing_enabled"
	KeyTracingExporter         = "tracing_exporter"
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAppName, "GoBeans")
	v.SetDefault(KeyAppEnv, "local")
	v.SetDefault(KeyAppPort, "8000")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyAllowAliasOverriding, false)
	v.SetDefault(KeyAllowCircularReferences, true)
	v.SetDefault(KeySessionTTL, 30*time.Minute)
	v.SetDefault(KeySessionCleanup, time.Minute)
	v.SetDefault(KeyTracingEnabled, false)
	v.SetDefault(KeyTracingExporter, "stdout")
}

// Load reads .env (if present) and builds a Config from the environment.
// Call once at bootstrap: cfg, err := config.Load()
func Load(envFiles ...string) (*Config, error) {
	return LoadWith(viper.New(), envFiles...)
}

// LoadWith is Load on a caller-owned viper instance, so CLI flags bound to v
// and a config file set with v.SetConfigFile take part. Precedence is flag,
// environment (including .env), config file, default.
func LoadWith(v *viper.Viper, envFiles ...string) (*Config, error) {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	SetDefaults(v)
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return &Config{
		App: AppConfig{
			Name: v.GetString(KeyAppName),
			Env:  v.GetString(KeyAppEnv),
			Port: v.GetString(KeyAppPort),
		},
		Log: LogConfig{
			Level: v.GetString(KeyLogLevel),
		},
		Container: ContainerConfig{
			AllowAliasOverriding:    v.GetBool(KeyAllowAliasOverriding),
			AllowCircularReferences: v.GetBool(KeyAllowCircularReferences),
		},
		Session: SessionConfig{
			TTL:     v.GetDuration(KeySessionTTL),
			Cleanup: v.GetDuration(KeySessionCleanup),
		},
		Tracing: TracingConfig{
			Enabled:  v.GetBool(KeyTracingEnabled),
			Exporter: v.GetString(KeyTracingExporter),
		},
	}, nil
}

// ContainerOptions maps the container section to container options.
func (c *Config) ContainerOptions() []container.Option {
	return []container.Option{
		container.WithAliasOverriding(c.Container.AllowAliasOverriding),
		container.WithCircularReferences(c.Container.AllowCircularReferences),
	}
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.App.Env == "production" }
