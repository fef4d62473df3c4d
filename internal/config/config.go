// Package config provides YAML-based configuration with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CSVCHAT_SERVER_PORT.
const EnvPrefix = "CSVCHAT"

// AgentModeToolCalling is the only supported agent execution mode: the model
// drives the table tools through native function calling.
const AgentModeToolCalling = "tool-calling"

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Agent   AgentConfig   `yaml:"agent" mapstructure:"agent"`
	Limits  LimitsConfig  `yaml:"limits" mapstructure:"limits"`
	Session SessionConfig `yaml:"session" mapstructure:"session"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                 int    `yaml:"port" mapstructure:"port"`
	BindAddress          string `yaml:"bind_address" mapstructure:"bind_address"`
	EnableCORS           bool   `yaml:"enable_cors" mapstructure:"enable_cors"`
	AllowOrigins         string `yaml:"allow_origins" mapstructure:"allow_origins"`
	ReadTimeout          int    `yaml:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	WriteTimeout         int    `yaml:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`
	IdleTimeout          int    `yaml:"idle_timeout_seconds" mapstructure:"idle_timeout_seconds"`
	EnableCompression    bool   `yaml:"enable_compression" mapstructure:"enable_compression"`
	CompressionLevel     int    `yaml:"compression_level" mapstructure:"compression_level"`
	EnableRequestLogging bool   `yaml:"enable_request_logging" mapstructure:"enable_request_logging"`
}

// AgentConfig contains the language-model agent settings
type AgentConfig struct {
	Model              string `yaml:"model" mapstructure:"model"`
	BaseURL            string `yaml:"base_url" mapstructure:"base_url"`
	Mode               string `yaml:"mode" mapstructure:"mode"`
	AllowCodeExecution bool   `yaml:"allow_code_execution" mapstructure:"allow_code_execution"`
	Verbose            bool   `yaml:"verbose" mapstructure:"verbose"`
	MaxSteps           int    `yaml:"max_steps" mapstructure:"max_steps"`
	TimeoutSeconds     int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxConcurrentAsks  int    `yaml:"max_concurrent_asks" mapstructure:"max_concurrent_asks"`
	CredentialFromEnv  bool   `yaml:"credential_from_env" mapstructure:"credential_from_env"`
}

// LimitsConfig bounds the memory a session may use
type LimitsConfig struct {
	MaxFiles          int   `yaml:"max_files" mapstructure:"max_files"`
	MaxFileBytes      int64 `yaml:"max_file_bytes" mapstructure:"max_file_bytes"`
	MaxRows           int   `yaml:"max_rows" mapstructure:"max_rows"`
	PreviewRows       int   `yaml:"preview_rows" mapstructure:"preview_rows"`
	PreviewColumns    int   `yaml:"preview_columns" mapstructure:"preview_columns"`
	MaxSummaryColumns int   `yaml:"max_summary_columns" mapstructure:"max_summary_columns"`
	MaxQueryRows      int   `yaml:"max_query_rows" mapstructure:"max_query_rows"`
}

// SessionConfig contains session lifecycle settings
type SessionConfig struct {
	MaxSessions            int `yaml:"max_sessions" mapstructure:"max_sessions"`
	TimeoutMinutes         int `yaml:"timeout_minutes" mapstructure:"timeout_minutes"`
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes" mapstructure:"cleanup_interval_minutes"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Development bool   `yaml:"development" mapstructure:"development"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                 8501,
			BindAddress:          "0.0.0.0",
			EnableCORS:           false,
			AllowOrigins:         "*",
			ReadTimeout:          30,
			WriteTimeout:         180,
			IdleTimeout:          120,
			EnableCompression:    true,
			CompressionLevel:     5,
			EnableRequestLogging: true,
		},
		Agent: AgentConfig{
			Model:              "gpt-4o",
			Mode:               AgentModeToolCalling,
			AllowCodeExecution: true,
			Verbose:            true,
			MaxSteps:           12,
			TimeoutSeconds:     120,
			MaxConcurrentAsks:  4,
		},
		Limits: LimitsConfig{
			MaxFiles:          10,
			MaxFileBytes:      10 << 20,
			MaxRows:           100000,
			PreviewRows:       3,
			PreviewColumns:    3,
			MaxSummaryColumns: 15,
			MaxQueryRows:      50,
		},
		Session: SessionConfig{
			MaxSessions:            50,
			TimeoutMinutes:         30,
			CleanupIntervalMinutes: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file is created
// with the defaults. Environment variables override file values in both cases.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := DefaultConfig().Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return decode(v)
}

// LoadFromEnv builds a configuration from defaults and environment variables only.
func LoadFromEnv() (*AppConfig, error) {
	return decode(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return v
}

func decode(v *viper.Viper) (*AppConfig, error) {
	config := &AppConfig{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.bind_address", d.Server.BindAddress)
	v.SetDefault("server.enable_cors", d.Server.EnableCORS)
	v.SetDefault("server.allow_origins", d.Server.AllowOrigins)
	v.SetDefault("server.read_timeout_seconds", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout_seconds", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout_seconds", d.Server.IdleTimeout)
	v.SetDefault("server.enable_compression", d.Server.EnableCompression)
	v.SetDefault("server.compression_level", d.Server.CompressionLevel)
	v.SetDefault("server.enable_request_logging", d.Server.EnableRequestLogging)

	v.SetDefault("agent.model", d.Agent.Model)
	v.SetDefault("agent.base_url", d.Agent.BaseURL)
	v.SetDefault("agent.mode", d.Agent.Mode)
	v.SetDefault("agent.allow_code_execution", d.Agent.AllowCodeExecution)
	v.SetDefault("agent.verbose", d.Agent.Verbose)
	v.SetDefault("agent.max_steps", d.Agent.MaxSteps)
	v.SetDefault("agent.timeout_seconds", d.Agent.TimeoutSeconds)
	v.SetDefault("agent.max_concurrent_asks", d.Agent.MaxConcurrentAsks)
	v.SetDefault("agent.credential_from_env", d.Agent.CredentialFromEnv)

	v.SetDefault("limits.max_files", d.Limits.MaxFiles)
	v.SetDefault("limits.max_file_bytes", d.Limits.MaxFileBytes)
	v.SetDefault("limits.max_rows", d.Limits.MaxRows)
	v.SetDefault("limits.preview_rows", d.Limits.PreviewRows)
	v.SetDefault("limits.preview_columns", d.Limits.PreviewColumns)
	v.SetDefault("limits.max_summary_columns", d.Limits.MaxSummaryColumns)
	v.SetDefault("limits.max_query_rows", d.Limits.MaxQueryRows)

	v.SetDefault("session.max_sessions", d.Session.MaxSessions)
	v.SetDefault("session.timeout_minutes", d.Session.TimeoutMinutes)
	v.SetDefault("session.cleanup_interval_minutes", d.Session.CleanupIntervalMinutes)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// Save writes the configuration as YAML
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# CSV Chat configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides keeps the conventional PORT variable working
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate rejects configurations the server cannot run with
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if strings.TrimSpace(c.Agent.Model) == "" {
		errs = append(errs, errors.New("agent.model is required"))
	}
	if c.Agent.Mode != AgentModeToolCalling {
		errs = append(errs, fmt.Errorf("agent.mode %q is not supported (want %q)", c.Agent.Mode, AgentModeToolCalling))
	}
	if c.Agent.MaxSteps <= 0 {
		errs = append(errs, errors.New("agent.max_steps must be positive"))
	}
	if c.Agent.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("agent.timeout_seconds must be positive"))
	}
	if c.Agent.MaxConcurrentAsks <= 0 {
		errs = append(errs, errors.New("agent.max_concurrent_asks must be positive"))
	}
	if c.Limits.MaxFiles <= 0 || c.Limits.MaxFileBytes <= 0 || c.Limits.MaxRows <= 0 {
		errs = append(errs, errors.New("limits.max_files, max_file_bytes and max_rows must be positive"))
	}
	if c.Limits.PreviewRows <= 0 || c.Limits.PreviewColumns <= 0 {
		errs = append(errs, errors.New("limits.preview_rows and preview_columns must be positive"))
	}
	if c.Limits.MaxSummaryColumns <= 0 || c.Limits.MaxQueryRows <= 0 {
		errs = append(errs, errors.New("limits.max_summary_columns and max_query_rows must be positive"))
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, errors.New("server.write_timeout_seconds must not be negative"))
	}
	// Zero disables the write timeout. Otherwise it must outlast the agent
	// so a timed out question still gets its answer written.
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Agent.TimeoutSeconds {
		errs = append(errs, fmt.Errorf("server.write_timeout_seconds (%d) must be greater than agent.timeout_seconds (%d)",
			c.Server.WriteTimeout, c.Agent.TimeoutSeconds))
	}
	if c.Session.MaxSessions <= 0 {
		errs = append(errs, errors.New("session.max_sessions must be positive"))
	}
	if c.Session.TimeoutMinutes <= 0 {
		errs = append(errs, errors.New("session.timeout_minutes must be positive"))
	}
	if c.Session.CleanupIntervalMinutes <= 0 {
		errs = append(errs, errors.New("session.cleanup_interval_minutes must be positive"))
	}
	return errors.Join(errs...)
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetBodyLimit returns an echo body limit large enough for a full upload request.
func (c *AppConfig) GetBodyLimit() string {
	total := int64(c.Limits.MaxFiles)*c.Limits.MaxFileBytes + 1<<20
	return fmt.Sprintf("%dK", (total+1023)/1024)
}

// AgentTimeout bounds a single agent invocation.
func (c *AppConfig) AgentTimeout() time.Duration {
	return time.Duration(c.Agent.TimeoutSeconds) * time.Second
}

// SessionTimeout is how long an idle session is kept.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutMinutes) * time.Minute
}

// CleanupInterval is how often idle sessions are swept.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Session.CleanupIntervalMinutes) * time.Minute
}
