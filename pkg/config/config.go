// Package config loads llmi settings from config.yaml, LLMI_* environment
// variables and command line flags through viper.
package config

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/llm-inline/llmi/pkg/skills"
	llmtypes "github.com/llm-inline/llmi/pkg/types/llm"
	"github.com/llm-inline/llmi/pkg/utils"
)

// EnvPrefix is prepended to every environment variable viper reads
const EnvPrefix = "LLMI"

// Legacy environment variables, honoured when the LLMI_* form is unset
const (
	LegacyAPIKeyEnv  = "LLM_API_KEY"
	LegacyBaseURLEnv = "LLM_BASE_URL"
	LegacyModelEnv   = "LLM_MODEL_NAME"
)

const (
	defaultSkillsRoot  = "~/.llmi/skills"
	defaultHistoryPath = "~/.llmi/llmi.db"
)

// Config is the fully resolved llmi configuration
type Config struct {
	LLM         llmtypes.Config   `mapstructure:"llm"`
	Skills      SkillsConfig      `mapstructure:"skills"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	Install     InstallConfig     `mapstructure:"install"`
	History     HistoryConfig     `mapstructure:"history"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	LogLevel    string            `mapstructure:"log_level"`
	LogFormat   string            `mapstructure:"log_format"`

	// Profile names the entry of Profiles applied on top of LLM
	Profile  string                    `mapstructure:"profile"`
	Profiles map[string]map[string]any `mapstructure:"profiles"`
}

// SkillsConfig locates installed skills and the interpreters that run them
type SkillsConfig struct {
	Root         string            `mapstructure:"root"`
	Interpreters map[string]string `mapstructure:"interpreters"`
}

// AttachmentsConfig bounds files read for handlers and the ask command
type AttachmentsConfig struct {
	MaxSize int64 `mapstructure:"max_size"`
}

// InstallConfig controls fetching of skill sources
type InstallConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	MaxSize int64         `mapstructure:"max_size"`
}

// HistoryConfig controls the local install and run history database
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TracingConfig controls OpenTelemetry tracing
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Sampler string  `mapstructure:"sampler"`
	Ratio   float64 `mapstructure:"ratio"`
}

// Setup configures the global viper instance: defaults, LLMI_* environment
// variables, the legacy LLM_* variables and config.yaml from $HOME/.llmi or
// the working directory. A missing config file is not an error.
func Setup() error {
	SetDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	legacy := map[string]string{
		"llm.api_key":  LegacyAPIKeyEnv,
		"llm.base_url": LegacyBaseURLEnv,
		"llm.model":    LegacyModelEnv,
	}
	for key, env := range legacy {
		primary := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := viper.BindEnv(key, primary, env); err != nil {
			return errors.Wrapf(err, "failed to bind environment for %s", key)
		}
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.llmi")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

// SetDefaults registers the default of every known key. Keys need a default
// so that viper.Unmarshal sees their environment overrides.
func SetDefaults() {
	retry := llmtypes.DefaultRetryConfig

	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.base_url", "")
	viper.SetDefault("llm.model", llmtypes.DefaultModel)
	viper.SetDefault("llm.max_tokens", llmtypes.DefaultMaxTokens)
	viper.SetDefault("llm.temperature", llmtypes.DefaultTemperature)
	viper.SetDefault("llm.timeout", llmtypes.DefaultTimeout)
	viper.SetDefault("llm.retry.attempts", retry.Attempts)
	viper.SetDefault("llm.retry.initial_delay", retry.InitialDelay)
	viper.SetDefault("llm.retry.max_delay", retry.MaxDelay)
	viper.SetDefault("llm.retry.backoff_type", retry.BackoffType)

	viper.SetDefault("skills.root", defaultSkillsRoot)
	viper.SetDefault("skills.interpreters", map[string]string{})
	viper.SetDefault("attachments.max_size", skills.DefaultMaxFetchSize)
	viper.SetDefault("install.timeout", skills.DefaultFetchTimeout)
	viper.SetDefault("install.max_size", skills.DefaultMaxFetchSize)
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", defaultHistoryPath)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.sampler", "always")
	viper.SetDefault("tracing.ratio", 1.0)

	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("profile", "")
}

// Load unmarshals the global viper state, applies the active profile and
// expands ~ in paths
func Load() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal configuration")
	}

	if cfg.LLM.Retry.Attempts == 0 {
		cfg.LLM.Retry = llmtypes.DefaultRetryConfig
	}

	if name := activeProfile(cfg.Profile); name != "" {
		profile, ok := cfg.Profiles[name]
		if !ok {
			return cfg, errors.Errorf("profile '%s' not found in configuration", name)
		}
		if err := applyProfile(&cfg.LLM, profile); err != nil {
			return cfg, errors.Wrapf(err, "failed to apply profile '%s'", name)
		}
	}

	cfg.Skills.Root = utils.ExpandUserPath(cfg.Skills.Root)
	cfg.History.Path = utils.ExpandUserPath(cfg.History.Path)
	return cfg, nil
}

// ProfileNames lists the configured profiles
func (c Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	return names
}

// CredentialEnvVars lists environment variables holding secrets that must
// not reach skill handlers
func CredentialEnvVars() []string {
	return []string{
		LegacyAPIKeyEnv,
		EnvPrefix + "_LLM_API_KEY",
	}
}

func activeProfile(name string) string {
	if name == "default" {
		return ""
	}
	return name
}

// applyProfile decodes profile settings on top of cfg, leaving unset fields alone
func applyProfile(cfg *llmtypes.Config, profile map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ZeroFields:       false,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create profile decoder")
	}

	if err := decoder.Decode(profile); err != nil {
		return errors.Wrap(err, "failed to decode profile")
	}
	return nil
}
