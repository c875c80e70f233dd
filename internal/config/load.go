package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads path (if it exists), merges it onto Default(), then applies
// environment variable overrides and returns the result. A missing file
// is not an error — callers can run on defaults plus env vars alone.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets deployment secrets and a handful of frequently
// tuned knobs be set without touching the checked-in YAML file.
func applyEnvOverrides(cfg *Config) {
	envStr("SHANNON_LLM_API_KEY", &cfg.LLM.APIKey)
	envStr("SHANNON_LLM_PROVIDER", &cfg.LLM.Provider)
	envStr("SHANNON_LLM_MODEL", &cfg.LLM.Model)
	envStr("SHANNON_DISCORD_TOKEN", &cfg.Discord.Token)
	envStr("SHANNON_SIGNAL_PHONE_NUMBER", &cfg.Signal.PhoneNumber)
	envStr("SHANNON_SIGNAL_REST_API_URL", &cfg.Signal.RestAPIURL)
	envStr("SHANNON_LOG_LEVEL", &cfg.LogLevel)
	envStr("SHANNON_DATA_DIR", &cfg.DataDir)
	envStr("SHANNON_CONTROL_TRANSPORT", &cfg.Control.Transport)
	envStr("SHANNON_CONTROL_CHANNEL", &cfg.Control.Channel)
	envInt("SHANNON_AUTH_RATE_LIMIT_PER_MINUTE", &cfg.Auth.RateLimitPerMinute)
	envInt("SHANNON_WEBHOOKS_PORT", &cfg.Webhooks.Port)
}

func envStr(key string, dest *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dest = v
	}
}

func envInt(key string, dest *int) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dest = n
}
