package config

// Default returns the baseline configuration applied before the YAML file
// and environment overlay are merged in. Every field here has a sane,
// non-secret value; credentials are always left empty.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		DataDir:  "./data",
		LLM: LLMConfig{
			Provider:         "anthropic",
			Model:            "claude-opus-4-6",
			MaxTokens:        4096,
			Temperature:      0.7,
			MaxContextTokens: 100000,
			RateLimitRPM:     50,
		},
		Discord: DiscordConfig{
			CommandPrefix: "!",
		},
		Signal: SignalConfig{
			Mode:    "cli",
			DataDir: "./data/signal",
		},
		Auth: AuthConfig{
			DefaultLevel:       "public",
			RateLimitPerMinute: 20,
			SudoTimeoutSeconds: 300,
		},
		Scheduler: SchedulerConfig{
			HeartbeatInterval: 30,
			HeartbeatFile:     "./data/heartbeat",
			Enabled:           true,
		},
		Chunker: ChunkerConfig{
			DiscordLimit: 2000,
			SignalLimit:  2000,
			TypingDelay:  0,
			MinChunkSize: 64,
		},
		Webhooks: WebhooksConfig{
			Enabled: false,
			Bind:    "127.0.0.1",
			Port:    8787,
		},
		Control: ControlConfig{
			Transport: "discord",
			Channel:   "",
		},
	}
}
