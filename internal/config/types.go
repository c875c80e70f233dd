// Package config loads the hierarchical YAML configuration described in
// spec §6, overlaid by environment variables, and can watch the file for
// hot-reloadable changes.
package config

// Config is the root configuration tree. Field names/YAML tags mirror
// spec §6's section list exactly.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	DataDir   string          `yaml:"data_dir"`
	LLM       LLMConfig       `yaml:"llm"`
	Discord   DiscordConfig   `yaml:"discord"`
	Signal    SignalConfig    `yaml:"signal"`
	Auth      AuthConfig      `yaml:"auth"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Webhooks  WebhooksConfig  `yaml:"webhooks"`
	Control   ControlConfig   `yaml:"control"`
}

// ControlConfig names the transport/channel that autonomous triggers (C5
// scheduler.trigger, C8 webhook.received without an endpoint-specific
// channel) reply into, since neither event carries a full destination of
// its own.
type ControlConfig struct {
	Transport string `yaml:"transport"`
	Channel   string `yaml:"channel"`
}

// LLMConfig configures the LLM provider (§6 `llm`).
type LLMConfig struct {
	Provider         string  `yaml:"provider"` // "anthropic" or "local"
	Model            string  `yaml:"model"`
	APIKey           string  `yaml:"api_key"`
	MaxTokens        int     `yaml:"max_tokens"`
	Temperature      float64 `yaml:"temperature"`
	MaxContextTokens int     `yaml:"max_context_tokens"`
	RateLimitRPM     int     `yaml:"rate_limit_rpm"`
	LocalEndpoint    string  `yaml:"local_endpoint"`
}

// DiscordConfig configures the Discord transport (§6 `discord`).
type DiscordConfig struct {
	Token         string   `yaml:"token"`
	GuildIDs      []string `yaml:"guild_ids"`
	CommandPrefix string   `yaml:"command_prefix"`
}

// SignalConfig configures the Signal transport (§6 `signal`).
type SignalConfig struct {
	PhoneNumber  string `yaml:"phone_number"`
	Mode         string `yaml:"mode"` // "cli" or "rest"
	SignalCliPath string `yaml:"signal_cli_path"`
	RestAPIURL   string `yaml:"rest_api_url"`
	DataDir      string `yaml:"data_dir"`
}

// AuthConfig configures the permission ledger (§6 `auth`).
type AuthConfig struct {
	AdminUsers         []string `yaml:"admin_users"`
	OperatorUsers      []string `yaml:"operator_users"`
	TrustedUsers       []string `yaml:"trusted_users"`
	DefaultLevel       string   `yaml:"default_level"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	SudoTimeoutSeconds int      `yaml:"sudo_timeout_seconds"`
}

// SchedulerConfig configures the heartbeat/cron loops (§6 `scheduler`).
type SchedulerConfig struct {
	HeartbeatInterval int    `yaml:"heartbeat_interval"` // seconds
	HeartbeatFile     string `yaml:"heartbeat_file"`
	Enabled           bool   `yaml:"enabled"`
}

// ChunkerConfig configures per-transport chunk limits (§6 `chunker`).
type ChunkerConfig struct {
	DiscordLimit int `yaml:"discord_limit"`
	SignalLimit  int `yaml:"signal_limit"`
	TypingDelay  int `yaml:"typing_delay"` // milliseconds
	MinChunkSize int `yaml:"min_chunk_size"`
}

// WebhooksConfig configures the webhook ingress server (§6 `webhooks`).
type WebhooksConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Bind      string           `yaml:"bind"`
	Port      int              `yaml:"port"`
	Endpoints []WebhookEndpoint `yaml:"endpoints"`
}

// WebhookEndpoint is one configured POST route.
type WebhookEndpoint struct {
	Name           string `yaml:"name"`
	Path           string `yaml:"path"`
	Secret         string `yaml:"secret"`
	Channel        string `yaml:"channel"`
	PromptTemplate string `yaml:"prompt_template"`
}
