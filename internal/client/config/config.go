package config

import "time"

// Config holds runtime settings for the voicecall terminal client.
//
// Fields:
//   - ServerURL: base URL of the taxvoice HTTP API.
//   - RequestTimeout: per-request timeout of API calls.
//   - ElevenLabsAgentID, ElevenLabsAPIKey, ElevenLabsURL: the voice agent.
//   - TickInterval: how often call time is charged to the quota ledger.
//   - StartFloor: least remaining seconds needed to start a call.
//   - Greeting: first agent line of every call, empty for none.
type Config struct {
	ServerURL      string
	RequestTimeout time.Duration

	ElevenLabsAgentID string
	ElevenLabsAPIKey  string
	ElevenLabsURL     string

	TickInterval time.Duration
	StartFloor   int64
	Greeting     string

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 15 * time.Second
	c.ElevenLabsURL = "wss://api.elevenlabs.io/v1/convai/conversation"
	c.TickInterval = 10 * time.Second
	c.StartFloor = 10
	c.Greeting = "Hello! How can I help you today?"
	c.LogLevel = "warn"
	c.LogFormat = "text"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file, the environment and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
