// Package config loads runtime configuration for the voicecall client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file selected via flags: -c or -config.
//  3. Environment variables, after loading an optional .env file.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the taxvoice server
//	-i string   ElevenLabs agent id
//	-t int      quota tick interval (seconds)
//	-r int      API request timeout (seconds)
//	-l string   log level
//
// Environment
//
//	TAXVOICE_SERVER_URL, TAXVOICE_TICK_INTERVAL, TAXVOICE_ELEVENLABS_URL,
//	TAXVOICE_GREETING, TAXVOICE_LOG_LEVEL, ELEVENLABS_AGENT_ID, ELEVENLABS_API_KEY
//
// # File schema
//
// Durations go through timex.Duration, so values can be either strings like
// "10s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "tick_interval": "10s",
//	  "elevenlabs_agent_id": "agent_123"
//	}
package config
