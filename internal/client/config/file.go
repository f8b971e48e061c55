package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/taxvoice/internal/flagx"
	"github.com/dmitrijs2005/taxvoice/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used exclusively for unmarshalling the config file.
type FileConfig struct {
	ServerURL         string          `json:"server_url" yaml:"server_url"`
	RequestTimeout    *timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	ElevenLabsAgentID string          `json:"elevenlabs_agent_id" yaml:"elevenlabs_agent_id"`
	ElevenLabsAPIKey  string          `json:"elevenlabs_api_key" yaml:"elevenlabs_api_key"`
	ElevenLabsURL     string          `json:"elevenlabs_url" yaml:"elevenlabs_url"`
	TickInterval      *timex.Duration `json:"tick_interval" yaml:"tick_interval"`
	StartFloor        *int64          `json:"start_floor" yaml:"start_floor"`
	Greeting          *string         `json:"greeting" yaml:"greeting"`
	LogLevel          string          `json:"log_level" yaml:"log_level"`
	LogFormat         string          `json:"log_format" yaml:"log_format"`
}

// parseFile overlays Config with values from the file named by -c or
// -config. A .yaml or .yml file is read as YAML, anything else as JSON.
// It panics on read or unmarshal errors.
func parseFile(cfg *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	setString(&cfg.ServerURL, fc.ServerURL)
	setString(&cfg.ElevenLabsAgentID, fc.ElevenLabsAgentID)
	setString(&cfg.ElevenLabsAPIKey, fc.ElevenLabsAPIKey)
	setString(&cfg.ElevenLabsURL, fc.ElevenLabsURL)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.TickInterval != nil {
		cfg.TickInterval = fc.TickInterval.Duration
	}
	if fc.StartFloor != nil {
		cfg.StartFloor = *fc.StartFloor
	}
	// An explicit empty greeting turns it off.
	if fc.Greeting != nil {
		cfg.Greeting = *fc.Greeting
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
