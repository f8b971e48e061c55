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

// FileConfig is the on-disk shape of the config file. Absent keys leave the
// current value untouched, hence the pointers on fields whose zero value is
// meaningful.
type FileConfig struct {
	HTTPAddr             string          `json:"http_addr" yaml:"http_addr"`
	DatabaseDSN          string          `json:"database_dsn" yaml:"database_dsn"`
	SessionSecret        string          `json:"session_secret" yaml:"session_secret"`
	SessionTTL           *timex.Duration `json:"session_ttl" yaml:"session_ttl"`
	CookieSecure         *bool           `json:"cookie_secure" yaml:"cookie_secure"`
	AuthMode             string          `json:"auth_mode" yaml:"auth_mode"`
	LoginPath            string          `json:"login_path" yaml:"login_path"`
	ExternalDashboardURL string          `json:"external_dashboard_url" yaml:"external_dashboard_url"`
	SingleUseLoginTokens *bool           `json:"single_use_login_tokens" yaml:"single_use_login_tokens"`
	InitialCallSeconds   *int64          `json:"initial_call_seconds" yaml:"initial_call_seconds"`
	StartFloorSeconds    *int64          `json:"start_floor_seconds" yaml:"start_floor_seconds"`
	OpenAIAPIKey         string          `json:"openai_api_key" yaml:"openai_api_key"`
	OpenAIBaseURL        string          `json:"openai_base_url" yaml:"openai_base_url"`
	OpenAIModel          string          `json:"openai_model" yaml:"openai_model"`
	SummarizerTimeout    *timex.Duration `json:"summarizer_timeout" yaml:"summarizer_timeout"`
	S3RootUser           string          `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword       string          `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket             string          `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region             string          `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint       string          `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	ShareLinkTTL         *timex.Duration `json:"share_link_ttl" yaml:"share_link_ttl"`
	MetricsEnabled       *bool           `json:"metrics_enabled" yaml:"metrics_enabled"`
	LogLevel             string          `json:"log_level" yaml:"log_level"`
	LogFormat            string          `json:"log_format" yaml:"log_format"`
}

// parseFile overlays the file named by -c/-config. Files ending in .yaml or
// .yml are read as YAML, anything else as JSON. An unreadable or malformed
// file panics.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(config)
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.SessionSecret, fc.SessionSecret)
	setString(&c.AuthMode, fc.AuthMode)
	setString(&c.LoginPath, fc.LoginPath)
	setString(&c.ExternalDashboardURL, fc.ExternalDashboardURL)
	setString(&c.OpenAIAPIKey, fc.OpenAIAPIKey)
	setString(&c.OpenAIBaseURL, fc.OpenAIBaseURL)
	setString(&c.OpenAIModel, fc.OpenAIModel)
	setString(&c.S3RootUser, fc.S3RootUser)
	setString(&c.S3RootPassword, fc.S3RootPassword)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)

	if fc.SessionTTL != nil {
		c.SessionTTL = fc.SessionTTL.Duration
	}
	if fc.SummarizerTimeout != nil {
		c.SummarizerTimeout = fc.SummarizerTimeout.Duration
	}
	if fc.ShareLinkTTL != nil {
		c.ShareLinkTTL = fc.ShareLinkTTL.Duration
	}
	if fc.CookieSecure != nil {
		c.CookieSecure = *fc.CookieSecure
	}
	if fc.SingleUseLoginTokens != nil {
		c.SingleUseLoginTokens = *fc.SingleUseLoginTokens
	}
	if fc.MetricsEnabled != nil {
		c.MetricsEnabled = *fc.MetricsEnabled
	}
	if fc.InitialCallSeconds != nil {
		c.InitialCallSeconds = *fc.InitialCallSeconds
	}
	if fc.StartFloorSeconds != nil {
		c.StartFloorSeconds = *fc.StartFloorSeconds
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
