package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// envFile is loaded before reading the environment when present. Variables
// already set in the process win over the file.
var envFile = ".env"

// parseEnv overlays TAXVOICE_* variables plus OPENAI_API_KEY. Malformed
// numeric, boolean or duration values panic, like malformed flags.
func parseEnv(config *Config) {
	loadEnvFile()

	envString(&config.HTTPAddr, "TAXVOICE_HTTP_ADDR")
	envString(&config.DatabaseDSN, "TAXVOICE_DATABASE_DSN")
	envString(&config.SessionSecret, "TAXVOICE_SESSION_SECRET")
	envDuration(&config.SessionTTL, "TAXVOICE_SESSION_TTL")
	envBool(&config.CookieSecure, "TAXVOICE_COOKIE_SECURE")
	envString(&config.AuthMode, "TAXVOICE_AUTH_MODE")
	envString(&config.LoginPath, "TAXVOICE_LOGIN_PATH")
	envString(&config.ExternalDashboardURL, "TAXVOICE_EXTERNAL_DASHBOARD_URL")
	envBool(&config.SingleUseLoginTokens, "TAXVOICE_SINGLE_USE_LOGIN_TOKENS")
	envInt(&config.InitialCallSeconds, "TAXVOICE_INITIAL_CALL_SECONDS")
	envInt(&config.StartFloorSeconds, "TAXVOICE_START_FLOOR_SECONDS")
	envString(&config.OpenAIAPIKey, "OPENAI_API_KEY")
	envString(&config.OpenAIBaseURL, "TAXVOICE_OPENAI_BASE_URL")
	envString(&config.OpenAIModel, "TAXVOICE_OPENAI_MODEL")
	envDuration(&config.SummarizerTimeout, "TAXVOICE_SUMMARIZER_TIMEOUT")
	envString(&config.S3RootUser, "TAXVOICE_S3_ROOT_USER")
	envString(&config.S3RootPassword, "TAXVOICE_S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "TAXVOICE_S3_BUCKET")
	envString(&config.S3Region, "TAXVOICE_S3_REGION")
	envString(&config.S3BaseEndpoint, "TAXVOICE_S3_BASE_ENDPOINT")
	envDuration(&config.ShareLinkTTL, "TAXVOICE_SHARE_LINK_TTL")
	envBool(&config.MetricsEnabled, "TAXVOICE_METRICS_ENABLED")
	envString(&config.LogLevel, "TAXVOICE_LOG_LEVEL")
	envString(&config.LogFormat, "TAXVOICE_LOG_FORMAT")
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envBool(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(err)
	}
	*dst = b
}

func envInt(dst *int64, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		panic(err)
	}
	*dst = n
}

func envDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}

// loadEnvFile copies .env values into variables that are unset or empty.
// Empty process values are ignored by the overlay, so the file fills them.
func loadEnvFile() {
	vals, err := godotenv.Read(envFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		panic(err)
	}
	for k, v := range vals {
		if os.Getenv(k) == "" {
			if err := os.Setenv(k, v); err != nil {
				panic(err)
			}
		}
	}
}
