package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

var envFile = ".env"

// parseEnv overlays the environment. The ElevenLabs credentials use the
// vendor's conventional names so one .env serves the server and the client.
func parseEnv(cfg *Config) {
	loadEnvFile()

	envString(&cfg.ServerURL, "TAXVOICE_SERVER_URL")
	envString(&cfg.ElevenLabsAgentID, "ELEVENLABS_AGENT_ID")
	envString(&cfg.ElevenLabsAPIKey, "ELEVENLABS_API_KEY")
	envString(&cfg.ElevenLabsURL, "TAXVOICE_ELEVENLABS_URL")
	envString(&cfg.LogLevel, "TAXVOICE_LOG_LEVEL")
	if v, ok := os.LookupEnv("TAXVOICE_GREETING"); ok {
		cfg.Greeting = v
	}
	if v := os.Getenv("TAXVOICE_TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		cfg.TickInterval = d
	}
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
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
