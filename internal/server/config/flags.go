package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   HTTP bind address (":8080")
//	-d string   PostgreSQL DSN
//	-s string   session signing secret
//	-t int      session ttl, minutes
//	-m string   auth mode, internal or external
//	-x string   external dashboard URL
//	-q int      initial call seconds for new users (-q=-1 = unmetered)
//	-o string   OpenAI API key
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint
//	-l string   log level
//
// Only these flags are parsed; os.Args is filtered with flagx.FilterArgs first.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-t", "-m", "-x", "-q", "-o", "-u", "-p", "-b", "-g", "-e", "-l",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SessionSecret, "s", config.SessionSecret, "session signing secret")
	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session ttl (in minutes)")
	fs.StringVar(&config.AuthMode, "m", config.AuthMode, "auth mode: internal or external")
	fs.StringVar(&config.ExternalDashboardURL, "x", config.ExternalDashboardURL, "external dashboard URL")
	fs.Int64Var(&config.InitialCallSeconds, "q", config.InitialCallSeconds, "initial call seconds (-1 = unmetered)")
	fs.StringVar(&config.OpenAIAPIKey, "o", config.OpenAIAPIKey, "OpenAI API key")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
		}
	})
}
