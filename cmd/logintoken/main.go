// Command logintoken mints a one-time login token for an existing user, the
// way the external dashboard does, and prints it or a ready-to-open link.
//
//	logintoken -e alice@example.com -u http://localhost:8080/me
//
// The signing secret comes from -s, TAXVOICE_SESSION_SECRET (a .env file is
// honoured) or a terminal prompt.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/server/auth"
	"github.com/joho/godotenv"
	"golang.org/x/term"
)

var readPassword = term.ReadPassword

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, out io.Writer) error {
	flags := flag.NewFlagSet("logintoken", flag.ContinueOnError)
	email := flags.String("e", "", "email of the user to log in")
	secret := flags.String("s", "", "shared signing secret")
	ttl := flags.Duration("t", 15*time.Minute, "token lifetime")
	link := flags.String("u", "", "page URL to append the token to")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*email) == "" {
		return errors.New("email is required (-e)")
	}

	key := *secret
	if key == "" {
		key = getenv("TAXVOICE_SESSION_SECRET")
	}
	if key == "" {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return errors.New("signing secret is required (-s or TAXVOICE_SESSION_SECRET)")
		}
		fmt.Fprint(os.Stderr, "Signing secret: ")
		b, err := readPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		key = string(b)
	}

	token, err := auth.MintLoginToken(*email, []byte(key), *ttl)
	if err != nil {
		return err
	}

	if *link == "" {
		_, err = fmt.Fprintln(out, token)
		return err
	}

	u, err := url.Parse(*link)
	if err != nil {
		return fmt.Errorf("invalid link: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	_, err = fmt.Fprintln(out, u.String())
	return err
}
