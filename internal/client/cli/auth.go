package cli

import (
	"context"
	"fmt"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// jobTitles are the titles the server accepts at registration.
var jobTitles = []string{
	"Tax Consultant",
	"Tax Manager",
	"Tax Director",
	"Tax Partner",
	"Tax Associate",
	"Tax Specialist",
	"Tax Analyst",
	"Tax Advisor",
	"Tax Accountant",
	"Other",
}

// Register prompts for the profile and creates an account. It does not log
// in.
func (a *App) Register(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	jobTitle, err := GetChoice(a.reader, "Enter job title", jobTitles, a.out)
	if err != nil {
		return err
	}

	user, err := a.api.Register(ctx, name, email, string(password), jobTitle)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s. Type 'login' to sign in.\n", user.Email)
	return nil
}

// Login prompts for credentials and opens a session.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}

	if err := a.api.Login(ctx, email, string(password)); err != nil {
		return err
	}
	if err := a.onLoggedIn(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// TokenLogin exchanges a one-time login token, as found in a dashboard
// link, for a session.
func (a *App) TokenLogin(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("usage: token <one-time token>")
	}
	if err := a.api.TokenLogin(ctx, token); err != nil {
		return err
	}
	if err := a.onLoggedIn(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// Logout ends the session and stops the controller. A call in progress is
// ended without saving.
func (a *App) Logout(ctx context.Context) error {
	a.stopController()
	a.user = nil
	return a.api.Logout(ctx)
}
