package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
)

// Quota prints the caller's call time standing.
func (a *App) Quota(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	q, err := a.api.Quota(ctx)
	if err != nil {
		return err
	}
	if !q.Configured {
		fmt.Fprintln(a.out, "Call time: unmetered")
		return nil
	}
	fmt.Fprintf(a.out, "Call time left: %ds (%s)\n", q.Remaining, q.Level)
	if !q.CanStart && q.UpgradeURL != "" {
		fmt.Fprintln(a.out, "Upgrade:", q.UpgradeURL)
	}
	return nil
}

// History lists stored conversations, newest first.
func (a *App) History(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	list, err := a.api.Conversations(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No conversations yet.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tSUMMARY")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%ds\t%s\n", c.ID, c.StartTime.Local().Format("2006-01-02 15:04"), c.Duration, firstLine(c.Summary, 60))
	}
	return tw.Flush()
}

// Share prints a temporary link to the conversation export.
func (a *App) Share(ctx context.Context, id string) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	if id == "" {
		if a.call != nil {
			if c := a.call.Snapshot().Conversation; c != nil {
				id = c.ID
			}
		}
		if id == "" {
			return errors.New("usage: share <conversation id>")
		}
	}
	url, err := a.api.Share(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, url)
	return nil
}

// Language stores the preferred language and reconfigures the agent. It is
// refused during a call.
func (a *App) Language(ctx context.Context, language string) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	if language == "" {
		return errors.New("usage: language <english|arabic|chinese|russian>")
	}
	if a.inCall() {
		return errors.New("cannot change language during a call")
	}
	stored, err := a.api.UpdateLanguage(ctx, strings.ToLower(language))
	if err != nil {
		return err
	}
	a.user.Language = &stored
	a.user.QuickStart = false
	a.startController(ctx)
	fmt.Fprintln(a.out, "Language set to", stored)
	return nil
}

func firstLine(s string, limit int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > limit {
		s = string(r[:limit-1]) + "…"
	}
	return s
}
