package cli

import (
	"context"
	"errors"
	"fmt"
)

var errNoCall = errors.New("no call in progress")

func (a *App) controller() (callController, error) {
	if a.call == nil {
		return nil, errNotLoggedIn
	}
	return a.call, nil
}

func (a *App) StartCall(ctx context.Context) error {
	c, err := a.controller()
	if err != nil {
		return err
	}
	return c.Start(ctx)
}

func (a *App) EndCall(ctx context.Context) error {
	c, err := a.controller()
	if err != nil {
		return err
	}
	return c.End(ctx)
}

// Say sends a typed user turn to the agent.
func (a *App) Say(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("usage: say <text>")
	}
	c, err := a.controller()
	if err != nil {
		return err
	}
	if !a.inCall() {
		return errNoCall
	}
	return c.SendText(ctx, text)
}

func (a *App) SetMuted(ctx context.Context, muted bool) error {
	c, err := a.controller()
	if err != nil {
		return err
	}
	return c.SetMuted(ctx, muted)
}

// SwitchDevice restarts the call as if the audio device changed.
func (a *App) SwitchDevice(ctx context.Context) error {
	c, err := a.controller()
	if err != nil {
		return err
	}
	return c.SwitchDevice(ctx)
}

func (a *App) RetrySave(ctx context.Context) error {
	c, err := a.controller()
	if err != nil {
		return err
	}
	if !c.Snapshot().CanRetry() {
		return errors.New("nothing to retry")
	}
	return c.RetrySave(ctx)
}

func (a *App) CloseResult(ctx context.Context) error {
	c, err := a.controller()
	if err != nil {
		return err
	}
	return c.Close(ctx)
}
