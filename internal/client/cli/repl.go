package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	TokenLogin(ctx context.Context, token string) error
	Logout(ctx context.Context) error
	StartCall(ctx context.Context) error
	EndCall(ctx context.Context) error
	Say(ctx context.Context, text string) error
	SetMuted(ctx context.Context, muted bool) error
	SwitchDevice(ctx context.Context) error
	RetrySave(ctx context.Context) error
	CloseResult(ctx context.Context) error
	Quota(ctx context.Context) error
	History(ctx context.Context) error
	Share(ctx context.Context, id string) error
	Language(ctx context.Context, language string) error
}

// runREPL starts a simple read–eval–print loop for the voicecall client.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. The loop exits on scanner EOF,
// on ctx cancellation or when the user types "exit" or "quit".
//
//	Not logged in:
//	  - help                 show available commands
//	  - register             create an account
//	  - login                authenticate with email and password
//	  - token <token>        authenticate with a one-time login token
//	  - exit | quit          leave the program
//
//	Logged in:
//	  - start | end          start or end a call
//	  - say <text>           send a typed turn to the assistant
//	  - mute | unmute        silence the assistant's audio
//	  - switch               restart the call on a new audio device
//	  - retry | close        retry a failed save, close the result
//	  - quota | history      call time standing, stored conversations
//	  - share [id]           temporary link to a conversation
//	  - language <name>      set the preferred language
//	  - logout
//
// Errors from handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("tv> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		if cmd == "" {
			continue
		}

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: start, end, say, mute, unmute, switch, retry, close, quota, history, share, language, logout, exit")
			} else {
				printlnFn("Available commands: register, login, token, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "token":
			err = a.TokenLogin(ctx, rest)

		case "logout":
			err = a.Logout(ctx)

		case "start":
			err = a.StartCall(ctx)

		case "end":
			err = a.EndCall(ctx)

		case "say":
			err = a.Say(ctx, rest)

		case "mute":
			err = a.SetMuted(ctx, true)

		case "unmute":
			err = a.SetMuted(ctx, false)

		case "switch":
			err = a.SwitchDevice(ctx)

		case "retry":
			err = a.RetrySave(ctx)

		case "close":
			err = a.CloseResult(ctx)

		case "quota":
			err = a.Quota(ctx)

		case "history", "h":
			err = a.History(ctx)

		case "share":
			err = a.Share(ctx, rest)

		case "language":
			err = a.Language(ctx, rest)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", describeErr(err))
		}
	}
}
