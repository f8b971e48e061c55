// Package cli provides voicecall, the interactive terminal client of the tax
// assistant.
//
// It wires configuration, the server API client and a Conversation Session
// Controller, and runs a REPL that drives calls. Typical flow: log in with
// credentials or a one-time token, start a call, type or speak, end the call
// and review the stored summary.
//
// Key features:
//   - Register / Login / Token login / Logout
//   - Start, end, mute and restart calls on a new device
//   - Retry a failed save, close the result view
//   - Quota standing, conversation history, share links
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
