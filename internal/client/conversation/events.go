package conversation

import (
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/client/api"
	"github.com/dmitrijs2005/taxvoice/internal/client/voiceagent"
)

// Event is an input of Reduce. Results of asynchronous work carry the
// Session they were started for; results of an earlier session are ignored.
type Event interface{ isEvent() }

type Mounted struct{}

type PermissionResolved struct{ Err error }

type StartRequested struct{ At time.Time }

type QuotaChecked struct {
	Session uint64
	Quota   *api.Quota
	Err     error
}

type AgentStarted struct {
	Session uint64
	At      time.Time
	Err     error
}

type AgentEvent struct {
	At    time.Time
	Event voiceagent.Event
}

type EndRequested struct{ At time.Time }

type DeviceChanged struct{ At time.Time }

type TickDue struct{ At time.Time }

type TickResult struct {
	Session   uint64
	At        time.Time
	Remaining int64
	Err       error
}

type Summarized struct {
	Session uint64
	Summary string
	Err     error
}

type SaveCompleted struct {
	Session      uint64
	Conversation *api.Conversation
	Err          error
}

type RetryRequested struct{}

type CloseRequested struct{}

type MuteRequested struct{ Muted bool }

func (Mounted) isEvent()            {}
func (PermissionResolved) isEvent() {}
func (StartRequested) isEvent()     {}
func (QuotaChecked) isEvent()       {}
func (AgentStarted) isEvent()       {}
func (AgentEvent) isEvent()         {}
func (EndRequested) isEvent()       {}
func (DeviceChanged) isEvent()      {}
func (TickDue) isEvent()            {}
func (TickResult) isEvent()         {}
func (Summarized) isEvent()         {}
func (SaveCompleted) isEvent()      {}
func (RetryRequested) isEvent()     {}
func (CloseRequested) isEvent()     {}
func (MuteRequested) isEvent()      {}

// Command is an output of Reduce, carried out by the Controller.
type Command interface{ isCommand() }

type RequestPermission struct{}

type CheckQuota struct{ Session uint64 }

type StartAgent struct {
	Session uint64
	Options voiceagent.StartOptions
}

type EndAgent struct{}

type StartRecording struct{}

type StopRecording struct{}

type StartTicker struct{}

type StopTicker struct{}

type Tick struct {
	Session uint64
	Seconds int64
}

type SetVolume struct{ Volume float64 }

type Summarize struct {
	Session    uint64
	Transcript string
}

type Save struct {
	Session uint64
	Draft   api.Draft
}

func (RequestPermission) isCommand() {}
func (CheckQuota) isCommand()        {}
func (StartAgent) isCommand()        {}
func (EndAgent) isCommand()          {}
func (StartRecording) isCommand()    {}
func (StopRecording) isCommand()     {}
func (StartTicker) isCommand()       {}
func (StopTicker) isCommand()        {}
func (Tick) isCommand()              {}
func (SetVolume) isCommand()         {}
func (Summarize) isCommand()         {}
func (Save) isCommand()              {}
