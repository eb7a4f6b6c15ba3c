package schema

import (
	"strings"
	"time"
)

// ServerID identifies a hosted server on the panel.
type ServerID string

// Status is the connection status of a console session.
type Status string

const (
	// StatusDisconnected means no connection is active.
	StatusDisconnected Status = "disconnected"
	// StatusConnecting means a connection attempt is in flight.
	StatusConnecting Status = "connecting"
	// StatusConnected means the stream is delivering data.
	StatusConnected Status = "connected"
	// StatusEnded means the server closed the stream.
	StatusEnded Status = "ended"
	// StatusErrored means the connection attempt failed.
	StatusErrored Status = "errored"
)

// Terminal reports whether the status ends a connection attempt.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusErrored
}

// FrameOrigin identifies which record field produced a frame.
type FrameOrigin string

const (
	// FrameData is a frame carrying a data payload.
	FrameData FrameOrigin = "data"
	// FrameComment is a keep-alive/comment frame.
	FrameComment FrameOrigin = "comment"
)

// Frame is one decoded record from the log stream.
type Frame struct {
	Origin FrameOrigin
	// Payload holds the parsed JSON value when Structured is true.
	Payload    any
	Raw        string
	Structured bool
}

// StateHint is an advisory classification attached to server metadata.
type StateHint string

const (
	// HintRuntimeExited means a recognised runtime exited and restart needs confirmation.
	HintRuntimeExited StateHint = "runtime_exited"
	// HintSandboxMissing means the execution sandbox must be recreated.
	HintSandboxMissing StateHint = "sandbox_missing"
	// HintSuspended means the server is suspended.
	HintSuspended StateHint = "suspended"
	// HintInstalling means the server is still installing.
	HintInstalling StateHint = "installing"
	// HintTransferring means the server is moving between nodes.
	HintTransferring StateHint = "transferring"
)

// ServerInfo is the metadata returned by GET /servers/{id}.
type ServerInfo struct {
	ID        ServerID  `json:"id"`
	Name      string    `json:"name,omitempty"`
	Status    string    `json:"status,omitempty"`
	StateHint StateHint `json:"stateHint,omitempty"`
}

// ServerEvent is one historical event returned by the events API.
type ServerEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"ts"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
}

// PowerAction is a server lifecycle action.
type PowerAction string

const (
	PowerStart     PowerAction = "start"
	PowerStop      PowerAction = "stop"
	PowerRestart   PowerAction = "restart"
	PowerKill      PowerAction = "kill"
	PowerSuspend   PowerAction = "suspend"
	PowerUnsuspend PowerAction = "unsuspend"
)

// PowerActions lists the supported power actions.
func PowerActions() []PowerAction {
	return []PowerAction{PowerStart, PowerStop, PowerRestart, PowerKill, PowerSuspend, PowerUnsuspend}
}

// ParsePowerAction validates a power action name, ignoring case and
// surrounding space.
func ParsePowerAction(value string) (PowerAction, error) {
	switch action := PowerAction(strings.ToLower(strings.TrimSpace(value))); action {
	case PowerStart, PowerStop, PowerRestart, PowerKill, PowerSuspend, PowerUnsuspend:
		return action, nil
	default:
		return "", ErrUnknownPowerAction
	}
}
