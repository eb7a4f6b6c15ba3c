package schema

// LinesEvent reports lines appended to a server's display buffer.
type LinesEvent struct {
	ServerID ServerID
	Lines    []string
}

// StatusEvent reports a session status transition.
type StatusEvent struct {
	ServerID ServerID
	From     Status
	To       Status
	// Attempt is the connection attempt counter for the session.
	Attempt uint64
}

// NoticeLevel classifies transient notifications.
type NoticeLevel string

const (
	// NoticeInfo is an informational notification.
	NoticeInfo NoticeLevel = "info"
	// NoticeError is a failure notification.
	NoticeError NoticeLevel = "error"
)

// NoticeEvent is a transient notification not written to the buffer.
type NoticeEvent struct {
	ServerID ServerID
	Level    NoticeLevel
	Message  string
}

// ClearEvent reports the display buffer was cleared.
type ClearEvent struct {
	ServerID ServerID
}
