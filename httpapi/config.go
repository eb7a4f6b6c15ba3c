package httpapi

import "time"

// Config defines the mock panel settings.
type Config struct {
	Addr string
	// Token, when set, is required as a bearer credential on every route.
	Token string
	// KeepaliveInterval spaces keep-alive comments on log streams; zero disables them.
	KeepaliveInterval time.Duration
	// BasePath mounts every route under a prefix such as /api.
	BasePath string
	// HistorySize bounds the per-server log history replayed to new streams.
	HistorySize int
	// EventsSize bounds the per-server event history.
	EventsSize int
}
