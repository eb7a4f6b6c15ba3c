package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/hostconsole/schema"
	"pkt.systems/pslog"
)

// ConsoleState captures what a console restores when it reopens a server.
type ConsoleState struct {
	History []string `json:"history,omitempty"`
	// AutoScroll is nil until the user toggles it; the config default applies.
	AutoScroll *bool `json:"auto_scroll,omitempty"`
}

// Store persists console state to disk, one file per server.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads a server's console state. A missing file reports ok=false.
func (s *Store) Load(id schema.ServerID) (ConsoleState, bool, error) {
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.debug("state load miss", id)
			return ConsoleState{}, false, nil
		}
		s.warn("state load failed", id, err)
		return ConsoleState{}, false, err
	}
	var state ConsoleState
	if err := json.Unmarshal(data, &state); err != nil {
		s.warn("state load failed", id, err)
		return ConsoleState{}, false, err
	}
	if s.log != nil {
		s.log.Debug("state load ok", "server", id, "history", len(state.History))
	}
	return state, true, nil
}

// Save writes a server's console state, replacing the previous file atomically.
func (s *Store) Save(id schema.ServerID, state ConsoleState) error {
	path := s.pathFor(id)
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		s.warn("state save failed", id, err)
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		s.warn("state save failed", id, err)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.warn("state save failed", id, err)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.warn("state save failed", id, err)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("state save failed", id, err)
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("state save failed", id, err)
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		s.warn("state save failed", id, err)
		return err
	}
	if s.log != nil {
		s.log.Trace("state save ok", "server", id, "history", len(state.History))
	}
	return nil
}

func (s *Store) pathFor(id schema.ServerID) string {
	return filepath.Join(s.dir, schema.FileComponent(id)+".json")
}

func (s *Store) debug(msg string, id schema.ServerID) {
	if s.log != nil {
		s.log.Debug(msg, "server", id)
	}
}

func (s *Store) warn(msg string, id schema.ServerID, err error) {
	if s.log != nil {
		s.log.Warn(msg, "server", id, "err", err)
	}
}
