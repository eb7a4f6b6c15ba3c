package credential

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/kryptograf"
	"pkt.systems/kryptograf/keymgmt"
	"pkt.systems/pslog"

	"pkt.systems/hostconsole/schema"
)

const descriptorPrefix = "hostconsole:token:"

// Store keeps a bearer token encrypted at rest.
type Store struct {
	storePath string
	tokenPath string
	name      string
	log       pslog.Logger
}

// NewStore initializes the key store and returns a token store.
func NewStore(storePath, tokenPath string) (*Store, error) {
	return NewStoreWithLogger(storePath, tokenPath, nil)
}

// NewStoreWithLogger initializes the key store with logging.
func NewStoreWithLogger(storePath, tokenPath string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(storePath) == "" {
		return nil, fmt.Errorf("credential key store path is required")
	}
	if strings.TrimSpace(tokenPath) == "" {
		return nil, fmt.Errorf("credential token path is required")
	}
	if err := EnsureKeyStoreWithLogger(storePath, logger); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("token_file", tokenPath)
	}
	return &Store{
		storePath: storePath,
		tokenPath: tokenPath,
		name:      filepath.Base(tokenPath),
		log:       logger,
	}, nil
}

// Save encrypts and writes the token, replacing any previous one.
func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}
	material, root, err := s.material()
	if err != nil {
		s.warn("credential save failed", err)
		return err
	}
	kg := kryptograf.New(root)

	dir := filepath.Dir(s.tokenPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		s.warn("credential save failed", err)
		return err
	}
	tmp, err := os.CreateTemp(dir, "token-*.enc")
	if err != nil {
		s.warn("credential save failed", err)
		return err
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		s.warn("credential save failed", err)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fail(err)
	}
	writer, err := kg.EncryptWriter(tmp, material)
	if err != nil {
		return fail(err)
	}
	if _, err := io.Copy(writer, bytes.NewReader([]byte(token))); err != nil {
		_ = writer.Close()
		return fail(err)
	}
	if err := writer.Close(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		s.warn("credential save failed", err)
		return err
	}
	if err := os.Rename(tmpPath, s.tokenPath); err != nil {
		_ = os.Remove(tmpPath)
		s.warn("credential save failed", err)
		return err
	}
	if s.log != nil {
		s.log.Info("credential save ok")
	}
	return nil
}

// Load decrypts the stored token. It returns os.ErrNotExist when no token is stored.
func (s *Store) Load() (string, error) {
	file, err := os.Open(s.tokenPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", os.ErrNotExist
		}
		s.warn("credential load failed", err)
		return "", err
	}
	defer func() { _ = file.Close() }()
	material, root, err := s.material()
	if err != nil {
		s.warn("credential load failed", err)
		return "", err
	}
	reader, err := kryptograf.New(root).DecryptReader(file, material)
	if err != nil {
		s.warn("credential load failed", err)
		return "", err
	}
	defer func() { _ = reader.Close() }()
	plain, err := io.ReadAll(reader)
	if err != nil {
		s.warn("credential load failed", err)
		return "", err
	}
	if s.log != nil {
		s.log.Debug("credential load ok")
	}
	return strings.TrimSpace(string(plain)), nil
}

// Remove deletes the stored token. Removing a missing token is not an error.
func (s *Store) Remove() error {
	if err := os.Remove(s.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.warn("credential remove failed", err)
		return err
	}
	if s.log != nil {
		s.log.Info("credential remove ok")
	}
	return nil
}

// Token implements Source. A missing token yields schema.ErrNoCredential.
func (s *Store) Token(context.Context) (string, error) {
	token, err := s.Load()
	if errors.Is(err, os.ErrNotExist) {
		return "", schema.ErrNoCredential
	}
	return token, err
}

func (s *Store) material() (keymgmt.Material, keymgmt.RootKey, error) {
	store, err := keymgmt.LoadProto(s.storePath)
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	root, err := store.EnsureRootKey()
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	descName := descriptorPrefix + s.name
	material, err := store.EnsureDescriptor(descName, root, []byte(descName))
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	if err := store.Commit(); err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	return material, root, nil
}

func (s *Store) warn(msg string, err error) {
	if s.log != nil {
		s.log.Warn(msg, "err", err)
	}
}
