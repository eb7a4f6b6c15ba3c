// Package credential resolves the bearer token sent to the panel API.
package credential

import (
	"context"
	"errors"
	"os"
	"strings"

	"pkt.systems/hostconsole/schema"
)

// Source yields the bearer credential at call time.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed token.
type Static string

// Token implements Source.
func (s Static) Token(context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", schema.ErrNoCredential
	}
	return token, nil
}

// Env reads the token from an environment variable.
type Env string

// Token implements Source.
func (e Env) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(e)) == "" {
		return "", schema.ErrNoCredential
	}
	token := strings.TrimSpace(os.Getenv(string(e)))
	if token == "" {
		return "", schema.ErrNoCredential
	}
	return token, nil
}

// Chain tries each source in order and returns the first token found.
type Chain []Source

// Token implements Source. Sources reporting schema.ErrNoCredential are
// skipped; any other error stops the chain.
func (c Chain) Token(ctx context.Context) (string, error) {
	for _, src := range c {
		if src == nil {
			continue
		}
		token, err := src.Token(ctx)
		if err == nil && token != "" {
			return token, nil
		}
		if err != nil && !errors.Is(err, schema.ErrNoCredential) {
			return "", err
		}
	}
	return "", schema.ErrNoCredential
}

// Optional resolves a token, treating a missing credential as empty.
func Optional(ctx context.Context, src Source) (string, error) {
	if src == nil {
		return "", nil
	}
	token, err := src.Token(ctx)
	if errors.Is(err, schema.ErrNoCredential) {
		return "", nil
	}
	return token, err
}
