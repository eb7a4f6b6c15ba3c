package main

import (
	"context"
	"errors"
	"fmt"

	"pkt.systems/hostconsole"
	"pkt.systems/hostconsole/internal/appconfig"
	"pkt.systems/hostconsole/internal/credential"
	"pkt.systems/hostconsole/schema"
	"pkt.systems/pslog"
)

// credentialSource resolves the bearer token from, in order, the config
// file, the token environment variable, and the encrypted token store.
func credentialSource(cfg appconfig.Config, logger pslog.Logger) (credential.Source, error) {
	chain := credential.Chain{
		credential.Static(cfg.Auth.Token),
		credential.Env(cfg.Auth.TokenEnv),
	}
	if cfg.Auth.KeyStorePath != "" && cfg.Auth.TokenFile != "" {
		store, err := credential.NewStoreWithLogger(cfg.Auth.KeyStorePath, cfg.Auth.TokenFile, logger)
		if err != nil {
			return nil, err
		}
		chain = append(chain, store)
	}
	return chain, nil
}

func newClient(ctx context.Context, cfg appconfig.Config, opts ...hostconsole.ClientOption) (*hostconsole.Client, error) {
	logger := pslog.Ctx(ctx)
	creds, err := credentialSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	return hostconsole.NewClient(hostconsole.ClientConfig{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout(),
		Credentials: creds,
		Console:     cfg.Console.Schema(),
	}, append([]hostconsole.ClientOption{hostconsole.WithLogger(logger)}, opts...)...)
}

func parseServerID(raw string) (schema.ServerID, error) {
	id, err := schema.NormalizeServerID(raw)
	if err != nil {
		if errors.Is(err, schema.ErrInvalidServer) {
			return "", fmt.Errorf("invalid server id %q", raw)
		}
		return "", err
	}
	return id, nil
}
