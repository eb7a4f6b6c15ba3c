package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/hostconsole/internal/appconfig"
	"pkt.systems/hostconsole/internal/credential"
	"pkt.systems/kryptograf/keymgmt"
	"pkt.systems/pslog"
)

func newLoginCmd(cfgPath *string) *cobra.Command {
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a panel API token encrypted at rest",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(*cfgPath)
			if err != nil {
				return err
			}
			store, err := tokenStore(cfg, logger)
			if err != nil {
				return err
			}
			token, err := resolveToken(cmd, fromStdin)
			if err != nil {
				return err
			}
			if err := store.Save(token); err != nil {
				return err
			}
			logger.Info("login token stored", "path", cfg.Auth.TokenFile)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "token-stdin", false, "read the token from stdin")
	return cmd
}

func newLogoutCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored panel API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(*cfgPath)
			if err != nil {
				return err
			}
			store, err := tokenStore(cfg, logger)
			if err != nil {
				return err
			}
			if err := store.Remove(); err != nil {
				return err
			}
			logger.Info("logout token removed", "path", cfg.Auth.TokenFile)
			return nil
		},
	}
}

func tokenStore(cfg appconfig.Config, logger pslog.Logger) (*credential.Store, error) {
	if cfg.Auth.KeyStorePath == "" || cfg.Auth.TokenFile == "" {
		return nil, errors.New("auth.key_store_path and auth.token_file must be set")
	}
	return credential.NewStoreWithLogger(cfg.Auth.KeyStorePath, cfg.Auth.TokenFile, logger)
}

func resolveToken(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", errors.New("token from stdin is empty")
		}
		return token, nil
	}
	secret, err := keymgmt.PromptPassphrase(cmd.InOrStdin(), "API token: ", cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(secret))
	if token == "" {
		return "", errors.New("token is empty")
	}
	return token, nil
}
