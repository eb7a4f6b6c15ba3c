package main

import (
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/hostconsole"
	"pkt.systems/hostconsole/httpapi"
	"pkt.systems/hostconsole/internal/appconfig"
	"pkt.systems/pslog"
)

func newMockPanelCmd(cfgPath *string) *cobra.Command {
	var addr string
	var token string
	var noDemo bool
	cmd := &cobra.Command{
		Use:   "mock-panel",
		Short: "Serve a mock hosting panel for demos and tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := appconfig.Load(*cfgPath)
			if err != nil {
				return err
			}
			panelCfg := mockPanelConfig(cfg.Mock)
			if addr != "" {
				panelCfg.HTTP.Addr = addr
			}
			if cmd.Flags().Changed("token") {
				panelCfg.HTTP.Token = token
			}
			if noDemo {
				panelCfg.DemoInterval = 0
			}
			server, err := hostconsole.NewMockPanel(panelCfg)
			if err != nil {
				return err
			}
			if err := server.Start(ctx); err != nil {
				return err
			}
			if err := server.Wait(); err != nil {
				return err
			}
			pslog.Ctx(ctx).Info("mock panel exit")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&token, "token", "", "required bearer token (default from config)")
	cmd.Flags().BoolVar(&noDemo, "no-demo", false, "do not publish synthetic output")
	return cmd
}

func mockPanelConfig(cfg appconfig.MockConfig) hostconsole.MockPanelConfig {
	return hostconsole.MockPanelConfig{
		HTTP: httpapi.Config{
			Addr:              cfg.Addr,
			Token:             cfg.Token,
			KeepaliveInterval: time.Duration(cfg.KeepaliveSeconds) * time.Second,
			BasePath:          cfg.BasePath,
		},
		DemoInterval: time.Duration(cfg.DemoSeconds) * time.Second,
	}
}
