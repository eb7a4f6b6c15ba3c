package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/hostconsole"
	"pkt.systems/hostconsole/core"
	"pkt.systems/hostconsole/internal/appconfig"
	"pkt.systems/hostconsole/internal/command"
	"pkt.systems/hostconsole/internal/format"
	"pkt.systems/hostconsole/schema"
)

func newExecCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <server-id> <command...>",
		Short: "Run one console command and print its output",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, id, _, err := oneShotClient(cmd, *cfgPath, args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			if strings.TrimSpace(text) == "" {
				return schema.ErrEmptyCommand
			}
			output, err := client.API().Exec(ctx, id, text)
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), format.SplitOutput(output))
		},
	}
}

func newInfoCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "info <server-id>",
		Short: "Show server status and state advisories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, id, _, err := oneShotClient(cmd, *cfgPath, args[0])
			if err != nil {
				return err
			}
			info, err := client.API().Info(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), command.InfoLines(info, core.HintBanner(info.StateHint)))
		},
	}
}

func newEventsCmd(cfgPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events <server-id>",
		Short: "List recent server events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, id, cfg, err := oneShotClient(cmd, *cfgPath, args[0])
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.Console.Schema().EventsLimit
			}
			events, err := client.API().Events(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), format.NewPlainRenderer().FormatEvents(events))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of events (default from config)")
	return cmd
}

func newTailCmd(cfgPath *string) *cobra.Command {
	var lines int
	var markers bool
	cmd := &cobra.Command{
		Use:   "tail <server-id>",
		Short: "Print the last lines of a server's log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, id, cfg, err := oneShotClient(cmd, *cfgPath, args[0])
			if err != nil {
				return err
			}
			if lines <= 0 {
				lines = cfg.Console.Schema().TailLines
			}
			blob, err := client.API().LogsLast(cmd.Context(), id, lines)
			if err != nil {
				return err
			}
			if markers {
				return printLines(cmd.OutOrStdout(), core.SnapshotLines(lines, blob))
			}
			return printLines(cmd.OutOrStdout(), format.SplitOutput(blob))
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "number of lines (default from config)")
	cmd.Flags().BoolVar(&markers, "markers", false, "wrap the snapshot in start and end markers")
	return cmd
}

func newPowerCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "power <server-id> <start|stop|restart|kill|suspend|unsuspend>",
		Short: "Request a server lifecycle action",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := schema.ParsePowerAction(args[1])
			if err != nil {
				return err
			}
			client, id, _, err := oneShotClient(cmd, *cfgPath, args[0])
			if err != nil {
				return err
			}
			msg, err := client.API().Power(cmd.Context(), id, action)
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), []string{fmt.Sprintf(schema.PowerNotice, msg)})
		},
	}
}

func oneShotClient(cmd *cobra.Command, cfgPath, rawID string) (*hostconsole.Client, schema.ServerID, appconfig.Config, error) {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return nil, "", cfg, err
	}
	id, err := parseServerID(rawID)
	if err != nil {
		return nil, "", cfg, err
	}
	client, err := newClient(cmd.Context(), cfg)
	if err != nil {
		return nil, "", cfg, err
	}
	return client, id, cfg, nil
}

func printLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
