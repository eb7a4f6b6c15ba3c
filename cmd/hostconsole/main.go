package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])

	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("hostconsole command failed")
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "hostconsole",
		Short:         "Live console for hosted game and app servers",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config path (default ~/.hostconsole/config.yaml)")

	root.AddCommand(newConsoleCmd(&cfgPath))
	root.AddCommand(newExecCmd(&cfgPath))
	root.AddCommand(newInfoCmd(&cfgPath))
	root.AddCommand(newEventsCmd(&cfgPath))
	root.AddCommand(newTailCmd(&cfgPath))
	root.AddCommand(newPowerCmd(&cfgPath))
	root.AddCommand(newLoginCmd(&cfgPath))
	root.AddCommand(newLogoutCmd(&cfgPath))
	root.AddCommand(newInitConfigCmd(&cfgPath))
	root.AddCommand(newMockPanelCmd(&cfgPath))
	root.AddCommand(newVersionCmd())

	return root
}
