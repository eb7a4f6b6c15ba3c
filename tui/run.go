package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"pkt.systems/hostconsole/core"
	"pkt.systems/hostconsole/internal/logx"
)

// Run starts the interactive console and blocks until the user quits or
// ctx is done.
func Run(ctx context.Context, console *core.Console, opts Options) error {
	log := logx.WithServer(ctx, console.ID())
	model := New(ctx, console, opts)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	log.Info("tui session start", "theme", model.theme.Name)
	_, err := program.Run()
	model.quit()
	if err != nil && ctx.Err() == nil {
		log.Warn("tui session failed", "err", err)
		return err
	}
	return nil
}
