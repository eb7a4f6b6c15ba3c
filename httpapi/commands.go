package httpapi

import (
	"context"
	"fmt"
	"strings"

	"pkt.systems/hostconsole/schema"
)

// BuiltinCommands is the default console command set of the mock panel.
type BuiltinCommands struct {
	hub *Hub
}

// NewBuiltinCommands constructs the default command set over hub.
func NewBuiltinCommands(hub *Hub) *BuiltinCommands {
	return &BuiltinCommands{hub: hub}
}

// Exec runs one command. Unknown commands produce output, not an error.
func (c *BuiltinCommands) Exec(_ context.Context, id schema.ServerID, cmd string) (string, error) {
	name, args, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	args = strings.TrimSpace(args)
	switch strings.ToLower(name) {
	case "help":
		return strings.Join([]string{
			"help          list commands",
			"status        show server status",
			"echo <text>   reply with text",
			"say <text>    broadcast text to the log stream",
			"fail <text>   reject the command",
		}, "\n") + "\n", nil
	case "status":
		info, err := c.hub.Info(id)
		if err != nil {
			return "", err
		}
		out := fmt.Sprintf("%s (%s): %s", info.ID, info.Name, info.Status)
		if info.StateHint != "" {
			out += fmt.Sprintf(" [%s]", info.StateHint)
		}
		return out + "\n", nil
	case "echo":
		return args, nil
	case "say":
		if args == "" {
			return "", fmt.Errorf("say: missing text")
		}
		if err := c.hub.Publish(id, "[say] "+args); err != nil {
			return "", err
		}
		return "", nil
	case "fail":
		if args == "" {
			args = "command rejected"
		}
		return "", fmt.Errorf("%s", args)
	default:
		return fmt.Sprintf("unknown command: %s\n", name), nil
	}
}
