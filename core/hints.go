package core

import (
	"fmt"
	"strings"

	"pkt.systems/hostconsole/schema"
)

var hintBanners = map[schema.StateHint]string{
	schema.HintRuntimeExited:  "The server runtime exited. Confirm before restarting it.",
	schema.HintSandboxMissing: "The execution sandbox is missing and must be recreated before the server can start.",
	schema.HintSuspended:      "This server is suspended. Power actions are limited until it is unsuspended.",
	schema.HintInstalling:     "The server is still installing. Console output may be incomplete.",
	schema.HintTransferring:   "The server is being transferred to another node.",
}

// HintBanner returns the advisory banner for a state hint, or "" when there
// is none. Hints are informational and never gate an operation.
func HintBanner(hint schema.StateHint) string {
	value := schema.StateHint(strings.TrimSpace(string(hint)))
	if value == "" {
		return ""
	}
	if banner, ok := hintBanners[value]; ok {
		return banner
	}
	return fmt.Sprintf("Server reports state %q.", string(value))
}
