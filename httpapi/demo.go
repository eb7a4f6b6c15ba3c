package httpapi

import (
	"context"
	"fmt"
	"time"

	"pkt.systems/hostconsole/schema"
	"pkt.systems/pslog"
)

// RunDemo publishes a synthetic log line to every running server on each
// interval until ctx is done.
func RunDemo(ctx context.Context, hub *Hub, interval time.Duration) {
	if hub == nil || interval <= 0 {
		return
	}
	log := pslog.Ctx(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var tick uint64
	for {
		select {
		case <-ctx.Done():
			log.Debug("demo stopped", "ticks", tick)
			return
		case <-ticker.C:
			tick++
			for _, id := range hub.Servers() {
				info, err := hub.Info(id)
				if err != nil || info.Status != "running" {
					continue
				}
				_ = hub.Publish(id, demoLine(id, tick))
			}
		}
	}
}

func demoLine(id schema.ServerID, tick uint64) string {
	switch tick % 4 {
	case 0:
		return fmt.Sprintf("[%s] saving world (tick %d)", id, tick)
	case 1:
		return fmt.Sprintf("[%s] players online: %d", id, tick%7)
	case 2:
		return fmt.Sprintf("[%s] tps 20.0 mem %d MiB", id, 512+tick%64)
	default:
		return fmt.Sprintf("[%s] heartbeat %d", id, tick)
	}
}
