package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/protocol"
)

// heartbeat emits PING every period while the connection is open. PONG
// replies are not tracked.
func (c *Connection) heartbeat() {
	ticker := c.opts.Clock.NewTicker(c.opts.HeartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.Chan():
			if !c.Send(protocol.Ping{}) {
				log.Debug().Str("module", "signal").Msg("heartbeat skipped")
			}
		}
	}
}
