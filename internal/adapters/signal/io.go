package signal

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/protocol"
)

// writePump drains the send queue. It exits once the queue is closed and
// empty, or on the first write error.
func (c *Connection) writePump() {
	defer close(c.flushed)
	for {
		select {
		case <-c.ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.shutdown(err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				c.shutdown(err)
				return
			}
		}
	}
}

// readPump waits for the first OnEvent so no inbound message is lost, then
// delivers every decoded event in arrival order.
func (c *Connection) readPump() {
	select {
	case <-c.handlerSet:
	case <-c.ctx.Done():
		return
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			if c.ctx.Err() != nil {
				err = nil
			}
			c.shutdown(err)
			return
		}
		ev, err := protocol.Decode(data)
		if err != nil {
			lvl := log.Warn()
			if errors.Is(err, protocol.ErrUnknownType) {
				lvl = log.Debug()
			}
			lvl.Err(err).Str("module", "signal").Msg("inbound message ignored")
			continue
		}
		if fn := c.handler.Load(); fn != nil {
			(*fn)(ev)
		}
	}
}
