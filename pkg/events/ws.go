package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
)

// writeTimeout bounds one WebSocket send.
const writeTimeout = 10 * time.Second

// StreamTo subscribes the WebSocket connection to a channel and forwards
// events until the context ends or the client goes away. Blocks; call from
// the upgraded handler.
func (h *Hub) StreamTo(ctx context.Context, conn *websocket.Conn, channel string) error {
	id, ch := h.Subscribe(channel)
	defer h.Unsubscribe(channel, id)

	// Drain client frames so pings and close frames are processed.
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	go func() {
		for {
			if _, _, err := conn.Read(readCtx); err != nil {
				cancelRead()
				return
			}
		}
	}()

	for {
		select {
		case <-readCtx.Done():
			return readCtx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			wctx, cancel := context.WithTimeout(readCtx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
