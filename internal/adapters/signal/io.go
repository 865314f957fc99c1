package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *EventsWSController) writePump(ctx context.Context, c *wsConn) {
	var ping <-chan time.Time
	if ctl.PingPeriod > 0 {
		ticker := time.NewTicker(ctl.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", c.id).Msg("writePump ctx done")
			return
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", c.id).Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", c.id).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *EventsWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", c.id).Msg("readPump closing")
		ctl.Hub.Unsubscribe(c.id)
		cancel()
		c.Close()
	}()

	if ctl.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.ReadLimit)
	}
	if ctl.PingPeriod > 0 {
		pongWait := ctl.PingPeriod * 10 / 9
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		if ctx.Err() != nil {
			log.Info().Str("module", "signal").Str("conn", c.id).Msg("readPump ctx done")
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "signal").Str("conn", c.id).Msg("readPump read error")
			}
			return
		}
		ctl.handleMessage(ctx, c, data)
	}
}

func (ctl *EventsWSController) handleMessage(ctx context.Context, c *wsConn, data []byte) {
	typ, err := MessageType(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, err)
		return
	}

	switch typ {
	case "ping":
		ctl.handlePing(c)
	case "offer":
		ctl.handleOffer(ctx, c, data)
	case "candidate":
		ctl.handleCandidate(c, data)
	case msgContainerShown:
		ctl.handleContainerShown(data)
	default:
		ev, err := ctl.Ingest(c.client, data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("type", typ).Str("client", c.client).Msg("event rejected")
			ctl.sendError(c, err)
			return
		}
		log.Debug().Str("module", "signal").Str("kind", string(ev.Kind())).Msg("event queued")
	}
}

func (ctl *EventsWSController) handleContainerShown(data []byte) {
	var p struct {
		Seq   uint64 `json:"seq"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad container-shown payload")
		return
	}
	if !ctl.Hub.Ack(p.Seq, p.Error) {
		log.Debug().Str("module", "signal").Uint64("seq", p.Seq).Msg("ack for unknown transition")
	}
}
