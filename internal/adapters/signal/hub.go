package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

const DefaultAckTimeout = 2 * time.Second

// Sender is the write side of a subscriber connection.
type Sender interface {
	TrySend(data []byte) error
}

// Hub fans renderer output out to every websocket subscriber. It is the
// renderer for both the thumbnail and the large video managers.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Sender

	ackMu      sync.Mutex
	seq        uint64
	pending    map[uint64]func(error)
	ackTimeout time.Duration
}

func NewHub(ackTimeout time.Duration) *Hub {
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	return &Hub{
		clients:    make(map[string]Sender),
		pending:    make(map[uint64]func(error)),
		ackTimeout: ackTimeout,
	}
}

func (h *Hub) Subscribe(id string, s Sender) {
	h.mu.Lock()
	h.clients[id] = s
	n := len(h.clients)
	h.mu.Unlock()
	log.Info().Str("module", "signal.hub").Str("client", id).Int("clients", n).Msg("subscribed")
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	n := len(h.clients)
	h.mu.Unlock()
	log.Info().Str("module", "signal.hub").Str("client", id).Int("clients", n).Msg("unsubscribed")
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ThumbnailUpdated(t core.ThumbnailDTO) {
	h.broadcast(outbound{Type: msgThumbnail, Data: t})
}

func (h *Hub) ThumbnailRemoved(id domain.ParticipantID) {
	h.broadcast(outbound{Type: msgThumbnailRemoved, Data: idPayload{ID: id}})
}

func (h *Hub) LayoutUpdated(l core.LayoutDTO) {
	h.broadcast(outbound{Type: msgLayout, Data: l})
}

func (h *Hub) Remeasure(v core.Viewport) {
	h.broadcast(outbound{Type: msgRemeasure, Data: v})
}

// ShowContainer asks subscribers to switch the large display and completes
// on the first acknowledgement. Without subscribers it completes at once.
// An unanswered request completes successfully after the ack timeout.
func (h *Hub) ShowContainer(ctx context.Context, sel core.Selection, done func(error)) {
	if h.Count() == 0 {
		done(nil)
		return
	}

	h.ackMu.Lock()
	h.seq++
	seq := h.seq
	timer := time.AfterFunc(h.ackTimeout, func() { h.resolve(seq, nil) })
	stop := context.AfterFunc(ctx, func() { h.resolve(seq, ctx.Err()) })
	h.pending[seq] = func(err error) {
		timer.Stop()
		stop()
		done(err)
	}
	h.ackMu.Unlock()

	h.broadcast(outbound{Type: msgShowContainer, Seq: seq, Data: sel})
}

// Ack completes a pending ShowContainer. A non-empty reason fails it.
func (h *Hub) Ack(seq uint64, reason string) bool {
	var err error
	if reason != "" {
		err = errors.New(reason)
	}
	return h.resolve(seq, err)
}

func (h *Hub) resolve(seq uint64, err error) bool {
	h.ackMu.Lock()
	done, ok := h.pending[seq]
	delete(h.pending, seq)
	h.ackMu.Unlock()
	if !ok {
		return false
	}
	done(err)
	return true
}

// Send writes one message to a single subscriber.
func (h *Hub) Send(s Sender, msg outbound) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Str("type", msg.Type).Msg("marshal")
		return
	}
	if err := s.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal.hub").Str("type", msg.Type).Msg("send dropped")
	}
}

func (h *Hub) broadcast(msg outbound) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Str("type", msg.Type).Msg("marshal")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if err := c.TrySend(b); err != nil {
			log.Warn().Err(err).Str("module", "signal.hub").Str("client", id).Str("type", msg.Type).Msg("broadcast dropped")
		}
	}
}
