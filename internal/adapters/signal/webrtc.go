package signal

import (
	"context"
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/salza80/jitsi-meet/internal/adapters/rtc"
	"github.com/salza80/jitsi-meet/internal/core"
)

func (ctl *EventsWSController) sendCandidate(c *wsConn, ci webrtc.ICECandidateInit) {
	resp := struct {
		Type          string `json:"type"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid,omitempty"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
	}{
		Type:      "candidate",
		Candidate: ci.Candidate,
	}
	if ci.SDPMid != nil {
		resp.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		resp.SDPMLineIndex = *ci.SDPMLineIndex
	}
	ctl.sendJSON(c, resp)
}

// handleOffer opens a receive-only peer connection whose remote tracks are
// fed into the event router.
func (ctl *EventsWSController) handleOffer(ctx context.Context, c *wsConn, data []byte) {
	var p struct {
		SDP string `json:"sdp"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		ctl.sendError(c, ErrBadPayload)
		return
	}

	wc, err := rtc.NewConnection(ctl.RTC, c.client)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc new pc")
		return
	}
	wc.OnICECandidate(func(ci webrtc.ICECandidateInit) { ctl.sendCandidate(c, ci) })
	wc.OnEvent(func(ev core.Event) {
		if err := ctl.Sink.Enqueue(ev); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("kind", string(ev.Kind())).Msg("media event dropped")
		}
	})

	if err := wc.Start(ctx); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc start")
		wc.Close()
		return
	}

	answer, err := wc.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.SDP})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc apply offer")
		wc.Close()
		ctl.sendError(c, err)
		return
	}
	c.setMedia(wc)

	ctl.sendJSON(c, map[string]string{
		"type": "answer",
		"sdp":  answer.SDP,
	})
}

func (ctl *EventsWSController) handleCandidate(c *wsConn, data []byte) {
	var p struct {
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}

	cand := webrtc.ICECandidateInit{Candidate: p.Candidate}
	if p.SDPMid != "" {
		cand.SDPMid = &p.SDPMid
	}
	cand.SDPMLineIndex = &p.SDPMLineIndex

	mc := c.Media()
	if mc == nil {
		log.Warn().Str("module", "signal").Str("client", c.client).Msg("candidate: no media connection")
		return
	}
	if err := mc.AddICECandidate(cand); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("add ice candidate")
	}
}

func (ctl *EventsWSController) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
