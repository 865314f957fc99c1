package rtc

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

// Connection is a receive-only peer connection. Every remote track it
// receives is reported as a TrackAdded event and, once the track stops
// delivering packets, as a TrackRemoved event.
type Connection struct {
	pc     *webrtc.PeerConnection
	sid    string
	cancel context.CancelFunc

	mu      sync.Mutex
	onICE   func(webrtc.ICECandidateInit)
	onEvent func(core.Event)
	closed  bool
}

func DefaultWebRTCConfig(stunURLs []string) webrtc.Configuration {
	if len(stunURLs) == 0 {
		stunURLs = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunURLs}},
	}
}

func NewConnection(cfg webrtc.Configuration, sid string) (*Connection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &Connection{pc: pc, sid: sid}, nil
}

func (c *Connection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "webrtc").Str("sid", c.sid).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateFailed || s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if cand != nil && fn != nil {
			fn(cand.ToJSON())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		tr, ok := TrackFromRemote(track.StreamID(), track.ID(), track.Kind())
		if !ok {
			log.Warn().Str("module", "webrtc").Str("sid", c.sid).Str("kind", track.Kind().String()).Msg("ignoring track")
			return
		}
		log.Info().
			Str("module", "webrtc").
			Str("sid", c.sid).
			Str("participant", string(tr.ParticipantID)).
			Str("media", string(tr.MediaType)).
			Str("stream_id", tr.StreamID).
			Msg("OnTrack received")
		c.emit(core.TrackAdded{Track: tr})
		go c.drain(ctx, track, tr)
	})

	return nil
}

// drain consumes packets until the track ends, then reports its removal.
func (c *Connection) drain(ctx context.Context, track *webrtc.TrackRemote, tr domain.Track) {
	defer c.emit(core.TrackRemoved{Track: tr})
	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := track.ReadRTP(); err != nil {
			log.Debug().Err(err).Str("module", "webrtc").Str("sid", c.sid).Str("stream_id", tr.StreamID).Msg("track ended")
			return
		}
	}
}

// TrackFromRemote maps a remote track onto the layout model. The msid
// stream id names the owning participant; track ids starting with
// "desktop" or "screen" mark screen shares.
func TrackFromRemote(streamID, trackID string, kind webrtc.RTPCodecType) (domain.Track, bool) {
	if streamID == "" {
		return domain.Track{}, false
	}
	tr := domain.Track{ParticipantID: domain.ParticipantID(streamID), StreamID: trackID}
	switch kind {
	case webrtc.RTPCodecTypeAudio:
		tr.MediaType = domain.MediaAudio
	case webrtc.RTPCodecTypeVideo:
		tr.MediaType = domain.MediaVideo
		tr.VideoType = domain.VideoCamera
		id := strings.ToLower(trackID)
		if strings.HasPrefix(id, "desktop") || strings.HasPrefix(id, "screen") {
			tr.VideoType = domain.VideoDesktop
		}
	default:
		return domain.Track{}, false
	}
	return tr, true
}

func (c *Connection) emit(ev core.Event) {
	c.mu.Lock()
	fn := c.onEvent
	c.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (c *Connection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete

	return c.pc.LocalDescription(), nil
}

func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if err := c.pc.Close(); err != nil && !errors.Is(err, webrtc.ErrConnectionClosed) {
		log.Error().Err(err).Str("module", "webrtc").Str("sid", c.sid).Msg("close error")
		return
	}
	log.Info().Str("module", "webrtc").Str("sid", c.sid).Msg("closed")
}

func (c *Connection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *Connection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

// OnEvent sets the sink for track events.
func (c *Connection) OnEvent(fn func(core.Event)) {
	c.mu.Lock()
	c.onEvent = fn
	c.mu.Unlock()
}
