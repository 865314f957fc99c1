package thumbs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/salza80/jitsi-meet/internal/app"
	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

type recordingRenderer struct {
	core.NopRenderer
	updated map[domain.ParticipantID]core.ThumbnailDTO
	removed []domain.ParticipantID
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{updated: make(map[domain.ParticipantID]core.ThumbnailDTO)}
}

func (r *recordingRenderer) ThumbnailUpdated(t core.ThumbnailDTO) { r.updated[t.ID] = t }

func (r *recordingRenderer) ThumbnailRemoved(id domain.ParticipantID) {
	r.removed = append(r.removed, id)
}

type fixture struct {
	store  *app.Registry
	render *recordingRenderer
	mgr    *Manager
	unpins int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  app.NewRegistry(app.RegistryOptions{LastN: -1}),
		render: newRecordingRenderer(),
	}
	f.mgr = NewManager(Options{
		Store:  f.store,
		Render: f.render,
		Unpin: func() {
			f.unpins++
			f.store.Reduce(core.PinParticipant{})
		},
	})
	return f
}

func (f *fixture) join(t *testing.T, id, name string) domain.Participant {
	t.Helper()
	p, err := domain.NewParticipant(domain.ParticipantID(id), name, false)
	require.NoError(t, err)
	f.store.Reduce(core.ParticipantJoined{Participant: *p})
	got, ok := f.store.Participant(p.ID)
	require.True(t, ok)
	return got
}

func (f *fixture) addTrack(tr domain.Track) {
	f.store.Reduce(core.TrackAdded{Track: tr})
	f.mgr.OnTrackAdded(tr)
}

func video(id, stream string, muted bool) domain.Track {
	return domain.Track{
		ParticipantID: domain.ParticipantID(id),
		MediaType:     domain.MediaVideo,
		VideoType:     domain.VideoCamera,
		StreamID:      stream,
		Muted:         muted,
	}
}

func audio(id, stream string) domain.Track {
	return domain.Track{ParticipantID: domain.ParticipantID(id), MediaType: domain.MediaAudio, StreamID: stream}
}

func TestAddRemote(t *testing.T) {
	f := newFixture(t)
	p := f.join(t, "a", "active")

	require.True(t, f.mgr.AddRemote(p))
	require.False(t, f.mgr.AddRemote(p), "duplicate creation is a no-op")
	require.Equal(t, 1, f.mgr.Count())

	local := p
	local.ID = "me"
	local.Local = true
	require.False(t, f.mgr.AddRemote(local))

	fake := f.join(t, "shared", "video")
	fake.IsFake = true
	require.True(t, f.mgr.AddRemote(fake))
	dto, ok := f.mgr.Thumbnail("shared")
	require.True(t, ok)
	require.Equal(t, core.ThumbnailSharedVideo, dto.Kind)
}

func TestMutedForNoTracks(t *testing.T) {
	f := newFixture(t)
	p := f.join(t, "a", "active")
	f.mgr.AddRemote(p)

	dto, _ := f.mgr.Thumbnail("a")
	require.True(t, dto.AudioMuted)
	require.True(t, dto.VideoMuted)

	f.addTrack(video("a", "v1", false))
	dto, _ = f.mgr.Thumbnail("a")
	require.False(t, dto.VideoMuted)
	require.True(t, dto.AudioMuted)

	f.store.Reduce(core.TrackRemoved{Track: video("a", "v1", false)})
	f.mgr.OnTrackRemoved(video("a", "v1", false))
	dto, _ = f.mgr.Thumbnail("a")
	require.True(t, dto.VideoMuted)
	require.Empty(t, dto.Streams)
}

func TestTrackBufferingMatchesInOrder(t *testing.T) {
	inOrder := newFixture(t)
	p := inOrder.join(t, "x", "active")
	inOrder.mgr.AddRemote(p)
	inOrder.addTrack(video("x", "v1", false))
	inOrder.addTrack(audio("x", "a1"))

	early := newFixture(t)
	p = early.join(t, "x", "active")
	early.addTrack(video("x", "v1", false))
	early.addTrack(audio("x", "a1"))
	require.False(t, early.mgr.Has("x"))
	early.mgr.AddRemote(p)

	want, _ := inOrder.mgr.Thumbnail("x")
	got, _ := early.mgr.Thumbnail("x")
	require.Equal(t, want, got)
	require.Equal(t, []string{"a1", "v1"}, got.Streams)
}

func TestBufferSurvivesInactiveRoundTrip(t *testing.T) {
	f := newFixture(t)
	p := f.join(t, "x", "active")
	f.mgr.AddRemote(p)
	f.addTrack(video("x", "v1", false))

	f.mgr.Remove("x")
	require.False(t, f.mgr.Has("x"))
	f.mgr.AddRemote(p)
	dto, _ := f.mgr.Thumbnail("x")
	require.Equal(t, []string{"v1"}, dto.Streams)

	f.mgr.Remove("x")
	f.mgr.Forget("x")
	f.mgr.AddRemote(p)
	dto, _ = f.mgr.Thumbnail("x")
	require.Empty(t, dto.Streams)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	a := f.join(t, "a", "active")
	f.mgr.AddRemote(a)
	f.store.Reduce(core.PinParticipant{ID: "a"})

	f.mgr.Remove("a")
	require.Equal(t, 1, f.unpins)
	require.Empty(t, f.store.PinnedID())
	require.False(t, f.mgr.Has("a"))
	require.Equal(t, []domain.ParticipantID{"a"}, f.render.removed)

	require.NotPanics(t, func() { f.mgr.Remove("a") })
	require.Equal(t, 1, f.unpins)
}

func TestPinExclusivity(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"a", "b", "c"} {
		f.mgr.AddRemote(f.join(t, id, "active"))
	}

	f.mgr.OnPinChange("a")
	f.mgr.OnPinChange("b")
	pinned := 0
	for _, dto := range f.mgr.Snapshot() {
		if dto.Pinned {
			pinned++
			require.Equal(t, domain.ParticipantID("b"), dto.ID)
		}
	}
	require.Equal(t, 1, pinned)

	f.mgr.OnPinChange("")
	for _, dto := range f.mgr.Snapshot() {
		require.False(t, dto.Pinned)
	}
}

func TestDisplayNameChangeUpdatesOrderHint(t *testing.T) {
	f := newFixture(t)
	f.mgr.AddRemote(f.join(t, "a", "active"))
	dto, _ := f.mgr.Thumbnail("a")
	require.Equal(t, orderHintDefault, dto.OrderHint)

	name := "Trainer Ann"
	f.store.Reduce(core.ParticipantUpdated{ID: "a", Name: &name})
	f.mgr.OnDisplayNameChanged("a")
	dto, _ = f.mgr.Thumbnail("a")
	require.Equal(t, orderHintTrainer, dto.OrderHint)
	require.Equal(t, name, dto.Name)
}

func TestDominantSpeakerIndicator(t *testing.T) {
	f := newFixture(t)
	f.mgr.AddRemote(f.join(t, "a", "active"))
	f.mgr.OnDominantSpeakerChanged("a")
	dto, _ := f.mgr.Thumbnail("a")
	require.False(t, dto.DominantSpeaker)

	f.mgr.opts.DominantSpeakerIndicator = true
	f.mgr.OnDominantSpeakerChanged("a")
	dto, _ = f.mgr.Thumbnail("a")
	require.True(t, dto.DominantSpeaker)
}

func TestLocalThumbnail(t *testing.T) {
	f := newFixture(t)
	me, err := domain.NewParticipant("me", "someone", true)
	require.NoError(t, err)
	f.mgr.InitLocal(*me, false)

	dto, ok := f.mgr.Thumbnail("me")
	require.True(t, ok)
	require.False(t, dto.Visible)
	require.False(t, dto.Initialized)

	f.mgr.MarkLocalJoined(*me)
	f.mgr.SetLocalVisible(true)
	dto, _ = f.mgr.Thumbnail("me")
	require.True(t, dto.Initialized)
	require.True(t, dto.Visible)

	f.mgr.Reset()
	_, ok = f.mgr.Thumbnail("me")
	require.False(t, ok)
}

func TestApplyLayout(t *testing.T) {
	f := newFixture(t)
	f.mgr.AddRemote(f.join(t, "a", "active"))
	f.mgr.AddRemote(f.join(t, "b", "active"))

	f.mgr.ApplyLayout(core.LayoutDTO{Remote: []core.EntryDTO{
		{ID: "b", Order: 20},
		{ID: "a", Order: 30, Hidden: true},
	}})
	a, _ := f.mgr.Thumbnail("a")
	b, _ := f.mgr.Thumbnail("b")
	require.True(t, a.Hidden)
	require.Equal(t, 30, a.Order)
	require.False(t, b.Hidden)
	require.Equal(t, 20, b.Order)
}
