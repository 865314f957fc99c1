package orch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/salza80/jitsi-meet/internal/app"
	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

type fixture struct {
	store *app.Registry
	orch  *Orchestrator
}

func newFixture(t *testing.T, policy app.Policy) *fixture {
	t.Helper()
	store := app.NewRegistry(app.RegistryOptions{LastN: -1})
	o := New(Options{
		Store:                   store,
		Reducer:                 store,
		Policy:                  policy,
		DominantSpeakerOrdering: true,
		Viewport:                core.Viewport{Width: 1280, Height: 720},
	})
	f := &fixture{store: store, orch: o}
	me, err := domain.NewParticipant("me", "local", true)
	require.NoError(t, err)
	o.Dispatch(core.ConferenceJoined{Local: *me})
	return f
}

func (f *fixture) join(t *testing.T, id, name string) {
	t.Helper()
	p, err := domain.NewParticipant(domain.ParticipantID(id), name, false)
	require.NoError(t, err)
	f.orch.Dispatch(core.ParticipantJoined{Participant: *p})
}

func (f *fixture) rename(id, name string) {
	f.orch.Dispatch(core.ParticipantUpdated{ID: domain.ParticipantID(id), Name: &name})
}

func (f *fixture) largeID() (domain.ParticipantID, bool) {
	sel, ok := f.orch.State().Large.Selection()
	return sel.ParticipantID, ok
}

func videoTrack(id, stream string) domain.Track {
	return domain.Track{
		ParticipantID: domain.ParticipantID(id),
		MediaType:     domain.MediaVideo,
		VideoType:     domain.VideoCamera,
		StreamID:      stream,
	}
}

func TestJoinRespectsEligibility(t *testing.T) {
	f := newFixture(t, app.RolePolicy{})
	f.join(t, "t", "Trainer")
	f.join(t, "a", "active")
	f.join(t, "b", "bob")

	s := f.orch.State()
	require.Equal(t, []domain.ParticipantID{"a", "t"}, s.Thumbs.RemoteIDs())

	f.rename("b", "active")
	require.True(t, s.Thumbs.Has("b"))
	f.rename("a", "idle")
	require.False(t, s.Thumbs.Has("a"))

	local, ok := s.Thumbs.Thumbnail("me")
	require.True(t, ok)
	require.True(t, local.Initialized)
	require.False(t, local.Visible)

	f.orch.Dispatch(core.ParticipantUpdated{ID: "me", Name: ptr("active")})
	local, _ = s.Thumbs.Thumbnail("me")
	require.True(t, local.Visible)
}

func TestLayoutExcludesTrainerOutsideTileView(t *testing.T) {
	f := newFixture(t, app.OpenPolicy{})
	f.join(t, "1", "Trainer")
	f.join(t, "2", "bob")

	snap := f.orch.Snapshot()
	require.Equal(t, []domain.ParticipantID{"2"}, snap.Layout.IDs())
	require.Equal(t, []domain.ParticipantID{"1"}, snap.Layout.Trainers)
	require.Equal(t, domain.ParticipantID("me"), snap.Layout.Local)

	f.orch.Dispatch(core.TileViewChanged{Enabled: true})
	snap = f.orch.Snapshot()
	require.Equal(t, []domain.ParticipantID{"1", "2"}, snap.Layout.IDs())
}

func TestLeaveClearsPinAndLargeVideo(t *testing.T) {
	f := newFixture(t, app.OpenPolicy{})
	f.join(t, "a", "alice")
	f.join(t, "b", "bob")

	f.orch.Dispatch(core.PinParticipant{ID: "a"})
	id, ok := f.largeID()
	require.True(t, ok)
	require.Equal(t, domain.ParticipantID("a"), id)
	a, _ := f.orch.State().Thumbs.Thumbnail("a")
	require.True(t, a.Pinned)

	f.orch.Dispatch(core.PinParticipant{ID: "b"})
	a, _ = f.orch.State().Thumbs.Thumbnail("a")
	b, _ := f.orch.State().Thumbs.Thumbnail("b")
	require.False(t, a.Pinned)
	require.True(t, b.Pinned)

	f.orch.Dispatch(core.ParticipantLeft{ID: "b"})
	require.Empty(t, f.store.PinnedID())
	id, ok = f.largeID()
	require.True(t, ok)
	require.NotEqual(t, domain.ParticipantID("b"), id)

	snap := f.orch.Snapshot()
	require.NotNil(t, snap.LargeVideo)
	require.NotEqual(t, domain.ParticipantID("b"), snap.LargeVideo.ParticipantID)
}

func TestPinOfUnknownParticipantKeepsFocus(t *testing.T) {
	f := newFixture(t, app.OpenPolicy{})
	f.join(t, "a", "alice")
	f.orch.Dispatch(core.PinParticipant{ID: "a"})

	f.orch.Dispatch(core.PinParticipant{ID: "ghost"})
	require.Equal(t, domain.ParticipantID("a"), f.store.PinnedID())
	a, ok := f.orch.State().Thumbs.Thumbnail("a")
	require.True(t, ok)
	require.True(t, a.Pinned)
	id, ok := f.largeID()
	require.True(t, ok)
	require.Equal(t, domain.ParticipantID("a"), id)
}

func TestRejoinRefreshesThumbnail(t *testing.T) {
	f := newFixture(t, app.OpenPolicy{})
	f.join(t, "a", "alice")
	f.join(t, "a", "Trainer A")

	dto, ok := f.orch.State().Thumbs.Thumbnail("a")
	require.True(t, ok)
	require.Equal(t, "Trainer A", dto.Name)
	require.Equal(t, -1, dto.OrderHint)
}

func TestSharedVideoLeaveFallsBackToPinned(t *testing.T) {
	f := newFixture(t, app.OpenPolicy{})
	f.join(t, "a", "alice")
	f.orch.Dispatch(core.TrackAdded{Track: videoTrack("a", "va")})
	f.orch.Dispatch(core.PinParticipant{ID: "a"})
	f.orch.Dispatch(core.ParticipantJoined{Participant: domain.Participant{ID: "yt", IsFake: true}})

	f.orch.State().Large.Select("yt")
	sel, _ := f.orch.State().Large.Selection()
	require.Equal(t, core.ContainerSharedVideo, sel.Container)

	f.orch.Dispatch(core.ParticipantLeft{ID: "yt"})
	sel, ok := f.orch.State().Large.Selection()
	require.True(t, ok)
	require.Equal(t, domain.ParticipantID("a"), sel.ParticipantID)
	require.Equal(t, core.ContainerVideo, sel.Container)
	require.Equal(t, "va", sel.StreamID)
}

func TestTrackBeforeParticipantContainer(t *testing.T) {
	f := newFixture(t, app.RolePolicy{})
	f.join(t, "x", "bob")
	f.orch.Dispatch(core.TrackAdded{Track: videoTrack("x", "vx")})
	require.False(t, f.orch.State().Thumbs.Has("x"))

	f.rename("x", "active")
	dto, ok := f.orch.State().Thumbs.Thumbnail("x")
	require.True(t, ok)
	require.Equal(t, []string{"vx"}, dto.Streams)
	require.False(t, dto.VideoMuted)
}

func TestTrackEventsRefreshLargeVideo(t *testing.T) {
	f := newFixture(t, app.OpenPolicy{})
	f.join(t, "a", "alice")
	f.orch.Dispatch(core.PinParticipant{ID: "a"})

	sel, _ := f.orch.State().Large.Selection()
	require.Equal(t, core.ContainerAvatar, sel.Container)

	f.orch.Dispatch(core.TrackAdded{Track: videoTrack("a", "va")})
	sel, _ = f.orch.State().Large.Selection()
	require.Equal(t, core.ContainerVideo, sel.Container)
	require.Equal(t, "va", sel.StreamID)

	muted := videoTrack("a", "va")
	muted.Muted = true
	f.orch.Dispatch(core.TrackUpdated{Track: muted})
	sel, _ = f.orch.State().Large.Selection()
	require.Equal(t, core.ContainerAvatar, sel.Container)

	f.orch.Dispatch(core.TrackRemoved{Track: muted})
	sel, _ = f.orch.State().Large.Selection()
	require.Equal(t, core.ContainerAvatar, sel.Container)
	require.Empty(t, sel.StreamID)
}

func TestConnectionStatusForcesAvatar(t *testing.T) {
	f := newFixture(t, app.OpenPolicy{})
	f.join(t, "a", "alice")
	f.orch.Dispatch(core.TrackAdded{Track: videoTrack("a", "va")})
	f.orch.Dispatch(core.PinParticipant{ID: "a"})

	status := domain.ConnectionInterrupted
	f.orch.Dispatch(core.ParticipantUpdated{ID: "a", ConnectionStatus: &status})
	sel, _ := f.orch.State().Large.Selection()
	require.Equal(t, core.ContainerAvatar, sel.Container)
	dto, _ := f.orch.State().Thumbs.Thumbnail("a")
	require.Equal(t, domain.ConnectionInterrupted, dto.ConnectionStatus)
}

func TestConferenceWillLeaveTearsDown(t *testing.T) {
	f := newFixture(t, app.OpenPolicy{})
	f.join(t, "a", "alice")
	require.NotNil(t, f.orch.State())

	f.orch.Dispatch(core.ConferenceWillLeave{})
	require.Nil(t, f.orch.State())
	snap := f.orch.Snapshot()
	require.Empty(t, snap.Thumbnails)
	require.Nil(t, snap.LargeVideo)
	require.Empty(t, snap.Layout.Remote)
}

func TestEveryEventKindIsHandled(t *testing.T) {
	f := newFixture(t, app.OpenPolicy{})
	status := domain.ConnectionInactive
	events := []core.Event{
		core.ParticipantJoined{Participant: domain.Participant{ID: "z", Name: "zed"}},
		core.ParticipantUpdated{ID: "z", ConnectionStatus: &status},
		core.DominantSpeakerChanged{ID: "z"},
		core.PinParticipant{ID: "z"},
		core.TrackAdded{Track: videoTrack("z", "vz")},
		core.TrackUpdated{Track: videoTrack("z", "vz")},
		core.TrackRemoved{Track: videoTrack("z", "vz")},
		core.FilmstripVisibilityChanged{Visible: false},
		core.ClientResized{Viewport: core.Viewport{Width: 800, Height: 600}},
		core.TileViewChanged{Enabled: true},
		core.LastNChanged{LastN: 2},
		core.RecentActiveChanged{IDs: []domain.ParticipantID{"z"}},
		core.LocalFlipXChanged{FlipX: true},
		core.ParticipantLeft{ID: "z"},
		core.ParticipantLeft{ID: "z"},
		core.ConferenceWillLeave{},
	}
	for _, ev := range events {
		require.NotPanics(t, func() { f.orch.Dispatch(ev) }, string(ev.Kind()))
	}
}

func TestResizeReachesLargeVideo(t *testing.T) {
	f := newFixture(t, app.OpenPolicy{})
	f.orch.Dispatch(core.ClientResized{Viewport: core.Viewport{Width: 800, Height: 600}})
	require.Equal(t, 800, f.orch.State().Large.Viewport().Width)
}

func TestRunDrainsQueue(t *testing.T) {
	store := app.NewRegistry(app.RegistryOptions{LastN: -1})
	o := New(Options{Store: store, Reducer: store, Policy: app.OpenPolicy{}, QueueSize: 1})

	require.NoError(t, o.Enqueue(core.ParticipantJoined{Participant: domain.Participant{ID: "a", Name: "alice"}}))
	require.ErrorIs(t, o.Enqueue(core.ParticipantLeft{ID: "a"}), ErrQueueFull)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(o.Snapshot().Layout.Remote) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

// Replays random event sequences and checks that thumbnails always match
// the eligible participants and that large video never points at someone
// without a thumbnail.
func TestThumbnailParityUnderRandomEvents(t *testing.T) {
	names := []string{"active", "Trainer Kim", "bob", "", "ACTIVE"}
	statuses := []domain.ConnectionStatus{domain.ConnectionActive, domain.ConnectionInterrupted, domain.ConnectionInactive}
	policies := []app.Policy{app.RolePolicy{}, app.OpenPolicy{}}

	for seed := uint64(1); seed <= 20; seed++ {
		policy := policies[seed%2]
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed*7919))
			f := newFixture(t, policy)

			for step := 0; step < 300; step++ {
				id := domain.ParticipantID(fmt.Sprintf("p%d", rng.IntN(8)))
				switch rng.IntN(9) {
				case 0, 1:
					f.orch.Dispatch(core.ParticipantJoined{Participant: domain.Participant{
						ID: id, Name: names[rng.IntN(len(names))],
					}})
				case 2:
					f.orch.Dispatch(core.ParticipantLeft{ID: id})
				case 3:
					f.rename(string(id), names[rng.IntN(len(names))])
				case 4:
					st := statuses[rng.IntN(len(statuses))]
					f.orch.Dispatch(core.ParticipantUpdated{ID: id, ConnectionStatus: &st})
				case 5:
					if _, ok := f.store.Participant(id); ok {
						f.orch.Dispatch(core.TrackAdded{Track: videoTrack(string(id), fmt.Sprintf("v%d", step))})
					}
				case 6:
					f.orch.Dispatch(core.TrackRemoved{Track: domain.Track{ParticipantID: id, MediaType: domain.MediaVideo}})
				case 7:
					if _, ok := f.store.Participant(id); ok {
						f.orch.Dispatch(core.PinParticipant{ID: id})
					}
				case 8:
					f.orch.Dispatch(core.DominantSpeakerChanged{ID: id})
				}

				var want []domain.ParticipantID
				for _, p := range f.store.Participants() {
					if policy.Eligible(p) {
						want = append(want, p.ID)
					}
				}
				slices.Sort(want)
				got := f.orch.State().Thumbs.RemoteIDs()
				require.Equal(t, len(want), len(got), "step %d", step)
				if len(want) > 0 {
					require.Equal(t, want, got, "step %d", step)
				}

				if lid, ok := f.largeID(); ok {
					require.True(t, f.orch.displayable(lid), "step %d: large video on %s", step, lid)
				}
				pinned := 0
				for _, th := range f.orch.State().Thumbs.Snapshot() {
					if th.Pinned {
						pinned++
					}
				}
				require.LessOrEqual(t, pinned, 1)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }
