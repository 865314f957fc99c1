package largevideo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/salza80/jitsi-meet/internal/app"
	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

type pendingShow struct {
	sel  core.Selection
	done func(error)
}

// deferredRenderer holds transitions until the test resolves them.
type deferredRenderer struct {
	pending []pendingShow
}

func (r *deferredRenderer) ShowContainer(_ context.Context, sel core.Selection, done func(error)) {
	r.pending = append(r.pending, pendingShow{sel: sel, done: done})
}

func (r *deferredRenderer) resolve(i int, err error) { r.pending[i].done(err) }

type fixture struct {
	store   *app.Registry
	mgr     *Manager
	changes []core.Selection
}

func newFixture(t *testing.T, render core.LargeVideoRenderer) *fixture {
	t.Helper()
	f := &fixture{store: app.NewRegistry(app.RegistryOptions{LastN: -1})}
	f.mgr = NewManager(Options{
		Store:  f.store,
		Render: render,
		OnChange: func(sel core.Selection, ok bool) {
			if ok {
				f.changes = append(f.changes, sel)
			}
		},
	})
	f.mgr.Initialize(context.Background(), core.Viewport{Width: 1280, Height: 720})
	return f
}

func (f *fixture) join(t *testing.T, id string) {
	t.Helper()
	p, err := domain.NewParticipant(domain.ParticipantID(id), "active", false)
	require.NoError(t, err)
	f.store.Reduce(core.ParticipantJoined{Participant: *p})
}

func (f *fixture) video(id, stream string, muted bool) {
	f.store.Reduce(core.TrackAdded{Track: domain.Track{
		ParticipantID: domain.ParticipantID(id),
		MediaType:     domain.MediaVideo,
		VideoType:     domain.VideoCamera,
		StreamID:      stream,
		Muted:         muted,
	}})
}

func TestSelectResolvesContainer(t *testing.T) {
	f := newFixture(t, core.NopRenderer{})
	f.join(t, "a")

	f.mgr.Select("a")
	sel, ok := f.mgr.Selection()
	require.True(t, ok)
	require.Equal(t, core.ContainerAvatar, sel.Container, "no track degrades to avatar")
	require.Empty(t, sel.StreamID)

	f.video("a", "s1", false)
	f.mgr.Update("a", true)
	sel, _ = f.mgr.Selection()
	require.Equal(t, core.ContainerVideo, sel.Container)
	require.Equal(t, "s1", sel.StreamID)

	disp, ok := f.mgr.Displayed()
	require.True(t, ok)
	require.Equal(t, sel, disp)
}

func TestUpdateIsAHint(t *testing.T) {
	f := newFixture(t, core.NopRenderer{})
	f.join(t, "a")
	f.join(t, "b")
	f.mgr.Select("a")

	f.mgr.Update("b", true)
	sel, _ := f.mgr.Selection()
	require.Equal(t, domain.ParticipantID("a"), sel.ParticipantID)
}

func TestStreamSwapForcesRefresh(t *testing.T) {
	f := newFixture(t, core.NopRenderer{})
	f.join(t, "a")
	f.video("a", "camera-1", false)
	f.mgr.Select("a")

	f.store.Reduce(core.TrackAdded{Track: domain.Track{
		ParticipantID: "a", MediaType: domain.MediaVideo, VideoType: domain.VideoDesktop, StreamID: "desktop-1",
	}})
	f.mgr.Update("a", false)

	sel, _ := f.mgr.Selection()
	require.Equal(t, "desktop-1", sel.StreamID)
	require.Equal(t, domain.VideoDesktop, sel.VideoType)
	require.Len(t, f.changes, 2)
}

func TestMutedVideoShowsAvatar(t *testing.T) {
	f := newFixture(t, core.NopRenderer{})
	f.join(t, "a")
	f.video("a", "s1", false)
	f.mgr.Select("a")

	f.video("a", "s1", true)
	f.mgr.Update("a", true)
	sel, _ := f.mgr.Selection()
	require.Equal(t, core.ContainerAvatar, sel.Container)
}

func TestStaleTransitionIsIgnored(t *testing.T) {
	r := &deferredRenderer{}
	f := newFixture(t, r)
	f.join(t, "a")
	f.join(t, "b")

	f.mgr.Select("a")
	f.mgr.Select("b")
	require.Len(t, r.pending, 2)

	r.resolve(1, nil)
	r.resolve(0, nil)

	disp, ok := f.mgr.Displayed()
	require.True(t, ok)
	require.Equal(t, domain.ParticipantID("b"), disp.ParticipantID)
	sel, _ := f.mgr.Selection()
	require.Equal(t, domain.ParticipantID("b"), sel.ParticipantID)
}

func TestFailedTransitionKeepsPrevious(t *testing.T) {
	r := &deferredRenderer{}
	f := newFixture(t, r)
	f.join(t, "a")
	f.join(t, "b")

	f.mgr.Select("a")
	r.resolve(0, nil)
	f.mgr.Select("b")
	r.resolve(1, errors.New("play() rejected"))

	sel, _ := f.mgr.Selection()
	require.Equal(t, domain.ParticipantID("a"), sel.ParticipantID)
	disp, _ := f.mgr.Displayed()
	require.Equal(t, domain.ParticipantID("a"), disp.ParticipantID)
}

func TestRemovedParticipantIsNeverReturned(t *testing.T) {
	r := &deferredRenderer{}
	f := newFixture(t, r)
	f.join(t, "a")

	f.mgr.Select("a")
	require.True(t, f.mgr.OnParticipantRemoved("a"))
	r.resolve(0, nil)

	_, ok := f.mgr.Selection()
	require.False(t, ok)
	_, ok = f.mgr.Displayed()
	require.False(t, ok)
	require.False(t, f.mgr.OnParticipantRemoved("a"))
}

func TestShowContainerFallsBackToPinned(t *testing.T) {
	f := newFixture(t, core.NopRenderer{})
	f.join(t, "a")
	f.join(t, "b")
	f.video("b", "sb", false)
	f.mgr.Select("a")

	require.NoError(t, f.mgr.ShowContainer(core.ContainerSharedVideo, true))
	sel, _ := f.mgr.Selection()
	require.Equal(t, core.ContainerSharedVideo, sel.Container)

	f.store.Reduce(core.PinParticipant{ID: "b"})
	require.NoError(t, f.mgr.ShowContainer(core.ContainerSharedVideo, false))
	sel, _ = f.mgr.Selection()
	require.Equal(t, domain.ParticipantID("b"), sel.ParticipantID)
	require.Equal(t, core.ContainerVideo, sel.Container)
	require.Equal(t, "sb", sel.StreamID)
}

func TestHideWithoutFallbackClearsSelection(t *testing.T) {
	f := newFixture(t, core.NopRenderer{})

	require.NoError(t, f.mgr.ShowContainer(core.ContainerSharedVideo, true))
	sel, ok := f.mgr.Selection()
	require.True(t, ok)
	require.Empty(t, sel.ParticipantID)

	require.NoError(t, f.mgr.ShowContainer(core.ContainerSharedVideo, false))
	_, ok = f.mgr.Selection()
	require.False(t, ok)
}

func TestShowContainerRequiresInit(t *testing.T) {
	m := NewManager(Options{})
	require.ErrorIs(t, m.ShowContainer(core.ContainerVideo, true), ErrNotInitialized)
}

func TestFlipSurvivesInitialize(t *testing.T) {
	f := newFixture(t, core.NopRenderer{})
	f.mgr.SetLocalFlipX(true)
	f.mgr.Initialize(context.Background(), core.Viewport{Width: 640, Height: 480})
	require.True(t, f.mgr.FlipX())
	require.Equal(t, 640, f.mgr.Viewport().Width)

	me, err := domain.NewParticipant("me", "me", true)
	require.NoError(t, err)
	f.store.Reduce(core.ConferenceJoined{Local: *me})
	f.mgr.Select("me")
	sel, _ := f.mgr.Selection()
	require.True(t, sel.FlipX)
}

func TestDestroyDropsSelection(t *testing.T) {
	f := newFixture(t, core.NopRenderer{})
	f.join(t, "a")
	f.mgr.Select("a")
	f.mgr.Destroy()

	_, ok := f.mgr.Selection()
	require.False(t, ok)
	f.mgr.Select("a")
	_, ok = f.mgr.Selection()
	require.False(t, ok)
}
