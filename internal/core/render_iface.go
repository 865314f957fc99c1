package core

import (
	"context"

	"github.com/salza80/jitsi-meet/internal/domain"
)

type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Renderer consumes thumbnail and layout updates. Calls are synchronous
// with event processing and must not block.
type Renderer interface {
	ThumbnailUpdated(t ThumbnailDTO)
	ThumbnailRemoved(id domain.ParticipantID)
	LayoutUpdated(l LayoutDTO)
	Remeasure(v Viewport)
}

// LargeVideoRenderer switches the large display. done may be called from
// any goroutine, at any later point, or never.
type LargeVideoRenderer interface {
	ShowContainer(ctx context.Context, sel Selection, done func(error))
}

type NopRenderer struct{}

func (NopRenderer) ThumbnailUpdated(ThumbnailDTO)         {}
func (NopRenderer) ThumbnailRemoved(domain.ParticipantID) {}
func (NopRenderer) LayoutUpdated(LayoutDTO)               {}
func (NopRenderer) Remeasure(Viewport)                    {}

func (NopRenderer) ShowContainer(_ context.Context, _ Selection, done func(error)) {
	done(nil)
}
