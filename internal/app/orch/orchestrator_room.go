package orch

import (
	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

func (o *Orchestrator) onConferenceJoined() {
	s := o.ensureState()
	local, ok := o.opts.Store.LocalParticipant()
	if !ok {
		o.logger.Warn().Msg("conference joined without local participant")
		return
	}
	s.Thumbs.MarkLocalJoined(local)
	s.Thumbs.SetLocalVisible(o.opts.Policy.LocalVisible(local))
	for _, p := range o.opts.Store.Participants() {
		o.reconcile(p.ID)
	}
	o.logger.Info().Str("local", string(local.ID)).Msg("conference joined")
}

func (o *Orchestrator) onConferenceWillLeave() {
	o.teardown()
	o.logger.Info().Msg("conference will leave")
}

func (o *Orchestrator) onParticipantJoined(e core.ParticipantJoined) {
	s := o.ensureState()
	o.reconcile(e.Participant.ID)
	// A rejoin keeps its thumbnail; pick up the new name and role.
	s.Thumbs.OnDisplayNameChanged(e.Participant.ID)
	o.remeasure()
}

func (o *Orchestrator) onParticipantLeft(e core.ParticipantLeft) {
	s := o.ensureState()
	s.Thumbs.Remove(e.ID)
	s.Thumbs.Forget(e.ID)
	if sel, ok := s.Large.Selection(); ok && sel.ParticipantID == e.ID && sel.Container == core.ContainerSharedVideo {
		// Shared media ended: hand the display back to the pinned participant.
		if err := s.Large.ShowContainer(core.ContainerSharedVideo, false); err != nil {
			o.logger.Debug().Err(err).Msg("hide shared video")
		}
	}
	s.Large.OnParticipantRemoved(e.ID)
	o.remeasure()
}

func (o *Orchestrator) onParticipantUpdated(e core.ParticipantUpdated) {
	s := o.ensureState()
	o.reconcile(e.ID)
	if e.Name != nil || e.Role != nil {
		s.Thumbs.OnDisplayNameChanged(e.ID)
	}
	if e.ConnectionStatus != nil {
		if p, ok := o.opts.Store.Participant(e.ID); ok && !p.Local {
			// Full refresh to move between avatar and video.
			s.Large.Update(e.ID, true)
			s.Thumbs.OnConnectionStatusChanged(e.ID)
		}
	}
	o.remeasure()
}

func (o *Orchestrator) onPinParticipant(e core.PinParticipant) {
	s := o.ensureState()
	// The store may have rejected the pin; follow what it holds.
	pinned := o.opts.Store.PinnedID()
	if pinned != e.ID {
		o.logger.Debug().Str("requested", string(e.ID)).Str("pinned", string(pinned)).Msg("pin not applied")
	}
	s.Thumbs.OnPinChange(pinned)
	if o.displayable(pinned) {
		s.Large.OnPinChange(pinned)
	}
}

func (o *Orchestrator) onLastNChanged() {
	s := o.ensureState()
	if cur, ok := s.Large.Selection(); ok {
		s.Large.Update(cur.ParticipantID, false)
	}
}

// reconcile makes thumbnail existence for id match the eligibility policy.
func (o *Orchestrator) reconcile(id domain.ParticipantID) {
	s := o.state
	p, ok := o.opts.Store.Participant(id)
	switch {
	case !ok:
		if s.Thumbs.Has(id) {
			o.removeContainer(id)
		}
	case p.Local:
		s.Thumbs.SetLocalVisible(o.opts.Policy.LocalVisible(p))
	case o.opts.Policy.Eligible(p):
		s.Thumbs.AddRemote(p)
	case s.Thumbs.Has(id):
		o.removeContainer(id)
	}
}

func (o *Orchestrator) removeContainer(id domain.ParticipantID) {
	o.state.Thumbs.Remove(id)
	o.state.Large.OnParticipantRemoved(id)
}
