package endpoints

import (
	"github.com/thenexusengine/tne_mediation/internal/adapter"
	"github.com/thenexusengine/tne_mediation/internal/events"
	"github.com/thenexusengine/tne_mediation/pkg/logger"
)

// EventRecorder receives lifecycle events
type EventRecorder interface {
	Record(e events.Event)
}

type nopRecorder struct{}

func (nopRecorder) Record(events.Event) {}

// recordingDelegate forwards partner events to the event recorder
type recordingDelegate struct {
	recorder EventRecorder
}

func (d *recordingDelegate) OnImpression(h *adapter.AdHandle) {
	d.recorder.Record(handleEvent(events.TypeImpression, h))
}

func (d *recordingDelegate) OnClick(h *adapter.AdHandle) {
	d.recorder.Record(handleEvent(events.TypeClick, h))
}

func (d *recordingDelegate) OnReward(h *adapter.AdHandle, amount int, label string) {
	e := handleEvent(events.TypeReward, h)
	e.RewardAmount = amount
	e.RewardLabel = label
	d.recorder.Record(e)
}

func (d *recordingDelegate) OnDismiss(h *adapter.AdHandle, err error) {
	e := handleEvent(events.TypeDismiss, h)
	if err != nil {
		e.Error = err.Error()
	}
	d.recorder.Record(e)
	logger.Placement(h.Placement()).Debug().Str("handle_id", h.ID).Msg("Ad dismissed")
}

// handleEvent builds an event describing h
func handleEvent(eventType string, h *adapter.AdHandle) events.Event {
	return events.Event{
		Type:             eventType,
		HandleID:         h.ID,
		LoadID:           h.Request.LoadID,
		Placement:        h.Placement(),
		PartnerPlacement: h.Request.PartnerPlacement,
		Format:           string(h.Format()),
	}
}

// requestEvent builds an event for a load that produced no handle
func requestEvent(eventType string, req adapter.LoadRequest) events.Event {
	return events.Event{
		Type:             eventType,
		LoadID:           req.LoadID,
		Placement:        req.MediationPlacement,
		PartnerPlacement: req.PartnerPlacement,
		Format:           string(req.Format),
	}
}
