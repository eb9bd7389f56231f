package ordering

import (
	"time"

	"voice-ordering-service/internal/models"
	"voice-ordering-service/internal/service/intent"
	"voice-ordering-service/internal/service/stt"
	"voice-ordering-service/internal/service/transcription"
)

func (m *Machine) publishPartial(ev transcription.Event) {
	if m.deps.Publisher == nil {
		return
	}
	m.deps.Publisher.PublishPartial(m.ctx, m.cfg.SessionID, models.TranscriptPartial{
		EventType:   models.EventTranscriptPartial,
		SessionID:   m.cfg.SessionID,
		UtteranceID: ev.UtteranceID,
		Timestamp:   time.Now().UnixMilli(),
		Text:        ev.Text,
	})
}

func (m *Machine) publishFinal(ev transcription.Event, queued bool) {
	if m.deps.Publisher == nil {
		return
	}
	m.deps.Publisher.PublishFinal(m.ctx, m.cfg.SessionID, models.TranscriptFinal{
		EventType:   models.EventTranscriptFinal,
		SessionID:   m.cfg.SessionID,
		UtteranceID: ev.UtteranceID,
		Timestamp:   time.Now().UnixMilli(),
		Text:        ev.Text,
		Confidence:  ev.Confidence,
		Queued:      queued,
	})
}

func (m *Machine) publishCartUnits(in intent.Intent) {
	if m.deps.Publisher == nil {
		return
	}
	m.deps.Publisher.PublishCartUnits(m.ctx, m.cfg.SessionID, models.CartUnitsAdded{
		EventType:   models.EventCartUnitsAdded,
		SessionID:   m.cfg.SessionID,
		UtteranceID: m.s.UtteranceID,
		Timestamp:   time.Now().UnixMilli(),
		ItemID:      in.Item.ID,
		ItemName:    in.Item.Name,
		Quantity:    in.Quantity,
		UnitPrice:   in.Item.Price,
	})
}

// publishOutcome reports how the current utterance ended. from overrides
// the session the outcome describes, for outcomes published after the
// session was already reset.
func (m *Machine) publishOutcome(outcome string, se *stt.Error, from *Session) {
	if m.deps.Publisher == nil {
		return
	}
	s := m.s
	if from != nil {
		s = *from
	}

	ev := models.SessionOutcome{
		EventType:   models.EventSessionOutcome,
		SessionID:   m.cfg.SessionID,
		UtteranceID: s.UtteranceID,
		Timestamp:   time.Now().UnixMilli(),
		Outcome:     outcome,
		Transcript:  s.Transcript,
		Confidence:  s.Confidence,
		Items:       make([]models.OutcomeItem, 0, len(s.Intents)),
	}
	if se != nil {
		ev.ErrorKind = se.Kind.String()
		ev.ErrorPhase = string(se.Phase)
	}
	for _, in := range s.Intents {
		ev.Items = append(ev.Items, models.OutcomeItem{ItemID: in.Item.ID, Quantity: in.Quantity})
	}
	m.deps.Publisher.PublishOutcome(m.ctx, m.cfg.SessionID, ev)
}
