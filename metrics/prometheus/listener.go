package prometheus

import (
	"github.com/pixelhunt/pixelhunt/events"
)

// Status constants for metric labels.
const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusError    = "error"

	resultHit  = "hit"
	resultMiss = "miss"
)

// GameplayListener records gameplay events as Prometheus metrics. Register it
// with an event bus using SubscribeAll.
type GameplayListener struct{}

// NewGameplayListener creates a new GameplayListener.
func NewGameplayListener() *GameplayListener {
	return &GameplayListener{}
}

// Handle processes an event and records relevant metrics.
func (l *GameplayListener) Handle(event *events.Event) {
	switch event.Type {
	case events.TypeGameStarted:
		RecordSessionStart()
	case events.TypeGameEnded:
		if payload, ok := event.Payload.(events.GameEndedPayload); ok {
			RecordSessionEnd(payload.Outcome)
		}
	case events.TypeDifferenceFound:
		RecordClick(resultHit)
	case events.TypeDifferenceError:
		RecordClick(resultMiss)
	case events.TypeHintRevealed:
		RecordHint()
	default:
		// Timer ticks and the remaining event types carry no metrics.
	}
}

// Listener returns an events.Listener that can be registered with a bus.
func (l *GameplayListener) Listener() events.Listener {
	return l.Handle
}
