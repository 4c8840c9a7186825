package app

import "sync"

// EventKind is the closed set of real-time notifications the engine emits.
type EventKind string

const (
	EventQuizStarted      EventKind = "quiz_started"
	EventQuestionAdvanced EventKind = "question_advanced"
	EventQuizCompleted    EventKind = "quiz_completed"
	EventWalletUpdated    EventKind = "wallet_updated"
)

// Event is a push notification scoped to a single user. Session events are
// never broadcast to other participants.
type Event struct {
	Kind      EventKind `json:"type"`
	UserID    string    `json:"-"`
	SessionID string    `json:"sessionId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// Notifier delivers events to connected clients. Implementations must not
// block the caller.
type Notifier interface {
	Publish(Event)
}

// Bus fans events out to per-user subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel receiving events addressed to userID. The
// caller must invoke the returned cancel function to avoid leaks.
func (b *Bus) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, 8)

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan Event]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[userID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(b.subs, userID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of ev.UserID. Slow consumers lose
// their oldest pending event rather than blocking the engine.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
