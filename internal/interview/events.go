package interview

import (
	"sync"
	"time"

	"github.com/ashureev/skillcheck/internal/domain"
)

// Event describes a committed session state change.
type Event struct {
	SessionID         string       `json:"session_id"`
	State             domain.State `json:"state"`
	Answered          int          `json:"answered"`
	PendingQuestionID string       `json:"pending_question_id,omitempty"`
	TerminationReason string       `json:"termination_reason,omitempty"`
	Timestamp         time.Time    `json:"timestamp"`
}

// Broadcaster fans committed session events out to subscribers. Slow
// subscribers drop events rather than block the engine.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers for events of one session. The returned cancel
// function removes the subscription and closes the channel.
func (b *Broadcaster) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	if _, ok := b.subs[sessionID]; !ok {
		b.subs[sessionID] = make(map[chan Event]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if set, ok := b.subs[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(b.subs, sessionID)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers event to all subscribers of its session.
func (b *Broadcaster) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[event.SessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}
