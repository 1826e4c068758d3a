package mockprovider

import (
	"sync"
	"time"
)

const deliveredAfter = 5 * time.Second

// SentMessage is one message accepted by the simulator.
type SentMessage struct {
	ID       string
	Identity string
	Failed   bool
	SentAt   time.Time
}

// Store keeps accepted messages in memory so status lookups can simulate
// delivery progression by elapsed time.
type Store struct {
	mu       sync.RWMutex
	messages map[string]SentMessage
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{messages: map[string]SentMessage{}, now: time.Now}
}

func (s *Store) Put(msg SentMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = msg
}

// Status returns the simulated delivery status for a message id. Messages
// progress sent -> delivered after a fixed delay unless they failed at send.
func (s *Store) Status(id string) (string, bool) {
	s.mu.RLock()
	msg, ok := s.messages[id]
	s.mu.RUnlock()

	if !ok {
		return "", false
	}

	if msg.Failed {
		return "failed", true
	}

	if s.now().Sub(msg.SentAt) >= deliveredAfter {
		return "delivered", true
	}

	return "sent", true
}
