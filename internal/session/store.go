// Package session holds the active conversation: its backend-assigned id
// and the ordered message log.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/normanking/companion/internal/bus"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn. Immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store holds the active conversation. The conversation id is absent until
// the first successful dispatch returns one; once assigned it never changes
// for the lifetime of the store. Starting a new conversation means creating
// a fresh Store, never merging into an old one.
type Store struct {
	mu       sync.RWMutex
	id       string
	messages []Message
	eventBus *bus.EventBus
}

// NewStore creates an empty conversation store
func NewStore(eventBus *bus.EventBus) *Store {
	return &Store{
		messages: make([]Message, 0, 16),
		eventBus: eventBus,
	}
}

// AppendUser appends a user message and returns the stored copy
func (s *Store) AppendUser(content string) Message {
	return s.append(RoleUser, content)
}

// AppendAssistant appends an assistant message and returns the stored copy
func (s *Store) AppendAssistant(content string) Message {
	return s.append(RoleAssistant, content)
}

func (s *Store) append(role Role, content string) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	count := len(s.messages)
	s.mu.Unlock()

	if s.eventBus != nil {
		s.eventBus.Publish(bus.Event{
			Type: bus.EventTypeMessageAppended,
			Data: map[string]any{
				"id":      msg.ID,
				"role":    string(msg.Role),
				"content": msg.Content,
				"count":   count,
			},
		})
	}

	return msg
}

// AdoptID records the backend-assigned conversation id. First assignment
// wins: once set, later calls are ignored and the original id is kept.
func (s *Store) AdoptID(id string) {
	if id == "" {
		return
	}

	s.mu.Lock()
	if s.id != "" {
		s.mu.Unlock()
		return
	}
	s.id = id
	s.mu.Unlock()

	if s.eventBus != nil {
		s.eventBus.Publish(bus.Event{
			Type: bus.EventTypeSessionAssigned,
			Data: map[string]any{"conversation_id": id},
		})
	}
}

// ID returns the conversation id and whether it has been assigned yet
func (s *Store) ID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.id != ""
}

// Messages returns a copy of the ordered message log
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Message, len(s.messages))
	copy(result, s.messages)
	return result
}

// Len returns the number of messages in the log
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns the most recent message, if any
func (s *Store) Last() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}
