package usecase

import (
	"sync"

	"github.com/google/uuid"

	"voicewidget/internal/domain"
	"voicewidget/internal/ports"
)

// ConversationStore is the ordered, append-only log of conversation messages.
// Entries are immutable once appended; the store notifies the event sink so
// the rendering layer can display them.
type ConversationStore struct {
	clock  ports.Clock
	events ports.EventSink

	mu       sync.Mutex
	messages []domain.Message
}

func NewConversationStore(clock ports.Clock, events ports.EventSink) *ConversationStore {
	return &ConversationStore{clock: clock, events: events}
}

// AppendUser appends a typed or scheduled user message.
func (s *ConversationStore) AppendUser(text string) domain.Message {
	return s.append(domain.Message{Role: domain.RoleUser, Text: text})
}

// AppendUserTranscript appends a user message produced by transcription.
func (s *ConversationStore) AppendUserTranscript(text string) domain.Message {
	return s.append(domain.Message{Role: domain.RoleUser, Text: text, IsAudioTranscript: true})
}

// AppendAssistant appends an assistant reply.
func (s *ConversationStore) AppendAssistant(text string) domain.Message {
	return s.append(domain.Message{Role: domain.RoleAssistant, Text: text})
}

// AppendAssistantSeed appends the topic-selection seed message. Only this
// first assistant message carries a topic label.
func (s *ConversationStore) AppendAssistantSeed(text string, topicLabel string) domain.Message {
	return s.append(domain.Message{Role: domain.RoleAssistant, Text: text, TopicLabel: topicLabel})
}

func (s *ConversationStore) append(msg domain.Message) domain.Message {
	msg.ID = uuid.NewString()
	msg.CreatedAt = s.clock.Now()

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.events.MessageAppended(msg)
	return msg
}

// Messages returns a copy of the log in append order.
func (s *ConversationStore) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of appended messages.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
