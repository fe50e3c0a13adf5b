package usecase

import (
	"fmt"
	"sync"

	"voicewidget/internal/domain"
)

// AccessGate holds the two sequential, one-way gates in front of the chat:
// the contact-consent form, then topic selection. Neither gate can be
// re-locked within a session.
type AccessGate struct {
	mu       sync.Mutex
	contact  domain.ContactInfo
	unlocked bool
	topic    domain.Topic
	topicSet bool
}

func NewAccessGate() *AccessGate {
	return &AccessGate{}
}

// SubmitContact passes the first gate. Submission is all-or-nothing: a
// non-empty email and both consents are required. Re-submission after a
// successful unlock is a no-op.
func (g *AccessGate) SubmitContact(info domain.ContactInfo) error {
	if !info.Complete() {
		return fmt.Errorf("%w: email and both consents are required", domain.ErrLocked)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unlocked {
		return nil
	}
	g.contact = info
	g.unlocked = true
	return nil
}

// SelectTopic passes the second gate. Exactly one topic can be chosen per
// session; a second selection is rejected.
func (g *AccessGate) SelectTopic(topic domain.Topic) error {
	switch topic {
	case domain.TopicDemo, domain.TopicService, domain.TopicContact:
	default:
		return fmt.Errorf("unknown topic %q", topic)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.unlocked {
		return domain.ErrLocked
	}
	if g.topicSet {
		return fmt.Errorf("topic already selected")
	}
	g.topic = topic
	g.topicSet = true
	return nil
}

// Ready reports whether both gates have been passed.
func (g *AccessGate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked && g.topicSet
}

// Unlocked reports whether the contact form gate has been passed.
func (g *AccessGate) Unlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked
}

// Contact returns the submitted contact info.
func (g *AccessGate) Contact() domain.ContactInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.contact
}

// Topic returns the selected topic, if one has been chosen.
func (g *AccessGate) Topic() (domain.Topic, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.topic, g.topicSet
}

// TopicSeed returns the assistant message text and label seeded into the
// conversation when a topic is selected.
func TopicSeed(topic domain.Topic) (text string, label string) {
	switch topic {
	case domain.TopicDemo:
		return "Gerne zeige ich Ihnen BetriebsIntelligenz im Einsatz. " +
			"Wählen Sie unten einen Termin für Ihre persönliche Demo, oder stellen Sie mir direkt eine Frage.", "Demo"
	case domain.TopicService:
		return "Sie möchten mehr über unsere Leistungen erfahren? " +
			"Fragen Sie mich nach Modulen, Preisen oder dem Einführungsprozess.", "Service"
	case domain.TopicContact:
		return "Ich leite Ihre Nachricht an unser Team weiter. Was möchten Sie uns mitteilen?", "Kontakt"
	default:
		return "Hallo! Ich bin Ihr Prozess-Assistent. Wie kann ich helfen?", ""
	}
}
