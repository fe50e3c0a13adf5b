package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"voicewidget/internal/domain"
	"voicewidget/internal/ports"
)

// User-facing fallback strings, matching the widget's published copy.
const (
	msgNoSpeech            = "(Keine Sprache erkannt)"
	msgTranscriptionFailed = "Die Aufnahme konnte leider nicht verarbeitet werden. Bitte versuchen Sie es erneut."
	msgConnectionError     = "Verbindungsfehler zum AI Gehirn."
)

// Submission is one pending user input: typed text, a finalized recording, or
// a structured schedule payload serialized to text.
type Submission struct {
	Text     string
	Artifact *domain.Artifact
	Extra    map[string]any

	// OnAccepted runs once the pipeline has claimed the stage, before any
	// other side effect. A busy rejection never invokes it, so submission
	// sources can defer their own teardown until the input will actually run.
	OnAccepted func()

	// OnTranscribed runs after a transcript message has been appended and
	// before dispatch begins. The controller uses it to tear down the
	// recording session.
	OnTranscribed func()
}

// DispatchPipeline routes accepted submissions through transcription, the
// primary workflow endpoint, and the model fallback. At most one submission
// is in flight at a time; a second attempt is rejected at the boundary, not
// buffered.
type DispatchPipeline struct {
	transcriber ports.Transcriber
	workflow    ports.WorkflowBackend
	fallback    ports.FallbackModel
	events      ports.EventSink
	clock       ports.Clock
	log         *zap.SugaredLogger
	timeout     time.Duration

	stage stageGuard
}

func NewDispatchPipeline(
	transcriber ports.Transcriber,
	workflow ports.WorkflowBackend,
	fallback ports.FallbackModel,
	events ports.EventSink,
	clock ports.Clock,
	log *zap.SugaredLogger,
	timeout time.Duration,
) *DispatchPipeline {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DispatchPipeline{
		transcriber: transcriber,
		workflow:    workflow,
		fallback:    fallback,
		events:      events,
		clock:       clock,
		log:         log,
		timeout:     timeout,
		stage:       stageGuard{stage: domain.StageIdle},
	}
}

// Stage returns the current processing stage.
func (p *DispatchPipeline) Stage() domain.ProcessingStage {
	return p.stage.Get()
}

// Submit runs the whole submit-transcribe-dispatch-fallback sequence for one
// input and returns once the stage is back to idle. It returns ErrBusy,
// without side effects, while another submission is in flight.
func (p *DispatchPipeline) Submit(ctx context.Context, store *ConversationStore, contact domain.ContactInfo, topic domain.Topic, sub Submission) error {
	first := domain.StageThinking
	if sub.Artifact != nil {
		first = domain.StageTranscribing
	}
	if !p.stage.Begin(first) {
		return domain.ErrBusy
	}
	if sub.OnAccepted != nil {
		sub.OnAccepted()
	}
	p.events.StageChanged(first)
	defer func() {
		p.stage.Reset()
		p.events.StageChanged(domain.StageIdle)
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text := sub.Text
	if sub.Artifact != nil {
		transcript, err := p.transcriber.Transcribe(ctx, *sub.Artifact)
		if err != nil {
			p.log.Warnw("transcription failed", "error", err)
			p.events.WidgetError(domain.ErrorCodeTranscription, err.Error())
			store.AppendAssistant(msgTranscriptionFailed)
			return fmt.Errorf("%w: %v", domain.ErrTranscription, err)
		}
		if strings.TrimSpace(transcript) == "" {
			transcript = msgNoSpeech
		}
		text = transcript
		store.AppendUserTranscript(text)
		if sub.OnTranscribed != nil {
			sub.OnTranscribed()
		}
		p.stage.Set(domain.StageThinking)
		p.events.StageChanged(domain.StageThinking)
	} else {
		// JSON-shaped inputs are fenced for display only; the dispatched
		// payload stays unwrapped.
		display := text
		if strings.HasPrefix(strings.TrimSpace(text), "{") {
			display = "```json\n" + text + "\n```"
		}
		store.AppendUser(display)
	}

	env := ports.Envelope{
		Message:   text,
		Email:     contact.Email,
		Topic:     topic,
		Timestamp: p.clock.Now(),
		Extra:     sub.Extra,
	}

	reply, err := p.workflow.Dispatch(ctx, env)
	if err != nil {
		p.log.Warnw("workflow dispatch failed, falling back", "error", err)
		reply, err = p.fallback.Generate(ctx, topic, text)
		if err != nil {
			p.log.Errorw("fallback model failed", "error", err)
			p.events.WidgetError(domain.ErrorCodeFallback, err.Error())
			store.AppendAssistant(msgConnectionError)
			return fmt.Errorf("%w: %v", domain.ErrFallback, err)
		}
	}

	store.AppendAssistant(reply)
	return nil
}

// stageGuard is the mutual-exclusion boundary over the processing stage.
type stageGuard struct {
	mu    sync.Mutex
	stage domain.ProcessingStage
}

func (g *stageGuard) Begin(stage domain.ProcessingStage) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stage != domain.StageIdle {
		return false
	}
	g.stage = stage
	return true
}

func (g *stageGuard) Set(stage domain.ProcessingStage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stage = stage
}

func (g *stageGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stage = domain.StageIdle
}

func (g *stageGuard) Get() domain.ProcessingStage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stage
}
