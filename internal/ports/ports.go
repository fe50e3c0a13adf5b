package ports

import (
	"context"
	"io"
	"time"

	"voicewidget/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions. The microphone is an
// exclusive resource; at most one session may be live at a time.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// PreviewPlayer plays back a finalized artifact during review.
type PreviewPlayer interface {
	Play(ctx context.Context, artifact domain.Artifact, done func()) error
	Stop() error
}

// Ticker delivers recorder clock ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock abstracts wall time so tests can drive the recording counter
// deterministically instead of sleeping.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Transcriber converts a finalized audio artifact into verbatim text.
type Transcriber interface {
	Transcribe(ctx context.Context, artifact domain.Artifact) (string, error)
}

// Envelope is the request body sent to the primary workflow endpoint.
type Envelope struct {
	Message   string
	Email     string
	Topic     domain.Topic
	Timestamp time.Time
	Extra     map[string]any
}

// WorkflowBackend posts a submission envelope to the primary endpoint and
// returns the extracted assistant reply text.
type WorkflowBackend interface {
	Dispatch(ctx context.Context, env Envelope) (string, error)
}

// FallbackModel generates a reply directly from an AI model when the
// workflow backend is unavailable.
type FallbackModel interface {
	Generate(ctx context.Context, topic domain.Topic, message string) (string, error)
}

// EventSink pushes widget state to the rendering layer. The core never reads
// anything back through it.
type EventSink interface {
	MessageAppended(msg domain.Message)
	RecorderChanged(status domain.RecorderStatus)
	StageChanged(stage domain.ProcessingStage)
	ScheduleChanged(view domain.ScheduleView)
	WidgetError(code domain.ErrorCode, detail string)
}
