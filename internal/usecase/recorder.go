package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"voicewidget/internal/domain"
	"voicewidget/internal/ports"
)

const artifactMIMEType = "audio/wav"

// RecorderEngine drives the microphone capture state machine
// (idle → recording → paused/recording → review → idle). The microphone is
// an exclusive resource; every exit path releases it.
type RecorderEngine struct {
	capture ports.AudioCapture
	player  ports.PreviewPlayer
	clock   ports.Clock
	events  ports.EventSink
	log     *zap.SugaredLogger
	cfg     ports.AudioConfig

	mu        sync.Mutex
	starting  bool
	state     domain.RecordingState
	elapsed   int
	session   ports.AudioSession
	buf       *captureBuffer
	drainDone chan struct{}
	tickStop  chan struct{}
	artifact  *domain.Artifact
	playing   bool
	playGen   int
}

func NewRecorderEngine(
	capture ports.AudioCapture,
	player ports.PreviewPlayer,
	clock ports.Clock,
	events ports.EventSink,
	log *zap.SugaredLogger,
	cfg ports.AudioConfig,
) *RecorderEngine {
	return &RecorderEngine{
		capture: capture,
		player:  player,
		clock:   clock,
		events:  events,
		log:     log,
		cfg:     cfg,
		state:   domain.RecordingStateIdle,
	}
}

// Start requests microphone access and begins recording. The elapsed counter
// resets to zero and a one-second tick increments it while recording.
func (r *RecorderEngine) Start(ctx context.Context) error {
	// The microphone is acquired outside the lock, so the starting flag claims
	// it first; a second Start cannot open a competing capture session.
	r.mu.Lock()
	if r.state != domain.RecordingStateIdle || r.starting {
		r.mu.Unlock()
		return fmt.Errorf("%w: start from %s", domain.ErrInvalidTransition, r.state)
	}
	r.starting = true
	r.mu.Unlock()

	session, err := r.capture.Start(ctx, r.cfg)
	if err != nil {
		r.mu.Lock()
		r.starting = false
		r.mu.Unlock()
		r.log.Warnw("microphone capture failed", "error", err)
		r.events.WidgetError(domain.ErrorCodePermission, "Bitte erlauben Sie den Zugriff auf das Mikrofon.")
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}

	r.mu.Lock()
	r.starting = false
	if r.state != domain.RecordingStateIdle {
		r.mu.Unlock()
		_ = session.Stop()
		return fmt.Errorf("%w: start from %s", domain.ErrInvalidTransition, r.state)
	}
	r.state = domain.RecordingStateRecording
	r.elapsed = 0
	r.artifact = nil
	r.session = session
	r.buf = &captureBuffer{}
	r.drainDone = make(chan struct{})
	r.tickStop = make(chan struct{})
	go drainCapture(session, r.buf, r.events, r.drainDone)
	go r.runTicker(r.tickStop)
	status := r.statusLocked()
	r.mu.Unlock()

	r.events.RecorderChanged(status)
	return nil
}

// Pause freezes the elapsed counter and stops buffering audio. Valid only
// while recording.
func (r *RecorderEngine) Pause() error {
	r.mu.Lock()
	if r.state != domain.RecordingStateRecording {
		r.mu.Unlock()
		return fmt.Errorf("%w: pause from %s", domain.ErrInvalidTransition, r.state)
	}
	r.state = domain.RecordingStatePaused
	r.buf.SetPaused(true)
	r.stopTickerLocked()
	status := r.statusLocked()
	r.mu.Unlock()

	r.events.RecorderChanged(status)
	return nil
}

// Resume restarts the tick without resetting the counter. Valid only from paused.
func (r *RecorderEngine) Resume() error {
	r.mu.Lock()
	if r.state != domain.RecordingStatePaused {
		r.mu.Unlock()
		return fmt.Errorf("%w: resume from %s", domain.ErrInvalidTransition, r.state)
	}
	r.state = domain.RecordingStateRecording
	r.buf.SetPaused(false)
	r.tickStop = make(chan struct{})
	go r.runTicker(r.tickStop)
	status := r.statusLocked()
	r.mu.Unlock()

	r.events.RecorderChanged(status)
	return nil
}

// Stop finalizes the captured audio into a playable artifact, releases the
// microphone, and transitions to review.
func (r *RecorderEngine) Stop() error {
	r.mu.Lock()
	if r.state != domain.RecordingStateRecording && r.state != domain.RecordingStatePaused {
		r.mu.Unlock()
		return fmt.Errorf("%w: stop from %s", domain.ErrInvalidTransition, r.state)
	}
	r.stopTickerLocked()

	// The drain goroutine never touches the engine lock, so holding it across
	// the capture shutdown keeps Discard from racing the finalization.
	stopErr := r.session.Stop()
	<-r.drainDone

	r.artifact = &domain.Artifact{Data: r.buf.Bytes(), MIMEType: artifactMIMEType}
	r.session = nil
	r.buf = nil
	r.state = domain.RecordingStateReview
	status := r.statusLocked()
	r.mu.Unlock()

	if stopErr != nil {
		r.events.WidgetError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	r.events.RecorderChanged(status)
	return nil
}

// Discard releases any artifact and capture session and returns to idle.
// Valid from every state.
func (r *RecorderEngine) Discard() error {
	r.mu.Lock()
	r.stopTickerLocked()
	session := r.session
	drainDone := r.drainDone
	wasPlaying := r.playing
	r.session = nil
	r.buf = nil
	r.artifact = nil
	r.elapsed = 0
	r.playing = false
	r.playGen++
	r.state = domain.RecordingStateIdle
	status := r.statusLocked()
	r.mu.Unlock()

	if session != nil {
		if err := session.Stop(); err != nil {
			r.events.WidgetError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
		}
		<-drainDone
	}
	if wasPlaying {
		_ = r.player.Stop()
	}

	r.events.RecorderChanged(status)
	return nil
}

// TogglePreviewPlayback plays or pauses the finalized artifact. Valid only in
// review; does not change the recorder state.
func (r *RecorderEngine) TogglePreviewPlayback(ctx context.Context) error {
	r.mu.Lock()
	if r.state != domain.RecordingStateReview || r.artifact == nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: preview outside review", domain.ErrInvalidTransition)
	}

	if r.playing {
		r.playing = false
		r.playGen++
		status := r.statusLocked()
		r.mu.Unlock()
		if err := r.player.Stop(); err != nil {
			r.events.WidgetError(domain.ErrorCodePlayback, err.Error())
		}
		r.events.RecorderChanged(status)
		return nil
	}

	artifact := *r.artifact
	r.playing = true
	r.playGen++
	gen := r.playGen
	status := r.statusLocked()
	r.mu.Unlock()

	err := r.player.Play(ctx, artifact, func() {
		r.mu.Lock()
		if r.playGen != gen || !r.playing {
			r.mu.Unlock()
			return
		}
		r.playing = false
		done := r.statusLocked()
		r.mu.Unlock()
		r.events.RecorderChanged(done)
	})
	if err != nil {
		r.mu.Lock()
		r.playing = false
		status = r.statusLocked()
		r.mu.Unlock()
		r.events.WidgetError(domain.ErrorCodePlayback, err.Error())
		r.events.RecorderChanged(status)
		return err
	}

	r.events.RecorderChanged(status)
	return nil
}

// TakeArtifact returns the finalized artifact for submission. Valid only in review.
func (r *RecorderEngine) TakeArtifact() (domain.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != domain.RecordingStateReview || r.artifact == nil {
		return domain.Artifact{}, fmt.Errorf("%w: no artifact to submit", domain.ErrInvalidTransition)
	}
	return *r.artifact, nil
}

// Status returns the current recorder snapshot.
func (r *RecorderEngine) Status() domain.RecorderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

// Close releases the microphone and any artifact, even mid-recording.
func (r *RecorderEngine) Close() error {
	return r.Discard()
}

func (r *RecorderEngine) statusLocked() domain.RecorderStatus {
	return domain.RecorderStatus{
		State:          r.state,
		ElapsedSeconds: r.elapsed,
		HasArtifact:    r.artifact != nil,
		PreviewPlaying: r.playing,
	}
}

func (r *RecorderEngine) stopTickerLocked() {
	if r.tickStop != nil {
		close(r.tickStop)
		r.tickStop = nil
	}
}

func (r *RecorderEngine) runTicker(stop <-chan struct{}) {
	ticker := r.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			r.mu.Lock()
			if r.state != domain.RecordingStateRecording {
				r.mu.Unlock()
				continue
			}
			r.elapsed++
			status := r.statusLocked()
			r.mu.Unlock()
			r.events.RecorderChanged(status)
		}
	}
}

// captureBuffer accumulates audio chunks while not paused.
type captureBuffer struct {
	mu     sync.Mutex
	data   []byte
	paused bool
}

func (b *captureBuffer) SetPaused(paused bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = paused
}

func (b *captureBuffer) Append(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paused {
		return
	}
	b.data = append(b.data, chunk...)
}

func (b *captureBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

func drainCapture(session ports.AudioSession, buf *captureBuffer, events ports.EventSink, done chan struct{}) {
	defer close(done)

	chunk := make([]byte, 4096)
	for {
		n, err := session.Read(chunk)
		if n > 0 {
			buf.Append(chunk[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				events.WidgetError(domain.ErrorCodeAudioStop, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}
