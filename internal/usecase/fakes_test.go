package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"voicewidget/internal/domain"
	"voicewidget/internal/ports"
)

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(_ time.Duration) ports.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	ticker := &fakeTicker{ch: make(chan time.Time, 16)}
	c.tickers = append(c.tickers, ticker)
	return ticker
}

// Tick advances the clock one second and delivers it to the latest ticker.
func (c *fakeClock) Tick() {
	c.mu.Lock()
	c.now = c.now.Add(time.Second)
	var latest *fakeTicker
	if len(c.tickers) > 0 {
		latest = c.tickers[len(c.tickers)-1]
	}
	now := c.now
	c.mu.Unlock()

	if latest != nil {
		latest.ch <- now
	}
}

func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

type fakeEventSink struct {
	mu sync.Mutex

	messages  []domain.Message
	recorders []domain.RecorderStatus
	stages    []domain.ProcessingStage
	schedules []domain.ScheduleView
	errors    []sinkError
}

type sinkError struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) MessageAppended(msg domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

func (f *fakeEventSink) RecorderChanged(status domain.RecorderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorders = append(f.recorders, status)
}

func (f *fakeEventSink) StageChanged(stage domain.ProcessingStage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages = append(f.stages, stage)
}

func (f *fakeEventSink) ScheduleChanged(view domain.ScheduleView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules = append(f.schedules, view)
}

func (f *fakeEventSink) WidgetError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, sinkError{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStages() []domain.ProcessingStage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ProcessingStage, len(f.stages))
	copy(out, f.stages)
	return out
}

func (f *fakeEventSink) snapshotErrors() []sinkError {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sinkError, len(f.errors))
	copy(out, f.errors)
	return out
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []ports.AudioSession
	err      error
	calls    int
	block    chan struct{}
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	var session ports.AudioSession
	if err == nil && f.calls <= len(f.sessions) {
		session = f.sessions[f.calls-1]
	}
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.New("no audio session configured")
	}
	return session, nil
}

func (f *fakeAudioCapture) startCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.index])
	f.index++
	return n, nil
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakeAudioSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakePlayer struct {
	mu        sync.Mutex
	playCalls int
	stopCalls int
	playErr   error
	done      func()
}

func (f *fakePlayer) Play(_ context.Context, _ domain.Artifact, done func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.playCalls++
	f.done = done
	return nil
}

func (f *fakePlayer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakePlayer) finish() {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	if done != nil {
		done()
	}
}

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ domain.Artifact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeWorkflow struct {
	mu        sync.Mutex
	reply     string
	err       error
	calls     int
	envelopes []ports.Envelope
	block     chan struct{}
}

func (f *fakeWorkflow) Dispatch(_ context.Context, env ports.Envelope) (string, error) {
	f.mu.Lock()
	f.calls++
	f.envelopes = append(f.envelopes, env)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeWorkflow) dispatchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeWorkflow) lastEnvelope() ports.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.envelopes) == 0 {
		return ports.Envelope{}
	}
	return f.envelopes[len(f.envelopes)-1]
}

type fakeFallback struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int
	topics []domain.Topic
	inputs []string
}

func (f *fakeFallback) Generate(_ context.Context, topic domain.Topic, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.topics = append(f.topics, topic)
	f.inputs = append(f.inputs, message)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeFallback) generateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
