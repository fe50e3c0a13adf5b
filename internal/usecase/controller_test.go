package usecase

import (
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"voicewidget/internal/domain"
	"voicewidget/internal/ports"
)

type controllerFixture struct {
	controller  *WidgetController
	clock       *fakeClock
	sink        *fakeEventSink
	capture     *fakeAudioCapture
	player      *fakePlayer
	transcriber *fakeTranscriber
	workflow    *fakeWorkflow
	fallback    *fakeFallback
}

func newControllerFixture(sessions ...ports.AudioSession) *controllerFixture {
	clock := newFakeClock()
	sink := &fakeEventSink{}
	log := zap.NewNop().Sugar()

	capture := &fakeAudioCapture{sessions: sessions}
	player := &fakePlayer{}
	transcriber := &fakeTranscriber{text: "gesprochene Nachricht"}
	workflow := &fakeWorkflow{reply: "Antwort vom Workflow"}
	fallback := &fakeFallback{reply: "Antwort vom Modell"}

	store := NewConversationStore(clock, sink)
	recorder := NewRecorderEngine(capture, player, clock, sink, log, ports.AudioConfig{})
	schedule := NewSchedulingSubflow(2026, time.FixedZone("CET", 3600), testSlots)
	pipeline := NewDispatchPipeline(transcriber, workflow, fallback, sink, clock, log, time.Second)
	controller := NewWidgetController(NewAccessGate(), store, recorder, schedule, pipeline, sink, log)

	return &controllerFixture{
		controller:  controller,
		clock:       clock,
		sink:        sink,
		capture:     capture,
		player:      player,
		transcriber: transcriber,
		workflow:    workflow,
		fallback:    fallback,
	}
}

func (f *controllerFixture) passGates(t *testing.T, topic domain.Topic) {
	t.Helper()
	info := domain.ContactInfo{Email: "kunde@example.com", ConsentData: true, ConsentContact: true}
	if err := f.controller.SubmitContact(info); err != nil {
		t.Fatalf("SubmitContact: %v", err)
	}
	if err := f.controller.SelectTopic(topic); err != nil {
		t.Fatalf("SelectTopic: %v", err)
	}
}

func TestControllerEverythingLockedBeforeGate(t *testing.T) {
	t.Parallel()

	f := newControllerFixture()
	if err := f.controller.SendText("Hallo"); !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("SendText: %v", err)
	}
	if err := f.controller.StartRecording(); !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := f.controller.SendRecording(); !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("SendRecording: %v", err)
	}
	if err := f.controller.ConfirmSchedule(); !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("ConfirmSchedule: %v", err)
	}
	if err := f.controller.SelectTopic(domain.TopicDemo); !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("SelectTopic: %v", err)
	}
}

func TestControllerTopicSeedsConversation(t *testing.T) {
	t.Parallel()

	f := newControllerFixture()
	f.passGates(t, domain.TopicService)

	msgs := f.controller.Messages()
	if len(msgs) != 1 {
		t.Fatalf("message count = %d, want 1", len(msgs))
	}
	if msgs[0].Role != domain.RoleAssistant || msgs[0].TopicLabel != "Service" {
		t.Fatalf("unexpected seed message: %+v", msgs[0])
	}
	if f.controller.ScheduleView().Armed {
		t.Fatal("scheduling armed for a non-demo topic")
	}
}

func TestControllerRejectsEmptyText(t *testing.T) {
	t.Parallel()

	f := newControllerFixture()
	f.passGates(t, domain.TopicService)
	if err := f.controller.SendText("   "); err == nil {
		t.Fatal("blank message was accepted")
	}
	if got := len(f.controller.Messages()); got != 1 {
		t.Fatalf("message count = %d, want only the seed", got)
	}
}

func TestControllerDemoScheduleFlow(t *testing.T) {
	t.Parallel()

	f := newControllerFixture()
	f.passGates(t, domain.TopicDemo)

	if !f.controller.ScheduleView().Armed {
		t.Fatal("scheduling not armed after demo topic")
	}

	f.controller.ScheduleChangeMonth(2) // March 2026
	if err := f.controller.ScheduleSelectDate(2); err != nil { // Monday, March 2nd
		t.Fatalf("ScheduleSelectDate: %v", err)
	}
	if err := f.controller.ScheduleSelectTime("14:00"); err != nil {
		t.Fatalf("ScheduleSelectTime: %v", err)
	}
	if err := f.controller.ConfirmSchedule(); err != nil {
		t.Fatalf("ConfirmSchedule: %v", err)
	}

	msgs := f.controller.Messages()
	if len(msgs) != 3 { // seed, scheduled payload, assistant reply
		t.Fatalf("message count = %d, want 3", len(msgs))
	}
	if !strings.HasPrefix(msgs[1].Text, "```json") || !strings.Contains(msgs[1].Text, "2026-03-02T14:00:00+01:00") {
		t.Fatalf("scheduled message = %q", msgs[1].Text)
	}

	env := f.workflow.lastEnvelope()
	if env.Topic != domain.TopicDemo || env.Email != "kunde@example.com" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Extra["startDateTime"] != "2026-03-02T14:00:00+01:00" {
		t.Fatalf("envelope extra = %+v", env.Extra)
	}

	// The subflow is gone for the rest of the session.
	if f.controller.ScheduleView().Armed {
		t.Fatal("scheduling still armed after confirmation")
	}
	if err := f.controller.ConfirmSchedule(); !errors.Is(err, domain.ErrNotArmed) {
		t.Fatalf("second ConfirmSchedule: %v", err)
	}
}

func TestControllerConfirmScheduleWhileBusyKeepsSelection(t *testing.T) {
	t.Parallel()

	f := newControllerFixture()
	f.passGates(t, domain.TopicDemo)
	if err := f.controller.ScheduleSelectDate(5); err != nil {
		t.Fatalf("ScheduleSelectDate: %v", err)
	}
	if err := f.controller.ScheduleSelectTime("09:00"); err != nil {
		t.Fatalf("ScheduleSelectTime: %v", err)
	}

	f.workflow.block = make(chan struct{})
	textDone := make(chan error, 1)
	go func() {
		textDone <- f.controller.SendText("Hallo")
	}()
	if !waitFor(time.Second, func() bool { return f.workflow.dispatchCalls() == 1 }) {
		t.Fatal("text submission never reached dispatch")
	}

	if err := f.controller.ConfirmSchedule(); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("ConfirmSchedule while busy: %v", err)
	}

	// The rejection must be side-effect-free: selection intact, subflow armed,
	// nothing appended.
	view := f.controller.ScheduleView()
	if !view.Armed || view.SelectedDate != "2026-01-05" || view.SelectedTime != "09:00" {
		t.Fatalf("busy rejection damaged the subflow: %+v", view)
	}

	close(f.workflow.block)
	if err := <-textDone; err != nil {
		t.Fatalf("text submission: %v", err)
	}

	if err := f.controller.ConfirmSchedule(); err != nil {
		t.Fatalf("ConfirmSchedule after pipeline freed: %v", err)
	}
	if f.controller.ScheduleView().Armed {
		t.Fatal("subflow still armed after successful confirmation")
	}
	if env := f.workflow.lastEnvelope(); env.Extra["startDateTime"] != "2026-01-05T09:00:00+01:00" {
		t.Fatalf("envelope extra = %+v", env.Extra)
	}
}

func TestControllerConfirmScheduleRequiresCompleteSelection(t *testing.T) {
	t.Parallel()

	f := newControllerFixture()
	f.passGates(t, domain.TopicDemo)

	if err := f.controller.ScheduleSelectDate(5); err != nil {
		t.Fatalf("ScheduleSelectDate: %v", err)
	}
	if err := f.controller.ConfirmSchedule(); !errors.Is(err, domain.ErrIncompleteSelection) {
		t.Fatalf("ConfirmSchedule without slot: %v", err)
	}
	if f.workflow.dispatchCalls() != 0 {
		t.Fatal("incomplete selection reached dispatch")
	}
	if !f.controller.ScheduleView().Armed {
		t.Fatal("failed confirmation tore the subflow down")
	}
}

func TestControllerRecordAndSendFlow(t *testing.T) {
	t.Parallel()

	session := &fakeAudioSession{chunks: [][]byte{[]byte("pcm data")}}
	f := newControllerFixture(session)
	f.passGates(t, domain.TopicService)

	if err := f.controller.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !waitFor(time.Second, func() bool { return f.clock.tickerCount() == 1 }) {
		t.Fatal("recorder ticker never started")
	}
	f.clock.Tick()
	f.clock.Tick()
	if !waitFor(time.Second, func() bool { return f.controller.RecorderStatus().ElapsedSeconds == 2 }) {
		t.Fatalf("elapsed = %d", f.controller.RecorderStatus().ElapsedSeconds)
	}

	if err := f.controller.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if status := f.controller.RecorderStatus(); status.State != domain.RecordingStateReview {
		t.Fatalf("state = %s, want review", status.State)
	}

	if err := f.controller.SendRecording(); err != nil {
		t.Fatalf("SendRecording: %v", err)
	}

	msgs := f.controller.Messages()
	if len(msgs) != 3 { // seed, transcript, reply
		t.Fatalf("message count = %d, want 3", len(msgs))
	}
	if !msgs[1].IsAudioTranscript || msgs[1].Text != "gesprochene Nachricht" {
		t.Fatalf("transcript message = %+v", msgs[1])
	}
	if env := f.workflow.lastEnvelope(); env.Message != "gesprochene Nachricht" {
		t.Fatalf("dispatched message = %q", env.Message)
	}

	// The recording session is torn down by the submission.
	if status := f.controller.RecorderStatus(); status.State != domain.RecordingStateIdle || status.HasArtifact {
		t.Fatalf("recorder not reset: %+v", status)
	}
	if err := f.controller.SendRecording(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second SendRecording: %v", err)
	}
}

func TestControllerSendTextFallsBackWhenWorkflowFails(t *testing.T) {
	t.Parallel()

	f := newControllerFixture()
	f.passGates(t, domain.TopicContact)
	f.workflow.err = errors.New("endpoint gone")

	if err := f.controller.SendText("Bitte um Rückruf"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	msgs := f.controller.Messages()
	if msgs[len(msgs)-1].Text != "Antwort vom Modell" {
		t.Fatalf("last message = %q", msgs[len(msgs)-1].Text)
	}
	if f.fallback.generateCalls() != 1 {
		t.Fatalf("fallback calls = %d, want 1", f.fallback.generateCalls())
	}
}

func TestControllerCloseReleasesRecorder(t *testing.T) {
	t.Parallel()

	session := &fakeAudioSession{}
	f := newControllerFixture(session)
	f.passGates(t, domain.TopicService)

	if err := f.controller.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := f.controller.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if session.stops() == 0 {
		t.Fatal("capture session not released on close")
	}
	if status := f.controller.RecorderStatus(); status.State != domain.RecordingStateIdle {
		t.Fatalf("state = %s, want idle", status.State)
	}
}
