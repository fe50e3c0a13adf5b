package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"voicewidget/internal/domain"
	"voicewidget/internal/ports"
)

// WidgetController owns one widget session end to end: the access gate, the
// conversation log, the recorder, the scheduling subflow, and the dispatch
// pipeline. All state transitions go through its methods, so impossible
// combinations (scheduling armed without the demo topic, chat reachable
// before the gate) cannot arise.
type WidgetController struct {
	gate     *AccessGate
	store    *ConversationStore
	recorder *RecorderEngine
	schedule *SchedulingSubflow
	pipeline *DispatchPipeline
	events   ports.EventSink
	log      *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewWidgetController(
	gate *AccessGate,
	store *ConversationStore,
	recorder *RecorderEngine,
	schedule *SchedulingSubflow,
	pipeline *DispatchPipeline,
	events ports.EventSink,
	log *zap.SugaredLogger,
) *WidgetController {
	ctx, cancel := context.WithCancel(context.Background())
	return &WidgetController{
		gate:     gate,
		store:    store,
		recorder: recorder,
		schedule: schedule,
		pipeline: pipeline,
		events:   events,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SubmitContact passes the first gate. All three fields are required; a
// repeat submission after unlocking is a no-op.
func (c *WidgetController) SubmitContact(info domain.ContactInfo) error {
	if err := c.gate.SubmitContact(info); err != nil {
		c.events.WidgetError(domain.ErrorCodeGate, err.Error())
		return err
	}
	c.log.Infow("contact gate passed", "email", info.Email)
	return nil
}

// SelectTopic passes the second gate, seeds the conversation with the topic's
// assistant message, and arms the scheduling subflow for the demo topic.
func (c *WidgetController) SelectTopic(topic domain.Topic) error {
	if err := c.gate.SelectTopic(topic); err != nil {
		c.events.WidgetError(domain.ErrorCodeGate, err.Error())
		return err
	}

	text, label := TopicSeed(topic)
	c.store.AppendAssistantSeed(text, label)

	if topic == domain.TopicDemo {
		c.schedule.Arm()
		c.events.ScheduleChanged(c.schedule.View())
	}
	c.log.Infow("topic selected", "topic", topic)
	return nil
}

// SendText submits a typed message. Blocks until the dispatch sequence has
// completed and the stage is back to idle.
func (c *WidgetController) SendText(text string) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty message")
	}
	return c.submit(Submission{Text: text})
}

// SendRecording submits the recording currently in review. The transcript is
// appended as a user message and the recording session is discarded before
// dispatch begins.
func (c *WidgetController) SendRecording() error {
	if err := c.requireReady(); err != nil {
		return err
	}
	artifact, err := c.recorder.TakeArtifact()
	if err != nil {
		return err
	}
	return c.submit(Submission{
		Artifact:      &artifact,
		OnTranscribed: func() { _ = c.recorder.Discard() },
	})
}

// ConfirmSchedule submits the selected date and time slot as a structured
// scheduling payload. The subflow is torn down only once the pipeline has
// accepted the submission, so a busy rejection leaves the selection intact.
func (c *WidgetController) ConfirmSchedule() error {
	if err := c.requireReady(); err != nil {
		return err
	}

	text, extra, err := c.schedule.Payload()
	if err != nil {
		return err
	}
	return c.submit(Submission{
		Text:  text,
		Extra: extra,
		OnAccepted: func() {
			c.schedule.Complete()
			c.events.ScheduleChanged(c.schedule.View())
		},
	})
}

func (c *WidgetController) submit(sub Submission) error {
	topic, _ := c.gate.Topic()
	return c.pipeline.Submit(c.ctx, c.store, c.gate.Contact(), topic, sub)
}

// StartRecording begins microphone capture.
func (c *WidgetController) StartRecording() error {
	if err := c.requireReady(); err != nil {
		return err
	}
	return c.recorder.Start(c.ctx)
}

func (c *WidgetController) PauseRecording() error   { return c.recorder.Pause() }
func (c *WidgetController) ResumeRecording() error  { return c.recorder.Resume() }
func (c *WidgetController) StopRecording() error    { return c.recorder.Stop() }
func (c *WidgetController) DiscardRecording() error { return c.recorder.Discard() }

// TogglePreview plays or pauses the finalized recording during review.
func (c *WidgetController) TogglePreview() error {
	return c.recorder.TogglePreviewPlayback(c.ctx)
}

// ScheduleChangeMonth moves the scheduling calendar; out-of-range moves are a no-op.
func (c *WidgetController) ScheduleChangeMonth(delta int) {
	c.schedule.ChangeMonth(delta)
	c.events.ScheduleChanged(c.schedule.View())
}

// ScheduleSelectDate selects a day of the visible month.
func (c *WidgetController) ScheduleSelectDate(day int) error {
	if err := c.schedule.SelectDate(day); err != nil {
		return err
	}
	c.events.ScheduleChanged(c.schedule.View())
	return nil
}

// ScheduleSelectTime selects one of the published time slots.
func (c *WidgetController) ScheduleSelectTime(slot string) error {
	if err := c.schedule.SelectTime(slot); err != nil {
		return err
	}
	c.events.ScheduleChanged(c.schedule.View())
	return nil
}

// Messages returns the conversation log for an initial rendering sync.
func (c *WidgetController) Messages() []domain.Message {
	return c.store.Messages()
}

// RecorderStatus returns the current recorder snapshot.
func (c *WidgetController) RecorderStatus() domain.RecorderStatus {
	return c.recorder.Status()
}

// Stage returns the current processing stage.
func (c *WidgetController) Stage() domain.ProcessingStage {
	return c.pipeline.Stage()
}

// ScheduleView returns the current scheduling snapshot.
func (c *WidgetController) ScheduleView() domain.ScheduleView {
	return c.schedule.View()
}

// Unlocked reports whether the contact gate has been passed.
func (c *WidgetController) Unlocked() bool {
	return c.gate.Unlocked()
}

// Close tears the session down, releasing the microphone even mid-recording.
func (c *WidgetController) Close() error {
	c.cancel()
	return c.recorder.Close()
}

func (c *WidgetController) requireReady() error {
	if !c.gate.Ready() {
		return domain.ErrLocked
	}
	return nil
}
