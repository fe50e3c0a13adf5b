package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voicewidget/internal/audio"
	"voicewidget/internal/config"
	"voicewidget/internal/ports"
	"voicewidget/internal/providers/gemini"
	"voicewidget/internal/providers/workflow"
	"voicewidget/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.WidgetController
	Config     config.Config
}

// Build wires one widget session for the current runtime.
func Build(ctx context.Context, events ports.EventSink, log *zap.SugaredLogger) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	geminiClient, err := gemini.New(ctx, gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		SiteContext: cfg.Gemini.SiteContext,
	})
	if err != nil {
		return Services{}, err
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return Services{}, fmt.Errorf("invalid timezone %q: %w", cfg.Schedule.Timezone, err)
	}

	clock := usecase.SystemClock()
	store := usecase.NewConversationStore(clock, events)
	gate := usecase.NewAccessGate()
	schedule := usecase.NewSchedulingSubflow(cfg.Schedule.Year, loc, cfg.Schedule.Slots)

	recorder := usecase.NewRecorderEngine(
		audio.NewCapture(cfg.Audio.RecorderCommand),
		audio.NewPlayer(cfg.Audio.PlayerCommand),
		clock,
		events,
		log,
		ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
	)

	pipeline := usecase.NewDispatchPipeline(
		geminiClient,
		workflow.NewClient(workflow.Config{URL: cfg.Webhook.URL}),
		geminiClient,
		events,
		clock,
		log,
		cfg.Session.DispatchTimeout,
	)

	controller := usecase.NewWidgetController(gate, store, recorder, schedule, pipeline, events, log)
	return Services{Controller: controller, Config: cfg}, nil
}
