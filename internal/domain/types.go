package domain

import (
	"strings"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Topic is the subject chosen at the second gate step. It steers the seeded
// assistant message and whether the scheduling subflow is armed.
type Topic string

const (
	TopicDemo    Topic = "demo"
	TopicService Topic = "service"
	TopicContact Topic = "contact"
)

// RecordingState models the microphone capture lifecycle.
type RecordingState string

const (
	RecordingStateIdle      RecordingState = "idle"
	RecordingStateRecording RecordingState = "recording"
	RecordingStatePaused    RecordingState = "paused"
	RecordingStateReview    RecordingState = "review"
)

// ProcessingStage is the pipeline's transient progress indicator. It is
// mutated only by the dispatch pipeline and must return to idle on every
// completion path.
type ProcessingStage string

const (
	StageIdle         ProcessingStage = "idle"
	StageTranscribing ProcessingStage = "transcribing"
	StageThinking     ProcessingStage = "thinking"
)

// ErrorCode identifies user-visible widget failures.
type ErrorCode string

const (
	ErrorCodePermission    ErrorCode = "permission_denied"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeDispatch      ErrorCode = "dispatch"
	ErrorCodeFallback      ErrorCode = "fallback"
	ErrorCodeAudioStop     ErrorCode = "audio_stop"
	ErrorCodePlayback      ErrorCode = "playback"
	ErrorCodeGate          ErrorCode = "gate"
)

// Message is one immutable entry in the conversation log.
type Message struct {
	ID                string    `json:"id"`
	Role              Role      `json:"role"`
	Text              string    `json:"text"`
	IsAudioTranscript bool      `json:"isAudioTranscript,omitempty"`
	TopicLabel        string    `json:"topicLabel,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Artifact is a finalized, playable audio recording.
type Artifact struct {
	Data     []byte
	MIMEType string
}

// ContactInfo is the first gate's submission.
type ContactInfo struct {
	Email          string `json:"email"`
	ConsentData    bool   `json:"consentData"`
	ConsentContact bool   `json:"consentContact"`
}

// Complete reports whether all three fields required to unlock the chat are set.
func (c ContactInfo) Complete() bool {
	return strings.TrimSpace(c.Email) != "" && c.ConsentData && c.ConsentContact
}

// RecorderStatus summarizes recorder state for the rendering layer.
type RecorderStatus struct {
	State          RecordingState `json:"state"`
	ElapsedSeconds int            `json:"elapsedSeconds"`
	HasArtifact    bool           `json:"hasArtifact"`
	PreviewPlaying bool           `json:"previewPlaying"`
}

// ScheduleView is the rendering snapshot of the scheduling subflow.
type ScheduleView struct {
	Armed        bool     `json:"armed"`
	Year         int      `json:"year"`
	ViewMonth    int      `json:"viewMonth"`
	SelectedDate string   `json:"selectedDate,omitempty"`
	SelectedTime string   `json:"selectedTime,omitempty"`
	Slots        []string `json:"slots"`
}
