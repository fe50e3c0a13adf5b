package transport

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voicewidget/internal/domain"
	"voicewidget/internal/usecase"
)

// Command is one inbound rendering-layer request.
type Command struct {
	Op             string `json:"op"`
	Text           string `json:"text,omitempty"`
	Email          string `json:"email,omitempty"`
	ConsentData    bool   `json:"consentData,omitempty"`
	ConsentContact bool   `json:"consentContact,omitempty"`
	Topic          string `json:"topic,omitempty"`
	Delta          int    `json:"delta,omitempty"`
	Day            int    `json:"day,omitempty"`
	Slot           string `json:"slot,omitempty"`
}

// Event is one outbound state push to the rendering layer.
type Event struct {
	Kind     string                 `json:"kind"`
	Message  *domain.Message        `json:"message,omitempty"`
	Recorder *domain.RecorderStatus `json:"recorder,omitempty"`
	Stage    domain.ProcessingStage `json:"stage,omitempty"`
	Schedule *domain.ScheduleView   `json:"schedule,omitempty"`
	Code     domain.ErrorCode       `json:"code,omitempty"`
	Detail   string                 `json:"detail,omitempty"`
}

// Hub bridges the widget core and browser rendering layers over websockets.
// It implements ports.EventSink: every core state change is broadcast to all
// connected frontends, and inbound commands are mapped onto controller
// methods.
type Hub struct {
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader

	mu         sync.Mutex
	controller *usecase.WidgetController
	conns      map[*hubConn]struct{}
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: map[*hubConn]struct{}{},
	}
}

// Bind attaches the controller after wiring. The hub is constructed first
// because the controller needs it as an event sink.
func (h *Hub) Bind(controller *usecase.WidgetController) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.controller = controller
}

// ServeHTTP upgrades the connection, replays the current widget state, and
// then pumps commands and events until the peer disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	controller := h.controller
	h.mu.Unlock()
	if controller == nil {
		http.Error(w, "widget not ready", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "error", err)
		return
	}

	// The connection is registered before the replay snapshot is taken, so a
	// state change landing in between is broadcast into the backlog and either
	// appears in the snapshot or is flushed afterwards, never both.
	conn := &hubConn{ws: ws, send: make(chan Event, 64), replaying: true}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	go conn.writePump()
	replayed := h.replayState(conn, controller)
	conn.finishReplay(replayed)
	h.readLoop(conn, controller)

	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.close()
}

func (h *Hub) replayState(conn *hubConn, controller *usecase.WidgetController) map[string]struct{} {
	replayed := map[string]struct{}{}
	for _, msg := range controller.Messages() {
		m := msg
		replayed[m.ID] = struct{}{}
		conn.replay(Event{Kind: "message", Message: &m})
	}
	status := controller.RecorderStatus()
	conn.replay(Event{Kind: "recorder", Recorder: &status})
	conn.replay(Event{Kind: "stage", Stage: controller.Stage()})
	view := controller.ScheduleView()
	conn.replay(Event{Kind: "schedule", Schedule: &view})
	return replayed
}

func (h *Hub) readLoop(conn *hubConn, controller *usecase.WidgetController) {
	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			conn.enqueue(Event{Kind: "error", Code: domain.ErrorCodeGate, Detail: "malformed command"})
			continue
		}
		// Dispatching commands can block for the length of a model call;
		// run them on their own goroutine so recorder controls stay
		// responsive. Everything else is applied in arrival order.
		switch cmd.Op {
		case "send_text", "send_recording", "confirm_schedule":
			go h.apply(conn, controller, cmd)
		default:
			h.apply(conn, controller, cmd)
		}
	}
}

func (h *Hub) apply(conn *hubConn, controller *usecase.WidgetController, cmd Command) {
	var err error
	switch cmd.Op {
	case "submit_contact":
		err = controller.SubmitContact(domain.ContactInfo{
			Email:          cmd.Email,
			ConsentData:    cmd.ConsentData,
			ConsentContact: cmd.ConsentContact,
		})
	case "select_topic":
		err = controller.SelectTopic(domain.Topic(cmd.Topic))
	case "send_text":
		err = controller.SendText(cmd.Text)
	case "send_recording":
		err = controller.SendRecording()
	case "start_recording":
		err = controller.StartRecording()
	case "pause_recording":
		err = controller.PauseRecording()
	case "resume_recording":
		err = controller.ResumeRecording()
	case "stop_recording":
		err = controller.StopRecording()
	case "discard_recording":
		err = controller.DiscardRecording()
	case "toggle_preview":
		err = controller.TogglePreview()
	case "schedule_change_month":
		controller.ScheduleChangeMonth(cmd.Delta)
	case "schedule_select_date":
		err = controller.ScheduleSelectDate(cmd.Day)
	case "schedule_select_time":
		err = controller.ScheduleSelectTime(cmd.Slot)
	case "confirm_schedule":
		err = controller.ConfirmSchedule()
	default:
		conn.enqueue(Event{Kind: "error", Detail: "unknown op " + cmd.Op})
		return
	}

	if err != nil {
		h.log.Debugw("command rejected", "op", cmd.Op, "error", err)
		conn.enqueue(Event{Kind: "rejected", Detail: err.Error()})
	}
}

// MessageAppended implements ports.EventSink.
func (h *Hub) MessageAppended(msg domain.Message) {
	h.broadcast(Event{Kind: "message", Message: &msg})
}

// RecorderChanged implements ports.EventSink.
func (h *Hub) RecorderChanged(status domain.RecorderStatus) {
	h.broadcast(Event{Kind: "recorder", Recorder: &status})
}

// StageChanged implements ports.EventSink.
func (h *Hub) StageChanged(stage domain.ProcessingStage) {
	h.broadcast(Event{Kind: "stage", Stage: stage})
}

// ScheduleChanged implements ports.EventSink.
func (h *Hub) ScheduleChanged(view domain.ScheduleView) {
	h.broadcast(Event{Kind: "schedule", Schedule: &view})
}

// WidgetError implements ports.EventSink.
func (h *Hub) WidgetError(code domain.ErrorCode, detail string) {
	h.broadcast(Event{Kind: "error", Code: code, Detail: detail})
}

func (h *Hub) broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.enqueue(event)
	}
}

type hubConn struct {
	ws   *websocket.Conn
	send chan Event

	closeMu   sync.Mutex
	closed    bool
	replaying bool
	backlog   []Event
	closeOnce sync.Once
}

// enqueue delivers a broadcast event. While the initial state replay is in
// flight, events are held in a backlog so they cannot interleave with or
// duplicate the snapshot.
func (c *hubConn) enqueue(event Event) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	if c.replaying {
		c.backlog = append(c.backlog, event)
		return
	}
	c.push(event)
}

// replay delivers a snapshot event directly, bypassing the backlog.
func (c *hubConn) replay(event Event) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.push(event)
}

// finishReplay flushes the backlog, skipping messages the snapshot already
// delivered.
func (c *hubConn) finishReplay(replayed map[string]struct{}) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	c.replaying = false
	for _, event := range c.backlog {
		if event.Kind == "message" && event.Message != nil {
			if _, dup := replayed[event.Message.ID]; dup {
				continue
			}
		}
		c.push(event)
	}
	c.backlog = nil
}

// push assumes closeMu is held.
func (c *hubConn) push(event Event) {
	select {
	case c.send <- event:
	default:
		// Slow consumer; drop rather than block the core.
	}
}

func (c *hubConn) writePump() {
	for event := range c.send {
		if err := c.ws.WriteJSON(event); err != nil {
			return
		}
	}
}

func (c *hubConn) close() {
	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		c.closed = true
		close(c.send)
		c.closeMu.Unlock()
		_ = c.ws.Close()
	})
}
