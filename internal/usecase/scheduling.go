package usecase

import (
	"fmt"
	"sync"
	"time"

	"voicewidget/internal/domain"
)

// SchedulingSubflow is the date/time picker state machine for demo booking.
// It operates on a fixed published calendar year: month navigation is clamped
// to [0,11], weekends are not selectable, and time slots come from a fixed
// enumerated set. A successful submission tears the subflow down for the rest
// of the topic session.
type SchedulingSubflow struct {
	year  int
	loc   *time.Location
	slots []string

	mu        sync.Mutex
	armed     bool
	submitted bool
	viewMonth int
	date      time.Time
	slot      string
}

func NewSchedulingSubflow(year int, loc *time.Location, slots []string) *SchedulingSubflow {
	return &SchedulingSubflow{year: year, loc: loc, slots: slots}
}

// Arm makes the subflow available. Arming after a submission does not revive it.
func (s *SchedulingSubflow) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return
	}
	s.armed = true
}

// Armed reports whether the subflow is currently available.
func (s *SchedulingSubflow) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// ChangeMonth moves the visible month by delta. Moves that would leave the
// published range are a no-op.
func (s *SchedulingSubflow) ChangeMonth(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.viewMonth + delta
	if next < 0 || next > 11 {
		return
	}
	s.viewMonth = next
}

// SelectDate selects a day of the visible month. Weekend dates are rejected
// with the selection left unchanged. Any valid selection clears a previously
// chosen time slot.
func (s *SchedulingSubflow) SelectDate(day int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return domain.ErrNotArmed
	}

	date := time.Date(s.year, time.Month(s.viewMonth+1), day, 0, 0, 0, 0, s.loc)
	if date.Day() != day || date.Month() != time.Month(s.viewMonth+1) {
		return fmt.Errorf("day %d is not in month %d", day, s.viewMonth)
	}
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return domain.ErrWeekendDate
	}

	s.date = date
	s.slot = ""
	return nil
}

// SelectTime selects one of the published time slots. A date must already be
// chosen.
func (s *SchedulingSubflow) SelectTime(slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return domain.ErrNotArmed
	}
	if s.date.IsZero() {
		return fmt.Errorf("%w: select a date first", domain.ErrIncompleteSelection)
	}
	for _, known := range s.slots {
		if known == slot {
			s.slot = slot
			return nil
		}
	}
	return fmt.Errorf("unknown time slot %q", slot)
}

// Payload combines the selected date and slot into a timezone-aware timestamp
// and serializes the structured submission. Both fields must be set. The
// selection is left untouched so a rejected submission loses nothing; Complete
// performs the teardown once the submission has been accepted.
func (s *SchedulingSubflow) Payload() (text string, extra map[string]any, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return "", nil, domain.ErrNotArmed
	}
	if s.date.IsZero() || s.slot == "" {
		return "", nil, domain.ErrIncompleteSelection
	}

	slotTime, err := time.Parse("15:04", s.slot)
	if err != nil {
		return "", nil, fmt.Errorf("malformed time slot %q: %w", s.slot, err)
	}
	start := time.Date(
		s.date.Year(), s.date.Month(), s.date.Day(),
		slotTime.Hour(), slotTime.Minute(), 0, 0, s.loc,
	)

	// Local wall-clock time with the explicit UTC offset the selection was
	// made at; round-tripping must preserve the offset.
	stamp := start.Format("2006-01-02T15:04:05-07:00")

	text = fmt.Sprintf("{\"startDateTime\": %q}", stamp)
	extra = map[string]any{
		"json":          map[string]any{"startDateTime": stamp},
		"startDateTime": stamp,
	}
	return text, extra, nil
}

// Complete tears the subflow down for the rest of the topic session after a
// payload has been accepted for dispatch.
func (s *SchedulingSubflow) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = false
	s.submitted = true
	s.date = time.Time{}
	s.slot = ""
}

// View returns a rendering snapshot of the subflow.
func (s *SchedulingSubflow) View() domain.ScheduleView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := domain.ScheduleView{
		Armed:        s.armed,
		Year:         s.year,
		ViewMonth:    s.viewMonth,
		SelectedTime: s.slot,
		Slots:        append([]string(nil), s.slots...),
	}
	if !s.date.IsZero() {
		view.SelectedDate = s.date.Format("2006-01-02")
	}
	return view
}
