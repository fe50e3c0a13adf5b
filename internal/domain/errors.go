package domain

import "errors"

var (
	// ErrPermissionDenied is returned when the platform refuses microphone access.
	ErrPermissionDenied = errors.New("microphone access denied")

	// ErrTranscription is returned when the transcription call fails outright.
	ErrTranscription = errors.New("transcription failed")

	// ErrDispatch is returned when the primary workflow endpoint cannot produce
	// a usable reply (non-2xx, empty or unparseable body, misconfiguration marker).
	ErrDispatch = errors.New("workflow dispatch failed")

	// ErrFallback is returned when the fallback model call also fails.
	ErrFallback = errors.New("fallback model failed")

	// ErrBusy rejects a submission while another one is in flight.
	ErrBusy = errors.New("a submission is already in flight")

	// ErrLocked guards chat operations behind the access gate.
	ErrLocked = errors.New("chat is locked behind the access gate")

	// ErrInvalidTransition is returned for recorder calls that are not valid
	// from the current state.
	ErrInvalidTransition = errors.New("invalid recorder state transition")

	// ErrNotArmed is returned for scheduling calls while the subflow is not armed.
	ErrNotArmed = errors.New("scheduling is not armed")

	// ErrWeekendDate rejects weekend dates in the scheduling calendar.
	ErrWeekendDate = errors.New("weekends are not selectable")

	// ErrIncompleteSelection is returned when a schedule is submitted without
	// both a date and a time slot.
	ErrIncompleteSelection = errors.New("date and time slot must both be selected")
)
