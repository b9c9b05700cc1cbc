package services

import (
	"context"
	"strings"

	"go-emotion-bot/internal/core/ports"
)

// UI automation against the external client is trial and error: titles and
// labels vary between client versions and locales. Selection logic is kept
// here as prioritized strategy lists so new UI variants can be added without
// touching the state machine.

type windowPredicate func(ctx context.Context, w ports.Window) bool

type labelMatch func(label string) bool

// controlStrategy names one way of picking a control; strategies are tried
// in order and the first hit wins.
type controlStrategy struct {
	name  string
	kind  ports.ControlKind
	match labelMatch
}

func labelContains(substrs ...string) labelMatch {
	return func(label string) bool {
		l := strings.ToLower(label)
		for _, s := range substrs {
			if strings.Contains(l, s) {
				return true
			}
		}
		return false
	}
}

func labelEquals(want string) labelMatch {
	return func(label string) bool {
		return strings.EqualFold(strings.TrimSpace(label), want)
	}
}

func labelContainsAllExcept(want, except string) labelMatch {
	return func(label string) bool {
		l := strings.ToLower(label)
		return strings.Contains(l, want) && !strings.Contains(l, except)
	}
}

// joinStrategies select the primary join control on the preview dialog.
var joinStrategies = []controlStrategy{
	{name: "join-exact", kind: ports.ControlButton, match: labelEquals("join")},
	{name: "join-now", kind: ports.ControlButton, match: labelEquals("join now")},
	{name: "join-contains", kind: ports.ControlButton, match: labelContainsAllExcept("join", "audio")},
}

// fallbackJoinKeys submits the dialog when no join control was found at all.
var fallbackJoinKeys = []string{"enter"}

// avOffStrategies turn outgoing audio/video off on the preview dialog.
// Best-effort: a miss here is never fatal.
var avOffStrategies = []controlStrategy{
	{name: "video-off", kind: ports.ControlButton, match: labelContainsAllExcept("video", "join")},
	{name: "audio-off", kind: ports.ControlButton, match: labelContainsAllExcept("audio", "join")},
}

// stopVideoStrategy re-asserts video off mid-meeting; the client shows a
// "Stop Video" control only while video is transmitting, so a hit means
// video came back on.
var stopVideoStrategy = controlStrategy{
	name: "stop-video", kind: ports.ControlButton, match: labelContains("stop video"),
}

// leaveStrategies drive the graceful exit, in order: the Leave control on
// the meeting window, then the confirmation on whatever dialog pops up.
var leaveStrategies = []controlStrategy{
	{name: "leave", kind: ports.ControlButton, match: labelContains("leave")},
}

var fallbackLeaveKeys = []string{"alt+q", "enter"}

// passcodeSubmitStrategies confirm the passcode dialog.
var passcodeSubmitStrategies = []controlStrategy{
	{name: "passcode-join", kind: ports.ControlButton, match: labelContains("join")},
	{name: "passcode-ok", kind: ports.ControlButton, match: labelContains("ok")},
}

var galleryNextStrategy = controlStrategy{
	name: "gallery-next", kind: ports.ControlButton,
	match: labelContains("next", ">", "›", "arrow right"),
}

var galleryPrevStrategy = controlStrategy{
	name: "gallery-prev", kind: ports.ControlButton,
	match: labelContains("prev", "<", "‹", "arrow left"),
}

// meetingControlLabels corroborate that a window is the live meeting surface
// rather than some other client window.
var meetingControlLabels = labelContains("mute", "video", "share", "participants", "leave")

// isJoinPreviewWindow matches the pre-meeting preview dialog: a plausibly
// titled window that actually exposes a join control.
func isJoinPreviewWindow(ctx context.Context, w ports.Window) bool {
	title := strings.ToLower(w.Title())
	if !strings.Contains(title, "meeting") && !strings.Contains(title, "zoom") && !strings.Contains(title, "join") {
		return false
	}
	buttons, err := w.Controls(ctx, ports.ControlButton)
	if err != nil {
		return false
	}
	for _, b := range buttons {
		if labelContains("join")(b.Label()) {
			return true
		}
	}
	return false
}

// isPasscodeWindow matches the passcode prompt, by title or by an edit
// control labeled passcode (some client versions use a generic title).
func isPasscodeWindow(ctx context.Context, w ports.Window) bool {
	if strings.Contains(strings.ToLower(w.Title()), "passcode") {
		return true
	}
	edits, err := w.Controls(ctx, ports.ControlEdit)
	if err != nil {
		return false
	}
	for _, e := range edits {
		if labelContains("passcode")(e.Label()) {
			return true
		}
	}
	return false
}

// isMeetingSurface matches the live meeting window: not a preview or join
// dialog, preferably corroborated by meeting-control buttons.
func isMeetingSurface(ctx context.Context, w ports.Window) bool {
	title := strings.ToLower(w.Title())
	if strings.Contains(title, "preview") || strings.Contains(title, "join") {
		return false
	}
	if strings.Contains(title, "workplace") && !strings.Contains(title, "meeting") {
		return false
	}
	buttons, err := w.Controls(ctx, ports.ControlButton)
	if err != nil {
		// Controls unreadable; accept on title alone if it looks like a meeting.
		return strings.Contains(title, "meeting") || strings.Contains(title, "zoom")
	}
	for _, b := range buttons {
		if meetingControlLabels(b.Label()) {
			return true
		}
	}
	return false
}

// isLeaveConfirmWindow matches the leave confirmation dialog.
func isLeaveConfirmWindow(ctx context.Context, w ports.Window) bool {
	return strings.Contains(strings.ToLower(w.Title()), "leave meeting")
}

// clickFirst runs one strategy against a window: click the first matching
// control. Returns whether anything was clicked.
func clickFirst(ctx context.Context, w ports.Window, s controlStrategy) bool {
	controls, err := w.Controls(ctx, s.kind)
	if err != nil {
		return false
	}
	for _, c := range controls {
		if s.match(c.Label()) {
			if err := c.Click(ctx); err == nil {
				return true
			}
		}
	}
	return false
}

// setTextFirst writes text into the first matching edit control. An
// unlabeled edit is accepted when match is nil.
func setTextFirst(ctx context.Context, w ports.Window, match labelMatch, text string) bool {
	edits, err := w.Controls(ctx, ports.ControlEdit)
	if err != nil {
		return false
	}
	for _, e := range edits {
		if match != nil && !match(e.Label()) {
			continue
		}
		if err := e.SetText(ctx, text); err == nil {
			return true
		}
	}
	return false
}
