package ports

import (
	"context"
	"errors"
	"image"
	"time"

	"go-emotion-bot/internal/core/domain"
)

var (
	ErrBotNotFound        = errors.New("bot not found")
	ErrAlreadyRunning     = errors.New("bot already running")
	ErrCaptureUnavailable = errors.New("capture mechanism unavailable")
	ErrPasscodeRequired   = errors.New("meeting passcode required")
)

// CreateResult is what a join request gets back immediately; the rest of the
// lifecycle is reported through the Emitter.
type CreateResult struct {
	BotID   string `json:"bot_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DebugImages lists the diagnostic frames persisted for one bot.
type DebugImages struct {
	BotID  string   `json:"bot_id"`
	Dir    string   `json:"debug_dir"`
	Images []string `json:"images"`
}

// Primary Port (Driving) - implemented by Service
type BotService interface {
	Create(ctx context.Context, cfg domain.BotConfig) (CreateResult, error)
	Status(ctx context.Context, botID string) (domain.StatusSnapshot, error)
	// Analytics aggregates the bot's detection log: distribution, sentiment,
	// engagement, timeline and confidence anomalies.
	Analytics(ctx context.Context, botID string) (domain.SessionAnalytics, error)
	// DebugImages lists the persisted diagnostic frames for a bot. A session
	// without frame persistence gets an empty listing, not an error.
	DebugImages(ctx context.Context, botID string) (DebugImages, error)
	List(ctx context.Context) []domain.StatusSnapshot
	// Stop blocks until the session's teardown completes or times out, then
	// deregisters the bot.
	Stop(ctx context.Context, botID string) error
	StopAll(ctx context.Context)
}

type ControlKind string

const (
	ControlButton   ControlKind = "button"
	ControlEdit     ControlKind = "edit"
	ControlMenuItem ControlKind = "menuitem"
)

// Control is a clickable or editable UI element of the external client.
type Control interface {
	Label() string
	Click(ctx context.Context) error
	SetText(ctx context.Context, text string) error
}

// Window is a top-level surface of the external client.
type Window interface {
	Title() string
	Bounds(ctx context.Context) (image.Rectangle, error)
	Controls(ctx context.Context, kind ControlKind) ([]Control, error)
	Maximize(ctx context.Context) error
	Focus(ctx context.Context) error
}

// Secondary Port (Driven) - the UI automation capability. Every operation is
// best-effort: window titles and control hierarchies of the external client
// are not contractually stable, so callers poll with bounded attempts.
type AutomationDriver interface {
	// Launch starts the external client with an isolated per-session data
	// directory and returns a handle for later termination.
	Launch(ctx context.Context, dataDir string) (Process, error)
	// TriggerJoin asks the client to join a meeting (protocol URI invocation
	// or in-UI navigation, depending on the client variant).
	TriggerJoin(ctx context.Context, meetingID, displayName, passcode string) error
	Windows(ctx context.Context) ([]Window, error)
	// SendKeys is the keystroke fallback when no control can be located.
	SendKeys(ctx context.Context, keys ...string) error
}

// Process is an externally launched client process owned by one session.
type Process interface {
	PID() int
	Terminate() error
	Kill() error
	// Wait returns once the process exits or the timeout elapses.
	Wait(timeout time.Duration) error
}

// Secondary Port (Driven) - screen capture. surface nil means whole screen.
// Implementations try off-screen window composition first, then a region
// grab of the window bounds, then the whole screen; callers only learn
// whether an image was produced. ErrCaptureUnavailable means the capture
// mechanism itself is gone and the session cannot continue.
type CaptureProvider interface {
	Capture(ctx context.Context, surface Window) (image.Image, error)
}

// AutomationBackend bundles the driver and capture sides of one client
// variant. Backends may hold per-session state (a browser, a resolved
// window), so the service builds one per session through the factory.
type AutomationBackend interface {
	AutomationDriver
	CaptureProvider
}

// BackendFactory builds a fresh backend for one session. A factory error
// fails the create call synchronously, before any session is registered.
type BackendFactory func() (AutomationBackend, error)

// Secondary Port (Driven) - face/emotion inference. Returns an empty slice
// when no face is found; empty frames are common in long meetings and are
// not an error. Must be safe for concurrent use by multiple sessions.
type FaceAnalyzer interface {
	Analyze(ctx context.Context, img image.Image) ([]domain.Face, error)
}

const (
	EventStatus        = "status"
	EventEmotionUpdate = "emotion_update"
	EventError         = "error"
)

// Secondary Port (Driven) - real-time emission sink, keyed by session id.
// Publishing is fire-and-forget; a missing subscriber is not an error.
type Emitter interface {
	Publish(event string, sessionID string, payload map[string]any)
}

// Secondary Port (Driven) - diagnostic frame persistence. A nil or failing
// store must never affect the state machine.
type FrameStore interface {
	SaveFrame(botID string, frame int, img image.Image) error
	SaveAnnotated(botID string, frame int, img image.Image, faces []domain.Face) error
	// ListFrames returns the bot's frame directory and its image names in
	// sorted order. A bot that never persisted a frame gets an empty list.
	ListFrames(botID string) (dir string, images []string, err error)
}
