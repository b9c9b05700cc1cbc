package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"go-emotion-bot/internal/core/domain"
	"go-emotion-bot/internal/core/ports"
)

// Timings bounds every retry and settle delay in the state machine. The
// defaults reflect how slowly the external client reacts; tests shrink them.
type Timings struct {
	LaunchSettle     time.Duration // after spawning the client process
	JoinTriggerWait  time.Duration // after the protocol-URI join invocation
	DialogAttempts   int           // join preview dialog search
	DialogInterval   time.Duration
	DialogSettle     time.Duration // dialog found, wait for full render
	PasscodeAttempts int           // passcode prompt search after join click
	PasscodeInterval time.Duration
	MeetingLoadWait  time.Duration // between join and surface resolution
	SurfaceAttempts  int           // live meeting window search
	SurfaceInterval  time.Duration
	AnalyzeTimeout   time.Duration // hard deadline per inference call
	GalleryPageWait  time.Duration // after a gallery page navigation
	TerminateWait    time.Duration // graceful terminate before kill
	PollGranularity  time.Duration // stop-flag check frequency inside sleeps
}

func DefaultTimings() Timings {
	return Timings{
		LaunchSettle:     8 * time.Second,
		JoinTriggerWait:  5 * time.Second,
		DialogAttempts:   30,
		DialogInterval:   2 * time.Second,
		DialogSettle:     2 * time.Second,
		PasscodeAttempts: 15,
		PasscodeInterval: time.Second,
		MeetingLoadWait:  10 * time.Second,
		SurfaceAttempts:  20,
		SurfaceInterval:  2 * time.Second,
		AnalyzeTimeout:   2 * time.Minute,
		GalleryPageWait:  800 * time.Millisecond,
		TerminateWait:    5 * time.Second,
		PollGranularity:  time.Second,
	}
}

// errStopRequested unwinds the state machine when the operator stops the bot
// mid-sequence. It is not reported as an error event.
var errStopRequested = errors.New("stop requested")

// botRunner drives one session's entire lifecycle on a dedicated goroutine:
// launch, join, surface resolution, the capture loop, and teardown. It is
// the only writer of the session's automation-side resources (process, data
// directory, resolved surface), which are never shared across sessions.
type botRunner struct {
	session  *domain.BotSession
	driver   ports.AutomationDriver
	capture  ports.CaptureProvider
	analyzer ports.FaceAnalyzer
	emitter  ports.Emitter
	frames   ports.FrameStore // optional
	log      *logrus.Entry
	timings  Timings

	dataDir string
	process ports.Process
	surface ports.Window // nil means whole-screen capture

	done   chan struct{}
	onExit func() // deregisters the bot from the manager
}

func (r *botRunner) run() {
	defer close(r.done)
	if r.onExit != nil {
		defer r.onExit()
	}
	defer r.shutdown()

	ctx := context.Background()
	if err := r.drive(ctx); err != nil && !errors.Is(err, errStopRequested) {
		r.log.WithError(err).Error("bot failed")
		r.session.SetState(domain.StateError)
		r.emitStatus("error", fmt.Sprintf("Error: %v", err))
		r.emit(ports.EventError, map[string]any{
			"error":   err.Error(),
			"message": fmt.Sprintf("Error: %v", err),
		})
	}
}

// drive walks the state machine up to and including the capture loop.
// Returning any error other than errStopRequested lands the session in the
// error state; cleanup runs regardless.
func (r *botRunner) drive(ctx context.Context) error {
	r.emitStatus("initializing", "Launching client...")
	if err := r.launch(ctx); err != nil {
		return fmt.Errorf("launch: %w", err)
	}

	r.session.SetState(domain.StateJoining)
	r.emitStatus("joining", "Joining meeting...")
	if err := r.joinMeeting(ctx); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	r.emitStatus("configuring", "Waiting for meeting...")
	if !r.sleepInterruptible(r.timings.MeetingLoadWait) {
		return errStopRequested
	}

	r.session.SetState(domain.StateResolvingSurface)
	r.emitStatus("configuring", "Connecting to meeting window...")
	r.resolveSurface(ctx)

	r.session.EnterMeeting()
	r.emitStatus("active", "Active and analyzing...")
	return r.captureLoop(ctx)
}

// launch spawns the external client with an isolated data directory and
// triggers the join action, with settle delays before the UI is inspected.
func (r *botRunner) launch(ctx context.Context) error {
	if err := os.MkdirAll(r.dataDir, 0o755); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	r.log.WithField("data_dir", r.dataDir).Info("launching client")

	proc, err := r.driver.Launch(ctx, r.dataDir)
	if err != nil {
		return err
	}
	r.process = proc
	r.log.WithField("pid", proc.PID()).Info("client process started")

	if !r.sleepInterruptible(r.timings.LaunchSettle) {
		return errStopRequested
	}

	cfg := r.session.Config
	if err := r.driver.TriggerJoin(ctx, cfg.MeetingID, cfg.BotName, cfg.Passcode); err != nil {
		return fmt.Errorf("trigger join: %w", err)
	}
	if !r.sleepInterruptible(r.timings.JoinTriggerWait) {
		return errStopRequested
	}
	return nil
}

// joinMeeting locates the join preview dialog and drives it: audio/video
// off, join click, then the passcode prompt. A passcode prompt appearing
// first short-circuits the preview handling.
func (r *botRunner) joinMeeting(ctx context.Context) error {
	dialog, kind, err := r.findJoinDialog(ctx)
	if err != nil {
		return err
	}

	if kind == dialogPasscode {
		// The prompt skipped straight to the passcode stage.
		return r.handlePasscode(ctx, dialog)
	}

	if !r.sleepInterruptible(r.timings.DialogSettle) {
		return errStopRequested
	}

	// Best-effort: turn outgoing audio and video off before joining.
	for _, s := range avOffStrategies {
		if clickFirst(ctx, dialog, s) {
			r.log.WithField("strategy", s.name).Debug("toggled a/v control")
		}
	}

	clicked := false
	for _, s := range joinStrategies {
		if clickFirst(ctx, dialog, s) {
			r.log.WithField("strategy", s.name).Info("clicked join")
			clicked = true
			break
		}
	}
	if !clicked {
		r.log.Warn("no join control found, falling back to keystroke submit")
		if err := r.driver.SendKeys(ctx, fallbackJoinKeys...); err != nil {
			return fmt.Errorf("join submit: %w", err)
		}
	}

	return r.awaitPasscodePrompt(ctx)
}

type dialogKind int

const (
	dialogPreview dialogKind = iota
	dialogPasscode
)

// findJoinDialog polls for the join preview dialog, treating an early
// passcode prompt as the dialog itself.
func (r *botRunner) findJoinDialog(ctx context.Context) (ports.Window, dialogKind, error) {
	for attempt := 0; attempt < r.timings.DialogAttempts; attempt++ {
		if !r.session.Running() {
			return nil, 0, errStopRequested
		}
		windows, err := r.driver.Windows(ctx)
		if err == nil {
			for _, w := range windows {
				if isPasscodeWindow(ctx, w) {
					r.log.WithField("title", w.Title()).Info("found passcode dialog")
					return w, dialogPasscode, nil
				}
				if isJoinPreviewWindow(ctx, w) {
					r.log.WithField("title", w.Title()).Info("found join dialog")
					return w, dialogPreview, nil
				}
			}
		}
		if !r.sleepInterruptible(r.timings.DialogInterval) {
			return nil, 0, errStopRequested
		}
	}
	return nil, 0, fmt.Errorf("join preview dialog not found after %d attempts", r.timings.DialogAttempts)
}

// awaitPasscodePrompt watches for a passcode dialog after the join click.
// No prompt within the bounded window means the meeting has no passcode and
// the sequence proceeds.
func (r *botRunner) awaitPasscodePrompt(ctx context.Context) error {
	for attempt := 0; attempt < r.timings.PasscodeAttempts; attempt++ {
		if !r.session.Running() {
			return errStopRequested
		}
		windows, err := r.driver.Windows(ctx)
		if err == nil {
			for _, w := range windows {
				if isPasscodeWindow(ctx, w) {
					return r.handlePasscode(ctx, w)
				}
			}
		}
		if !r.sleepInterruptible(r.timings.PasscodeInterval) {
			return errStopRequested
		}
	}
	r.log.Debug("no passcode prompt appeared, continuing")
	return nil
}

// handlePasscode enters and submits the passcode. A prompt with no passcode
// configured is terminal: the operator must resupply correct input, so this
// is reported rather than retried.
func (r *botRunner) handlePasscode(ctx context.Context, dialog ports.Window) error {
	passcode := r.session.Config.Passcode
	if passcode == "" {
		return fmt.Errorf("passcode prompt: %w", ports.ErrPasscodeRequired)
	}

	entered := setTextFirst(ctx, dialog, labelContains("passcode"), passcode)
	if !entered {
		// Some client versions leave the edit unlabeled.
		entered = setTextFirst(ctx, dialog, nil, passcode)
	}
	if !entered {
		return fmt.Errorf("passcode input control not found")
	}

	for _, s := range passcodeSubmitStrategies {
		if clickFirst(ctx, dialog, s) {
			r.log.WithField("strategy", s.name).Info("submitted passcode")
			return nil
		}
	}
	return fmt.Errorf("passcode submit control not found")
}

// resolveSurface searches for the live meeting window. Exhausting attempts
// is not fatal: the session degrades to whole-screen capture, which reduces
// analysis fidelity but keeps the loop running.
func (r *botRunner) resolveSurface(ctx context.Context) {
	for attempt := 0; attempt < r.timings.SurfaceAttempts; attempt++ {
		if !r.session.Running() {
			return
		}
		windows, err := r.driver.Windows(ctx)
		if err == nil {
			var candidate ports.Window
			for _, w := range windows {
				if !isMeetingSurface(ctx, w) {
					continue
				}
				if labelContains("meeting")(w.Title()) {
					candidate = w
					break
				}
				if candidate == nil {
					candidate = w
				}
			}
			if candidate != nil {
				r.log.WithField("title", candidate.Title()).Info("resolved meeting window")
				if err := candidate.Maximize(ctx); err != nil {
					r.log.WithError(err).Debug("could not maximize meeting window")
				}
				r.surface = candidate
				return
			}
		}
		if !r.sleepInterruptible(r.timings.SurfaceInterval) {
			return
		}
	}
	r.log.Warn("meeting window not found, degrading to whole-screen capture")
	r.surface = nil
}

// shutdown is the unconditional teardown: graceful leave, process
// termination, data directory removal, final status event. Resource
// reclamation must not depend on UI cooperation, so every step tolerates
// failure of the previous one.
func (r *botRunner) shutdown() {
	r.session.SetState(domain.StateStopping)
	r.session.RequestStop()
	ctx := context.Background()

	r.leaveMeeting(ctx)

	if r.process != nil {
		r.log.WithField("pid", r.process.PID()).Info("terminating client process")
		if err := r.process.Terminate(); err != nil {
			r.log.WithError(err).Warn("terminate failed")
		}
		if err := r.process.Wait(r.timings.TerminateWait); err != nil {
			r.log.Warn("client unresponsive, force killing")
			if err := r.process.Kill(); err != nil {
				r.log.WithError(err).Warn("kill failed")
			}
		}
	}

	if r.dataDir != "" {
		if err := os.RemoveAll(r.dataDir); err != nil {
			r.log.WithError(err).Warn("could not remove data directory")
		}
	}

	r.session.SetState(domain.StateStopped)
	stats, engagement, _, _ := domain.Analyze(r.session.Detections())
	r.emit(ports.EventStatus, map[string]any{
		"status":     "stopped",
		"message":    "Bot stopped. Analysis complete.",
		"summary":    stats,
		"engagement": engagement,
	})

	snap := r.session.Snapshot()
	r.log.WithFields(logrus.Fields{
		"frames":     snap.FrameCount,
		"detections": snap.TotalDetections,
	}).Info("bot stopped")
}

// leaveMeeting attempts the in-UI leave: the Leave control, then the
// confirmation dialog, falling back to the keyboard shortcut. Best-effort.
func (r *botRunner) leaveMeeting(ctx context.Context) {
	clicked := false
	if r.surface != nil {
		for _, s := range leaveStrategies {
			if clickFirst(ctx, r.surface, s) {
				r.log.WithField("strategy", s.name).Info("clicked leave")
				clicked = true
				break
			}
		}
	}

	if clicked {
		// Confirm on whatever dialog appeared.
		if windows, err := r.driver.Windows(ctx); err == nil {
			for _, w := range windows {
				if !isLeaveConfirmWindow(ctx, w) {
					continue
				}
				for _, s := range leaveStrategies {
					if clickFirst(ctx, w, s) {
						r.log.Info("confirmed leave")
						return
					}
				}
			}
		}
		return
	}

	if err := r.driver.SendKeys(ctx, fallbackLeaveKeys...); err != nil {
		r.log.WithError(err).Debug("keystroke leave fallback failed")
	}
}

// sleepInterruptible sleeps for d while honoring stop requests at
// PollGranularity. Returns false once the session should unwind.
func (r *botRunner) sleepInterruptible(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if !r.session.Running() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		step := r.timings.PollGranularity
		if step <= 0 {
			step = time.Second
		}
		if remaining < step {
			step = remaining
		}
		time.Sleep(step)
	}
}

// emit publishes an event on the session's channel with the standard
// envelope fields.
func (r *botRunner) emit(event string, data map[string]any) {
	if r.emitter == nil {
		return
	}
	payload := map[string]any{
		"bot_id":     r.session.BotID,
		"session_id": r.session.Config.SessionID,
		"timestamp":  time.Now().Format(time.RFC3339),
	}
	for k, v := range data {
		payload[k] = v
	}
	r.emitter.Publish(event, r.session.Config.SessionID, payload)
}

func (r *botRunner) emitStatus(status, message string) {
	r.emit(ports.EventStatus, map[string]any{
		"status":  status,
		"message": message,
	})
}
