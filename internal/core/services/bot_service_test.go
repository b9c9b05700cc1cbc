package services

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"go-emotion-bot/internal/core/domain"
	"go-emotion-bot/internal/core/ports"
)

// testTimings shrinks every delay so a full lifecycle runs in milliseconds.
func testTimings() Timings {
	return Timings{
		LaunchSettle:     time.Millisecond,
		JoinTriggerWait:  time.Millisecond,
		DialogAttempts:   3,
		DialogInterval:   time.Millisecond,
		DialogSettle:     time.Millisecond,
		PasscodeAttempts: 2,
		PasscodeInterval: time.Millisecond,
		MeetingLoadWait:  time.Millisecond,
		SurfaceAttempts:  2,
		SurfaceInterval:  time.Millisecond,
		AnalyzeTimeout:   time.Second,
		GalleryPageWait:  time.Millisecond,
		TerminateWait:    10 * time.Millisecond,
		PollGranularity:  time.Millisecond,
	}
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		DefaultInterval: 2 * time.Millisecond,
		DataDirRoot:     t.TempDir(),
		StopTimeout:     5 * time.Second,
		Timings:         testTimings(),
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeControl struct {
	label    string
	clicks   int32
	clickErr error
	text     string
}

func (c *fakeControl) Label() string { return c.label }

func (c *fakeControl) Click(ctx context.Context) error {
	atomic.AddInt32(&c.clicks, 1)
	return c.clickErr
}

func (c *fakeControl) SetText(ctx context.Context, text string) error {
	c.text = text
	return nil
}

type fakeWindow struct {
	title    string
	buttons  []*fakeControl
	edits    []*fakeControl
	maximize int32
}

func (w *fakeWindow) Title() string { return w.title }

func (w *fakeWindow) Bounds(ctx context.Context) (image.Rectangle, error) {
	return image.Rect(0, 0, 1280, 720), nil
}

func (w *fakeWindow) Controls(ctx context.Context, kind ports.ControlKind) ([]ports.Control, error) {
	var src []*fakeControl
	switch kind {
	case ports.ControlButton:
		src = w.buttons
	case ports.ControlEdit:
		src = w.edits
	}
	out := make([]ports.Control, len(src))
	for i, c := range src {
		out[i] = c
	}
	return out, nil
}

func (w *fakeWindow) Maximize(ctx context.Context) error {
	atomic.AddInt32(&w.maximize, 1)
	return nil
}

func (w *fakeWindow) Focus(ctx context.Context) error { return nil }

type fakeProcess struct {
	terminated   int32
	terminateErr error
	killed       int32
}

func (p *fakeProcess) PID() int { return 4242 }

func (p *fakeProcess) Terminate() error {
	atomic.AddInt32(&p.terminated, 1)
	return p.terminateErr
}

func (p *fakeProcess) Kill() error {
	atomic.AddInt32(&p.killed, 1)
	return nil
}

func (p *fakeProcess) Wait(timeout time.Duration) error { return nil }

// fakeBackend presents a fixed window set and a stubbed capture. The default
// window set walks the happy path: a join preview dialog plus a live meeting
// window.
type fakeBackend struct {
	windows      []ports.Window
	captureErr   error
	captureWidth int
	sendKeysErr  error
	process      *fakeProcess

	launches  int32
	joinCalls int32
	sendKeys  int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		windows: []ports.Window{
			&fakeWindow{
				title:   "Join Meeting",
				buttons: []*fakeControl{{label: "Join"}, {label: "Turn off my video"}},
			},
			&fakeWindow{
				title:   "Zoom Meeting",
				buttons: []*fakeControl{{label: "Mute"}, {label: "Leave"}},
			},
		},
		process: &fakeProcess{},
	}
}

func (b *fakeBackend) Launch(ctx context.Context, dataDir string) (ports.Process, error) {
	atomic.AddInt32(&b.launches, 1)
	return b.process, nil
}

func (b *fakeBackend) TriggerJoin(ctx context.Context, meetingID, displayName, passcode string) error {
	atomic.AddInt32(&b.joinCalls, 1)
	return nil
}

func (b *fakeBackend) Windows(ctx context.Context) ([]ports.Window, error) {
	return b.windows, nil
}

func (b *fakeBackend) SendKeys(ctx context.Context, keys ...string) error {
	atomic.AddInt32(&b.sendKeys, 1)
	return b.sendKeysErr
}

func (b *fakeBackend) Capture(ctx context.Context, surface ports.Window) (image.Image, error) {
	if b.captureErr != nil {
		return nil, b.captureErr
	}
	w := b.captureWidth
	if w == 0 {
		w = 64
	}
	return image.NewRGBA(image.Rect(0, 0, w, 64)), nil
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   int
	fn      func(call int) ([]domain.Face, error)
	analyze func(img image.Image) ([]domain.Face, error)
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, img image.Image) ([]domain.Face, error) {
	a.mu.Lock()
	a.calls++
	call := a.calls
	fn := a.fn
	byImage := a.analyze
	a.mu.Unlock()
	if byImage != nil {
		return byImage(img)
	}
	if fn != nil {
		return fn(call)
	}
	return nil, nil
}

type emitted struct {
	event     string
	sessionID string
	payload   map[string]any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *recordingEmitter) Publish(event string, sessionID string, payload map[string]any) {
	copied := make(map[string]any, len(payload))
	for k, v := range payload {
		copied[k] = v
	}
	e.mu.Lock()
	e.events = append(e.events, emitted{event: event, sessionID: sessionID, payload: copied})
	e.mu.Unlock()
}

func (e *recordingEmitter) snapshot() []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]emitted(nil), e.events...)
}

func (e *recordingEmitter) has(event string) bool {
	for _, ev := range e.snapshot() {
		if ev.event == event {
			return true
		}
	}
	return false
}

func (e *recordingEmitter) hasStatus(status string) bool {
	for _, ev := range e.snapshot() {
		if ev.event == ports.EventStatus && ev.payload["status"] == status {
			return true
		}
	}
	return false
}

func (e *recordingEmitter) hasStatusFor(sessionID, status string) bool {
	for _, ev := range e.snapshot() {
		if ev.event == ports.EventStatus && ev.sessionID == sessionID && ev.payload["status"] == status {
			return true
		}
	}
	return false
}

func staticFactory(b ports.AutomationBackend) ports.BackendFactory {
	return func() (ports.AutomationBackend, error) { return b, nil }
}

func happyAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{fn: func(call int) ([]domain.Face, error) {
		return []domain.Face{
			{Region: image.Rect(0, 0, 10, 10), Dominant: domain.EmotionHappy},
			{Region: image.Rect(20, 0, 30, 10), Dominant: domain.EmotionSad},
		}, nil
	}}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	svc := NewBotService(staticFactory(newFakeBackend()), &fakeAnalyzer{}, &recordingEmitter{}, nil, quietLogger(), testOptions(t))

	if _, err := svc.Create(context.Background(), domain.BotConfig{SessionID: "s1"}); err == nil {
		t.Error("Create without meeting id succeeded")
	}
	if _, err := svc.Create(context.Background(), domain.BotConfig{MeetingID: "123"}); err == nil {
		t.Error("Create without session id succeeded")
	}
	if got := len(svc.List(context.Background())); got != 0 {
		t.Errorf("List after failed creates: got %d bots, want 0", got)
	}
}

func TestCreateFactoryErrorFailsSynchronously(t *testing.T) {
	t.Parallel()
	factory := func() (ports.AutomationBackend, error) {
		return nil, fmt.Errorf("browser binary missing")
	}
	svc := NewBotService(factory, &fakeAnalyzer{}, &recordingEmitter{}, nil, quietLogger(), testOptions(t))

	_, err := svc.Create(context.Background(), domain.BotConfig{MeetingID: "123", SessionID: "s1"})
	if err == nil {
		t.Fatal("Create with failing factory succeeded")
	}
	if got := len(svc.List(context.Background())); got != 0 {
		t.Errorf("List after factory failure: got %d bots, want 0", got)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	t.Parallel()
	backend := newFakeBackend()
	emitter := &recordingEmitter{}
	svc := NewBotService(staticFactory(backend), happyAnalyzer(), emitter, nil, quietLogger(), testOptions(t))

	res, err := svc.Create(context.Background(), domain.BotConfig{
		MeetingID: "855 1234 5678",
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.BotID == "" || res.Status != "starting" {
		t.Fatalf("CreateResult: got %+v", res)
	}

	waitFor(t, 5*time.Second, "active session with detections", func() bool {
		snap, err := svc.Status(context.Background(), res.BotID)
		return err == nil && snap.State == domain.StateActive && snap.TotalDetections >= 2
	})

	snap, err := svc.Status(context.Background(), res.BotID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !snap.IsRunning || !snap.IsInMeeting {
		t.Errorf("flags: running=%v in_meeting=%v, want both true", snap.IsRunning, snap.IsInMeeting)
	}
	if snap.ParticipantCount != 2 {
		t.Errorf("ParticipantCount: got %d, want 2", snap.ParticipantCount)
	}
	if snap.SessionID != "sess-1" {
		t.Errorf("SessionID: got %q, want %q", snap.SessionID, "sess-1")
	}

	if err := svc.Stop(context.Background(), res.BotID); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := svc.Status(context.Background(), res.BotID); err != ports.ErrBotNotFound {
		t.Errorf("Status after Stop: got %v, want ErrBotNotFound", err)
	}
	if atomic.LoadInt32(&backend.process.terminated) == 0 {
		t.Error("client process was not terminated")
	}

	for _, status := range []string{"initializing", "joining", "configuring", "active", "stopped"} {
		if !emitter.hasStatus(status) {
			t.Errorf("missing %q status event", status)
		}
	}
	if !emitter.has(ports.EventEmotionUpdate) {
		t.Error("no emotion_update event emitted")
	}
	if emitter.has(ports.EventError) {
		t.Error("unexpected error event on the happy path")
	}
}

func TestEventEnvelope(t *testing.T) {
	t.Parallel()
	emitter := &recordingEmitter{}
	svc := NewBotService(staticFactory(newFakeBackend()), happyAnalyzer(), emitter, nil, quietLogger(), testOptions(t))

	res, err := svc.Create(context.Background(), domain.BotConfig{MeetingID: "123", SessionID: "sess-env"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer svc.StopAll(context.Background())

	waitFor(t, 5*time.Second, "emotion update", func() bool {
		return emitter.has(ports.EventEmotionUpdate)
	})

	for _, ev := range emitter.snapshot() {
		if ev.sessionID != "sess-env" {
			t.Errorf("event routed to session %q, want sess-env", ev.sessionID)
		}
		if ev.payload["bot_id"] != res.BotID {
			t.Errorf("payload bot_id: got %v, want %s", ev.payload["bot_id"], res.BotID)
		}
		if ev.payload["session_id"] != "sess-env" {
			t.Errorf("payload session_id: got %v", ev.payload["session_id"])
		}
		ts, _ := ev.payload["timestamp"].(string)
		if _, err := time.Parse(time.RFC3339, ts); err != nil {
			t.Errorf("payload timestamp %q is not RFC3339: %v", ts, err)
		}
	}
}

func TestCaptureUnavailableIsFatal(t *testing.T) {
	t.Parallel()
	backend := newFakeBackend()
	backend.captureErr = fmt.Errorf("screen gone: %w", ports.ErrCaptureUnavailable)
	emitter := &recordingEmitter{}
	svc := NewBotService(staticFactory(backend), &fakeAnalyzer{}, emitter, nil, quietLogger(), testOptions(t))

	res, err := svc.Create(context.Background(), domain.BotConfig{MeetingID: "123", SessionID: "s1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The session must tear itself down and deregister without a Stop call.
	waitFor(t, 5*time.Second, "self-deregistration", func() bool {
		_, err := svc.Status(context.Background(), res.BotID)
		return err == ports.ErrBotNotFound
	})

	if !emitter.has(ports.EventError) {
		t.Fatal("no error event emitted")
	}
	events := emitter.snapshot()
	errIdx, stoppedIdx := -1, -1
	for i, ev := range events {
		if ev.event == ports.EventError && errIdx < 0 {
			errIdx = i
		}
		if ev.event == ports.EventStatus && ev.payload["status"] == "stopped" {
			stoppedIdx = i
		}
	}
	if stoppedIdx < 0 {
		t.Fatal("no stopped status event emitted")
	}
	if errIdx > stoppedIdx {
		t.Errorf("error event at %d after stopped at %d", errIdx, stoppedIdx)
	}
}

func TestAnalyzerErrorSkipsTick(t *testing.T) {
	t.Parallel()
	analyzer := &fakeAnalyzer{fn: func(call int) ([]domain.Face, error) {
		if call == 1 {
			return nil, fmt.Errorf("inference backend hiccup")
		}
		return []domain.Face{{Dominant: domain.EmotionNeutral}}, nil
	}}
	emitter := &recordingEmitter{}
	svc := NewBotService(staticFactory(newFakeBackend()), analyzer, emitter, nil, quietLogger(), testOptions(t))

	res, err := svc.Create(context.Background(), domain.BotConfig{MeetingID: "123", SessionID: "s1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The loop survives the failed first tick and keeps producing results.
	waitFor(t, 5*time.Second, "detections after a failed tick", func() bool {
		snap, err := svc.Status(context.Background(), res.BotID)
		return err == nil && snap.TotalDetections >= 1 && snap.FrameCount >= 2
	})

	if err := svc.Stop(context.Background(), res.BotID); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if emitter.has(ports.EventError) {
		t.Error("analyzer hiccup produced an error event")
	}
}

func TestPasscodeRequiredStopsBot(t *testing.T) {
	t.Parallel()
	backend := newFakeBackend()
	backend.windows = []ports.Window{
		&fakeWindow{
			title:   "Enter Meeting Passcode",
			buttons: []*fakeControl{{label: "Join"}},
			edits:   []*fakeControl{{label: "Passcode"}},
		},
	}
	emitter := &recordingEmitter{}
	svc := NewBotService(staticFactory(backend), &fakeAnalyzer{}, emitter, nil, quietLogger(), testOptions(t))

	res, err := svc.Create(context.Background(), domain.BotConfig{MeetingID: "123", SessionID: "s1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	waitFor(t, 5*time.Second, "self-deregistration", func() bool {
		_, err := svc.Status(context.Background(), res.BotID)
		return err == ports.ErrBotNotFound
	})

	if !emitter.has(ports.EventError) {
		t.Fatal("no error event for missing passcode")
	}
	if emitter.hasStatus("active") {
		t.Error("bot reported active despite missing passcode")
	}
}

func TestPasscodeEnteredWhenConfigured(t *testing.T) {
	t.Parallel()
	passcodeEdit := &fakeControl{label: "Passcode"}
	joinButton := &fakeControl{label: "Join"}
	backend := newFakeBackend()
	backend.windows = []ports.Window{
		&fakeWindow{
			title:   "Enter Meeting Passcode",
			buttons: []*fakeControl{joinButton},
			edits:   []*fakeControl{passcodeEdit},
		},
		&fakeWindow{
			title:   "Zoom Meeting",
			buttons: []*fakeControl{{label: "Mute"}, {label: "Leave"}},
		},
	}
	svc := NewBotService(staticFactory(backend), happyAnalyzer(), &recordingEmitter{}, nil, quietLogger(), testOptions(t))

	res, err := svc.Create(context.Background(), domain.BotConfig{
		MeetingID: "123",
		SessionID: "s1",
		Passcode:  "hunter2",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer svc.Stop(context.Background(), res.BotID)

	waitFor(t, 5*time.Second, "active state", func() bool {
		snap, err := svc.Status(context.Background(), res.BotID)
		return err == nil && snap.State == domain.StateActive
	})

	if passcodeEdit.text != "hunter2" {
		t.Errorf("passcode edit text: got %q, want %q", passcodeEdit.text, "hunter2")
	}
	if atomic.LoadInt32(&joinButton.clicks) == 0 {
		t.Error("passcode submit was never clicked")
	}
}

func TestConcurrentSessions(t *testing.T) {
	t.Parallel()
	// Each session's backend captures at a distinct width and the shared
	// analyzer maps widths to distinct emotions, so leakage between sessions
	// would show up as a mismatched tally.
	emotionByWidth := map[int]domain.Emotion{
		100: domain.EmotionHappy,
		101: domain.EmotionSad,
		102: domain.EmotionAngry,
	}
	analyzer := &fakeAnalyzer{fn: func(call int) ([]domain.Face, error) {
		return nil, nil
	}}
	analyzer.analyze = func(img image.Image) ([]domain.Face, error) {
		e, ok := emotionByWidth[img.Bounds().Dx()]
		if !ok {
			return nil, fmt.Errorf("unexpected frame width %d", img.Bounds().Dx())
		}
		return []domain.Face{{Dominant: e}}, nil
	}

	next := int32(99)
	svc := NewBotService(func() (ports.AutomationBackend, error) {
		b := newFakeBackend()
		b.captureWidth = int(atomic.AddInt32(&next, 1))
		return b, nil
	}, analyzer, &recordingEmitter{}, nil, quietLogger(), testOptions(t))

	ids := make([]string, 3)
	for i := range ids {
		res, err := svc.Create(context.Background(), domain.BotConfig{
			MeetingID: fmt.Sprintf("10%d", i),
			SessionID: fmt.Sprintf("sess-%d", i),
		})
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		ids[i] = res.BotID
	}

	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate bot id %s", id)
		}
		seen[id] = true
	}
	if got := len(svc.List(context.Background())); got != 3 {
		t.Fatalf("List: got %d bots, want 3", got)
	}

	// Backends were handed out in creation order, so session i only ever
	// produces the emotion for width 100+i.
	for i, id := range ids {
		want := emotionByWidth[100+i]
		waitFor(t, 5*time.Second, fmt.Sprintf("detections for session %d", i), func() bool {
			snap, err := svc.Status(context.Background(), id)
			return err == nil && snap.TotalDetections >= 1
		})
		snap, err := svc.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Status(%s): %v", id, err)
		}
		for _, p := range snap.Participants {
			for e := range p.Emotions {
				if e != want {
					t.Errorf("session %d tallied %s, want only %s", i, e, want)
				}
			}
		}
	}

	// Stopping one must not disturb the others.
	if err := svc.Stop(context.Background(), ids[0]); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := len(svc.List(context.Background())); got != 2 {
		t.Errorf("List after one stop: got %d bots, want 2", got)
	}
	for _, id := range ids[1:] {
		if _, err := svc.Status(context.Background(), id); err != nil {
			t.Errorf("Status(%s) after sibling stop: %v", id, err)
		}
	}

	svc.StopAll(context.Background())
	if got := len(svc.List(context.Background())); got != 0 {
		t.Errorf("List after StopAll: got %d bots, want 0", got)
	}
}

func TestAnalytics(t *testing.T) {
	t.Parallel()
	svc := NewBotService(staticFactory(newFakeBackend()), happyAnalyzer(), &recordingEmitter{}, nil, quietLogger(), testOptions(t))

	res, err := svc.Create(context.Background(), domain.BotConfig{MeetingID: "123", SessionID: "sess-an"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer svc.StopAll(context.Background())

	waitFor(t, 5*time.Second, "detections", func() bool {
		snap, err := svc.Status(context.Background(), res.BotID)
		return err == nil && snap.TotalDetections >= 2
	})

	analytics, err := svc.Analytics(context.Background(), res.BotID)
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if analytics.BotID != res.BotID || analytics.SessionID != "sess-an" {
		t.Errorf("identity: got %s/%s", analytics.BotID, analytics.SessionID)
	}
	if analytics.Stats.TotalDetections < 2 {
		t.Errorf("TotalDetections: got %d, want >= 2", analytics.Stats.TotalDetections)
	}
	// The fake analyzer reports one happy and one sad face per frame.
	if analytics.Stats.SentimentDistribution[domain.SentimentPositive] != 50 {
		t.Errorf("positive sentiment: got %v, want 50", analytics.Stats.SentimentDistribution[domain.SentimentPositive])
	}
	if analytics.Engagement.AttentionLevel == "" {
		t.Error("engagement attention level is empty")
	}
	if len(analytics.Timeline) == 0 {
		t.Error("timeline is empty")
	}

	if _, err := svc.Analytics(context.Background(), "no-such-bot"); err != ports.ErrBotNotFound {
		t.Errorf("Analytics(unknown): got %v, want ErrBotNotFound", err)
	}
}

func TestStopAllSurvivesFailingLeave(t *testing.T) {
	t.Parallel()
	emitter := &recordingEmitter{}

	// One backend refuses every teardown step: the leave click, the keyboard
	// fallback, and process termination.
	flaky := newFakeBackend()
	meeting := flaky.windows[1].(*fakeWindow)
	meeting.buttons[1].clickErr = fmt.Errorf("control vanished")
	flaky.sendKeysErr = fmt.Errorf("no input target")
	flaky.process.terminateErr = fmt.Errorf("access denied")

	backends := []*fakeBackend{newFakeBackend(), flaky, newFakeBackend()}
	next := int32(-1)
	svc := NewBotService(func() (ports.AutomationBackend, error) {
		return backends[atomic.AddInt32(&next, 1)], nil
	}, happyAnalyzer(), emitter, nil, quietLogger(), testOptions(t))

	sessions := make([]string, len(backends))
	for i := range backends {
		sid := fmt.Sprintf("sess-%d", i)
		if _, err := svc.Create(context.Background(), domain.BotConfig{
			MeetingID: fmt.Sprintf("20%d", i),
			SessionID: sid,
		}); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		sessions[i] = sid
	}
	for _, sid := range sessions {
		waitFor(t, 5*time.Second, sid+" active", func() bool {
			return emitter.hasStatusFor(sid, "active")
		})
	}

	svc.StopAll(context.Background())

	if got := len(svc.List(context.Background())); got != 0 {
		t.Errorf("List after StopAll: got %d bots, want 0", got)
	}
	for _, sid := range sessions {
		if !emitter.hasStatusFor(sid, "stopped") {
			t.Errorf("session %s never reported stopped", sid)
		}
	}
	if atomic.LoadInt32(&flaky.process.terminated) == 0 {
		t.Error("terminate was not attempted on the failing session")
	}
}

type fakeFrameStore struct {
	dir    string
	images []string
}

func (f *fakeFrameStore) SaveFrame(botID string, frame int, img image.Image) error {
	return nil
}

func (f *fakeFrameStore) SaveAnnotated(botID string, frame int, img image.Image, faces []domain.Face) error {
	return nil
}

func (f *fakeFrameStore) ListFrames(botID string) (string, []string, error) {
	return f.dir, f.images, nil
}

func TestDebugImages(t *testing.T) {
	t.Parallel()
	frames := &fakeFrameStore{
		dir:    "debug/bot",
		images: []string{"frame_0001_original.png"},
	}
	svc := NewBotService(staticFactory(newFakeBackend()), happyAnalyzer(), &recordingEmitter{}, frames, quietLogger(), testOptions(t))

	res, err := svc.Create(context.Background(), domain.BotConfig{MeetingID: "123", SessionID: "sess-di"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer svc.StopAll(context.Background())

	got, err := svc.DebugImages(context.Background(), res.BotID)
	if err != nil {
		t.Fatalf("DebugImages: %v", err)
	}
	if got.BotID != res.BotID || got.Dir != "debug/bot" {
		t.Errorf("listing: got %+v", got)
	}
	if len(got.Images) != 1 || got.Images[0] != "frame_0001_original.png" {
		t.Errorf("images: got %v", got.Images)
	}

	if _, err := svc.DebugImages(context.Background(), "no-such-bot"); err != ports.ErrBotNotFound {
		t.Errorf("DebugImages(unknown): got %v, want ErrBotNotFound", err)
	}
}

func TestDebugImagesWithoutStore(t *testing.T) {
	t.Parallel()
	svc := NewBotService(staticFactory(newFakeBackend()), happyAnalyzer(), &recordingEmitter{}, nil, quietLogger(), testOptions(t))

	res, err := svc.Create(context.Background(), domain.BotConfig{MeetingID: "123", SessionID: "sess-ns"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer svc.StopAll(context.Background())

	got, err := svc.DebugImages(context.Background(), res.BotID)
	if err != nil {
		t.Fatalf("DebugImages: %v", err)
	}
	if len(got.Images) != 0 {
		t.Errorf("images without a store: got %v, want none", got.Images)
	}
}

func TestStopUnknownBot(t *testing.T) {
	t.Parallel()
	svc := NewBotService(staticFactory(newFakeBackend()), &fakeAnalyzer{}, &recordingEmitter{}, nil, quietLogger(), testOptions(t))

	if err := svc.Stop(context.Background(), "no-such-bot"); err != ports.ErrBotNotFound {
		t.Errorf("Stop: got %v, want ErrBotNotFound", err)
	}
}
