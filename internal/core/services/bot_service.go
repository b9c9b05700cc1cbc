package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-emotion-bot/internal/core/domain"
	"go-emotion-bot/internal/core/ports"
)

// Options configures a bot service instance. One service instance serves one
// client variant (browser or desktop) and so carries that variant's default
// capture interval.
type Options struct {
	DefaultBotName     string
	DefaultSessionName string
	DefaultInterval    time.Duration
	DataDirRoot        string
	StopTimeout        time.Duration // how long Stop waits for teardown
	Timings            Timings
}

func (o *Options) fill() {
	if o.DefaultBotName == "" {
		o.DefaultBotName = "Emotion Bot"
	}
	if o.DefaultSessionName == "" {
		o.DefaultSessionName = "Unnamed Session"
	}
	if o.DefaultInterval <= 0 {
		o.DefaultInterval = 240 * time.Second
	}
	if o.DataDirRoot == "" {
		o.DataDirRoot = "."
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 30 * time.Second
	}
	if o.Timings == (Timings{}) {
		o.Timings = DefaultTimings()
	}
}

type registeredBot struct {
	session *domain.BotSession
	runner  *botRunner
}

type botService struct {
	bots     map[string]*registeredBot
	mu       sync.RWMutex
	backends ports.BackendFactory
	analyzer ports.FaceAnalyzer
	emitter  ports.Emitter
	frames   ports.FrameStore
	log      *logrus.Logger
	opts     Options
}

// NewBotService builds the Bot Manager. The registry is only ever touched by
// the host request goroutines; session goroutines operate solely on their
// own session object and deregister through a callback.
func NewBotService(
	backends ports.BackendFactory,
	analyzer ports.FaceAnalyzer,
	emitter ports.Emitter,
	frames ports.FrameStore,
	log *logrus.Logger,
	opts Options,
) ports.BotService {
	opts.fill()
	if log == nil {
		log = logrus.New()
	}
	return &botService{
		bots:     make(map[string]*registeredBot),
		backends: backends,
		analyzer: analyzer,
		emitter:  emitter,
		frames:   frames,
		log:      log,
		opts:     opts,
	}
}

func (s *botService) Create(ctx context.Context, cfg domain.BotConfig) (ports.CreateResult, error) {
	if cfg.MeetingID == "" {
		return ports.CreateResult{}, fmt.Errorf("meeting_id is required")
	}
	if cfg.SessionID == "" {
		return ports.CreateResult{}, fmt.Errorf("session_id is required")
	}
	cfg.MeetingID = domain.NormalizeMeetingID(cfg.MeetingID)
	if cfg.BotName == "" {
		cfg.BotName = s.opts.DefaultBotName
	}
	if cfg.SessionName == "" {
		cfg.SessionName = s.opts.DefaultSessionName
	}
	if cfg.CaptureInterval <= 0 {
		cfg.CaptureInterval = s.opts.DefaultInterval
	}

	backend, err := s.backends()
	if err != nil {
		return ports.CreateResult{}, fmt.Errorf("automation backend: %w", err)
	}

	botID := uuid.New().String()
	session := domain.NewBotSession(botID, cfg)
	if !session.BeginRun() {
		return ports.CreateResult{}, ports.ErrAlreadyRunning
	}

	runner := &botRunner{
		session:  session,
		driver:   backend,
		capture:  backend,
		analyzer: s.analyzer,
		emitter:  s.emitter,
		frames:   s.frames,
		timings:  s.opts.Timings,
		dataDir:  filepath.Join(s.opts.DataDirRoot, "bot_data_"+botID),
		done:     make(chan struct{}),
		onExit:   func() { s.deregister(botID) },
		log: s.log.WithFields(logrus.Fields{
			"bot_id":     botID,
			"session_id": cfg.SessionID,
		}),
	}

	s.mu.Lock()
	s.bots[botID] = &registeredBot{session: session, runner: runner}
	s.mu.Unlock()

	go runner.run()

	s.log.WithField("bot_id", botID).Info("bot created")
	return ports.CreateResult{
		BotID:   botID,
		Status:  "starting",
		Message: "Bot is starting...",
	}, nil
}

func (s *botService) Status(ctx context.Context, botID string) (domain.StatusSnapshot, error) {
	s.mu.RLock()
	bot, ok := s.bots[botID]
	s.mu.RUnlock()
	if !ok {
		return domain.StatusSnapshot{}, ports.ErrBotNotFound
	}
	return bot.session.Snapshot(), nil
}

func (s *botService) Analytics(ctx context.Context, botID string) (domain.SessionAnalytics, error) {
	s.mu.RLock()
	bot, ok := s.bots[botID]
	s.mu.RUnlock()
	if !ok {
		return domain.SessionAnalytics{}, ports.ErrBotNotFound
	}

	logs := bot.session.Detections()
	stats, engagement, timeline, anomalies := domain.Analyze(logs)
	return domain.SessionAnalytics{
		BotID:      botID,
		SessionID:  bot.session.Config.SessionID,
		Stats:      stats,
		Engagement: engagement,
		Timeline:   timeline,
		Anomalies:  anomalies,
	}, nil
}

func (s *botService) DebugImages(ctx context.Context, botID string) (ports.DebugImages, error) {
	s.mu.RLock()
	_, ok := s.bots[botID]
	s.mu.RUnlock()
	if !ok {
		return ports.DebugImages{}, ports.ErrBotNotFound
	}

	out := ports.DebugImages{BotID: botID, Images: []string{}}
	if s.frames == nil {
		return out, nil
	}
	dir, images, err := s.frames.ListFrames(botID)
	if err != nil {
		return ports.DebugImages{}, fmt.Errorf("list frames: %w", err)
	}
	out.Dir = dir
	if len(images) > 0 {
		out.Images = images
	}
	return out, nil
}

func (s *botService) List(ctx context.Context) []domain.StatusSnapshot {
	s.mu.RLock()
	bots := make([]*registeredBot, 0, len(s.bots))
	for _, b := range s.bots {
		bots = append(bots, b)
	}
	s.mu.RUnlock()

	snaps := make([]domain.StatusSnapshot, 0, len(bots))
	for _, b := range bots {
		snaps = append(snaps, b.session.Snapshot())
	}
	return snaps
}

// Stop signals the session, waits for its teardown to finish (bounded), and
// deregisters the bot. A session whose automation is wedged past the timeout
// is deregistered anyway; its goroutine finishes cleanup on its own.
func (s *botService) Stop(ctx context.Context, botID string) error {
	s.mu.RLock()
	bot, ok := s.bots[botID]
	s.mu.RUnlock()
	if !ok {
		return ports.ErrBotNotFound
	}

	bot.session.RequestStop()

	select {
	case <-bot.runner.done:
	case <-time.After(s.opts.StopTimeout):
		s.log.WithField("bot_id", botID).Warn("stop timed out waiting for teardown")
	case <-ctx.Done():
	}

	s.deregister(botID)
	return nil
}

func (s *botService) StopAll(ctx context.Context) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.bots))
	for id := range s.bots {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		if err := s.Stop(ctx, id); err != nil && err != ports.ErrBotNotFound {
			s.log.WithError(err).WithField("bot_id", id).Warn("stop failed")
		}
	}
}

func (s *botService) deregister(botID string) {
	s.mu.Lock()
	delete(s.bots, botID)
	s.mu.Unlock()
}
