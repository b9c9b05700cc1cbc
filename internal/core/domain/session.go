package domain

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type BotState string

const (
	StateCreated          BotState = "created"
	StateLaunching        BotState = "launching"
	StateJoining          BotState = "joining"
	StateResolvingSurface BotState = "resolving_surface"
	StateActive           BotState = "active"
	StateStopping         BotState = "stopping"
	StateStopped          BotState = "stopped"
	StateError            BotState = "error"
)

// BotConfig is the validated join request a session is built from.
type BotConfig struct {
	MeetingID       string
	Passcode        string
	SessionID       string
	SessionName     string
	BotName         string
	CaptureInterval time.Duration
}

// Participant is one tracked face position. Identity is positional: it is
// assigned by detection order within a frame and not re-identified across
// frames, so participant_0 in consecutive frames is not guaranteed to be the
// same person if the gallery reorders.
type Participant struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Emotions      map[Emotion]int `json:"emotions"`
	DetectedCount int             `json:"detected_count"`
}

// CurrentEmotion is the participant's most frequently observed emotion.
func (p *Participant) CurrentEmotion() Emotion {
	var dominant Emotion
	best := 0
	for e, c := range p.Emotions {
		if c > best || (c == best && dominant != "" && e < dominant) {
			dominant = e
			best = c
		}
	}
	return dominant
}

// BotSession is the shared state of one automation instance. The owning
// background goroutine and the manager's request handlers both touch it, so
// all access goes through the mutex.
type BotSession struct {
	BotID  string
	Config BotConfig

	mu              sync.Mutex
	state           BotState
	isRunning       bool
	isInMeeting     bool
	frameCount      int
	totalDetections int
	participants    map[string]*Participant
	detections      []DetectionLog
}

func NewBotSession(botID string, cfg BotConfig) *BotSession {
	return &BotSession{
		BotID:        botID,
		Config:       cfg,
		state:        StateCreated,
		participants: make(map[string]*Participant),
	}
}

func (s *BotSession) State() BotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *BotSession) SetState(st BotState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// BeginRun flips the session to running exactly once. The second caller gets
// false, which the manager turns into an "already running" error.
func (s *BotSession) BeginRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return false
	}
	s.isRunning = true
	s.state = StateLaunching
	return true
}

func (s *BotSession) EnterMeeting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isInMeeting = true
	s.state = StateActive
}

// RequestStop clears the run flags; the background goroutine observes them at
// its next polling boundary and unwinds into the stop sequence.
func (s *BotSession) RequestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRunning = false
	s.isInMeeting = false
}

func (s *BotSession) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *BotSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning && s.isInMeeting
}

// NextFrame increments the capture counter and returns the new frame number.
func (s *BotSession) NextFrame() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameCount++
	return s.frameCount
}

// RecordFace tallies one detection at gallery position index and appends it
// to the session's detection log.
func (s *BotSession) RecordFace(index int, emotion Emotion, confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := fmt.Sprintf("participant_%d", index)
	p, ok := s.participants[id]
	if !ok {
		p = &Participant{
			ID:       id,
			Name:     fmt.Sprintf("Participant %d", index+1),
			Emotions: make(map[Emotion]int),
		}
		s.participants[id] = p
	}
	p.Emotions[emotion]++
	p.DetectedCount++
	s.totalDetections++
	s.detections = append(s.detections, DetectionLog{
		Emotion:    emotion,
		Confidence: confidence,
		Timestamp:  time.Now(),
	})
}

// Detections returns a copy of the session's detection log.
func (s *BotSession) Detections() []DetectionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DetectionLog(nil), s.detections...)
}

// ParticipantSnapshot is the read-only participant view in status payloads.
type ParticipantSnapshot struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Emotions       map[Emotion]int `json:"emotions"`
	DetectedCount  int             `json:"detected_count"`
	CurrentEmotion Emotion         `json:"current_emotion"`
}

// StatusSnapshot is a point-in-time copy of the session's observable state.
type StatusSnapshot struct {
	BotID            string                `json:"bot_id"`
	SessionID        string                `json:"session_id"`
	SessionName      string                `json:"session_name"`
	State            BotState              `json:"state"`
	IsRunning        bool                  `json:"is_running"`
	IsInMeeting      bool                  `json:"is_in_meeting"`
	FrameCount       int                   `json:"frame_count"`
	TotalDetections  int                   `json:"total_detections"`
	ParticipantCount int                   `json:"participant_count"`
	Participants     []ParticipantSnapshot `json:"participants"`
}

func (s *BotSession) Snapshot() StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatusSnapshot{
		BotID:            s.BotID,
		SessionID:        s.Config.SessionID,
		SessionName:      s.Config.SessionName,
		State:            s.state,
		IsRunning:        s.isRunning,
		IsInMeeting:      s.isInMeeting,
		FrameCount:       s.frameCount,
		TotalDetections:  s.totalDetections,
		ParticipantCount: len(s.participants),
		Participants:     make([]ParticipantSnapshot, 0, len(s.participants)),
	}
	for _, p := range s.participants {
		emotions := make(map[Emotion]int, len(p.Emotions))
		for e, c := range p.Emotions {
			emotions[e] = c
		}
		snap.Participants = append(snap.Participants, ParticipantSnapshot{
			ID:             p.ID,
			Name:           p.Name,
			Emotions:       emotions,
			DetectedCount:  p.DetectedCount,
			CurrentEmotion: p.CurrentEmotion(),
		})
	}
	sort.Slice(snap.Participants, func(i, j int) bool {
		return snap.Participants[i].ID < snap.Participants[j].ID
	})
	return snap
}

// NormalizeMeetingID strips spaces and dashes, and extracts the numeric id
// from zoom.us /j/ and /wc/ invite URLs.
func NormalizeMeetingID(raw string) string {
	if strings.Contains(raw, "zoom.us") {
		for _, prefix := range []string{"/j/", "/wc/"} {
			if idx := strings.Index(raw, prefix); idx >= 0 {
				rest := raw[idx+len(prefix):]
				rest = strings.SplitN(rest, "?", 2)[0]
				rest = strings.SplitN(rest, "/", 2)[0]
				raw = rest
				break
			}
		}
	}
	raw = strings.ReplaceAll(raw, " ", "")
	return strings.ReplaceAll(raw, "-", "")
}
