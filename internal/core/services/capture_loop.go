package services

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go-emotion-bot/internal/core/domain"
	"go-emotion-bot/internal/core/ports"
)

// maxGalleryPages bounds the auxiliary next-page navigations per tick.
const maxGalleryPages = 6

// captureLoop is the steady state: capture, analyze, tally, emit, sleep.
// A failed tick is logged and skipped; only the loss of the capture
// mechanism itself tears the session down.
func (r *botRunner) captureLoop(ctx context.Context) error {
	interval := r.session.Config.CaptureInterval
	r.log.WithField("interval", interval).Info("starting capture loop")

	for r.session.Active() {
		if err := r.tick(ctx); err != nil {
			if errors.Is(err, ports.ErrCaptureUnavailable) {
				return fmt.Errorf("capture: %w", err)
			}
			r.log.WithError(err).Warn("tick failed, skipping")
		}
		if !r.sleepInterruptible(interval) {
			break
		}
	}

	r.log.Info("capture loop ended")
	return nil
}

// tick runs one full capture cycle, including the auxiliary gallery pages.
func (r *botRunner) tick(ctx context.Context) error {
	// The displayed avatar substitutes for camera video; re-assert the
	// camera is off in case the client re-enabled it.
	r.ensureVideoOff(ctx)

	if err := r.captureAndAnalyze(ctx); err != nil {
		return err
	}
	r.capturePages(ctx)
	return nil
}

// captureAndAnalyze grabs one frame, runs inference, tallies the result and
// emits the update event.
func (r *botRunner) captureAndAnalyze(ctx context.Context) error {
	img, err := r.capture.Capture(ctx, r.surface)
	if err != nil {
		return err
	}

	frame := r.session.NextFrame()
	r.log.WithField("frame", frame).Debug("captured frame")
	if r.frames != nil {
		if err := r.frames.SaveFrame(r.session.BotID, frame, img); err != nil {
			r.log.WithError(err).Debug("could not save frame artifact")
		}
	}

	faces, err := r.analyzeFrame(ctx, img)
	if err != nil {
		return fmt.Errorf("analyze frame %d: %w", frame, err)
	}
	r.log.WithField("faces", len(faces)).Debug("frame analyzed")

	for i, f := range faces {
		r.session.RecordFace(i, f.Dominant, f.Confidence())
	}

	if r.frames != nil && len(faces) > 0 {
		if err := r.frames.SaveAnnotated(r.session.BotID, frame, img, faces); err != nil {
			r.log.WithError(err).Debug("could not save annotated artifact")
		}
	}

	r.emitEmotionUpdate()
	return nil
}

// analyzeFrame runs inference under a hard deadline so a wedged backend
// costs one tick, not the session.
func (r *botRunner) analyzeFrame(ctx context.Context, img image.Image) ([]domain.Face, error) {
	actx := ctx
	if r.timings.AnalyzeTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, r.timings.AnalyzeTimeout)
		defer cancel()
	}
	return r.analyzer.Analyze(actx, img)
}

// capturePages steps through additional gallery pages within the same
// logical tick, each with its own capture+analyze+emit cycle, then navigates
// back to the first page. Entirely best-effort.
func (r *botRunner) capturePages(ctx context.Context) {
	if r.surface == nil {
		return
	}

	captured := 0
	for page := 0; page < maxGalleryPages; page++ {
		if !r.session.Active() {
			break
		}
		if !clickFirst(ctx, r.surface, galleryNextStrategy) {
			break
		}
		if !r.sleepInterruptible(r.timings.GalleryPageWait) {
			break
		}
		if err := r.captureAndAnalyze(ctx); err != nil {
			r.log.WithError(err).Debug("gallery page capture failed")
			break
		}
		captured++
	}

	for i := 0; i < captured; i++ {
		if !clickFirst(ctx, r.surface, galleryPrevStrategy) {
			break
		}
	}
}

// ensureVideoOff clicks "Stop Video" when present; a present control means
// video is transmitting. Best-effort.
func (r *botRunner) ensureVideoOff(ctx context.Context) {
	if r.surface == nil {
		return
	}
	if clickFirst(ctx, r.surface, stopVideoStrategy) {
		r.log.Info("video was on, turned it off")
	}
}

// emitEmotionUpdate publishes the current per-participant dominant emotions
// and aggregate counters.
func (r *botRunner) emitEmotionUpdate() {
	snap := r.session.Snapshot()

	participants := make([]map[string]any, 0, len(snap.Participants))
	currentEmotions := make(map[string]int)
	for _, p := range snap.Participants {
		if p.DetectedCount == 0 {
			continue
		}
		participants = append(participants, map[string]any{
			"id":              p.ID,
			"name":            p.Name,
			"emotions":        p.Emotions,
			"detected_count":  p.DetectedCount,
			"current_emotion": p.CurrentEmotion,
		})
		currentEmotions[string(p.CurrentEmotion)]++
	}

	engagement := domain.Engagement(r.session.Detections())
	r.emit(ports.EventEmotionUpdate, map[string]any{
		"total_faces":       len(participants),
		"participants":      participants,
		"participant_count": snap.ParticipantCount,
		"frame_count":       snap.FrameCount,
		"total_detections":  snap.TotalDetections,
		"current_emotions":  currentEmotions,
		"engagement_score":  engagement.EngagementScore,
		"attention_level":   engagement.AttentionLevel,
	})
}
