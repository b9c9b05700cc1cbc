package domain

import (
	"math"
	"sort"
	"time"
)

// AggregatedStats summarizes a sequence of detections for reporting.
type AggregatedStats struct {
	TotalDetections       int                   `json:"total_detections"`
	EmotionDistribution   map[Emotion]float64   `json:"emotion_distribution"`
	EmotionCounts         map[Emotion]int       `json:"emotion_counts"`
	AverageConfidence     float64               `json:"average_confidence"`
	SentimentDistribution map[Sentiment]float64 `json:"sentiment_distribution"`
}

// EngagementMetrics is the derived engagement view of a detection log.
type EngagementMetrics struct {
	EngagementScore float64 `json:"engagement_score"`
	AttentionLevel  string  `json:"attention_level"`
	Recommendation  string  `json:"recommendation"`
}

// TimelinePoint is one time bucket of aggregated detections.
type TimelinePoint struct {
	Timestamp   time.Time       `json:"timestamp"`
	IntervalEnd *time.Time      `json:"interval_end,omitempty"`
	Data        AggregatedStats `json:"data"`
}

// Anomaly flags one detection whose confidence sits unusually far from the
// session's mean.
type Anomaly struct {
	Index      int       `json:"index"`
	Timestamp  time.Time `json:"timestamp"`
	Emotion    Emotion   `json:"emotion"`
	Confidence float64   `json:"confidence"`
	ZScore     float64   `json:"z_score"`
	Message    string    `json:"message"`
}

// SessionAnalytics is the full aggregated view of one bot's detection log.
type SessionAnalytics struct {
	BotID      string            `json:"bot_id"`
	SessionID  string            `json:"session_id"`
	Stats      AggregatedStats   `json:"stats"`
	Engagement EngagementMetrics `json:"engagement"`
	Timeline   []TimelinePoint   `json:"timeline"`
	Anomalies  []Anomaly         `json:"anomalies"`
}

// Analyze computes the complete analytics for a detection log.
func Analyze(logs []DetectionLog) (AggregatedStats, EngagementMetrics, []TimelinePoint, []Anomaly) {
	return Aggregate(logs), Engagement(logs), Timeline(logs, 0), DetectAnomalies(logs, 0)
}

// anomalyMinLogs is the sample size below which a z-score is meaningless.
const anomalyMinLogs = 10

// DetectAnomalies flags detections whose confidence z-score exceeds the
// threshold (default 2 standard deviations). Fewer than ten entries yields
// nothing.
func DetectAnomalies(logs []DetectionLog, threshold float64) []Anomaly {
	if len(logs) < anomalyMinLogs {
		return nil
	}
	if threshold <= 0 {
		threshold = 2.0
	}

	mean := 0.0
	for _, l := range logs {
		mean += l.Confidence
	}
	mean /= float64(len(logs))

	variance := 0.0
	for _, l := range logs {
		d := l.Confidence - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(logs)))

	var anomalies []Anomaly
	for i, l := range logs {
		z := 0.0
		if stddev > 0 {
			z = math.Abs((l.Confidence - mean) / stddev)
		}
		if z > threshold {
			anomalies = append(anomalies, Anomaly{
				Index:      i,
				Timestamp:  l.Timestamp,
				Emotion:    l.Emotion,
				Confidence: l.Confidence,
				ZScore:     round2(z),
				Message:    "Unusual confidence level detected",
			})
		}
	}
	return anomalies
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Aggregate turns detection logs into percentage distributions. Percentages
// across emotions present sum to 100 within rounding; an empty input yields
// empty maps.
func Aggregate(logs []DetectionLog) AggregatedStats {
	if len(logs) == 0 {
		return AggregatedStats{
			EmotionDistribution: map[Emotion]float64{},
			EmotionCounts:       map[Emotion]int{},
			SentimentDistribution: map[Sentiment]float64{
				SentimentPositive: 0,
				SentimentNegative: 0,
				SentimentNeutral:  0,
			},
		}
	}

	counts := make(map[Emotion]int)
	totalConfidence := 0.0
	for _, l := range logs {
		e := l.Emotion
		if e == "" {
			e = EmotionNeutral
		}
		counts[e]++
		totalConfidence += l.Confidence
	}

	total := len(logs)
	distribution := make(map[Emotion]float64, len(counts))
	sentimentCounts := map[Sentiment]int{
		SentimentPositive: 0,
		SentimentNegative: 0,
		SentimentNeutral:  0,
	}
	for e, c := range counts {
		distribution[e] = round2(float64(c) / float64(total) * 100)
		sentimentCounts[sentimentOf(e)] += c
	}

	sentiments := make(map[Sentiment]float64, 3)
	for s, c := range sentimentCounts {
		sentiments[s] = round2(float64(c) / float64(total) * 100)
	}

	return AggregatedStats{
		TotalDetections:       total,
		EmotionDistribution:   distribution,
		EmotionCounts:         counts,
		AverageConfidence:     round2(totalConfidence / float64(total)),
		SentimentDistribution: sentiments,
	}
}

// Engagement scores a detection log on [0,100]: positive emotions pull up,
// negative pull down, neutral counts at half weight.
func Engagement(logs []DetectionLog) EngagementMetrics {
	if len(logs) == 0 {
		return EngagementMetrics{
			AttentionLevel: "low",
			Recommendation: "Start the session to track engagement",
		}
	}

	agg := Aggregate(logs)
	score := 50 +
		agg.SentimentDistribution[SentimentPositive]*1.0 +
		agg.SentimentDistribution[SentimentNeutral]*0.5 +
		agg.SentimentDistribution[SentimentNegative]*-0.3
	score = math.Max(0, math.Min(100, score))

	m := EngagementMetrics{EngagementScore: round2(score)}
	switch {
	case score >= 70:
		m.AttentionLevel = "high"
		m.Recommendation = "Participants are highly engaged! Keep up the good work."
	case score >= 40:
		m.AttentionLevel = "medium"
		m.Recommendation = "Moderate engagement. Consider interactive activities."
	default:
		m.AttentionLevel = "low"
		m.Recommendation = "Low engagement detected. Try to interact more with participants."
	}
	return m
}

// Timeline buckets detections into fixed intervals and aggregates each bucket.
func Timeline(logs []DetectionLog, interval time.Duration) []TimelinePoint {
	if len(logs) == 0 {
		return nil
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	sorted := make([]DetectionLog, len(logs))
	copy(sorted, logs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var timeline []TimelinePoint
	var bucket []DetectionLog
	bucketStart := sorted[0].Timestamp

	for _, l := range sorted {
		if l.Timestamp.Sub(bucketStart) > interval {
			if len(bucket) > 0 {
				end := l.Timestamp
				timeline = append(timeline, TimelinePoint{
					Timestamp:   bucketStart,
					IntervalEnd: &end,
					Data:        Aggregate(bucket),
				})
			}
			bucketStart = l.Timestamp
			bucket = []DetectionLog{l}
			continue
		}
		bucket = append(bucket, l)
	}
	if len(bucket) > 0 {
		timeline = append(timeline, TimelinePoint{
			Timestamp: bucketStart,
			Data:      Aggregate(bucket),
		})
	}
	return timeline
}
