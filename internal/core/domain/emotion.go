package domain

import (
	"image"
	"time"
)

type Emotion string

const (
	EmotionHappy    Emotion = "happy"
	EmotionSad      Emotion = "sad"
	EmotionAngry    Emotion = "angry"
	EmotionSurprise Emotion = "surprise"
	EmotionFear     Emotion = "fear"
	EmotionDisgust  Emotion = "disgust"
	EmotionNeutral  Emotion = "neutral"
)

// Emotions lists every label the inference backend can produce.
var Emotions = []Emotion{
	EmotionHappy, EmotionSad, EmotionAngry, EmotionSurprise,
	EmotionFear, EmotionDisgust, EmotionNeutral,
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// sentimentOf groups emotions into the three sentiment buckets used by the
// dashboard.
func sentimentOf(e Emotion) Sentiment {
	switch e {
	case EmotionHappy, EmotionSurprise:
		return SentimentPositive
	case EmotionSad, EmotionAngry, EmotionFear, EmotionDisgust:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Face is one detection within a single captured frame: where the face is and
// what the model thinks it is feeling.
type Face struct {
	Region   image.Rectangle
	Dominant Emotion
	Emotions map[Emotion]float64 // probability percentages per label
}

// Confidence is the probability the model assigned to the dominant emotion.
func (f Face) Confidence() float64 {
	return f.Emotions[f.Dominant]
}

// DetectionLog is one recorded detection, the unit Aggregate works over.
type DetectionLog struct {
	Emotion    Emotion   `json:"emotion"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}
