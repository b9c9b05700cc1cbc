// Package faceapi talks to the face/emotion inference service. The service
// wraps the actual model; this client only ships frames and maps results.
package faceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"

	"go-emotion-bot/internal/core/domain"
	"go-emotion-bot/internal/core/ports"
)

// maxDimension caps the longer image side before upload; gallery screenshots
// are large and the detector gains nothing past this size.
const maxDimension = 1024

type faceRegion struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type faceResult struct {
	Region          faceRegion         `json:"region"`
	Emotions        map[string]float64 `json:"emotions"`
	DominantEmotion string             `json:"dominant_emotion"`
}

type analyzeResponse struct {
	Faces []faceResult `json:"faces"`
}

type Client struct {
	baseURL string
	c       *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		c:       &http.Client{Timeout: 120 * time.Second},
	}
}

// Analyze sends one frame to the inference service. No detected face is an
// empty slice, not an error; only malformed input and transport failures
// error out.
func (a *Client) Analyze(ctx context.Context, img image.Image) ([]domain.Face, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("zero-size image %dx%d", bounds.Dx(), bounds.Dy())
	}

	img = downscale(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/analyze", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := a.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("analyze %s: %s", resp.Status, string(body))
	}

	var out analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("analyze decode: %w", err)
	}

	faces := make([]domain.Face, 0, len(out.Faces))
	for _, f := range out.Faces {
		emotions := make(map[domain.Emotion]float64, len(f.Emotions))
		for label, score := range f.Emotions {
			emotions[domain.Emotion(label)] = score
		}
		dominant := domain.Emotion(f.DominantEmotion)
		if dominant == "" {
			dominant = domain.EmotionNeutral
		}
		faces = append(faces, domain.Face{
			Region:   image.Rect(f.Region.X, f.Region.Y, f.Region.X+f.Region.W, f.Region.Y+f.Region.H),
			Dominant: dominant,
			Emotions: emotions,
		})
	}
	return faces, nil
}

// downscale shrinks the frame so its longer side is at most maxDimension.
func downscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longer := w
	if h > longer {
		longer = h
	}
	if longer <= maxDimension {
		return img
	}
	scale := float64(maxDimension) / float64(longer)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// Serial wraps an analyzer whose backend is not safe for concurrent use,
// serializing calls behind a lock. Sessions share one inference capability,
// so this is the shared-resource guard the design requires for such models.
type Serial struct {
	inner ports.FaceAnalyzer
	mu    sync.Mutex
}

func NewSerial(inner ports.FaceAnalyzer) *Serial {
	return &Serial{inner: inner}
}

func (s *Serial) Analyze(ctx context.Context, img image.Image) ([]domain.Face, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Analyze(ctx, img)
}
