package uia

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/sirupsen/logrus"

	"go-emotion-bot/internal/core/ports"
)

// Capture implements the ordered capture fallback for the desktop client:
// off-screen window composition first (works while the window is occluded or
// inactive, so the bot never has to steal focus), then a region grab of the
// window's screen area, then the whole screen. Callers never learn which
// strategy produced the image.
type Capture struct {
	client *client
	log    *logrus.Logger
}

func NewCapture(agentURL string, log *logrus.Logger) *Capture {
	if log == nil {
		log = logrus.New()
	}
	return &Capture{client: newClient(agentURL), log: log}
}

func (c *Capture) Capture(ctx context.Context, surface ports.Window) (image.Image, error) {
	if w, ok := surface.(*window); ok {
		if img, err := c.composeWindow(ctx, w); err == nil {
			return img, nil
		} else {
			c.log.WithError(err).Debug("window composition capture failed")
		}
		if img, err := c.grabRegion(ctx, w); err == nil {
			return img, nil
		} else {
			c.log.WithError(err).Debug("region capture failed")
		}
	}

	img, err := c.grabScreen(ctx)
	if err != nil {
		// The whole-screen grab has no further fallback; losing it means the
		// display session is gone.
		return nil, fmt.Errorf("%w: %v", ports.ErrCaptureUnavailable, err)
	}
	return img, nil
}

func (c *Capture) composeWindow(ctx context.Context, w *window) (image.Image, error) {
	raw, err := c.client.getPNG(ctx, fmt.Sprintf("/windows/%d/capture", w.info.ID))
	if err != nil {
		return nil, err
	}
	return decodePNG(raw)
}

func (c *Capture) grabRegion(ctx context.Context, w *window) (image.Image, error) {
	b := w.info.Bounds
	path := fmt.Sprintf("/capture/region?x=%d&y=%d&w=%d&h=%d", b.X, b.Y, b.W, b.H)
	raw, err := c.client.getPNG(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodePNG(raw)
}

func (c *Capture) grabScreen(ctx context.Context) (image.Image, error) {
	raw, err := c.client.getPNG(ctx, "/capture/screen")
	if err != nil {
		return nil, err
	}
	return decodePNG(raw)
}

func decodePNG(raw []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	return img, nil
}
