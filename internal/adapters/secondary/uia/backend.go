package uia

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"

	"go-emotion-bot/internal/core/ports"
)

// Backend is the desktop-client automation backend: driver and capture over
// one agent. It holds no per-session state, so one factory can hand out
// backends sharing the same agent connection.
type Backend struct {
	*Driver
	capture *Capture
}

func NewBackend(agentURL, clientPath string, log *logrus.Logger) *Backend {
	return &Backend{
		Driver:  NewDriver(agentURL, clientPath),
		capture: NewCapture(agentURL, log),
	}
}

func (b *Backend) Capture(ctx context.Context, surface ports.Window) (image.Image, error) {
	return b.capture.Capture(ctx, surface)
}

// Factory adapts the backend to the per-session factory contract.
func Factory(agentURL, clientPath string, log *logrus.Logger) ports.BackendFactory {
	backend := NewBackend(agentURL, clientPath, log)
	return func() (ports.AutomationBackend, error) {
		return backend, nil
	}
}
