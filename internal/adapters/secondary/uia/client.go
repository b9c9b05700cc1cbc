// Package uia drives the desktop meeting client through a platform
// UI-automation agent: a small sidecar on the same host that exposes window
// enumeration, control interaction and window capture over local HTTP. The
// agent owns everything platform-specific; this adapter only speaks its
// contract.
package uia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type client struct {
	baseURL string
	c       *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: baseURL,
		c:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("uia %s: %s: %s", path, resp.Status, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("uia %s decode: %w", path, err)
	}
	return nil
}

func (c *client) postJSON(ctx context.Context, path string, in any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("uia %s: %s: %s", path, resp.Status, string(b))
	}
	return nil
}

// getPNG fetches a capture endpoint; any non-200 is an error the caller may
// treat as "try the next capture strategy".
func (c *client) getPNG(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("uia %s: %s: %s", path, resp.Status, string(body))
	}
	return io.ReadAll(resp.Body)
}
