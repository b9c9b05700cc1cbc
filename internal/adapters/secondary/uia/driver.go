package uia

import (
	"context"
	"fmt"
	"image"
	"net/url"

	"go-emotion-bot/internal/adapters/secondary/execproc"
	"go-emotion-bot/internal/core/ports"
)

// Driver implements the automation capability for the desktop meeting
// client: the client binary is spawned locally, the join is triggered
// through the client's protocol URI, and all UI inspection goes through the
// UI-automation agent.
type Driver struct {
	client     *client
	clientPath string // meeting client binary
}

func NewDriver(agentURL, clientPath string) *Driver {
	return &Driver{
		client:     newClient(agentURL),
		clientPath: clientPath,
	}
}

func (d *Driver) Launch(ctx context.Context, dataDir string) (ports.Process, error) {
	if d.clientPath == "" {
		return nil, fmt.Errorf("meeting client binary not configured")
	}
	return execproc.Start(ctx, d.clientPath, "--datadir="+dataDir)
}

// TriggerJoin invokes the client's join protocol URI; the already-running
// client picks it up and opens the join preview dialog.
func (d *Driver) TriggerJoin(ctx context.Context, meetingID, displayName, passcode string) error {
	params := url.Values{}
	params.Set("confno", meetingID)
	params.Set("uname", displayName)
	if passcode != "" {
		params.Set("pwd", passcode)
	}
	return execproc.OpenURI(ctx, "zoommtg://zoom.us/join?"+params.Encode())
}

type windowInfo struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Bounds struct {
		X int `json:"x"`
		Y int `json:"y"`
		W int `json:"w"`
		H int `json:"h"`
	} `json:"bounds"`
}

type controlInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func (d *Driver) Windows(ctx context.Context) ([]ports.Window, error) {
	var resp struct {
		Windows []windowInfo `json:"windows"`
	}
	if err := d.client.getJSON(ctx, "/windows", &resp); err != nil {
		return nil, err
	}
	windows := make([]ports.Window, 0, len(resp.Windows))
	for _, w := range resp.Windows {
		windows = append(windows, &window{driver: d, info: w})
	}
	return windows, nil
}

func (d *Driver) SendKeys(ctx context.Context, keys ...string) error {
	return d.client.postJSON(ctx, "/keys", map[string]any{"keys": keys})
}

type window struct {
	driver *Driver
	info   windowInfo
}

func (w *window) Title() string {
	return w.info.Title
}

func (w *window) Bounds(ctx context.Context) (image.Rectangle, error) {
	b := w.info.Bounds
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H), nil
}

func (w *window) Controls(ctx context.Context, kind ports.ControlKind) ([]ports.Control, error) {
	var resp struct {
		Controls []controlInfo `json:"controls"`
	}
	path := fmt.Sprintf("/windows/%d/controls?type=%s", w.info.ID, url.QueryEscape(string(kind)))
	if err := w.driver.client.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	controls := make([]ports.Control, 0, len(resp.Controls))
	for _, c := range resp.Controls {
		controls = append(controls, &control{driver: w.driver, info: c})
	}
	return controls, nil
}

func (w *window) Maximize(ctx context.Context) error {
	return w.driver.client.postJSON(ctx, fmt.Sprintf("/windows/%d/maximize", w.info.ID), nil)
}

func (w *window) Focus(ctx context.Context) error {
	return w.driver.client.postJSON(ctx, fmt.Sprintf("/windows/%d/focus", w.info.ID), nil)
}

type control struct {
	driver *Driver
	info   controlInfo
}

func (c *control) Label() string {
	return c.info.Label
}

func (c *control) Click(ctx context.Context) error {
	return c.driver.client.postJSON(ctx, "/controls/"+url.PathEscape(c.info.ID)+"/click", nil)
}

func (c *control) SetText(ctx context.Context, text string) error {
	return c.driver.client.postJSON(ctx, "/controls/"+url.PathEscape(c.info.ID)+"/text", map[string]any{"text": text})
}
