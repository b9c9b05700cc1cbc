// Package rod is the browser-client automation backend: it drives the
// meeting web client inside a headless Chrome instance. The generic window
// and control capabilities map onto the page DOM, so the state machine runs
// the same join sequence against the web client as against the desktop one.
package rod

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/sirupsen/logrus"

	"go-emotion-bot/internal/core/ports"
)

const windowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// stealthJS hides the automation fingerprints the web client refuses to
// serve a real meeting to.
const stealthJS = `
	const winUA = '` + windowsUA + `';
	Object.defineProperty(navigator, 'userAgent', { get: () => winUA });
	Object.defineProperty(navigator, 'webdriver', { get: () => false });
	Object.defineProperty(navigator, 'platform', { get: () => 'Win32' });
	Object.defineProperty(navigator, 'vendor', { get: () => 'Google Inc.' });
	Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
	Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 8 });
	Object.defineProperty(navigator, 'deviceMemory', { get: () => 8 });

	window.chrome = { runtime: {} };
	delete navigator.__proto__.webdriver;
`

// Backend owns one browser for one session. It is not shared: each session
// gets its own instance through Factory.
type Backend struct {
	bin      string
	headless bool
	log      *logrus.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func NewBackend(bin string, headless bool, log *logrus.Logger) *Backend {
	if log == nil {
		log = logrus.New()
	}
	return &Backend{bin: bin, headless: headless, log: log}
}

// Factory builds a fresh browser backend per session; concurrent bots must
// not share a browser profile.
func Factory(bin string, headless bool, log *logrus.Logger) ports.BackendFactory {
	return func() (ports.AutomationBackend, error) {
		return NewBackend(bin, headless, log), nil
	}
}

// Launch starts Chrome with the session's isolated profile directory.
func (b *Backend) Launch(ctx context.Context, dataDir string) (ports.Process, error) {
	l := launcher.New().
		Bin(b.bin).
		UserDataDir(dataDir).
		Headless(b.headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled").
		Set("use-fake-ui-for-media-stream").
		Set("use-fake-device-for-media-stream").
		Set("autoplay-policy", "no-user-gesture-required").
		Set("disable-popup-blocking").
		Set("disable-notifications").
		Set("user-agent", windowsUA)

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	var page *rod.Page
	err = rod.Try(func() {
		page = browser.MustPage("")
		page.MustEvalOnNewDocument(stealthJS)
		page.MustSetViewport(1920, 1080, 1, false)
	})
	if err != nil {
		browser.Close()
		l.Kill()
		return nil, fmt.Errorf("prepare page: %w", err)
	}
	go page.HandleDialog()

	b.mu.Lock()
	b.launcher = l
	b.browser = browser
	b.page = page
	b.mu.Unlock()

	return &browserProcess{backend: b}, nil
}

// TriggerJoin navigates to the web client join URL and pre-fills the display
// name. Dialog handling (a/v off, join click, passcode) stays with the
// caller, which works the DOM through the window/control capabilities.
func (b *Backend) TriggerJoin(ctx context.Context, meetingID, displayName, passcode string) error {
	page := b.currentPage()
	if page == nil {
		return fmt.Errorf("browser not launched")
	}

	params := url.Values{}
	params.Set("uname", displayName)
	if passcode != "" {
		params.Set("pwd", passcode)
	}
	joinURL := fmt.Sprintf("https://zoom.us/wc/join/%s?%s", url.PathEscape(meetingID), params.Encode())
	b.log.WithField("url", joinURL).Info("navigating to web client")

	if err := page.Navigate(joinURL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	time.Sleep(5 * time.Second)

	// Best-effort name fill; the URL parameter covers most client versions.
	_, err := page.Eval(`(name) => {
		const inputs = Array.from(document.querySelectorAll('input'));
		const nameInput = inputs.find(i =>
			(i.placeholder && i.placeholder.toLowerCase().includes('name')) ||
			(i.getAttribute('aria-label') || '').toLowerCase().includes('name')
		);
		if (!nameInput) return false;

		const setter = Object.getOwnPropertyDescriptor(window.HTMLInputElement.prototype, 'value').set;
		setter.call(nameInput, name);
		nameInput.dispatchEvent(new Event('input', { bubbles: true }));
		nameInput.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	}`, displayName)
	if err != nil {
		b.log.WithError(err).Debug("name pre-fill failed")
	}
	return nil
}

// Windows exposes the page as a single window whose title and bounds are
// snapshotted at enumeration time.
func (b *Backend) Windows(ctx context.Context) ([]ports.Window, error) {
	page := b.currentPage()
	if page == nil {
		return nil, fmt.Errorf("browser not launched")
	}

	obj, err := page.Eval(`() => [document.title, window.innerWidth, window.innerHeight]`)
	if err != nil {
		return nil, fmt.Errorf("inspect page: %w", err)
	}
	arr := obj.Value.Arr()
	if len(arr) != 3 {
		return nil, fmt.Errorf("unexpected page info")
	}

	return []ports.Window{&pageWindow{
		backend: b,
		title:   arr[0].Str(),
		bounds:  image.Rect(0, 0, arr[1].Int(), arr[2].Int()),
	}}, nil
}

func (b *Backend) SendKeys(ctx context.Context, keys ...string) error {
	page := b.currentPage()
	if page == nil {
		return fmt.Errorf("browser not launched")
	}
	for _, k := range keys {
		switch strings.ToLower(k) {
		case "enter":
			if err := page.Keyboard.Press(input.Enter); err != nil {
				return err
			}
		case "alt+q":
			if err := page.KeyActions().Press(input.AltLeft).Type(input.KeyQ).Do(); err != nil {
				return err
			}
		default:
			b.log.WithField("keys", k).Debug("unsupported key sequence, skipping")
		}
	}
	return nil
}

// Capture screenshots the page. For a browser backend the off-screen
// composition, region and full-screen strategies collapse into the same
// thing: the compositor renders the page regardless of window visibility.
// Losing the screenshot means the browser is gone, which is the
// capture-unavailable condition.
func (b *Backend) Capture(ctx context.Context, surface ports.Window) (image.Image, error) {
	page := b.currentPage()
	if page == nil {
		return nil, fmt.Errorf("%w: browser not launched", ports.ErrCaptureUnavailable)
	}

	buf, err := page.Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot: %v", ports.ErrCaptureUnavailable, err)
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

func (b *Backend) currentPage() *rod.Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page
}

// browserProcess adapts the browser lifecycle to the process handle the
// state machine tears down with.
type browserProcess struct {
	backend *Backend
}

// PID is not exposed by the launcher; the handle identifies the browser by
// ownership, not by pid.
func (p *browserProcess) PID() int { return 0 }

func (p *browserProcess) Terminate() error {
	p.backend.mu.Lock()
	browser := p.backend.browser
	p.backend.browser = nil
	p.backend.page = nil
	p.backend.mu.Unlock()

	if browser == nil {
		return nil
	}
	return browser.Close()
}

func (p *browserProcess) Kill() error {
	p.backend.mu.Lock()
	l := p.backend.launcher
	p.backend.launcher = nil
	p.backend.mu.Unlock()

	if l != nil {
		l.Kill()
	}
	return nil
}

// Wait returns immediately: Terminate closes the browser synchronously over
// the control connection.
func (p *browserProcess) Wait(timeout time.Duration) error {
	return nil
}

// pageWindow projects the page DOM as a window with buttons, inputs and
// menu items.
type pageWindow struct {
	backend *Backend
	title   string
	bounds  image.Rectangle
}

func (w *pageWindow) Title() string {
	return w.title
}

func (w *pageWindow) Bounds(ctx context.Context) (image.Rectangle, error) {
	return w.bounds, nil
}

// controlSelectors maps control kinds onto DOM queries.
var controlSelectors = map[ports.ControlKind]string{
	ports.ControlButton:   `button, [role="button"]`,
	ports.ControlEdit:     `input, textarea`,
	ports.ControlMenuItem: `[role="menuitem"]`,
}

// Controls enumerates matching DOM elements into a page-side registry and
// returns handles that act by registry index. The registry is replaced on
// every enumeration, so handles from a previous call go stale, which is the
// same contract native window handles have.
func (w *pageWindow) Controls(ctx context.Context, kind ports.ControlKind) ([]ports.Control, error) {
	page := w.backend.currentPage()
	if page == nil {
		return nil, fmt.Errorf("browser not launched")
	}
	selector, ok := controlSelectors[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported control kind %q", kind)
	}

	obj, err := page.Eval(`(selector) => {
		const els = Array.from(document.querySelectorAll(selector));
		window.__botControls = els;
		return els.map(e =>
			e.innerText || e.getAttribute('aria-label') || e.placeholder || e.value || ''
		);
	}`, selector)
	if err != nil {
		return nil, fmt.Errorf("enumerate controls: %w", err)
	}

	labels := obj.Value.Arr()
	controls := make([]ports.Control, 0, len(labels))
	for i, l := range labels {
		controls = append(controls, &domControl{
			backend: w.backend,
			index:   i,
			label:   strings.TrimSpace(l.Str()),
		})
	}
	return controls, nil
}

func (w *pageWindow) Maximize(ctx context.Context) error {
	page := w.backend.currentPage()
	if page == nil {
		return fmt.Errorf("browser not launched")
	}
	return rod.Try(func() {
		page.MustSetViewport(1920, 1080, 1, false)
	})
}

func (w *pageWindow) Focus(ctx context.Context) error {
	page := w.backend.currentPage()
	if page == nil {
		return fmt.Errorf("browser not launched")
	}
	_, err := page.Activate()
	return err
}

type domControl struct {
	backend *Backend
	index   int
	label   string
}

func (c *domControl) Label() string {
	return c.label
}

func (c *domControl) Click(ctx context.Context) error {
	page := c.backend.currentPage()
	if page == nil {
		return fmt.Errorf("browser not launched")
	}
	obj, err := page.Eval(`(i) => {
		const el = (window.__botControls || [])[i];
		if (!el) return false;
		el.click();
		return true;
	}`, c.index)
	if err != nil {
		return fmt.Errorf("click: %w", err)
	}
	if !obj.Value.Bool() {
		return fmt.Errorf("control %d is stale", c.index)
	}
	return nil
}

// SetText writes through the native value setter and fires the framework
// events; assigning .value directly is invisible to the web client's UI
// framework.
func (c *domControl) SetText(ctx context.Context, text string) error {
	page := c.backend.currentPage()
	if page == nil {
		return fmt.Errorf("browser not launched")
	}
	obj, err := page.Eval(`(i, text) => {
		const el = (window.__botControls || [])[i];
		if (!el) return false;
		const setter = Object.getOwnPropertyDescriptor(window.HTMLInputElement.prototype, 'value').set;
		setter.call(el, text);
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		el.dispatchEvent(new Event('blur', { bubbles: true }));
		return true;
	}`, c.index, text)
	if err != nil {
		return fmt.Errorf("set text: %w", err)
	}
	if !obj.Value.Bool() {
		return fmt.Errorf("control %d is stale", c.index)
	}
	return nil
}
