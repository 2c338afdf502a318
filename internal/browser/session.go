// Package browser drives one headless Chrome page for the agent. The
// process keeps a single session; a mutex serializes actions so tool
// calls from different channels cannot interleave on the page.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"

	"nexus/internal/logging"
)

// Config holds browser settings.
type Config struct {
	Headless      bool
	ActionTimeout time.Duration
	WindowWidth   int
	WindowHeight  int
}

// Session owns the Chrome instance and its single page.
type Session struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
}

// NewSession returns an unstarted session; Chrome launches lazily on the
// first action.
func NewSession(cfg Config) *Session {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 25 * time.Second
	}
	if cfg.WindowWidth <= 0 {
		cfg.WindowWidth = 1280
	}
	if cfg.WindowHeight <= 0 {
		cfg.WindowHeight = 900
	}
	return &Session{cfg: cfg}
}

// ensurePage launches Chrome on first use. Callers hold s.mu.
func (s *Session) ensurePage() (*rod.Page, error) {
	if s.page != nil {
		return s.page, nil
	}

	url, err := launcher.New().Headless(s.cfg.Headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.WindowWidth,
		Height:            s.cfg.WindowHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		logging.BrowserError("failed to set viewport: %v", err)
	}

	s.browser = browser
	s.page = page
	logging.Browser("browser session started (headless=%v)", s.cfg.Headless)
	return page, nil
}

// Close shuts the browser down.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
		s.page = nil
	}
}

// Navigate loads a URL and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.ensurePage()
	if err != nil {
		return "", err
	}

	p := page.Context(ctx).Timeout(s.cfg.ActionTimeout)
	if err := p.Navigate(url); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("page load timed out: %w", err)
	}

	info := page.MustInfo()
	logging.Browser("navigated to %s", info.URL)
	return info.URL, nil
}

// Screenshot captures the viewport as a PNG data URL for LOG payloads.
func (s *Session) Screenshot(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.ensurePage()
	if err != nil {
		return "", err
	}

	data, err := page.Context(ctx).Timeout(s.cfg.ActionTimeout).Screenshot(false, nil)
	if err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return DataURL(data), nil
}

// Click clicks the element matching selector, falling back to a
// visible-text match when the selector finds nothing.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.ensurePage()
	if err != nil {
		return err
	}

	el, err := s.resolve(page.Context(ctx), selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click %q: %w", selector, err)
	}
	logging.Browser("clicked %q", selector)
	return nil
}

// Type focuses the element matching selector and types text into it.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.ensurePage()
	if err != nil {
		return err
	}

	el, err := s.resolve(page.Context(ctx), selector)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("failed to type into %q: %w", selector, err)
	}
	return nil
}

// Scroll scrolls the page vertically by pixels (negative scrolls up).
func (s *Session) Scroll(ctx context.Context, pixels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.ensurePage()
	if err != nil {
		return err
	}

	_, err = page.Context(ctx).Timeout(s.cfg.ActionTimeout).
		Eval(`(px) => window.scrollBy(0, px)`, pixels)
	if err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

// Text extracts the page's visible text, capped for prompt feedback.
func (s *Session) Text(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.ensurePage()
	if err != nil {
		return "", err
	}

	raw, err := page.Context(ctx).Timeout(s.cfg.ActionTimeout).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return VisibleText(raw, 4000), nil
}

// Login navigates to a URL, fills credentials into the first matching
// user/password fields, submits, and reports the landed URL.
func (s *Session) Login(ctx context.Context, url, login, password string) (string, error) {
	if _, err := s.Navigate(ctx, url); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.ensurePage()
	if err != nil {
		return "", err
	}
	p := page.Context(ctx).Timeout(s.cfg.ActionTimeout)

	userField, err := firstMatch(p,
		`input[type="email"]`, `input[name*="user"]`, `input[name*="email"]`, `input[name*="login"]`, `input[type="text"]`)
	if err != nil {
		return "", fmt.Errorf("no login field found: %w", err)
	}
	if err := userField.Input(login); err != nil {
		return "", fmt.Errorf("failed to fill login: %w", err)
	}

	passField, err := firstMatch(p, `input[type="password"]`)
	if err != nil {
		return "", fmt.Errorf("no password field found: %w", err)
	}
	if err := passField.Input(password); err != nil {
		return "", fmt.Errorf("failed to fill password: %w", err)
	}

	submit, err := firstMatch(p, `button[type="submit"]`, `input[type="submit"]`, `button`)
	if err != nil {
		return "", fmt.Errorf("no submit control found: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("failed to submit login form: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		logging.BrowserError("post-login load wait: %v", err)
	}

	info := page.MustInfo()
	logging.Browser("login flow landed on %s", info.URL)
	return info.URL, nil
}

// resolve finds an element by CSS selector, then by visible text.
func (s *Session) resolve(page *rod.Page, selector string) (*rod.Element, error) {
	p := page.Timeout(s.cfg.ActionTimeout)

	if el, err := p.Element(selector); err == nil {
		return el, nil
	}

	el, err := p.ElementR("*", regexpQuote(selector))
	if err != nil {
		return nil, fmt.Errorf("no element matches selector or text %q", selector)
	}
	return el, nil
}

func firstMatch(page *rod.Page, selectors ...string) (*rod.Element, error) {
	for _, sel := range selectors {
		if has, el, err := page.Has(sel); err == nil && has {
			return el, nil
		}
	}
	return nil, fmt.Errorf("no element matched %v", selectors)
}

// regexpQuote builds the case-insensitive text pattern rod's ElementR
// expects.
func regexpQuote(text string) string {
	escaped := strings.NewReplacer(
		`\`, `\\`, `.`, `\.`, `+`, `\+`, `*`, `\*`, `?`, `\?`,
		`(`, `\(`, `)`, `\)`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`,
		`^`, `\^`, `$`, `\$`, `|`, `\|`,
	).Replace(text)
	return "/" + escaped + "/i"
}

// DataURL encodes PNG bytes as a data URL.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

// VisibleText flattens an HTML document into whitespace-normalized text,
// skipping script and style content, capped at max bytes.
func VisibleText(rawHTML string, max int) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	out := b.String()
	if max > 0 && len(out) > max {
		out = out[:max] + "..."
	}
	return out
}
