// internal/browser/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/uxagent/api/schemas"
	"github.com/xkilldash9x/uxagent/internal/config"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	defaultLoadTimeout       = 30 * time.Second
	defaultActionTimeout     = 15 * time.Second
)

// Session is a single chromedp tab driven on behalf of the agent. It owns the
// browser process it was opened with.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig

	mu     sync.Mutex
	closed bool
}

var _ schemas.Document = (*Session)(nil)

// Open launches a browser with cfg and attaches a tab to it. The browser lives
// until Close is called or ctx is canceled.
func Open(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	id := uuid.New().String()
	logger = logger.Named("session").With(zap.String("session_id", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	// The first Run starts the browser and creates the target.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Info("Browser session opened.", zap.Bool("headless", cfg.Headless))
	return &Session{
		id:     id,
		ctx:    tabCtx,
		cancel: cancel,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// RunActions executes chromedp actions bound to both the tab lifetime and ctx.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// RenderedTree serializes the live DOM and parses it into a fresh tree.
func (s *Session) RenderedTree(ctx context.Context) (*html.Node, error) {
	var outer string
	if err := s.RunActions(ctx, chromedp.OuterHTML("html", &outer, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to capture DOM: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(outer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOM: %w", err)
	}
	return doc, nil
}

// URL returns the current page location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var loc string
	if err := s.RunActions(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// Navigate loads url within the configured navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := orDefault(s.cfg.NavigationTimeout, defaultNavigationTimeout)
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("Navigating.", zap.String("url", url))
	if err := s.RunActions(navCtx, chromedp.Navigate(url)); err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("navigation to %s after %v: %w", url, timeout, ErrNavigationTimeout)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", ctx.Err())
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// WaitLoad blocks until the document body is ready. A non-positive timeout
// uses the configured load timeout.
func (s *Session) WaitLoad(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = orDefault(s.cfg.LoadTimeout, defaultLoadTimeout)
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.RunActions(waitCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Poll(`document.readyState === "complete"`, nil, chromedp.WithPollingTimeout(timeout)),
	)
	if err != nil {
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("page load after %v: %w", timeout, ErrNavigationTimeout)
		}
		return fmt.Errorf("waiting for page load: %w", err)
	}
	return nil
}

// Click clicks the element at the XPath selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	return s.interact(ctx, "click", selector,
		chromedp.ScrollIntoView(selector, chromedp.BySearch),
		chromedp.Click(selector, chromedp.BySearch, chromedp.NodeVisible),
	)
}

// Fill replaces the value of the field at selector.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	return s.interact(ctx, "fill", selector,
		chromedp.WaitVisible(selector, chromedp.BySearch),
		chromedp.Clear(selector, chromedp.BySearch),
		chromedp.SendKeys(selector, value, chromedp.BySearch),
	)
}

// Type appends keystrokes to the element at selector without clearing it.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	return s.interact(ctx, "type", selector,
		chromedp.WaitVisible(selector, chromedp.BySearch),
		chromedp.SendKeys(selector, text, chromedp.BySearch),
	)
}

// Press dispatches a named key. With an empty selector the key goes to the
// focused element.
func (s *Session) Press(ctx context.Context, selector, key string) error {
	seq := KeySequence(key)
	if selector == "" {
		return s.interact(ctx, "press", "(focused)", chromedp.KeyEvent(seq))
	}
	return s.interact(ctx, "press", selector,
		chromedp.WaitVisible(selector, chromedp.BySearch),
		chromedp.SendKeys(selector, seq, chromedp.BySearch),
	)
}

func (s *Session) interact(ctx context.Context, verb, selector string, actions ...chromedp.Action) error {
	timeout := orDefault(s.cfg.ActionTimeout, defaultActionTimeout)
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Debug("Interacting.", zap.String("verb", verb), zap.String("selector", selector))
	if err := s.RunActions(opCtx, actions...); err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%s on %s after %v: %w", verb, selector, timeout, ErrInteractionTimeout)
		}
		return fmt.Errorf("%s on %s failed: %w", verb, selector, err)
	}
	return nil
}

// Screenshot captures the full page as PNG and writes it to path.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.RunActions(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := writeFile(path, buf); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	s.logger.Info("Screenshot saved.", zap.String("path", path))
	return nil
}

// Close shuts down the tab and the browser. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Give the browser a chance to exit cleanly before the contexts go away.
	closeCtx, cancel := CombineContext(s.ctx, ctx)
	err := chromedp.Cancel(closeCtx)
	cancel()
	s.cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("Browser did not close cleanly.", zap.Error(err))
	}
	s.logger.Info("Browser session closed.")
	return nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
