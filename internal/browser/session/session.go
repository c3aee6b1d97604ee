// internal/browser/session/session.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pagescope/pagescope/api/schemas"
	"github.com/pagescope/pagescope/internal/browser/dom"
	"github.com/pagescope/pagescope/internal/browser/overlay"
	"github.com/pagescope/pagescope/internal/config"
)

const defaultNavigationTimeout = 90 * time.Second

// Session drives one headless browser tab. It navigates, exports the
// rendered document, runs the snapshot engine over it and pushes the
// resulting overlay back into the live page.
//
// The snapshot itself runs on the exported DOM, so everything the engine
// reports is reproducible offline from the same HTML.
type Session struct {
	cfg config.Interface
	log *zap.Logger

	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	ctx         context.Context
}

// New starts a browser allocator and opens a tab. Close releases both.
func New(parent context.Context, cfg config.Interface, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	browser := cfg.Browser()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", browser.Headless),
		chromedp.WindowSize(browser.ViewportWidth, browser.ViewportHeight),
	)
	if browser.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	for _, arg := range browser.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}))

	s := &Session{
		cfg:         cfg,
		log:         log,
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
		ctx:         tabCtx,
	}

	if err := chromedp.Run(tabCtx, emulation.SetDeviceMetricsOverride(
		int64(browser.ViewportWidth), int64(browser.ViewportHeight), 1, false)); err != nil {
		s.Close()
		return nil, fmt.Errorf("starting browser tab: %w", err)
	}
	return s, nil
}

// Navigate loads a URL and waits for the body to be ready, bounded by the
// configured navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := navigationTimeout(s.cfg.Browser().NavigationTimeout)
	navCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	s.log.Info("navigating", zap.String("url", url), zap.Duration("timeout", timeout))
	if err := chromedp.Run(navCtx, chromedp.Navigate(url), chromedp.WaitReady("body")); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Snapshot exports the rendered document and viewport, runs the snapshot
// engine over it, and, when highlighting is on, draws the overlay into the
// live page.
func (s *Session) Snapshot(ctx context.Context) (*dom.Snapshot, error) {
	rendered, width, height, err := s.exportDocument(ctx)
	if err != nil {
		return nil, err
	}

	page, err := dom.LoadPage(rendered, dom.LoadOptions{
		ViewportWidth:  width,
		ViewportHeight: height,
		Logger:         s.log,
	})
	if err != nil {
		return nil, fmt.Errorf("processing exported document: %w", err)
	}

	snap := dom.NewBuilder(s.cfg.Snapshot(), nil, s.log).Build(page)
	if s.cfg.Snapshot().DoHighlightElements && len(snap.Highlights) > 0 {
		if err := s.ApplyHighlights(ctx, snap.Highlights); err != nil {
			s.log.Warn("overlay injection failed", zap.Error(err))
		}
	}
	return snap, nil
}

// exportDocument pulls the serialized DOM and the viewport dimensions in
// parallel.
func (s *Session) exportDocument(ctx context.Context) (rendered string, width, height float64, err error) {
	var dims []float64
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return chromedp.Run(s.ctx, chromedp.OuterHTML("html", &rendered, chromedp.ByQuery))
	})
	g.Go(func() error {
		return chromedp.Run(s.ctx, chromedp.Evaluate("[window.innerWidth, window.innerHeight]", &dims))
	})
	if err = g.Wait(); err != nil {
		return "", 0, 0, fmt.Errorf("exporting document: %w", err)
	}
	if len(dims) == 2 {
		width, height = dims[0], dims[1]
	}
	return rendered, width, height, nil
}

// ApplyHighlights draws the overlay boxes into the live page.
func (s *Session) ApplyHighlights(ctx context.Context, boxes []schemas.HighlightBox) error {
	script, err := overlay.ApplyScript(boxes)
	if err != nil {
		return err
	}
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("applying highlights: %w", err)
	}
	return ctx.Err()
}

// RemoveHighlights clears the overlay container and tagging attributes from
// the live page.
func (s *Session) RemoveHighlights(ctx context.Context) error {
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(overlay.RemoveScript(), nil)); err != nil {
		return fmt.Errorf("removing highlights: %w", err)
	}
	return ctx.Err()
}

// Close shuts down the tab and the browser allocator.
func (s *Session) Close() {
	s.tabCancel()
	s.allocCancel()
}

// navigationTimeout parses the configured duration, falling back to the
// default on empty or malformed values.
func navigationTimeout(raw string) time.Duration {
	if raw == "" {
		return defaultNavigationTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultNavigationTimeout
	}
	return d
}
