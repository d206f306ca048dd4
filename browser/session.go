// Package browser wraps chromedp with the session and page model the
// scraper needs: one browser process per invocation, isolated tabs,
// presence probes, popup capture and download capture.
package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Options configures a Session. Zero values fall back to defaults.
type Options struct {
	UserAgent    string
	SettleWait   time.Duration // wait after navigation for SPA rendering
	ProbeTimeout time.Duration // bounded wait for presence probes
	DownloadWait time.Duration // bounded wait for the download race
}

func (o *Options) withDefaults() {
	if o.SettleWait == 0 {
		o.SettleWait = 1200 * time.Millisecond
	}
	if o.ProbeTimeout == 0 {
		o.ProbeTimeout = 4 * time.Second
	}
	if o.DownloadWait == 0 {
		o.DownloadWait = 5 * time.Second
	}
}

// Session is one browser process plus its isolated browsing context. It
// is owned by exactly one scrape invocation and must be closed when the
// invocation ends; Close is safe to call more than once.
type Session struct {
	opts         Options
	allocCtx     context.Context
	cancelAlloc  context.CancelFunc
	browserCtx   context.Context
	cancelChrome context.CancelFunc
	downloadDir  string
	closeOnce    sync.Once
}

// NewSession launches a headless browser and prepares a download
// directory for it.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	opts.withDefaults()

	execOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1920, 1080), // init with a desktop view (sometimes pages look different on mobile, eg buttons are missing)
		chromedp.NoSandbox,
	)
	if opts.UserAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(opts.UserAgent))
	}

	downloadDir, err := os.MkdirTemp("", "bbscraper-dl-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, execOpts...)
	browserCtx, cancelChrome := chromedp.NewContext(allocCtx)

	s := &Session{
		opts:         opts,
		allocCtx:     allocCtx,
		cancelAlloc:  cancelAlloc,
		browserCtx:   browserCtx,
		cancelChrome: cancelChrome,
		downloadDir:  downloadDir,
	}

	// starts the browser process so the first page does not pay for it
	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return s, nil
}

// NewPage opens a fresh tab in the session's browsing context.
func (s *Session) NewPage() (*Page, error) {
	ctx, cancel := chromedp.NewContext(s.browserCtx)
	p := &Page{
		session: s,
		ctx:     ctx,
		cancel:  cancel,
	}
	if err := p.enableDownloads(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Close tears down the browser process and the download directory.
// Closing an already closed session is a no-op.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancelChrome()
		s.cancelAlloc()
		if s.downloadDir != "" {
			os.RemoveAll(s.downloadDir)
		}
	})
}
