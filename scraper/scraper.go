// Package scraper sequences authentication, navigation and per-page
// extraction into one scrape result. Detail pages are processed strictly
// one at a time: concurrency would make the download race ambiguous and
// multiplies the risk of tripping provider-side bot defenses.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bbscraper/auth"
	"bbscraper/browser"
	"bbscraper/config"
	"bbscraper/fetch"
	"bbscraper/log"
	"bbscraper/mirror"
	"bbscraper/types"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("bbscraper/scraper")

// Scraper owns the session lifecycle of one invocation.
type Scraper struct {
	cfg       *config.Config
	mirror    mirror.Mirror
	preflight *fetch.Preflight
}

func New(cfg *config.Config, m mirror.Mirror) *Scraper {
	return &Scraper{
		cfg:       cfg,
		mirror:    m,
		preflight: fetch.NewPreflight(cfg.UserAgent),
	}
}

// Scrape runs one full invocation: session acquisition, login,
// navigation, the sequential per-assignment loop, and unconditional
// session teardown.
func (s *Scraper) Scrape(ctx context.Context) (*types.ScrapeResult, error) {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()
	logger := log.LoggerFromContext(ctx)

	entryURL, err := s.preflight.PickEntryURL(ctx, s.cfg.EntryURLs())
	if err != nil {
		return nil, err
	}

	session, err := browser.NewSession(ctx, browser.Options{
		UserAgent:    s.cfg.UserAgent,
		SettleWait:   time.Duration(s.cfg.PageLoadWaitMS) * time.Millisecond,
		ProbeTimeout: time.Duration(s.cfg.ProbeTimeoutMS) * time.Millisecond,
		DownloadWait: time.Duration(s.cfg.DownloadWaitMS) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	// released on every exit path; Close is idempotent
	defer session.Close()

	page, err := session.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	authn := auth.New(s.cfg, entryURL)
	if err := authn.Login(ctx, auth.NewPageSurface(page)); err != nil {
		return nil, err
	}

	nav := &navigator{cfg: s.cfg}
	links, err := nav.links(ctx, page, func(ctx context.Context) error {
		return authn.Login(ctx, auth.NewPageSurface(page))
	})
	if err != nil {
		return nil, err
	}

	ext := &extractor{cfg: s.cfg, mirror: s.mirror}
	assignments := []types.Assignment{}
	for _, link := range links {
		record, err := s.scrapeDetail(ctx, session, ext, link)
		if err != nil {
			// a single detail page must not abort the batch
			logger.Warn("failed to scrape detail page, keeping degraded record",
				slog.String("url", link.URL), slog.String("err", err.Error()))
			record = types.Assignment{URL: link.URL, Title: link.Text, Resources: []types.Resource{}}
		}
		assignments = append(assignments, record)
	}

	return &types.ScrapeResult{
		ScrapedAt:   time.Now().UTC(),
		Assignments: assignments,
	}, nil
}

// scrapeDetail opens an isolated page for one assignment, extracts it,
// and closes the page before the next link is touched.
func (s *Scraper) scrapeDetail(ctx context.Context, session *browser.Session, ext *extractor, link types.AssignmentLink) (types.Assignment, error) {
	ctx, span := tracer.Start(ctx, "scrapeDetail")
	defer span.End()

	page, err := session.NewPage()
	if err != nil {
		return types.Assignment{}, err
	}
	defer page.Close()

	if err := page.Navigate(link.URL); err != nil {
		return types.Assignment{}, fmt.Errorf("failed to open detail page: %w", err)
	}
	return ext.assignment(ctx, page, link), nil
}
