// Package fetch contains the lightweight HTTP access that happens before
// a browser session is spun up.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bbscraper/log"

	"github.com/go-resty/resty/v2"
)

// Preflight checks candidate entry URLs without a browser.
type Preflight struct {
	client *resty.Client
}

func NewPreflight(userAgent string) *Preflight {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &Preflight{client: client}
}

// PickEntryURL returns the first candidate that answers without a
// transport error. Non-2xx statuses do not disqualify a candidate since
// login pages frequently answer with redirects or auth challenges; only
// failing to reach the host at all does.
func (p *Preflight) PickEntryURL(ctx context.Context, candidates []string) (string, error) {
	logger := log.LoggerFromContext(ctx)
	var lastErr error
	for _, u := range candidates {
		_, err := p.client.R().SetContext(ctx).Get(u)
		if err != nil {
			logger.Warn("entry url unreachable", slog.String("url", u), slog.String("err", err.Error()))
			lastErr = err
			continue
		}
		logger.Debug("entry url reachable", slog.String("url", u))
		return u, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no entry url candidates configured")
	}
	return "", fmt.Errorf("no reachable entry url: %w", lastErr)
}
