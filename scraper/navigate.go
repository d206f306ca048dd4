package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"bbscraper/auth"
	"bbscraper/config"
	"bbscraper/log"
	"bbscraper/types"

	"github.com/PuerkitoBio/goquery"
)

// NoAssignmentsError is returned when no detail link was discoverable by
// any fallback tier.
type NoAssignmentsError struct {
	URL string
}

func (e *NoAssignmentsError) Error() string {
	return fmt.Sprintf("no assignment links found at %s", e.URL)
}

// listPage is the subset of page operations list navigation needs. It is
// satisfied by *browser.Page and by fakes in tests.
type listPage interface {
	Navigate(url string) error
	Location() (string, error)
	ClickFirst(sel string) (bool, error)
	Settle() error
	HTML() (string, error)
}

// navigator reaches the assignment list view and produces a clean set of
// detail-page links.
type navigator struct {
	cfg *config.Config
}

// links navigates to the assignment center and discovers detail links.
// If the login marker is still present relogin is run once more and
// navigation retried exactly once, no further recursion.
func (n *navigator) links(ctx context.Context, page listPage, relogin func(context.Context) error) ([]types.AssignmentLink, error) {
	logger := log.LoggerFromContext(ctx)

	if err := page.Navigate(n.cfg.AssignURL); err != nil {
		return nil, fmt.Errorf("failed to open assignment center: %w", err)
	}
	loc, err := page.Location()
	if err != nil {
		return nil, err
	}
	if auth.IsLoginURL(loc, n.cfg.LoginMarker) {
		logger.Warn("assignment center still shows the login marker, re-authenticating once", slog.String("url", loc))
		if err := relogin(ctx); err != nil {
			return nil, err
		}
		if err := page.Navigate(n.cfg.AssignURL); err != nil {
			return nil, fmt.Errorf("failed to open assignment center: %w", err)
		}
		if loc, err = page.Location(); err != nil {
			return nil, err
		}
	}

	// the view may default to a calendar/card layout in which detail
	// links are not exposed; switching to the list layout is best effort
	for _, toggle := range n.cfg.Selectors.ListViewToggle {
		clicked, err := page.ClickFirst(toggle)
		if err != nil {
			logger.Debug("list view toggle failed", slog.String("selector", toggle), slog.String("err", err.Error()))
			continue
		}
		if clicked {
			logger.Debug("switched to list view", slog.String("selector", toggle))
			if err := page.Settle(); err != nil {
				return nil, err
			}
			break
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read assignment center document: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	links := discoverLinks(doc, n.cfg.Selectors, n.cfg.BaseURL)
	if len(links) == 0 {
		return nil, &NoAssignmentsError{URL: loc}
	}
	logger.Info("discovered assignment links", slog.Int("count", len(links)))
	return links, nil
}

// discoverLinks queries the rendered document in progressively broader
// tiers. A broader tier is only consulted when all stricter tiers
// yielded nothing; precision is preferred, breadth is the safety net.
func discoverLinks(doc *goquery.Document, sel config.Selectors, baseURL string) []types.AssignmentLink {
	tiers := []func() []types.AssignmentLink{
		func() []types.AssignmentLink { return linksFromSelection(doc.Find(sel.ListLinkPrecise), baseURL) },
		func() []types.AssignmentLink { return linksFromSelection(doc.Find(sel.ListLinkLoose), baseURL) },
		func() []types.AssignmentLink { return linksByKeyword(doc, sel.ListLinkKeyword, baseURL) },
	}
	for _, tier := range tiers {
		if links := dedupeLinks(tier()); len(links) > 0 {
			return links
		}
	}
	return nil
}

func linksFromSelection(selection *goquery.Selection, baseURL string) []types.AssignmentLink {
	var links []types.AssignmentLink
	selection.Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		links = append(links, types.AssignmentLink{
			URL:  absoluteURL(baseURL, href),
			Text: strings.TrimSpace(s.Text()),
		})
	})
	return links
}

// linksByKeyword is the broadest tier: any anchor whose link text or url
// contains the domain keyword.
func linksByKeyword(doc *goquery.Document, keyword, baseURL string) []types.AssignmentLink {
	keyword = strings.ToLower(keyword)
	if keyword == "" {
		return nil
	}
	var links []types.AssignmentLink
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		text := strings.TrimSpace(s.Text())
		if !strings.Contains(strings.ToLower(href), keyword) &&
			!strings.Contains(strings.ToLower(text), keyword) {
			return
		}
		links = append(links, types.AssignmentLink{
			URL:  absoluteURL(baseURL, href),
			Text: text,
		})
	})
	return links
}

// dedupeLinks removes repeated urls, keeping first-seen order and the
// first occurrence's display text.
func dedupeLinks(links []types.AssignmentLink) []types.AssignmentLink {
	seen := map[string]bool{}
	var out []types.AssignmentLink
	for _, l := range links {
		if seen[l.URL] {
			continue
		}
		seen[l.URL] = true
		out = append(out, l)
	}
	return out
}

// absoluteURL resolves href against the base url. Already-absolute hrefs
// and unparseable inputs are returned unchanged.
func absoluteURL(baseURL, href string) string {
	if baseURL == "" {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
