package scraper

import (
	"context"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"bbscraper/browser"
	"bbscraper/config"
	"bbscraper/date"
	"bbscraper/log"
	"bbscraper/mirror"
	"bbscraper/types"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
)

// textOf returns the trimmed text of the first element matching the
// selector, or the empty string when the element is absent. It never
// fails: a missing field degrades the record, it does not abort the
// scrape.
func textOf(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(sel.First().Text())
}

// anchorInfo is a resource anchor as seen in the rendered document.
// DOMIndex is the anchor's position in the unfiltered selector match, so
// it stays aligned with the live node list even when anchors before it
// are filtered out.
type anchorInfo struct {
	Name     string
	Href     string
	DOMIndex int
}

// resourceAnchors collects the resource anchors of a detail document:
// file-download markers, explicit download paths and generic hyperlinks.
// Mail links are not resources but still occupy a DOM position.
func resourceAnchors(doc *goquery.Document, selector string) []anchorInfo {
	var anchors []anchorInfo
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if strings.HasPrefix(strings.ToLower(href), "mailto:") {
			return
		}
		name := strings.TrimSpace(s.Text())
		if name == "" {
			name = "resource"
		}
		anchors = append(anchors, anchorInfo{Name: name, Href: href, DOMIndex: i})
	})
	return anchors
}

// detailPage is the subset of page operations extraction needs. It is
// satisfied by *browser.Page and by fakes in tests.
type detailPage interface {
	HTML() (string, error)
	Nodes(sel string) ([]*cdp.Node, error)
	ClickNode(node *cdp.Node) error
	ExpectDownload(trigger func() error) (*browser.Download, bool, error)
}

// extractor pulls one assignment record out of one rendered detail page.
type extractor struct {
	cfg    *config.Config
	mirror mirror.Mirror
}

// assignment builds the record for one detail page. Field extraction is
// best effort throughout; the only way to lose a record entirely is the
// page not rendering at all, which the caller handles.
func (e *extractor) assignment(ctx context.Context, page detailPage, link types.AssignmentLink) types.Assignment {
	logger := log.LoggerFromContext(ctx).With(slog.String("url", link.URL))

	record := types.Assignment{
		URL:       link.URL,
		Resources: []types.Resource{},
	}

	html, err := page.HTML()
	if err != nil {
		logger.Warn("failed to read detail document, keeping degraded record", slog.String("err", err.Error()))
		return record
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Warn("failed to parse detail document, keeping degraded record", slog.String("err", err.Error()))
		return record
	}

	sel := e.cfg.Selectors
	record.Title = textOf(doc, sel.Title)
	record.Course = textOf(doc, sel.Course)
	record.Due = textOf(doc, sel.Due)
	record.Description = textOf(doc, sel.Description)
	if record.Title == "" && link.Text != "" {
		record.Title = link.Text
	}
	if t, ok := date.Normalize(record.Due, ""); ok {
		record.DueAt = t.Format(time.RFC3339)
	}

	record.Resources = e.resources(ctx, page, doc)
	return record
}

// resources clicks each resource anchor and races the click against a
// bounded wait for a file download. A completed download is mirrored
// when a mirror is configured; everything else falls back to the
// anchor's raw href with the link placeholder content type.
func (e *extractor) resources(ctx context.Context, page detailPage, doc *goquery.Document) []types.Resource {
	logger := log.LoggerFromContext(ctx)
	sel := e.cfg.Selectors

	anchors := resourceAnchors(doc, sel.ResourceAnchors)
	if len(anchors) == 0 {
		return []types.Resource{}
	}

	nodes, err := page.Nodes(sel.ResourceAnchors)
	if err != nil {
		logger.Warn("failed to resolve resource anchor nodes", slog.String("err", err.Error()))
		nodes = nil
	}

	resources := []types.Resource{}
	for _, a := range anchors {
		res, ok := e.resolveAnchor(ctx, page, nodes, a)
		if ok {
			resources = append(resources, res)
		}
	}
	return resources
}

func (e *extractor) resolveAnchor(ctx context.Context, page detailPage, nodes []*cdp.Node, a anchorInfo) (types.Resource, bool) {
	logger := log.LoggerFromContext(ctx).With(slog.String("resource", a.Name))

	fallback := func() (types.Resource, bool) {
		if a.Href == "" {
			return types.Resource{}, false
		}
		return types.Resource{
			Name:     a.Name,
			Href:     absoluteURL(e.cfg.BaseURL, a.Href),
			MimeType: types.LinkMimeType,
		}, true
	}

	if a.DOMIndex >= len(nodes) {
		return fallback()
	}

	dl, downloaded, err := page.ExpectDownload(func() error {
		return page.ClickNode(nodes[a.DOMIndex])
	})
	if err != nil {
		logger.Warn("resource click failed, recording raw link", slog.String("err", err.Error()))
		return fallback()
	}
	if !downloaded || e.mirror == nil {
		return fallback()
	}

	data, err := dl.Bytes()
	if err != nil {
		logger.Warn("failed to read downloaded file, recording raw link", slog.String("err", err.Error()))
		return fallback()
	}
	name := dl.SuggestedFilename
	if name == "" {
		name = a.Name
	}
	up, err := e.mirror.Upload(ctx, name, data, mime.TypeByExtension(filepath.Ext(name)))
	if err != nil {
		// mirroring is strictly best effort: an unavailable mirror is
		// the same as no mirror
		logger.Warn("mirror upload failed, recording raw link", slog.String("err", err.Error()))
		return fallback()
	}
	logger.Debug("mirrored resource", slog.String("name", up.Name), slog.String("mime", up.MimeType))
	return types.Resource{
		Name:     up.Name,
		Href:     up.Link,
		MimeType: up.MimeType,
	}, true
}
