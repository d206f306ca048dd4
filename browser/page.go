package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// Page is one tab. All waits on it are bounded by the session's
// configured timeouts, never indefinite.
type Page struct {
	session   *Session
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	downloadMu sync.Mutex
	downloads  map[string]*Download // by guid, in-flight
	completed  chan *Download
}

// Download is a file the browser finished writing to disk.
type Download struct {
	SuggestedFilename string
	Path              string
}

// Bytes reads the downloaded file.
func (d *Download) Bytes() ([]byte, error) {
	return os.ReadFile(d.Path)
}

// Close closes the tab. Closing an already closed page is a no-op.
func (p *Page) Close() {
	p.closeOnce.Do(p.cancel)
}

// Navigate loads the url and sleeps for the configured settle wait so
// client-side rendering can catch up.
func (p *Page) Navigate(url string) error {
	return chromedp.Run(p.ctx,
		chromedp.Navigate(url),
		chromedp.Sleep(p.session.opts.SettleWait),
	)
}

// Location returns the page's current url.
func (p *Page) Location() (string, error) {
	var loc string
	err := chromedp.Run(p.ctx, chromedp.Location(&loc))
	return loc, err
}

// HTML returns the rendered document.
func (p *Page) HTML() (string, error) {
	var body string
	err := chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		body, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	return body, err
}

// queryOpts picks the chromedp query strategy for a selector. Selectors
// starting with "//" or "(" are treated as XPath, everything else as CSS.
func queryOpts(sel string) chromedp.QueryOption {
	if strings.HasPrefix(sel, "//") || strings.HasPrefix(sel, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQueryAll
}

// nodes returns the matching nodes without failing when there are none.
func (p *Page) nodes(ctx context.Context, sel string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	err := chromedp.Run(ctx, chromedp.Nodes(sel, &nodes, queryOpts(sel), chromedp.AtLeast(0)))
	return nodes, err
}

// Exists probes for the presence of at least one element matching sel
// within the probe timeout.
func (p *Page) Exists(sel string) bool {
	ctx, cancel := context.WithTimeout(p.ctx, p.session.opts.ProbeTimeout)
	defer cancel()
	nodes, err := p.nodes(ctx, sel)
	return err == nil && len(nodes) > 0
}

// ClickFirst clicks the first element matching sel if one exists. It
// reports whether a click happened.
func (p *Page) ClickFirst(sel string) (bool, error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.session.opts.ProbeTimeout)
	defer cancel()
	nodes, err := p.nodes(ctx, sel)
	if err != nil {
		return false, err
	}
	if len(nodes) == 0 {
		return false, nil
	}
	if err := chromedp.Run(ctx, chromedp.MouseClickNode(nodes[0])); err != nil {
		return false, err
	}
	return true, nil
}

// ClickNode clicks a previously resolved node.
func (p *Page) ClickNode(node *cdp.Node) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.session.opts.ProbeTimeout)
	defer cancel()
	return chromedp.Run(ctx, chromedp.MouseClickNode(node))
}

// Nodes resolves all elements matching sel within the probe timeout.
func (p *Page) Nodes(sel string) ([]*cdp.Node, error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.session.opts.ProbeTimeout)
	defer cancel()
	return p.nodes(ctx, sel)
}

// Fill sets the value of the first element matching sel. Filling the
// same field twice is harmless, which keeps login retries safe.
func (p *Page) Fill(sel, value string) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.session.opts.ProbeTimeout)
	defer cancel()
	nodes, err := p.nodes(ctx, sel)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("no element found for selector %q", sel)
	}
	return chromedp.Run(ctx,
		chromedp.SetValue(sel, "", queryOpts(sel)),
		chromedp.SendKeys(sel, value, queryOpts(sel)),
	)
}

// Settle sleeps for the session's settle wait.
func (p *Page) Settle() error {
	return chromedp.Run(p.ctx, chromedp.Sleep(p.session.opts.SettleWait))
}

// ExpectPopup runs the trigger and races a bounded wait for a new
// top-level browsing surface against it. When one appears, the returned
// page is bound to that surface and becomes the caller's new operating
// surface; otherwise the second return value is false.
func (p *Page) ExpectPopup(trigger func() error) (*Page, bool, error) {
	ch := chromedp.WaitNewTarget(p.ctx, func(info *target.Info) bool {
		return info.Type == "page" && info.URL != "about:blank"
	})

	if err := trigger(); err != nil {
		return nil, false, err
	}

	select {
	case id := <-ch:
		ctx, cancel := chromedp.NewContext(p.ctx, chromedp.WithTargetID(id))
		popup := &Page{
			session: p.session,
			ctx:     ctx,
			cancel:  cancel,
		}
		if err := popup.enableDownloads(); err != nil {
			popup.Close()
			return nil, false, err
		}
		return popup, true, nil
	case <-time.After(p.session.opts.ProbeTimeout):
		return nil, false, nil
	}
}

// enableDownloads routes file downloads into the session's directory and
// turns on download events so ExpectDownload can observe them.
func (p *Page) enableDownloads() error {
	p.downloadMu.Lock()
	p.downloads = map[string]*Download{}
	p.completed = make(chan *Download, 1)
	p.downloadMu.Unlock()

	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *browser.EventDownloadWillBegin:
			p.downloadMu.Lock()
			p.downloads[e.GUID] = &Download{
				SuggestedFilename: e.SuggestedFilename,
				Path:              filepath.Join(p.session.downloadDir, e.GUID),
			}
			p.downloadMu.Unlock()
		case *browser.EventDownloadProgress:
			if e.State != browser.DownloadProgressStateCompleted {
				return
			}
			p.downloadMu.Lock()
			d, ok := p.downloads[e.GUID]
			delete(p.downloads, e.GUID)
			p.downloadMu.Unlock()
			if !ok {
				return
			}
			select {
			case p.completed <- d:
			default:
			}
		}
	})

	return chromedp.Run(p.ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(p.session.downloadDir).
			WithEventsEnabled(true),
	)
}

// ExpectDownload runs the trigger and races a bounded wait for a
// completed file download against it. The race being unambiguous relies
// on the caller keeping at most one download in flight, which the
// sequential per-assignment loop guarantees.
func (p *Page) ExpectDownload(trigger func() error) (*Download, bool, error) {
	// drain a stale completion left over from a previous trigger
	select {
	case <-p.completed:
	default:
	}

	if err := trigger(); err != nil {
		return nil, false, err
	}

	select {
	case d := <-p.completed:
		return d, true, nil
	case <-time.After(p.session.opts.DownloadWait):
		return nil, false, nil
	}
}
