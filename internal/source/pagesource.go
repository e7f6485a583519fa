// Package source provides the live ContentSource: a polled HTTP view of
// a rendered timeline page, parsed with goquery. Sessions never see the
// transport; they only see nodes and mutation signals.
package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const itemSelector = `article[data-testid="tweet"]`

// PageSource reads a timeline over HTTP. ScrollToEnd advances a paging
// cursor instead of moving a viewport; Watch polls the page and emits a
// mutation whenever the set of visible items changes.
type PageSource struct {
	client       *http.Client
	baseURL      string
	query        string
	pollInterval time.Duration
	logger       *zap.Logger

	mu     sync.Mutex
	cursor int

	mutations   chan struct{}
	fingerprint string
}

type Config struct {
	BaseURL      string
	Query        string
	PollInterval time.Duration
	Timeout      time.Duration
}

func New(cfg Config, logger *zap.Logger) *PageSource {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageSource{
		client:       &http.Client{Timeout: cfg.Timeout},
		baseURL:      cfg.BaseURL,
		query:        cfg.Query,
		pollInterval: cfg.PollInterval,
		logger:       logger,
		mutations:    make(chan struct{}, 1),
	}
}

// ListVisibleItems fetches the current page and returns its content
// nodes. The selections share one document and are only valid until
// the next call.
func (p *PageSource) ListVisibleItems(ctx context.Context) ([]*goquery.Selection, error) {
	doc, err := p.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	var items []*goquery.Selection
	doc.Find(itemSelector).Each(func(_ int, sel *goquery.Selection) {
		items = append(items, sel)
	})
	return items, nil
}

// ScrollToEnd advances the paging cursor so the next fetch renders the
// following slice of the timeline.
func (p *PageSource) ScrollToEnd(ctx context.Context) error {
	p.mu.Lock()
	p.cursor++
	p.mu.Unlock()
	return nil
}

// Mutations signals that the visible content may have changed. The
// channel has capacity one; a signal that arrives while a previous one
// is still pending is coalesced into it.
func (p *PageSource) Mutations() <-chan struct{} {
	return p.mutations
}

// Watch polls the page until ctx is done, emitting a mutation whenever
// the visible item set differs from the previous poll. Fetch failures
// are logged and retried on the next tick.
func (p *PageSource) Watch(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := p.poll(ctx)
			if err != nil {
				p.logger.Warn("poll failed", zap.Error(err))
				continue
			}
			if changed {
				select {
				case p.mutations <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (p *PageSource) poll(ctx context.Context) (bool, error) {
	doc, err := p.fetchDocument(ctx)
	if err != nil {
		return false, err
	}

	// the set of status links identifies what is currently rendered
	var links []string
	doc.Find(itemSelector + ` a[href*="/status/"]`).Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			links = append(links, href)
		}
	})
	next := strings.Join(links, "\n")

	p.mu.Lock()
	changed := next != p.fingerprint
	p.fingerprint = next
	p.mu.Unlock()
	return changed, nil
}

func (p *PageSource) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	pageURL, err := p.buildPageURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "xharvest/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}

func (p *PageSource) buildPageURL() (string, error) {
	parsed, err := url.Parse(p.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %s: %w", p.baseURL, err)
	}

	p.mu.Lock()
	cursor := p.cursor
	p.mu.Unlock()

	query := parsed.Query()
	if p.query != "" {
		query.Set("q", p.query)
	}
	if cursor > 0 {
		query.Set("cursor", strconv.Itoa(cursor))
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
