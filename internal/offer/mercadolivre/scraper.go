// Package mercadolivre extracts offers from Mercado Livre product pages.
// There is no affiliate API for this source: each configured product URL is
// fetched and mined for title, price, and image with tolerant patterns, so a
// malformed page degrades to fallback values instead of failing the batch.
package mercadolivre

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"zapfinder/internal/offer"
)

const (
	requestTimeout = 20 * time.Second
	maxBodyBytes   = 2 << 20
	userAgent      = "Mozilla/5.0"
	fallbackTitle  = "Produto Mercado Livre"
)

var (
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`"price":\s*"(\d+\.?\d*)"`),
		regexp.MustCompile(`"price":\s*(\d+\.?\d*)`),
		regexp.MustCompile(`R\$\s*([\d\.]+,\d+)`),
	}
	imagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`"picture":"([^"]+)"`),
		regexp.MustCompile(`data-src="([^"]+)"`),
		regexp.MustCompile(`src="([^"]+\.(?:jpg|jpeg|png|gif))"`),
	}
)

// Scraper fetches a fixed set of product page URLs.
type Scraper struct {
	links      []string
	httpClient *http.Client
	log        *zap.Logger
}

// Option adjusts scraper construction.
type Option func(*Scraper)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Scraper) { s.httpClient = hc }
}

// New builds a scraper over the configured product links.
func New(links []string, log *zap.Logger, opts ...Option) *Scraper {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scraper{
		links:      links,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies this source in logs and summaries.
func (s *Scraper) Name() string { return "mercadolivre" }

// Fetch scrapes up to limit configured links. Pages that fail to load are
// skipped; the fetch only errors when every page failed and nothing was
// assembled.
func (s *Scraper) Fetch(ctx context.Context, limit int) ([]offer.Offer, error) {
	links := s.links
	if limit < len(links) {
		links = links[:limit]
	}

	var (
		offers  []offer.Offer
		lastErr error
	)
	for _, link := range links {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		o, err := s.scrapePage(ctx, link)
		if err != nil {
			lastErr = err
			s.log.Warn("product page skipped", zap.String("url", link), zap.Error(err))
			continue
		}
		s.log.Debug("product page scraped",
			zap.String("url", link), zap.String("title", o.Title))
		offers = append(offers, o)
	}

	if len(offers) == 0 && lastErr != nil {
		return nil, fmt.Errorf("mercadolivre: all pages failed: %w", lastErr)
	}
	return offers, nil
}

func (s *Scraper) scrapePage(ctx context.Context, link string) (offer.Offer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return offer.Offer{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return offer.Offer{}, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return offer.Offer{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return offer.Offer{}, fmt.Errorf("read page: %w", err)
	}
	page := string(body)

	return offer.Normalize(offer.Raw{
		Title:      extractTitle(page),
		Price:      extractPrice(page),
		SourceLink: link,
		ImageURL:   extractImage(page),
	}, offer.MarketplaceMercadoLivre), nil
}

// extractTitle pulls the page <title> and trims marketplace decoration: the
// product name comes before the first "|" or " - " separator.
func extractTitle(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return fallbackTitle
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = n.FirstChild.Data
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	title = strings.SplitN(title, "|", 2)[0]
	title = strings.SplitN(title, " - ", 2)[0]
	title = strings.TrimSpace(title)
	if title == "" {
		return fallbackTitle
	}
	return title
}

func extractPrice(page string) string {
	for _, pattern := range pricePatterns {
		if m := pattern.FindStringSubmatch(page); m != nil {
			return m[1]
		}
	}
	return ""
}

func extractImage(page string) string {
	for _, pattern := range imagePatterns {
		if m := pattern.FindStringSubmatch(page); m != nil {
			img := m[1]
			if strings.HasPrefix(img, "//") {
				img = "https:" + img
			}
			if strings.HasPrefix(img, "http") {
				return img
			}
		}
	}
	return ""
}

// Validate reports whether the scraper has at least one usable link.
func (s *Scraper) Validate() error {
	for _, link := range s.links {
		if strings.TrimSpace(link) != "" {
			return nil
		}
	}
	return errors.New("mercadolivre: no product links configured")
}
