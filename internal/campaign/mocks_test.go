package campaign

import (
	"context"
	"sync"
	"time"

	"zapfinder/internal/history"
	"zapfinder/internal/offer"
)

// --- fakeSource ---

type fakeSource struct {
	name   string
	offers []offer.Offer
	err    error
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Fetch(ctx context.Context, limit int) ([]offer.Offer, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.offers) {
		return s.offers[:limit], nil
	}
	return s.offers, nil
}

// --- fakeChannel ---

type fakeChannel struct {
	mu sync.Mutex

	connectErr error
	readyErr   error
	resolveErr error

	// deliverErrs maps offer title to the error Deliver returns for it.
	deliverErrs map[string]error

	// onDeliver runs before each Deliver result is decided.
	onDeliver func(o offer.Offer)

	connected bool
	resolved  string
	delivered []string
	closes    int
}

func (c *fakeChannel) Name() string { return "fake" }

func (c *fakeChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *fakeChannel) AwaitReady(ctx context.Context, timeout time.Duration) error {
	return c.readyErr
}

func (c *fakeChannel) ResolveDestination(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolveErr != nil {
		return c.resolveErr
	}
	c.resolved = name
	return nil
}

func (c *fakeChannel) Deliver(ctx context.Context, o offer.Offer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onDeliver != nil {
		c.onDeliver(o)
	}
	c.delivered = append(c.delivered, o.Title)
	if err, ok := c.deliverErrs[o.Title]; ok {
		return err
	}
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeChannel) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeChannel) wasConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// --- fakeHistory ---

type fakeHistory struct {
	mu        sync.Mutex
	appendErr error
	attempts  []history.Attempt
}

func (h *fakeHistory) Append(ctx context.Context, a history.Attempt) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.appendErr != nil {
		return h.appendErr
	}
	h.attempts = append(h.attempts, a)
	return nil
}

func (h *fakeHistory) recorded() []history.Attempt {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]history.Attempt, len(h.attempts))
	copy(out, h.attempts)
	return out
}

func offersNamed(titles ...string) []offer.Offer {
	out := make([]offer.Offer, 0, len(titles))
	for _, t := range titles {
		out = append(out, offer.Offer{
			Title:         t,
			Price:         offer.FallbackPrice,
			Rating:        offer.FallbackRating,
			SourceLink:    "https://example.com/" + t,
			AffiliateLink: "https://example.com/" + t,
			Marketplace:   offer.MarketplaceShopee,
		})
	}
	return out
}
