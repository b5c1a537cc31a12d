// Package shopee fetches product offers from the Shopee affiliate GraphQL
// API. Requests are signed with SHA256 over appID+timestamp+payload+secret as
// required by the affiliate open platform.
package shopee

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"zapfinder/internal/offer"
)

// DefaultAPIURL is the production affiliate endpoint for Brazil.
const DefaultAPIURL = "https://open-api.affiliate.shopee.com.br/graphql"

const (
	secretLength   = 32
	requestTimeout = 25 * time.Second
	fallbackLink   = "https://shopee.com.br"
	userAgent      = "Mozilla/5.0"
)

var (
	ErrMissingCredentials = errors.New("shopee: app id and secret are required")
	ErrBadSecret          = errors.New("shopee: secret must be 32 characters")
)

// Client queries the affiliate API. Safe for concurrent use.
type Client struct {
	appID      string
	secret     string
	apiURL     string
	httpClient *http.Client
	log        *zap.Logger
	now        func() time.Time
}

// Option adjusts client construction.
type Option func(*Client)

// WithAPIURL overrides the affiliate endpoint, mainly for tests.
func WithAPIURL(url string) Option {
	return func(c *Client) { c.apiURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides the signature timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New builds a Shopee client. Credential validation happens at Fetch time so a
// misconfigured client fails the run, not process startup.
func New(appID, secret string, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		appID:      appID,
		secret:     secret,
		apiURL:     DefaultAPIURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies this source in logs and summaries.
func (c *Client) Name() string { return "shopee" }

// looseString accepts a JSON string or number; the affiliate api is not
// consistent about which one it sends for price and rating. Anything else
// decodes to empty so the record degrades to fallbacks instead of failing
// the whole response.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		*s = ""
		return nil
	}
	*s = looseString(n.String())
	return nil
}

type offerNode struct {
	ProductName string      `json:"productName"`
	Price       looseString `json:"price"`
	RatingStar  looseString `json:"ratingStar"`
	OfferLink   string      `json:"offerLink"`
	ImageURL    string      `json:"imageUrl"`
}

type apiResponse struct {
	Data *struct {
		ProductOfferV2 *struct {
			Nodes []offerNode `json:"nodes"`
		} `json:"productOfferV2"`
	} `json:"data"`
}

// Fetch returns up to limit normalized offers. Individual malformed records
// degrade to fallback values; only transport, auth, and response-shape
// problems fail the whole call.
func (c *Client) Fetch(ctx context.Context, limit int) ([]offer.Offer, error) {
	if c.appID == "" || c.secret == "" {
		return nil, ErrMissingCredentials
	}
	if len(c.secret) != secretLength {
		return nil, ErrBadSecret
	}

	query := fmt.Sprintf(`{
  productOfferV2(limit: %d) {
    nodes {
      productName
      price
      ratingStar
      offerLink
      imageUrl
    }
  }
}`, limit)

	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("shopee: encode query: %w", err)
	}

	timestamp, signature := c.sign(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("shopee: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization",
		fmt.Sprintf("SHA256 Credential=%s, Timestamp=%s, Signature=%s", c.appID, timestamp, signature))

	c.log.Debug("querying affiliate api", zap.Int("limit", limit))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shopee: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shopee: HTTP %d from affiliate api", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("shopee: read response: %w", err)
	}

	var decoded apiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("shopee: decode response: %w", err)
	}
	if decoded.Data == nil {
		return nil, errors.New(`shopee: response missing "data"`)
	}
	if decoded.Data.ProductOfferV2 == nil {
		return nil, errors.New(`shopee: response missing "productOfferV2"`)
	}

	nodes := decoded.Data.ProductOfferV2.Nodes
	c.log.Debug("affiliate api returned offers", zap.Int("count", len(nodes)))

	if limit < len(nodes) {
		nodes = nodes[:limit]
	}

	offers := make([]offer.Offer, 0, len(nodes))
	for i, node := range nodes {
		offers = append(offers, normalizeNode(node, i+1))
	}
	return offers, nil
}

// sign produces the request timestamp and SHA256 signature over
// appID+timestamp+payload+secret, per the affiliate platform documentation.
func (c *Client) sign(payload []byte) (timestamp, signature string) {
	timestamp = strconv.FormatInt(c.now().Unix(), 10)
	sum := sha256.Sum256([]byte(c.appID + timestamp + string(payload) + c.secret))
	return timestamp, hex.EncodeToString(sum[:])
}

func normalizeNode(node offerNode, index int) offer.Offer {
	title := node.ProductName
	if title == "" {
		title = fmt.Sprintf("Produto %d", index)
	}
	link := node.OfferLink
	if link == "" {
		link = fallbackLink
	}
	return offer.Normalize(offer.Raw{
		Title:         title,
		Price:         string(node.Price),
		Rating:        string(node.RatingStar),
		SourceLink:    link,
		AffiliateLink: link,
		ImageURL:      node.ImageURL,
	}, offer.MarketplaceShopee)
}
