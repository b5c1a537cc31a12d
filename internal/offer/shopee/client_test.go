package shopee

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapfinder/internal/offer"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSignature(t *testing.T) {
	fixed := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	c := New("18302940", testSecret, nil, WithClock(func() time.Time { return fixed }))

	payload := []byte(`{"query":"{}"}`)
	timestamp, signature := c.sign(payload)

	assert.Equal(t, "1768478400", timestamp)

	sum := sha256.Sum256([]byte("18302940" + timestamp + string(payload) + testSecret))
	assert.Equal(t, hex.EncodeToString(sum[:]), signature)
}

func TestFetchRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()

	_, err := New("", "", nil).Fetch(ctx, 5)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = New("app", "short", nil).Fetch(ctx, 5)
	assert.ErrorIs(t, err, ErrBadSecret)
}

func TestFetchMapsAndNormalizesNodes(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{
			"data": {
				"productOfferV2": {
					"nodes": [
						{"productName": "Fone Bluetooth", "price": "149.90", "ratingStar": "4.8",
						 "offerLink": "https://s.shopee.com.br/abc", "imageUrl": "https://cf.shopee.com.br/1.jpg"},
						{"productName": "", "price": "nope", "ratingStar": "", "offerLink": "", "imageUrl": ""},
						{"productName": "Caneca", "price": "39.9", "ratingStar": "4.2",
						 "offerLink": "https://s.shopee.com.br/def", "imageUrl": ""}
					]
				}
			}
		}`))
	}))
	defer srv.Close()

	c := New("app123", testSecret, nil, WithAPIURL(srv.URL))
	offers, err := c.Fetch(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, offers, 3)

	assert.True(t, strings.HasPrefix(gotAuth, "SHA256 Credential=app123, Timestamp="))

	assert.Equal(t, "Fone Bluetooth", offers[0].Title)
	assert.Equal(t, 149.90, offers[0].Price)
	assert.Equal(t, 4.8, offers[0].Rating)
	assert.Equal(t, "https://s.shopee.com.br/abc", offers[0].AffiliateLink)
	assert.Equal(t, offer.MarketplaceShopee, offers[0].Marketplace)

	// Malformed record degrades to defaults instead of failing the fetch.
	assert.Equal(t, "Produto 2", offers[1].Title)
	assert.Equal(t, offer.FallbackPrice, offers[1].Price)
	assert.Equal(t, offer.FallbackRating, offers[1].Rating)
	assert.Equal(t, "https://shopee.com.br", offers[1].AffiliateLink)
}

func TestFetchToleratesNumericPriceAndRating(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"productOfferV2":{"nodes":[
			{"productName":"Fone","price":149.9,"ratingStar":4.8,
			 "offerLink":"https://s.shopee.com.br/abc","imageUrl":""},
			{"productName":"Caneca","price":"39.90","ratingStar":"4.2",
			 "offerLink":"https://s.shopee.com.br/def","imageUrl":""},
			{"productName":"Capinha","price":null,"ratingStar":[1,2],
			 "offerLink":"","imageUrl":""}
		]}}}`))
	}))
	defer srv.Close()

	c := New("app123", testSecret, nil, WithAPIURL(srv.URL))
	offers, err := c.Fetch(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, offers, 3)

	assert.Equal(t, 149.9, offers[0].Price)
	assert.Equal(t, 4.8, offers[0].Rating)
	assert.Equal(t, 39.90, offers[1].Price)
	assert.Equal(t, 4.2, offers[1].Rating)

	// Unusable types degrade this record, not the whole batch.
	assert.Equal(t, offer.FallbackPrice, offers[2].Price)
	assert.Equal(t, offer.FallbackRating, offers[2].Rating)
}

func TestFetchHonorsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"productOfferV2":{"nodes":[
			{"productName":"A"},{"productName":"B"},{"productName":"C"}
		]}}}`))
	}))
	defer srv.Close()

	c := New("app123", testSecret, nil, WithAPIURL(srv.URL))
	offers, err := c.Fetch(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, offers, 2)
	assert.Equal(t, "A", offers[0].Title)
	assert.Equal(t, "B", offers[1].Title)
}

func TestFetchMissingResponseShape(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no data", `{}`},
		{"no productOfferV2", `{"data":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New("app123", testSecret, nil, WithAPIURL(srv.URL))
			_, err := c.Fetch(context.Background(), 5)
			assert.Error(t, err)
		})
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New("app123", testSecret, nil, WithAPIURL(srv.URL))
	_, err := c.Fetch(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
}

func TestFetchEmptyNodesIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"productOfferV2":{"nodes":[]}}}`))
	}))
	defer srv.Close()

	c := New("app123", testSecret, nil, WithAPIURL(srv.URL))
	offers, err := c.Fetch(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, offers)
}
