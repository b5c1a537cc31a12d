package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapfinder/internal/offer"
)

func TestMessageFormat(t *testing.T) {
	o := offer.Offer{
		Title:         "Echo Dot 5a Geração",
		Price:         279.90,
		AffiliateLink: "https://s.shopee.com.br/abc123",
	}
	got := messageFor(o)
	want := "*Echo Dot 5a Geração*\n\n🔥 Por: R$ 279.90\n\n🛒 Compre aqui: https://s.shopee.com.br/abc123"
	assert.Equal(t, want, got)
}

func TestConfigDefaults(t *testing.T) {
	c := New(Config{}, nil)
	assert.Equal(t, defaultNavTimeout, c.cfg.NavigationTimeout)
	assert.Equal(t, defaultReadyPoll, c.cfg.ReadyPollInterval)
	assert.Equal(t, defaultSendDelay, c.cfg.SendDelay)
	assert.Equal(t, "whatsapp", c.Name())
}

func TestCloseBeforeConnect(t *testing.T) {
	c := New(Config{}, nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestDeliverWithoutConnect(t *testing.T) {
	c := New(Config{}, nil)
	err := c.Deliver(context.Background(), offer.Offer{Title: "x"})
	assert.Error(t, err)
}

func TestAwaitReadyWithoutConnect(t *testing.T) {
	c := New(Config{}, nil)
	err := c.AwaitReady(context.Background(), time.Second)
	assert.Error(t, err)
}

func TestDownloadImage(t *testing.T) {
	payload := []byte("\x89PNG fake image bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	path, err := downloadImage(context.Background(), srv.Client(), srv.URL+"/img")
	require.NoError(t, err)
	defer os.Remove(path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Contains(t, path, ".png")
}

func TestDownloadImageRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := downloadImage(context.Background(), srv.Client(), srv.URL)
	assert.Error(t, err)
}

func TestImageExt(t *testing.T) {
	tests := []struct {
		contentType, url, want string
	}{
		{"image/png", "https://x/img", ".png"},
		{"image/jpeg", "https://x/img", ".jpg"},
		{"image/webp", "https://x/img", ".webp"},
		{"", "https://x/photo.jpeg", ".jpeg"},
		{"", "https://x/noext", ".jpg"},
		{"text/html", "https://x/very.long.path/noext", ".jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, imageExt(tt.contentType, tt.url), "%q %q", tt.contentType, tt.url)
	}
}
