package offer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeAppliesFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		raw        Raw
		wantPrice  float64
		wantRating float64
	}{
		{
			name:       "empty numerics",
			raw:        Raw{Title: "Fone Bluetooth"},
			wantPrice:  FallbackPrice,
			wantRating: FallbackRating,
		},
		{
			name:       "garbage numerics",
			raw:        Raw{Title: "Fone", Price: "abc", Rating: "??"},
			wantPrice:  FallbackPrice,
			wantRating: FallbackRating,
		},
		{
			name:       "negative price rejected",
			raw:        Raw{Title: "Fone", Price: "-10", Rating: "3.9"},
			wantPrice:  FallbackPrice,
			wantRating: 3.9,
		},
		{
			name:       "valid values kept",
			raw:        Raw{Title: "Fone", Price: "149.90", Rating: "4.8"},
			wantPrice:  149.90,
			wantRating: 4.8,
		},
		{
			name:       "brazilian decimal comma",
			raw:        Raw{Title: "Fone", Price: "1.234,56", Rating: "4.8"},
			wantPrice:  1234.56,
			wantRating: 4.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw, MarketplaceShopee)
			assert.Equal(t, tt.wantPrice, got.Price)
			assert.Equal(t, tt.wantRating, got.Rating)
		})
	}
}

func TestNormalizeAffiliateFallsBackToSourceLink(t *testing.T) {
	got := Normalize(Raw{Title: "x", SourceLink: "https://example.com/p/1"}, MarketplaceMercadoLivre)
	assert.Equal(t, "https://example.com/p/1", got.AffiliateLink)

	got = Normalize(Raw{
		Title:         "x",
		SourceLink:    "https://example.com/p/1",
		AffiliateLink: "https://aff.example.com/p/1",
	}, MarketplaceMercadoLivre)
	assert.Equal(t, "https://aff.example.com/p/1", got.AffiliateLink)
}

func TestSanitizeTitlePreservesLength(t *testing.T) {
	long := "Smartphone Samsung Galaxy A54 5G 128GB 8GB RAM Tela 6.4 Camera Tripla ate 50MP, Preto - Versao Nacional com Garantia Estendida"
	assert.Equal(t, long, SanitizeTitle(long))

	assert.Equal(t, "Fone JBL - Tune 510BT", SanitizeTitle("Fone  JBL®  -  Tune\t510BT\n"))
}

func TestNormalizeFullShape(t *testing.T) {
	got := Normalize(Raw{
		Title:      "Caneca Geek 300ml",
		Price:      "39.9",
		Rating:     "4.7",
		SourceLink: "https://shopee.com.br/p/1",
		ImageURL:   "https://cf.shopee.com.br/img/1.jpg",
	}, MarketplaceShopee)

	want := Offer{
		Title:         "Caneca Geek 300ml",
		Price:         39.9,
		Rating:        4.7,
		SourceLink:    "https://shopee.com.br/p/1",
		AffiliateLink: "https://shopee.com.br/p/1",
		ImageURL:      "https://cf.shopee.com.br/img/1.jpg",
		Marketplace:   MarketplaceShopee,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestLabels(t *testing.T) {
	o := Offer{Price: 5, Rating: 4}
	assert.Equal(t, "5.00", o.PriceLabel())
	assert.Equal(t, "4.0", o.RatingLabel())

	o = Offer{Price: 149.9, Rating: 4.75}
	assert.Equal(t, "149.90", o.PriceLabel())
	assert.Equal(t, "4.8", o.RatingLabel())
}
