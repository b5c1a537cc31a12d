// Package offer defines the normalized product offer shape shared by all
// marketplace sources. Normalization happens once, at construction: missing or
// unparseable numeric fields are replaced by fixed fallbacks so an Offer never
// carries an absent price or rating.
package offer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Marketplace identifies which source produced an offer.
type Marketplace string

const (
	MarketplaceShopee       Marketplace = "Shopee"
	MarketplaceMercadoLivre Marketplace = "Mercado Livre"
)

// Fallback values applied when a source record omits or mangles a field.
const (
	FallbackPrice  = 99.99
	FallbackRating = 4.5
)

// Offer is a normalized product candidate, immutable after construction.
type Offer struct {
	Title         string
	Price         float64
	Rating        float64
	SourceLink    string
	AffiliateLink string
	ImageURL      string
	Marketplace   Marketplace
}

// Raw holds the untyped field values as extracted from a marketplace record.
type Raw struct {
	Title         string
	Price         string
	Rating        string
	SourceLink    string
	AffiliateLink string
	ImageURL      string
}

var (
	titleJunk  = regexp.MustCompile(`[^\p{L}\p{N}\s\-.,!?]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize builds an Offer from a raw record. It never fails: bad numerics
// degrade to the documented fallbacks and the title is sanitized without
// truncation.
func Normalize(raw Raw, m Marketplace) Offer {
	affiliate := raw.AffiliateLink
	if affiliate == "" {
		affiliate = raw.SourceLink
	}
	return Offer{
		Title:         SanitizeTitle(raw.Title),
		Price:         parseDecimal(raw.Price, FallbackPrice),
		Rating:        parseDecimal(raw.Rating, FallbackRating),
		SourceLink:    raw.SourceLink,
		AffiliateLink: affiliate,
		ImageURL:      raw.ImageURL,
		Marketplace:   m,
	}
}

// SanitizeTitle collapses whitespace and strips decoration characters while
// preserving the full length of the product name.
func SanitizeTitle(title string) string {
	title = titleJunk.ReplaceAllString(title, "")
	title = whitespace.ReplaceAllString(title, " ")
	return strings.TrimSpace(title)
}

// PriceLabel renders the price with exactly two fractional digits.
func (o Offer) PriceLabel() string {
	return fmt.Sprintf("%.2f", o.Price)
}

// RatingLabel renders the rating with one fractional digit.
func (o Offer) RatingLabel() string {
	return fmt.Sprintf("%.1f", o.Rating)
}

func parseDecimal(s string, fallback float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	// Brazilian price strings use comma as decimal separator and dot for
	// thousands ("1.234,56").
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
