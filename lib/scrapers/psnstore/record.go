package psnstore

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Edition is one price tier of a product ("Standard", "Deluxe", ...).
type Edition struct {
	Name          string
	OriginalPrice float64
	// nil when the edition is not currently discounted
	SalePrice  *float64
	ValidUntil *time.Time
	Currency   string
}

// ProductRecord is everything the storefront knows about one logical
// title, extracted from its detail page. Both ids are always populated
// regardless of which namespace the page was reached through.
type ProductRecord struct {
	ConceptId string
	ProductId string
	Name      string
	PosterUrl string
	Editions  []Edition
}

var priceJunk = regexp.MustCompile(`[^0-9,.]`)

// parsePrice turns a display price like "4 999,00 ₽" or "$39.99" into a
// number. Returns ok=false for free/unparseable strings so callers can
// skip the edition instead of recording a zero price.
func parsePrice(s string) (float64, bool) {
	s = priceJunk.ReplaceAllString(s, "")
	// the ru locale uses a comma decimal separator
	if strings.Count(s, ",") == 1 && strings.Count(s, ".") == 0 {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	if s == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

var currencySymbols = map[string]string{
	"₽": "RUB",
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
}

func currencyFromText(s string) string {
	for symbol, code := range currencySymbols {
		if strings.Contains(s, symbol) {
			return code
		}
	}
	return ""
}

var localeCurrencies = map[string]string{
	"ru-ru": "RUB",
	"en-us": "USD",
	"en-gb": "GBP",
	"de-de": "EUR",
	"ja-jp": "JPY",
}

func currencyForLocale(locale string) string {
	if code, ok := localeCurrencies[strings.ToLower(locale)]; ok {
		return code
	}
	return "USD"
}
