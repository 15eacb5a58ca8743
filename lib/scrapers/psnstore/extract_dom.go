package psnstore

import (
	"regexp"
	"wishwatch-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// domStrategy handles the older server-rendered revision which has no
// embedded state blob. Every field comes from its own node, so this one
// only ever sees a single price tier.
type domStrategy struct{}

func (domStrategy) name() string { return "dom" }

var (
	conceptHref = regexp.MustCompile(`/concept/([0-9]+)`)
	productHref = regexp.MustCompile(`/product/([A-Za-z0-9-]+)`)
)

func (s domStrategy) extract(doc *goquery.Document, id Identifier, locale string) (ProductRecord, bool) {
	name := htmlutil.CleanText(doc.Find(`h1[data-qa="mfe-game-title#name"]`).First().Text())
	if name == "" {
		return ProductRecord{}, false
	}

	poster, ok := doc.Find(`img[data-qa*="gameBackgroundImage"]`).First().Attr("src")
	if !ok {
		poster, _ = doc.Find(`meta[property="og:image"]`).First().Attr("content")
	}

	record := ProductRecord{
		Name:      name,
		PosterUrl: poster,
	}
	switch id.Kind {
	case KindConcept:
		record.ConceptId = id.Value
	case KindProduct:
		record.ProductId = id.Value
	}
	s.fillMissingId(doc, &record)

	finalText := htmlutil.CleanText(doc.Find(`span[data-qa*="finalPrice"]`).First().Text())
	final, ok := parsePrice(finalText)
	if ok {
		currency := currencyFromText(finalText)
		if currency == "" {
			currency = currencyForLocale(locale)
		}
		edition := Edition{
			Name:          "Standard",
			OriginalPrice: final,
			Currency:      currency,
		}

		// a struck-through original price next to the final one means
		// the final price is a discount
		originalText := htmlutil.CleanText(doc.Find(`span[data-qa*="originalPrice"]`).First().Text())
		if original, ok := parsePrice(originalText); ok && original > final {
			edition.OriginalPrice = original
			edition.SalePrice = &final
		}
		record.Editions = []Edition{edition}
	}

	return record, true
}

// the id of the other namespace hides in the canonical link or in
// cross-links on the page
func (domStrategy) fillMissingId(doc *goquery.Document, record *ProductRecord) {
	var hrefs []string
	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		hrefs = append(hrefs, href)
	}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})

	for _, href := range hrefs {
		if record.ConceptId == "" {
			if groups := conceptHref.FindStringSubmatch(href); groups != nil {
				record.ConceptId = groups[1]
			}
		}
		if record.ProductId == "" {
			if groups := productHref.FindStringSubmatch(href); groups != nil {
				record.ProductId = groups[1]
			}
		}
	}
}
