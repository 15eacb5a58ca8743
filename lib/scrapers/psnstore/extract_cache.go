package psnstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// cacheStrategy handles the current storefront revision, which ships
// the whole page state as a JSON blob inside script#__NEXT_DATA__. The
// interesting part is the normalized cache keyed by "Concept:<id>" and
// "Product:<id>" entries referencing each other.
type cacheStrategy struct{}

func (cacheStrategy) name() string { return "cache" }

type nextData struct {
	Props struct {
		ApolloState map[string]json.RawMessage `json:"apolloState"`
	} `json:"props"`
}

type cacheRef struct {
	Ref string `json:"__ref"`
}

func (r *cacheRef) id() string {
	if r == nil {
		return ""
	}
	_, id, ok := strings.Cut(r.Ref, ":")
	if !ok {
		return ""
	}
	return id
}

type cacheMedia struct {
	Role string `json:"role"`
	Url  string `json:"url"`
}

type cachePrice struct {
	BasePrice       string  `json:"basePrice"`
	DiscountedPrice string  `json:"discountedPrice"`
	EndTime         *string `json:"endTime"`
	CurrencyCode    string  `json:"currencyCode"`
}

type cacheEdition struct {
	Name  string     `json:"name"`
	Price cachePrice `json:"price"`
}

type cacheEntry struct {
	Typename       string         `json:"__typename"`
	Id             string         `json:"id"`
	Name           string         `json:"name"`
	Media          []cacheMedia   `json:"media"`
	Concept        *cacheRef      `json:"concept"`
	DefaultProduct *cacheRef      `json:"defaultProduct"`
	Editions       []cacheEdition `json:"editions"`
	Price          *cachePrice    `json:"price"`
}

func (s cacheStrategy) extract(doc *goquery.Document, id Identifier, locale string) (ProductRecord, bool) {
	text := doc.Find("script#__NEXT_DATA__").Text()
	if strings.TrimSpace(text) == "" {
		return ProductRecord{}, false
	}

	var data nextData
	err := json.Unmarshal([]byte(text), &data)
	if err != nil || len(data.Props.ApolloState) == 0 {
		return ProductRecord{}, false
	}
	state := data.Props.ApolloState

	own, ok := decodeEntry(state, cacheKey(id.Kind, id.Value))
	if !ok {
		return ProductRecord{}, false
	}

	var concept, product cacheEntry
	var conceptId, productId string
	switch id.Kind {
	case KindConcept:
		concept = own
		conceptId = own.Id
		productId = own.DefaultProduct.id()
		product, _ = decodeEntry(state, cacheKey(KindProduct, productId))
	case KindProduct:
		product = own
		productId = own.Id
		conceptId = own.Concept.id()
		concept, _ = decodeEntry(state, cacheKey(KindConcept, conceptId))
	}

	name := concept.Name
	if name == "" {
		name = product.Name
	}
	if name == "" {
		return ProductRecord{}, false
	}

	// product artwork first, the concept's media list is the documented
	// fallback for SKUs that do not carry their own MASTER image
	poster := masterImage(product.Media)
	if poster == "" {
		poster = masterImage(concept.Media)
	}

	editions := cacheEditions(product, locale)
	if len(editions) == 0 {
		editions = cacheEditions(concept, locale)
	}

	return ProductRecord{
		ConceptId: conceptId,
		ProductId: productId,
		Name:      name,
		PosterUrl: poster,
		Editions:  editions,
	}, true
}

func cacheKey(kind Kind, value string) string {
	if kind == KindConcept {
		return fmt.Sprintf("Concept:%s", value)
	}
	return fmt.Sprintf("Product:%s", value)
}

func decodeEntry(state map[string]json.RawMessage, key string) (cacheEntry, bool) {
	raw, ok := state[key]
	if !ok {
		return cacheEntry{}, false
	}
	var entry cacheEntry
	err := json.Unmarshal(raw, &entry)
	if err != nil {
		return cacheEntry{}, false
	}
	return entry, true
}

func masterImage(media []cacheMedia) string {
	for _, m := range media {
		if strings.EqualFold(m.Role, "MASTER") {
			return m.Url
		}
	}
	return ""
}

func cacheEditions(entry cacheEntry, locale string) []Edition {
	blobs := entry.Editions
	if len(blobs) == 0 && entry.Price != nil {
		blobs = []cacheEdition{{Name: "Standard", Price: *entry.Price}}
	}

	var editions []Edition
	for _, blob := range blobs {
		original, ok := parsePrice(blob.Price.BasePrice)
		if !ok {
			continue
		}
		name := blob.Name
		if name == "" {
			name = "Standard"
		}

		edition := Edition{
			Name:          name,
			OriginalPrice: original,
			Currency:      blob.Price.CurrencyCode,
		}
		if edition.Currency == "" {
			edition.Currency = currencyFromText(blob.Price.BasePrice)
		}
		if edition.Currency == "" {
			edition.Currency = currencyForLocale(locale)
		}

		if sale, ok := parsePrice(blob.Price.DiscountedPrice); ok && sale < original {
			edition.SalePrice = &sale
			if blob.Price.EndTime != nil {
				until, err := time.Parse(time.RFC3339, *blob.Price.EndTime)
				if err == nil {
					edition.ValidUntil = &until
				}
			}
		}
		editions = append(editions, edition)
	}
	return editions
}
