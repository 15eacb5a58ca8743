package psnstore

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Host is the storefront all identifiers resolve against.
const Host = "store.playstation.com"

var ErrInvalidIdentifier = fmt.Errorf("this does not look like a store id or a store link")

type Kind int

const (
	// KindConcept identifies the umbrella title across editions/platforms.
	// Concept ids are purely numeric.
	KindConcept Kind = iota
	// KindProduct identifies one purchasable SKU, alphanumeric with hyphens.
	KindProduct
)

func (k Kind) String() string {
	if k == KindConcept {
		return "concept"
	}
	return "product"
}

// Identifier is a normalized reference to a storefront detail page.
// It is consumed immediately by the catalog and never persisted.
type Identifier struct {
	Kind  Kind
	Value string
}

var (
	digitsOnly = regexp.MustCompile(`^[0-9]+$`)
	bareToken  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)
	storePath  = regexp.MustCompile(`^/[a-z]{2}-[a-z]{2}/(?:concept|product)/([A-Za-z0-9-]+)/?$`)
)

// Normalize parses arbitrary user text into an Identifier. Accepted
// inputs are a bare id token or a detail-page link on Host; everything
// else fails with ErrInvalidIdentifier.
func Normalize(raw string) (Identifier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identifier{}, ErrInvalidIdentifier
	}

	if strings.Contains(raw, "://") {
		link, err := url.Parse(raw)
		if err != nil {
			return Identifier{}, ErrInvalidIdentifier
		}
		if !strings.EqualFold(strings.TrimPrefix(link.Hostname(), "www."), Host) {
			return Identifier{}, ErrInvalidIdentifier
		}
		groups := storePath.FindStringSubmatch(link.Path)
		if groups == nil {
			return Identifier{}, ErrInvalidIdentifier
		}
		return classify(groups[1]), nil
	}

	if !bareToken.MatchString(raw) {
		return Identifier{}, ErrInvalidIdentifier
	}
	return classify(raw), nil
}

// concept ids are the only purely numeric tokens in either namespace,
// so the digits-only rule is enough to discriminate
func classify(token string) Identifier {
	if digitsOnly.MatchString(token) {
		return Identifier{Kind: KindConcept, Value: token}
	}
	return Identifier{Kind: KindProduct, Value: token}
}
