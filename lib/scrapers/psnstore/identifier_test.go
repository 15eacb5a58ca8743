package psnstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		want  Identifier
		fails bool
	}{
		{
			name: "numeric token is a concept",
			raw:  "10000237",
			want: Identifier{Kind: KindConcept, Value: "10000237"},
		},
		{
			name: "sku token is a product",
			raw:  "EP3862-X",
			want: Identifier{Kind: KindProduct, Value: "EP3862-X"},
		},
		{
			name: "mixed alphanumeric is a product",
			raw:  "abc123",
			want: Identifier{Kind: KindProduct, Value: "abc123"},
		},
		{
			name: "concept link",
			raw:  "https://store.playstation.com/ru-ru/concept/10000237",
			want: Identifier{Kind: KindConcept, Value: "10000237"},
		},
		{
			name: "product link",
			raw:  "https://store.playstation.com/ru-ru/product/EP3862-X",
			want: Identifier{Kind: KindProduct, Value: "EP3862-X"},
		},
		{
			name: "www host and trailing slash",
			raw:  "https://www.store.playstation.com/en-us/concept/123/",
			want: Identifier{Kind: KindConcept, Value: "123"},
		},
		{
			name:  "empty input",
			raw:   "",
			fails: true,
		},
		{
			name:  "punctuation",
			raw:   "!!",
			fails: true,
		},
		{
			name:  "wrong host",
			raw:   "https://example.com/ru-ru/product/EP3862-X",
			fails: true,
		},
		{
			name:  "unrelated store path",
			raw:   "https://store.playstation.com/ru-ru/search/witcher",
			fails: true,
		},
		{
			name:  "token with slash",
			raw:   "foo/bar",
			fails: true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Normalize(c.raw)
			if c.fails {
				require.ErrorIs(t, err, ErrInvalidIdentifier)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"4 999,00 ₽", 4999, true},
		{"$39.99", 39.99, true},
		{"1,299.50", 1299.5, true},
		{"Free", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := parsePrice(c.raw)
		require.Equal(t, c.ok, ok, c.raw)
		if c.ok {
			require.InDelta(t, c.want, got, 0.001, c.raw)
		}
	}
}
