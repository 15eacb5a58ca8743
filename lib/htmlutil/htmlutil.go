package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// CleanText strips non-printable runes, trims and collapses runs of
// whitespace. Storefront markup pads text nodes with layout whitespace
// and zero-width characters.
func CleanText(s string) string {
	var printable strings.Builder
	for _, c := range s {
		if unicode.IsSpace(c) {
			printable.WriteRune(' ')
			continue
		}
		if unicode.IsPrint(c) {
			printable.WriteRune(c)
		}
	}
	cleaned := strings.TrimSpace(printable.String())
	return innerWhitespace.ReplaceAllString(cleaned, " ")
}
