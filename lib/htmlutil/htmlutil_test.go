package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestGetText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(
		`<div><span>Gran</span> <b>Turismo <i>7</i></b></div>`,
	))
	require.NoError(t, err)

	require.Equal(t, "Gran Turismo 7", GetText(doc))
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "Gran Turismo 7", CleanText("  Gran   Turismo\n\t7 "))
	require.Equal(t, "4 999,00 ₽", CleanText("​4 999,00 ₽​"))
	require.Equal(t, "", CleanText(" \n\t "))
}
