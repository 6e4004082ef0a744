// Package render turns generated letters into HTML for the reveal screen.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in model output is dropped; single newlines inside a paragraph
// stay line breaks, which is how letters are usually laid out.
var letterRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		gmhtml.WithHardWraps(),
	),
)

// LetterHTML renders the letter text as an HTML fragment.
func LetterHTML(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := letterRenderer.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render letter: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
