package testutil

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// ParseHTML parses a rendered page for goquery assertions.
func ParseHTML(t testing.TB, body []byte) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

// ViewerConfig decodes the widget config a page embeds in #viewer-config.
func ViewerConfig(t testing.TB, body []byte) map[string]any {
	t.Helper()

	raw := ParseHTML(t, body).Find("#viewer-config").Text()
	if raw == "" {
		t.Fatalf("page embeds no viewer config")
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("decode viewer config: %v", err)
	}
	return cfg
}
