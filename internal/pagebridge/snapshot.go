package pagebridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// SnapshotBridge serves session data from a saved provider page. The page embeds
// its data in script tags:
//
//	<script type="application/json" data-bridge="routes">[...]</script>
//	<script type="text/plain" data-bridge="dynamic-url">https://...</script>
//	<script type="application/json" data-bridge="headers">{...}</script>
//
// When the page declares its own address (link rel=canonical or og:url) and that
// host differs from the expected provider host, every call fails with WrongPage.
type SnapshotBridge struct {
	path         string
	expectedHost string
}

func NewSnapshotBridge(path string, expectedHost string) *SnapshotBridge {
	return &SnapshotBridge{path: path, expectedHost: strings.ToLower(expectedHost)}
}

func (b *SnapshotBridge) load() (*goquery.Document, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, &BridgeError{Message: err.Error(), Cause: ErrCauseTransport}
	}
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &BridgeError{Message: err.Error(), Cause: ErrCauseMalformedReply}
	}
	doc := goquery.NewDocumentFromNode(root)

	if b.expectedHost != "" {
		if declared := declaredAddress(doc); declared != "" {
			u, err := url.Parse(declared)
			if err != nil || !strings.EqualFold(u.Hostname(), b.expectedHost) {
				return nil, &BridgeError{
					Message: fmt.Sprintf("snapshot of %q, want %s", declared, b.expectedHost),
					Cause:   ErrCauseWrongPage,
				}
			}
		}
	}
	return doc, nil
}

func declaredAddress(doc *goquery.Document) string {
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	if content, ok := doc.Find(`meta[property="og:url"]`).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

func scriptText(doc *goquery.Document, name string) (string, bool) {
	sel := doc.Find(fmt.Sprintf(`script[data-bridge=%q]`, name)).First()
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(sel.Text()), true
}

func (b *SnapshotBridge) Destinations(ctx context.Context, origin string) ([]Route, error) {
	doc, err := b.load()
	if err != nil {
		return nil, err
	}
	text, ok := scriptText(doc, "routes")
	if !ok {
		return nil, &BridgeError{Message: "snapshot has no routes", Cause: ErrCauseMalformedReply}
	}
	var routes []Route
	if err := json.Unmarshal([]byte(text), &routes); err != nil {
		return nil, &BridgeError{Message: err.Error(), Cause: ErrCauseMalformedReply}
	}
	return routes, nil
}

func (b *SnapshotBridge) DynamicURL(ctx context.Context) (string, error) {
	doc, err := b.load()
	if err != nil {
		return "", err
	}
	text, ok := scriptText(doc, "dynamic-url")
	if !ok || text == "" {
		return "", &BridgeError{Message: "snapshot has no dynamic url", Cause: ErrCauseMalformedReply}
	}
	return text, nil
}

func (b *SnapshotBridge) Headers(ctx context.Context) (map[string]string, error) {
	doc, err := b.load()
	if err != nil {
		return nil, err
	}
	text, ok := scriptText(doc, "headers")
	if !ok {
		return nil, &BridgeError{Message: "snapshot has no headers", Cause: ErrCauseMalformedReply}
	}
	headers := map[string]string{}
	if err := json.Unmarshal([]byte(text), &headers); err != nil {
		return nil, &BridgeError{Message: err.Error(), Cause: ErrCauseMalformedReply}
	}
	return headers, nil
}

// Navigate cannot move a saved page; it is a no-op.
func (b *SnapshotBridge) Navigate(ctx context.Context, url string) error {
	return nil
}
