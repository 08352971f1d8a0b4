package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/inthisone/dashcore/internal/shared/types"
)

// maxHTMLBytes bounds scraped documents to keep one page from exhausting
// memory
const maxHTMLBytes = 10 << 20

// htmlFetcher scrapes web pages. The parser hint selects the extraction:
// "css:<selector>" collects matching elements via goquery,
// "xpath:<expr>" via htmlquery, and no hint extracts the readable
// whole-document text.
type htmlFetcher struct {
	client    *Client
	sanitizer *bluemonday.Policy
}

func newHTMLFetcher(client *Client) *htmlFetcher {
	return &htmlFetcher{
		client:    client,
		sanitizer: bluemonday.UGCPolicy(),
	}
}

func (f *htmlFetcher) Kind() types.SourceKind {
	return types.SourceHTML
}

func (f *htmlFetcher) Fetch(ctx context.Context, cfg types.SourceConfig) (*Result, error) {
	resp, err := f.client.Get(ctx, cfg.URI, "text/html")
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", types.ErrFetchFailed, cfg.URI, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: get %s: %s", types.ErrFetchFailed, cfg.URI, resp.Status())
	}

	raw := resp.Body()
	if len(raw) > maxHTMLBytes {
		return nil, fmt.Errorf("%w: %s: page exceeds %d bytes", types.ErrParseFailed, cfg.URI, maxHTMLBytes)
	}

	payload, err := f.extract(raw, cfg.ParserHint)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrParseFailed, cfg.URI, err)
	}

	return &Result{
		Raw:       raw,
		Payload:   payload,
		MediaType: "html",
		Meta: map[string]interface{}{
			"status":  resp.StatusCode(),
			"charset": detectCharset(raw),
		},
	}, nil
}

func (f *htmlFetcher) extract(raw []byte, hint string) (interface{}, error) {
	switch {
	case strings.HasPrefix(hint, "css:"):
		return f.extractCSS(raw, strings.TrimSpace(strings.TrimPrefix(hint, "css:")))
	case strings.HasPrefix(hint, "xpath:"):
		return f.extractXPath(raw, strings.TrimSpace(strings.TrimPrefix(hint, "xpath:")))
	case hint == "":
		return f.extractDocument(raw)
	default:
		return nil, fmt.Errorf("unknown html selector hint %q", hint)
	}
}

func (f *htmlFetcher) extractCSS(raw []byte, selector string) (interface{}, error) {
	if selector == "" {
		return nil, fmt.Errorf("empty css selector")
	}
	doc, err := loadHTML(raw)
	if err != nil {
		return nil, err
	}

	matches := []interface{}{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		inner, _ := s.Html()
		matches = append(matches, map[string]interface{}{
			"text": normalizeWhitespace(s.Text()),
			"html": f.sanitizer.Sanitize(inner),
		})
	})

	return map[string]interface{}{
		"selector": selector,
		"matches":  matches,
		"count":    len(matches),
	}, nil
}

func (f *htmlFetcher) extractXPath(raw []byte, expr string) (interface{}, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty xpath expression")
	}
	root, err := loadHTMLNode(raw)
	if err != nil {
		return nil, err
	}

	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}

	matches := []interface{}{}
	for _, node := range nodes {
		matches = append(matches, map[string]interface{}{
			"text": normalizeWhitespace(extractText(node)),
			"html": f.sanitizer.Sanitize(htmlquery.OutputHTML(node, true)),
		})
	}

	return map[string]interface{}{
		"selector": expr,
		"matches":  matches,
		"count":    len(matches),
	}, nil
}

// extractDocument is the no-hint fallback: page title plus readable body text
// with chrome elements stripped
func (f *htmlFetcher) extractDocument(raw []byte) (interface{}, error) {
	doc, err := loadHTML(raw)
	if err != nil {
		return nil, err
	}

	doc.Find("script, style, nav, header, footer, aside, iframe").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := normalizeWhitespace(doc.Find("body").Text())

	return map[string]interface{}{
		"title":  title,
		"text":   text,
		"length": len(text),
	}, nil
}

// detectCharset guesses the document charset, defaulting to utf-8
func detectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// loadHTML parses into a goquery document with charset conversion
func loadHTML(data []byte) (*goquery.Document, error) {
	utf8Reader, err := charset.NewReader(bytes.NewReader(data), "text/html; charset="+detectCharset(data))
	if err != nil {
		return goquery.NewDocumentFromReader(bytes.NewReader(data))
	}
	return goquery.NewDocumentFromReader(utf8Reader)
}

// loadHTMLNode parses into an xpath-compatible node tree
func loadHTMLNode(data []byte) (*html.Node, error) {
	utf8Reader, err := charset.NewReader(bytes.NewReader(data), "text/html; charset="+detectCharset(data))
	if err != nil {
		return htmlquery.Parse(bytes.NewReader(data))
	}
	return htmlquery.Parse(utf8Reader)
}

// extractText collects the text nodes under n
func extractText(n *html.Node) string {
	var buf bytes.Buffer
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}

// normalizeWhitespace collapses runs of whitespace into single spaces
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
