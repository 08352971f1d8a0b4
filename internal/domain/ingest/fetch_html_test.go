package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inthisone/dashcore/internal/shared/types"
)

const testPage = `<html>
<head><title>Headlines</title></head>
<body>
<nav>site menu</nav>
<ul id="news">
  <li class="hl">First story</li>
  <li class="hl">Second story</li>
</ul>
<script>trackingJunk()</script>
</body>
</html>`

func newHTMLServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testPage))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func htmlDecl(uri, hint string) types.SourceConfig {
	return types.SourceConfig{Kind: types.SourceHTML, URI: uri, ParserHint: hint}
}

func TestHTMLFetcherCSSSelector(t *testing.T) {
	srv := newHTMLServer(t)
	f := newHTMLFetcher(NewClient(ClientOptions{}))

	res, err := f.Fetch(context.Background(), htmlDecl(srv.URL, "css:li.hl"))
	require.NoError(t, err)

	doc := res.Payload.(map[string]interface{})
	assert.Equal(t, "li.hl", doc["selector"])
	assert.Equal(t, 2, doc["count"])

	matches := doc["matches"].([]interface{})
	first := matches[0].(map[string]interface{})
	assert.Equal(t, "First story", first["text"])
}

func TestHTMLFetcherXPath(t *testing.T) {
	srv := newHTMLServer(t)
	f := newHTMLFetcher(NewClient(ClientOptions{}))

	res, err := f.Fetch(context.Background(), htmlDecl(srv.URL, "xpath://li[@class='hl']"))
	require.NoError(t, err)

	doc := res.Payload.(map[string]interface{})
	assert.Equal(t, 2, doc["count"])
	matches := doc["matches"].([]interface{})
	second := matches[1].(map[string]interface{})
	assert.Equal(t, "Second story", second["text"])
}

func TestHTMLFetcherDocumentFallback(t *testing.T) {
	srv := newHTMLServer(t)
	f := newHTMLFetcher(NewClient(ClientOptions{}))

	res, err := f.Fetch(context.Background(), htmlDecl(srv.URL, ""))
	require.NoError(t, err)

	doc := res.Payload.(map[string]interface{})
	assert.Equal(t, "Headlines", doc["title"])

	text := doc["text"].(string)
	assert.Contains(t, text, "First story")
	assert.Contains(t, text, "Second story")
	assert.NotContains(t, text, "trackingJunk", "script content stripped")
	assert.NotContains(t, text, "site menu", "chrome elements stripped")
}

func TestHTMLFetcherBadSelectorHint(t *testing.T) {
	srv := newHTMLServer(t)
	f := newHTMLFetcher(NewClient(ClientOptions{}))

	tests := []string{"regex:.*", "css:", "xpath:"}
	for _, hint := range tests {
		_, err := f.Fetch(context.Background(), htmlDecl(srv.URL, hint))
		require.Error(t, err, "hint %q", hint)
		assert.ErrorIs(t, err, types.ErrParseFailed)
	}
}

func TestHTMLFetcherHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	f := newHTMLFetcher(NewClient(ClientOptions{}))
	_, err := f.Fetch(context.Background(), htmlDecl(srv.URL, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrFetchFailed)
}
