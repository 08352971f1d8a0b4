package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inthisone/dashcore/internal/shared/types"
)

func newScrapePanelFor(t *testing.T, r *rig) *scrapePanel {
	t.Helper()
	w, err := newScrapePanel(r.wctx)
	require.NoError(t, err)
	return w.(*scrapePanel)
}

func TestScrapePanelSelectorMode(t *testing.T) {
	r := newRig()
	w := newScrapePanelFor(t, r)

	blob := `{"url":"https://news.example.com","selector":"h2.headline"}`
	require.NoError(t, w.RestoreState([]byte(blob)))

	bound := r.binder.bound()
	require.Len(t, bound, 1)
	assert.Equal(t, types.SourceHTML, bound[0].Kind)
	assert.Equal(t, "css:h2.headline", bound[0].ParserHint)

	r.reader.put("src_1", map[string]interface{}{
		"selector": "h2.headline",
		"matches": []interface{}{
			map[string]interface{}{"text": "Local cache speeds dashboards", "html": "<h2>Local cache speeds dashboards</h2>"},
			map[string]interface{}{"text": "Pollers gain jittered backoff"},
		},
		"count": 2,
	})
	require.NoError(t, w.Refresh(context.Background(), "src_1"))

	title, text, matches := w.view()
	assert.Empty(t, title)
	assert.Empty(t, text)
	assert.Equal(t, []string{"Local cache speeds dashboards", "Pollers gain jittered backoff"}, matches)
}

func TestScrapePanelDocumentMode(t *testing.T) {
	r := newRig()
	w := newScrapePanelFor(t, r)

	require.NoError(t, w.RestoreState([]byte(`{"url":"https://example.com"}`)))

	bound := r.binder.bound()
	require.Len(t, bound, 1)
	assert.Empty(t, bound[0].ParserHint)

	r.reader.put("src_1", map[string]interface{}{
		"title":  "Example Domain",
		"text":   "This domain is for use in examples.",
		"length": 35,
	})
	require.NoError(t, w.Refresh(context.Background(), "src_1"))

	title, text, matches := w.view()
	assert.Equal(t, "Example Domain", title)
	assert.Equal(t, "This domain is for use in examples.", text)
	assert.Empty(t, matches)
}

func TestScrapePanelNoURLStaysUnbound(t *testing.T) {
	r := newRig()
	w := newScrapePanelFor(t, r)

	require.NoError(t, w.RestoreState([]byte(`{"url":""}`)))
	assert.Empty(t, r.binder.bound())
}

func TestScrapePanelSerializeRoundTrip(t *testing.T) {
	r := newRig()
	w := newScrapePanelFor(t, r)

	blob := `{"url":"https://news.example.com","selector":"h2","refresh_interval":"10m"}`
	require.NoError(t, w.RestoreState([]byte(blob)))

	out, err := w.SerializeState()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"url":"https://news.example.com","selector":"h2","refresh_interval":"10m0s"}`,
		string(out))
}
