package plugins

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inthisone/dashcore/internal/shared/types"
)

func newPDFViewerFor(t *testing.T, r *rig) *pdfViewer {
	t.Helper()
	w, err := newPDFViewer(r.wctx)
	require.NoError(t, err)
	return w.(*pdfViewer)
}

func TestPDFViewerRestoreBindsDocument(t *testing.T) {
	r := newRig()
	w := newPDFViewerFor(t, r)

	require.NoError(t, w.RestoreState([]byte(`{"path":"/docs/manual.pdf","refresh_interval":"2m"}`)))

	bound := r.binder.bound()
	require.Len(t, bound, 1)
	assert.Equal(t, types.SourcePDF, bound[0].Kind)
	assert.Equal(t, "/docs/manual.pdf", bound[0].URI)
	assert.Equal(t, 2*time.Minute, time.Duration(bound[0].PollInterval))
}

func TestPDFViewerExtractsPages(t *testing.T) {
	r := newRig()
	w := newPDFViewerFor(t, r)
	require.NoError(t, w.RestoreState([]byte(`{"path":"/docs/manual.pdf"}`)))

	// page_count arrives as float64 after a JSON round trip through the
	// durable cache
	r.reader.put("src_1", map[string]interface{}{
		"page_count": float64(3),
		"pages": []interface{}{
			map[string]interface{}{"page": float64(1), "text": "alpha"},
			map[string]interface{}{"page": float64(2), "text": ""},
		},
		"text": "alpha",
	})
	require.NoError(t, w.Refresh(context.Background(), "src_1"))

	pages, count := w.view()
	assert.Equal(t, []string{"alpha", ""}, pages)
	assert.Equal(t, 3, count)
}

func TestPDFViewerUnusablePayload(t *testing.T) {
	r := newRig()
	w := newPDFViewerFor(t, r)
	require.NoError(t, w.RestoreState([]byte(`{"path":"/docs/manual.pdf"}`)))

	r.reader.put("src_1", "not a document")
	require.NoError(t, w.Refresh(context.Background(), "src_1"))

	pages, count := w.view()
	assert.Empty(t, pages)
	assert.Zero(t, count)
}

func TestPDFViewerSerializeRoundTrip(t *testing.T) {
	r := newRig()
	w := newPDFViewerFor(t, r)
	require.NoError(t, w.RestoreState([]byte(`{"path":"/docs/manual.pdf","refresh_interval":"90s"}`)))

	blob, err := w.SerializeState()
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"/docs/manual.pdf","refresh_interval":"1m30s"}`, string(blob))
}
