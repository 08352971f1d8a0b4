package plugins

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/inthisone/dashcore/internal/shared/types"
)

const defaultPDFViewerInterval = time.Minute

// pdfViewerState is the persisted blob
type pdfViewerState struct {
	Path            string         `json:"path"`
	RefreshInterval types.Duration `json:"refresh_interval,omitempty"`
}

// pdfViewer shows the extracted text pages of one local PDF document
type pdfViewer struct {
	wctx types.WidgetContext

	mu        sync.Mutex
	path      string
	interval  types.Duration
	sourceID  string
	pages     []string
	pageCount int
	fetchedAt time.Time
}

var _ types.Widget = (*pdfViewer)(nil)

func newPDFViewer(wctx types.WidgetContext) (types.Widget, error) {
	return &pdfViewer{
		wctx:     wctx,
		interval: types.Duration(defaultPDFViewerInterval),
	}, nil
}

func (v *pdfViewer) Refresh(ctx context.Context, sourceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	src := adoptSource(&v.sourceID, sourceID)
	if src == "" {
		return nil
	}
	entry, ok := v.wctx.Data.Lookup(src)
	if !ok {
		return nil
	}
	v.pages, v.pageCount = pdfPages(entry.Payload)
	v.fetchedAt = entry.FetchedAt
	return nil
}

func (v *pdfViewer) SerializeState() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return sonic.Marshal(pdfViewerState{Path: v.path, RefreshInterval: v.interval})
}

func (v *pdfViewer) RestoreState(state []byte) error {
	var saved pdfViewerState
	if err := sonic.Unmarshal(state, &saved); err != nil {
		return fmt.Errorf("pdf-viewer state: %w", err)
	}
	interval := intervalOrDefault(saved.RefreshInterval, defaultPDFViewerInterval)

	sourceID := ""
	if saved.Path != "" {
		var err error
		sourceID, err = v.wctx.Sources.Bind(types.SourceConfig{
			Kind:         types.SourcePDF,
			URI:          saved.Path,
			PollInterval: interval,
		})
		if err != nil {
			return fmt.Errorf("pdf-viewer source: %w", err)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.path = saved.Path
	v.interval = interval
	v.sourceID = sourceID
	return nil
}

func (v *pdfViewer) Dispose() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pages, v.pageCount = nil, 0
	return nil
}

func (v *pdfViewer) view() ([]string, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.pages...), v.pageCount
}

// pdfPages pulls per-page text out of an extracted document payload. The
// reported count is the document's page total, which can exceed the number
// of extracted pages when some pages were unreadable. Payloads that have
// crossed a JSON round trip carry float64 counts, so both forms decode.
func pdfPages(payload interface{}) ([]string, int) {
	doc, ok := payload.(map[string]interface{})
	if !ok {
		return nil, 0
	}

	raw, _ := doc["pages"].([]interface{})
	pages := make([]string, 0, len(raw))
	for _, p := range raw {
		entry, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		text, _ := entry["text"].(string)
		pages = append(pages, text)
	}

	count := len(pages)
	switch n := doc["page_count"].(type) {
	case int:
		count = n
	case int64:
		count = int(n)
	case float64:
		count = int(n)
	}
	return pages, count
}
