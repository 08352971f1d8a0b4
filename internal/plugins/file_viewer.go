package plugins

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/inthisone/dashcore/internal/shared/types"
)

const (
	defaultFileViewerTail     = 200
	defaultFileViewerInterval = 30 * time.Second
)

// fileViewerState is the persisted blob. An empty path means no file is
// open and the widget stays unbound.
type fileViewerState struct {
	Path            string         `json:"path"`
	ParserHint      string         `json:"parser_hint,omitempty"`
	TailLines       int            `json:"tail_lines,omitempty"`
	RefreshInterval types.Duration `json:"refresh_interval,omitempty"`
}

// fileViewer shows the tail of one watched local file
type fileViewer struct {
	wctx types.WidgetContext

	mu        sync.Mutex
	path      string
	hint      string
	tail      int
	interval  types.Duration
	sourceID  string
	lines     []string
	lineCount int
	fetchedAt time.Time
}

var _ types.Widget = (*fileViewer)(nil)

func newFileViewer(wctx types.WidgetContext) (types.Widget, error) {
	return &fileViewer{
		wctx:     wctx,
		tail:     defaultFileViewerTail,
		interval: types.Duration(defaultFileViewerInterval),
	}, nil
}

func (v *fileViewer) Refresh(ctx context.Context, sourceID string) error {
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
	v.lines, v.lineCount = tailText(documentText(entry.Payload), v.tail)
	v.fetchedAt = entry.FetchedAt
	return nil
}

func (v *fileViewer) SerializeState() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return sonic.Marshal(fileViewerState{
		Path:            v.path,
		ParserHint:      v.hint,
		TailLines:       v.tail,
		RefreshInterval: v.interval,
	})
}

func (v *fileViewer) RestoreState(state []byte) error {
	var saved fileViewerState
	if err := sonic.Unmarshal(state, &saved); err != nil {
		return fmt.Errorf("file-viewer state: %w", err)
	}
	if saved.TailLines <= 0 {
		saved.TailLines = defaultFileViewerTail
	}
	interval := intervalOrDefault(saved.RefreshInterval, defaultFileViewerInterval)

	sourceID := ""
	if saved.Path != "" {
		var err error
		sourceID, err = v.wctx.Sources.Bind(types.SourceConfig{
			Kind:         types.SourceFile,
			URI:          saved.Path,
			PollInterval: interval,
			ParserHint:   saved.ParserHint,
		})
		if err != nil {
			return fmt.Errorf("file-viewer source: %w", err)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.path = saved.Path
	v.hint = saved.ParserHint
	v.tail = saved.TailLines
	v.interval = interval
	v.sourceID = sourceID
	return nil
}

func (v *fileViewer) Dispose() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lines, v.lineCount = nil, 0
	return nil
}

func (v *fileViewer) view() ([]string, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.lines...), v.lineCount
}

// documentText pulls displayable text out of a parsed payload. Text parses
// carry a "text" key; structured documents render as indented JSON so the
// viewer still shows something meaningful for csv or json files.
func documentText(payload interface{}) string {
	if doc, ok := payload.(map[string]interface{}); ok {
		if text, ok := doc["text"].(string); ok {
			return text
		}
	}
	blob, err := sonic.ConfigDefault.MarshalIndent(payload, "", "  ")
	if err != nil {
		return ""
	}
	return string(blob)
}

// tailText keeps the last n lines of text and reports the total line count
func tailText(text string, n int) ([]string, int) {
	if text == "" {
		return nil, 0
	}
	lines := strings.Split(text, "\n")
	total := len(lines)
	if n > 0 && total > n {
		lines = lines[total-n:]
	}
	return append([]string(nil), lines...), total
}
