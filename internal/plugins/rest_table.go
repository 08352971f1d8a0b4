package plugins

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/inthisone/dashcore/internal/shared/types"
)

const (
	defaultRestTableURL      = "https://jsonplaceholder.typicode.com/todos"
	defaultRestTableInterval = time.Minute
)

// restTableState is the persisted blob. refresh_interval accepts both
// duration strings and bare numeric seconds, so settings saved by older
// releases load unchanged.
type restTableState struct {
	URL             string         `json:"url"`
	RefreshInterval types.Duration `json:"refresh_interval,omitempty"`
}

// restTable tabulates the parsed JSON of one polled endpoint
type restTable struct {
	wctx types.WidgetContext

	mu        sync.Mutex
	url       string
	interval  types.Duration
	sourceID  string
	columns   []string
	rows      [][]string
	fetchedAt time.Time
}

var _ types.Widget = (*restTable)(nil)

func newRestTable(wctx types.WidgetContext) (types.Widget, error) {
	return &restTable{
		wctx:     wctx,
		url:      defaultRestTableURL,
		interval: types.Duration(defaultRestTableInterval),
	}, nil
}

func (t *restTable) Refresh(ctx context.Context, sourceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	src := adoptSource(&t.sourceID, sourceID)
	if src == "" {
		return nil
	}
	entry, ok := t.wctx.Data.Lookup(src)
	if !ok {
		// Nothing cached yet. Keep the previous view until the poller lands.
		return nil
	}
	t.columns, t.rows = tabulate(entry.Payload)
	t.fetchedAt = entry.FetchedAt
	return nil
}

func (t *restTable) SerializeState() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sonic.Marshal(restTableState{URL: t.url, RefreshInterval: t.interval})
}

func (t *restTable) RestoreState(state []byte) error {
	var saved restTableState
	if err := sonic.Unmarshal(state, &saved); err != nil {
		return fmt.Errorf("rest-table state: %w", err)
	}
	if saved.URL == "" {
		saved.URL = defaultRestTableURL
	}
	interval := intervalOrDefault(saved.RefreshInterval, defaultRestTableInterval)

	sourceID, err := t.wctx.Sources.Bind(types.SourceConfig{
		Kind:         types.SourceRest,
		URI:          saved.URL,
		PollInterval: interval,
	})
	if err != nil {
		return fmt.Errorf("rest-table source: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.url = saved.URL
	t.interval = interval
	t.sourceID = sourceID
	return nil
}

func (t *restTable) Dispose() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.columns, t.rows = nil, nil
	return nil
}

func (t *restTable) table() ([]string, [][]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	columns := append([]string(nil), t.columns...)
	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		rows[i] = append([]string(nil), row...)
	}
	return columns, rows
}

// tabulate derives a column set and string rows from a parsed JSON payload.
// A list of objects becomes one row per object with columns taken from the
// first object; a single object becomes a one-row table. Columns are sorted
// because parsed objects do not preserve document key order. Any other
// payload shape yields an empty table.
func tabulate(payload interface{}) ([]string, [][]string) {
	switch doc := payload.(type) {
	case []interface{}:
		if len(doc) == 0 {
			return nil, nil
		}
		first, ok := doc[0].(map[string]interface{})
		if !ok {
			return nil, nil
		}
		columns := sortedKeys(first)
		rows := make([][]string, 0, len(doc))
		for _, item := range doc {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			rows = append(rows, tableRow(columns, obj))
		}
		return columns, rows
	case map[string]interface{}:
		columns := sortedKeys(doc)
		return columns, [][]string{tableRow(columns, doc)}
	default:
		return nil, nil
	}
}

func sortedKeys(obj map[string]interface{}) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func tableRow(columns []string, obj map[string]interface{}) []string {
	row := make([]string, len(columns))
	for i, col := range columns {
		row[i] = formatCell(obj[col])
	}
	return row
}

// formatCell renders one cell: nested structures as compact JSON, nil as
// empty, scalars via %v
func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]interface{}, []interface{}:
		blob, err := sonic.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(blob)
	default:
		return fmt.Sprintf("%v", val)
	}
}
