package plugins

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/inthisone/dashcore/internal/shared/types"
)

const defaultScrapePanelInterval = 5 * time.Minute

// scrapePanelState is the persisted blob. An empty selector extracts the
// whole readable document instead of selector matches.
type scrapePanelState struct {
	URL             string         `json:"url"`
	Selector        string         `json:"selector,omitempty"`
	RefreshInterval types.Duration `json:"refresh_interval,omitempty"`
}

// scrapePanel shows fragments scraped from one web page
type scrapePanel struct {
	wctx types.WidgetContext

	mu        sync.Mutex
	url       string
	selector  string
	interval  types.Duration
	sourceID  string
	title     string
	text      string
	matches   []string
	fetchedAt time.Time
}

var _ types.Widget = (*scrapePanel)(nil)

func newScrapePanel(wctx types.WidgetContext) (types.Widget, error) {
	return &scrapePanel{
		wctx:     wctx,
		interval: types.Duration(defaultScrapePanelInterval),
	}, nil
}

func (p *scrapePanel) Refresh(ctx context.Context, sourceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	src := adoptSource(&p.sourceID, sourceID)
	if src == "" {
		return nil
	}
	entry, ok := p.wctx.Data.Lookup(src)
	if !ok {
		return nil
	}
	p.title, p.text, p.matches = scrapeExtract(entry.Payload)
	p.fetchedAt = entry.FetchedAt
	return nil
}

func (p *scrapePanel) SerializeState() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sonic.Marshal(scrapePanelState{
		URL:             p.url,
		Selector:        p.selector,
		RefreshInterval: p.interval,
	})
}

func (p *scrapePanel) RestoreState(state []byte) error {
	var saved scrapePanelState
	if err := sonic.Unmarshal(state, &saved); err != nil {
		return fmt.Errorf("scrape-panel state: %w", err)
	}
	interval := intervalOrDefault(saved.RefreshInterval, defaultScrapePanelInterval)

	sourceID := ""
	if saved.URL != "" {
		hint := ""
		if saved.Selector != "" {
			hint = "css:" + saved.Selector
		}
		var err error
		sourceID, err = p.wctx.Sources.Bind(types.SourceConfig{
			Kind:         types.SourceHTML,
			URI:          saved.URL,
			PollInterval: interval,
			ParserHint:   hint,
		})
		if err != nil {
			return fmt.Errorf("scrape-panel source: %w", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = saved.URL
	p.selector = saved.Selector
	p.interval = interval
	p.sourceID = sourceID
	return nil
}

func (p *scrapePanel) Dispose() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title, p.text, p.matches = "", "", nil
	return nil
}

func (p *scrapePanel) view() (title, text string, matches []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, p.text, append([]string(nil), p.matches...)
}

// scrapeExtract reads either extraction shape: selector payloads carry a
// matches list, whole-document payloads carry title and text
func scrapeExtract(payload interface{}) (title, text string, matches []string) {
	doc, ok := payload.(map[string]interface{})
	if !ok {
		return "", "", nil
	}

	if raw, ok := doc["matches"].([]interface{}); ok {
		out := make([]string, 0, len(raw))
		for _, m := range raw {
			obj, ok := m.(map[string]interface{})
			if !ok {
				continue
			}
			if t, ok := obj["text"].(string); ok {
				out = append(out, t)
			}
		}
		return "", "", out
	}

	title, _ = doc["title"].(string)
	text, _ = doc["text"].(string)
	return title, text, nil
}
