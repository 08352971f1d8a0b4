package plugins

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/inthisone/dashcore/internal/domain/ingest"
	"github.com/inthisone/dashcore/internal/shared/types"
)

// statsState is the persisted blob
type statsState struct {
	Series []float64 `json:"series"`
}

// stats holds a numeric series in private state and recomputes its
// descriptive digest on every refresh. It consumes no data sources.
type stats struct {
	mu     sync.Mutex
	series []float64
	digest map[string]interface{}
}

var _ types.Widget = (*stats)(nil)

func newStats(types.WidgetContext) (types.Widget, error) {
	return &stats{}, nil
}

func (s *stats) Refresh(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.digest = ingest.Digest(s.series)
	return nil
}

func (s *stats) SerializeState() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sonic.Marshal(statsState{Series: append([]float64(nil), s.series...)})
}

func (s *stats) RestoreState(state []byte) error {
	var saved statsState
	if err := sonic.Unmarshal(state, &saved); err != nil {
		return fmt.Errorf("stats state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = saved.Series
	s.digest = nil
	return nil
}

func (s *stats) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series, s.digest = nil, nil
	return nil
}

// setSeries replaces the series. The digest stays stale until the next
// refresh recomputes it.
func (s *stats) setSeries(series []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = append([]float64(nil), series...)
	s.digest = nil
}

func (s *stats) snapshot() ([]float64, map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series := append([]float64(nil), s.series...)
	if s.digest == nil {
		return series, nil
	}
	digest := make(map[string]interface{}, len(s.digest))
	for k, v := range s.digest {
		digest[k] = v
	}
	return series, digest
}
