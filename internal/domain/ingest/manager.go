package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/inthisone/dashcore/internal/domain/cache"
	"github.com/inthisone/dashcore/internal/events"
	"github.com/inthisone/dashcore/internal/infrastructure/monitoring"
	"github.com/inthisone/dashcore/internal/infrastructure/resilience"
	"github.com/inthisone/dashcore/internal/shared/types"
	"github.com/inthisone/dashcore/internal/shared/utils"
)

// ErrUnknownSource is returned for operations on a source ID the manager
// does not track
var ErrUnknownSource = errors.New("unknown source")

// Settings shapes polling and failure handling
type Settings struct {
	// MinInterval and MaxInterval clamp declared poll intervals
	MinInterval time.Duration
	MaxInterval time.Duration
	// BackoffFactor and BackoffCap shape the failure backoff curve
	BackoffFactor float64
	BackoffCap    float64
	// DegradedAfter is the consecutive-failure threshold
	DegradedAfter int
	// FetchTimeout bounds one fetch attempt
	FetchTimeout time.Duration
	// MaxConcurrent bounds simultaneous fetch attempts across all sources
	MaxConcurrent int
}

// DefaultSettings mirrors the daemon defaults
func DefaultSettings() Settings {
	return Settings{
		MinInterval:   time.Second,
		MaxInterval:   time.Hour,
		BackoffFactor: 1.5,
		BackoffCap:    10,
		DegradedAfter: 3,
		FetchTimeout:  30 * time.Second,
		MaxConcurrent: 4,
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.MinInterval <= 0 {
		s.MinInterval = def.MinInterval
	}
	if s.MaxInterval <= 0 {
		s.MaxInterval = def.MaxInterval
	}
	if s.BackoffFactor <= 1 {
		s.BackoffFactor = def.BackoffFactor
	}
	if s.BackoffCap < 1 {
		s.BackoffCap = def.BackoffCap
	}
	if s.DegradedAfter <= 0 {
		s.DegradedAfter = def.DegradedAfter
	}
	if s.FetchTimeout <= 0 {
		s.FetchTimeout = def.FetchTimeout
	}
	if s.MaxConcurrent <= 0 {
		s.MaxConcurrent = def.MaxConcurrent
	}
	return s
}

// Options configures a Manager
type Options struct {
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
	Bus      *events.Bus
	Cache    *cache.Cache
	Settings Settings
	Clock    clockwork.Clock
	// Client backs the network fetchers; built with defaults when nil
	Client *Client
	// Fetchers overrides or extends the defaults, keyed by Kind
	Fetchers []Fetcher
}

// Manager owns one poller per distinct source declaration and reference
// counts the widgets subscribed to each
type Manager struct {
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	bus      *events.Bus
	cache    *cache.Cache
	settings Settings
	clock    clockwork.Clock
	fetchers map[types.SourceKind]Fetcher
	digest   *utils.PayloadDigest
	// fetchSlots bounds how many fetches run at once across all pollers
	fetchSlots *semaphore.Weighted

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.RWMutex
	sources map[string]*source // by source ID
	byKey   map[string]string  // declaration identity -> source ID
	closed  bool
}

// source is one tracked declaration with its poller state. refs is guarded
// by the manager mutex; the remaining mutable fields by the source's own.
type source struct {
	id      string
	cfg     types.SourceConfig
	refs    int
	cancel  context.CancelFunc
	nudge   chan chan error
	tracker *resilience.Tracker

	mu        sync.Mutex
	state     types.SourceState
	failures  int
	lastErr   string
	lastFetch time.Time
	nextPoll  time.Time
	lastHash  string
	fetched   bool
}

// New creates an ingest manager. Close must be called to stop the pollers.
func New(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Client == nil {
		opts.Client = NewClient(ClientOptions{})
	}

	fetchers := make(map[types.SourceKind]Fetcher)
	for _, f := range DefaultFetchers(opts.Client) {
		fetchers[f.Kind()] = f
	}
	for _, f := range opts.Fetchers {
		fetchers[f.Kind()] = f
	}

	settings := opts.Settings.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		bus:        opts.Bus,
		cache:      opts.Cache,
		settings:   settings,
		clock:      opts.Clock,
		fetchers:   fetchers,
		digest:     utils.NewPayloadDigest(nil),
		fetchSlots: semaphore.NewWeighted(int64(settings.MaxConcurrent)),
		baseCtx:    ctx,
		stop:       cancel,
		sources:    make(map[string]*source),
		byKey:      make(map[string]string),
	}
}

// EnsureSource starts polling the declared source, or joins the existing
// poller when an identical declaration is already tracked. Returns the
// source ID to subscribe under. Every successful call must be balanced by
// one Release.
func (m *Manager) EnsureSource(cfg types.SourceConfig) (string, error) {
	if !cfg.Valid() {
		return "", fmt.Errorf("invalid source declaration: kind=%q uri=%q interval=%s",
			cfg.Kind, cfg.URI, time.Duration(cfg.PollInterval))
	}
	if _, ok := m.fetchers[cfg.Kind]; !ok {
		return "", fmt.Errorf("no fetcher for source kind %q", cfg.Kind)
	}

	// Clamp before deriving the identity so declarations that clamp to the
	// same effective interval collapse together
	cfg.PollInterval = m.clampInterval(cfg.PollInterval)
	if cfg.TTL <= 0 {
		// Survives exactly one missed poll
		cfg.TTL = 2 * cfg.PollInterval
	}
	key := cfg.Key()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", fmt.Errorf("ingest manager closed")
	}

	if id, ok := m.byKey[key]; ok {
		src := m.sources[id]
		src.refs++
		m.logger.Debug("source reference added",
			zap.String("source_id", id),
			zap.Int("refs", src.refs))
		return id, nil
	}

	id := cfg.SourceID
	if id == "" {
		// Derived IDs are stable across restarts, so warm-started cache
		// entries line up with re-ensured sources
		id = "src_" + m.digest.SourceFingerprint(key)
	}
	if _, taken := m.sources[id]; taken {
		return "", fmt.Errorf("source id %q already tracks a different declaration", id)
	}
	cfg.SourceID = id

	src := &source{
		id:    id,
		cfg:   cfg,
		refs:  1,
		nudge: make(chan chan error, 1),
		state: types.SourceActive,
	}
	src.tracker = resilience.NewTracker(id, resilience.Settings{
		Factor:        m.settings.BackoffFactor,
		Cap:           m.settings.BackoffCap,
		DegradedAfter: m.settings.DegradedAfter,
		OnStateChange: func(_ string, _, to resilience.State) {
			m.publishHealth(src, to)
		},
	})

	ctx, cancel := context.WithCancel(m.baseCtx)
	src.cancel = cancel
	m.sources[id] = src
	m.byKey[key] = id

	m.wg.Add(1)
	go m.run(ctx, src)
	if cfg.Kind == types.SourceFile || cfg.Kind == types.SourcePDF {
		m.watchFile(ctx, src)
	}

	m.metrics.SetSourcesActive(len(m.sources))
	m.logger.Info("source started",
		zap.String("source_id", id),
		zap.String("kind", string(cfg.Kind)),
		zap.String("uri", cfg.URI),
		zap.Duration("interval", time.Duration(cfg.PollInterval)))
	return id, nil
}

// Release drops one reference. The poller stops when the last reference
// goes; the cached payload stays until the sweep collects it, so a rapid
// resubscribe does not lose data.
func (m *Manager) Release(sourceID string) {
	m.mu.Lock()
	src, ok := m.sources[sourceID]
	if !ok {
		m.mu.Unlock()
		return
	}
	src.refs--
	if src.refs > 0 {
		refs := src.refs
		m.mu.Unlock()
		m.logger.Debug("source reference dropped",
			zap.String("source_id", sourceID),
			zap.Int("refs", refs))
		return
	}
	delete(m.sources, sourceID)
	delete(m.byKey, src.cfg.Key())
	remaining := len(m.sources)
	m.mu.Unlock()

	src.cancel()
	m.metrics.SetSourcesActive(remaining)
	m.logger.Info("source stopped", zap.String("source_id", sourceID))
}

// Refs reports the live subscription count for a source. The cache uses it
// to decide eviction eligibility.
func (m *Manager) Refs(sourceID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if src, ok := m.sources[sourceID]; ok {
		return src.refs
	}
	return 0
}

// Refresh forces an immediate fetch and waits for its outcome
func (m *Manager) Refresh(ctx context.Context, sourceID string) error {
	m.mu.RLock()
	src, ok := m.sources[sourceID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}

	reply := make(chan error, 1)
	select {
	case src.nudge <- reply:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshAll nudges every poller without waiting. Pollers already mid-fetch
// or with a pending nudge are left alone.
func (m *Manager) RefreshAll() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nudged := 0
	for _, src := range m.sources {
		select {
		case src.nudge <- nil:
			nudged++
		default:
		}
	}
	return nudged
}

// Status returns the observable state of one source
func (m *Manager) Status(sourceID string) (types.SourceInfo, bool) {
	m.mu.RLock()
	src, ok := m.sources[sourceID]
	var refs int
	if ok {
		refs = src.refs
	}
	m.mu.RUnlock()
	if !ok {
		return types.SourceInfo{}, false
	}
	return src.info(refs), true
}

// Statuses returns every tracked source ordered by ID
func (m *Manager) Statuses() []types.SourceInfo {
	m.mu.RLock()
	infos := make([]types.SourceInfo, 0, len(m.sources))
	for _, src := range m.sources {
		infos = append(infos, src.info(src.refs))
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Config.SourceID < infos[j].Config.SourceID
	})
	return infos
}

// Len returns the number of tracked sources
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sources)
}

// Close stops every poller and waits for them to finish
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, src := range m.sources {
		src.cancel()
	}
	m.mu.Unlock()

	m.stop()
	m.wg.Wait()
	m.logger.Info("ingest manager stopped")
}

func (m *Manager) clampInterval(interval types.Duration) types.Duration {
	d := time.Duration(interval)
	if d < m.settings.MinInterval {
		d = m.settings.MinInterval
	}
	if d > m.settings.MaxInterval {
		d = m.settings.MaxInterval
	}
	return types.Duration(d)
}

// publishHealth mirrors a tracker transition into the source and announces
// it. Runs from the tracker's state-change hook.
func (m *Manager) publishHealth(src *source, to resilience.State) {
	state := toSourceState(to)

	src.mu.Lock()
	src.state = state
	health := types.SourceHealth{
		SourceID: src.id,
		State:    state,
		Failures: src.failures,
		Error:    src.lastErr,
	}
	src.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(src.id, events.TypeSourceHealth, health)
	}
	m.updateHealthGauges()

	switch state {
	case types.SourceDegraded:
		m.logger.Error("source degraded",
			zap.String("source_id", src.id),
			zap.Int("failures", health.Failures),
			zap.String("last_error", health.Error))
	case types.SourceActive:
		m.logger.Info("source recovered", zap.String("source_id", src.id))
	}
}

func (m *Manager) updateHealthGauges() {
	m.mu.RLock()
	degraded := 0
	for _, src := range m.sources {
		src.mu.Lock()
		if src.state == types.SourceDegraded {
			degraded++
		}
		src.mu.Unlock()
	}
	total := len(m.sources)
	m.mu.RUnlock()

	m.metrics.SetSourcesActive(total)
	m.metrics.SetSourcesDegraded(degraded)
}

func toSourceState(s resilience.State) types.SourceState {
	switch s {
	case resilience.StateBackoff:
		return types.SourceBackoff
	case resilience.StateDegraded:
		return types.SourceDegraded
	default:
		return types.SourceActive
	}
}

func (s *source) info(refs int) types.SourceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.SourceInfo{
		Config:    s.cfg,
		State:     s.state,
		Refs:      refs,
		Failures:  s.failures,
		LastError: s.lastErr,
		LastFetch: s.lastFetch,
		NextPoll:  s.nextPoll,
	}
}
