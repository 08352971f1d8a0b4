package widget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/events"
	"github.com/inthisone/dashcore/internal/infrastructure/monitoring"
	"github.com/inthisone/dashcore/internal/shared/id"
	"github.com/inthisone/dashcore/internal/shared/types"
)

// DefaultRefreshTimeout bounds a single widget refresh invocation
const DefaultRefreshTimeout = 10 * time.Second

// PluginCatalog resolves plugin IDs to their manifests
type PluginCatalog interface {
	Lookup(pluginID string) (types.PluginManifest, bool)
}

// Options configures the lifecycle manager. Registry and Sources are
// required; everything else has a working zero value.
type Options struct {
	Registry PluginCatalog
	Sources  SourceManager
	Data     types.DataReader
	Bus      *events.Bus
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics

	// RefreshTimeout caps one Refresh call per widget
	RefreshTimeout time.Duration
}

// Manager owns every widget instance and runs the event-to-refresh fan-in
type Manager struct {
	registry       PluginCatalog
	sources        SourceManager
	data           types.DataReader
	bus            *events.Bus
	logger         *zap.Logger
	metrics        *monitoring.Metrics
	refreshTimeout time.Duration

	mu      sync.RWMutex
	widgets map[string]*managed // Protected by mu
	order   []string            // Creation order, protected by mu

	stream *events.Subscription
	wg     sync.WaitGroup
}

// managed pairs a live widget with its instance record. widget is set at
// construction and never reassigned. callMu serializes capability
// invocations (Refresh, SerializeState, Dispose) so they never overlap; mu
// guards the mutable fields. Lock order: Manager.mu before mu, callMu
// before mu, and never Manager.mu while holding either.
type managed struct {
	callMu sync.Mutex
	mu     sync.Mutex
	widget types.Widget
	info   types.WidgetInstance
	subs   map[string]types.SourceConfig // sourceID -> declared config
}

// New creates a lifecycle manager. When a bus is supplied the manager
// attaches a wildcard subscription and routes data changes to subscribed
// instances until Close.
func New(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}

	m := &Manager{
		registry:       opts.Registry,
		sources:        opts.Sources,
		data:           opts.Data,
		bus:            opts.Bus,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		refreshTimeout: opts.RefreshTimeout,
		widgets:        make(map[string]*managed),
	}

	if m.bus != nil {
		m.stream = m.bus.Subscribe(types.TopicAll)
		m.wg.Add(1)
		go m.dispatch(m.stream)
	}
	return m
}

// Create builds a fresh instance of the named plugin. The factory runs with
// an explicit context; sources it declares during construction are attached
// before the instance becomes visible.
func (m *Manager) Create(pluginID string, geom types.Geometry) (types.WidgetInstance, error) {
	manifest, ok := m.registry.Lookup(pluginID)
	if !ok {
		return types.WidgetInstance{}, fmt.Errorf("%w: %s", types.ErrUnknownPlugin, pluginID)
	}
	return m.construct(manifest, id.NewWidgetID().String(), manifest.DisplayName, geom, nil)
}

// construct runs the factory, optionally restores private state, and
// registers the finished instance. On any failure every source reference the
// construction collected is released again.
func (m *Manager) construct(manifest types.PluginManifest, instanceID, title string, geom types.Geometry, state []byte) (types.WidgetInstance, error) {
	b := newBinder(m.sources)
	wctx := types.WidgetContext{
		Data:    m.data,
		Sources: b,
		Log: m.logger.With(
			zap.String("plugin_id", manifest.PluginID),
			zap.String("instance_id", instanceID)),
	}

	w, err := invokeFactory(manifest.Factory, wctx)
	if err != nil {
		b.release()
		return types.WidgetInstance{}, fmt.Errorf("plugin %s: %w", manifest.PluginID, err)
	}
	if len(state) > 0 {
		if err := restoreState(w, state); err != nil {
			b.release()
			return types.WidgetInstance{}, fmt.Errorf("plugin %s: %w", manifest.PluginID, err)
		}
	}

	inst := &managed{
		widget: w,
		subs:   b.cfgs,
		info: types.WidgetInstance{
			ID:            instanceID,
			PluginID:      manifest.PluginID,
			Title:         title,
			State:         types.WidgetBound,
			Geometry:      geom,
			Subscriptions: b.ids,
			CreatedAt:     time.Now(),
		},
	}
	if len(b.ids) > 0 {
		inst.info.State = types.WidgetActive
	}
	out := copyInfo(inst.info)

	m.mu.Lock()
	if existing, ok := m.widgets[instanceID]; ok {
		existing.mu.Lock()
		tombstone := existing.info.State == types.WidgetDisposed
		existing.mu.Unlock()
		if !tombstone {
			m.mu.Unlock()
			b.release()
			_ = disposeWidget(w)
			return types.WidgetInstance{}, fmt.Errorf("widget instance %s already live", instanceID)
		}
		// Revive over the tombstone, keeping its creation-order slot
		m.widgets[instanceID] = inst
	} else {
		m.widgets[instanceID] = inst
		m.order = append(m.order, instanceID)
	}
	m.mu.Unlock()

	m.metrics.IncWidgetsCreated()
	m.updateGauges()
	m.publishStatus(instanceID, out.State, "")
	m.logger.Info("widget created",
		zap.String("plugin_id", manifest.PluginID),
		zap.String("instance_id", instanceID),
		zap.String("state", string(out.State)),
		zap.Int("sources", len(out.Subscriptions)))
	return out, nil
}

// Subscribe attaches a data source to an instance. Re-subscribing an already
// held source is a no-op; the first subscription moves Bound to Active.
func (m *Manager) Subscribe(instanceID string, cfg types.SourceConfig) error {
	w, ok := m.lookup(instanceID)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownWidget, instanceID)
	}

	w.mu.Lock()
	if w.info.State == types.WidgetDisposed {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrAlreadyDisposed, instanceID)
	}

	sourceID, err := m.sources.EnsureSource(cfg)
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", instanceID, err)
	}
	if _, held := w.subs[sourceID]; held {
		// One ingest reference per widget-source pair
		m.sources.Release(sourceID)
		w.mu.Unlock()
		return nil
	}
	w.subs[sourceID] = cfg
	w.info.Subscriptions = append(w.info.Subscriptions, sourceID)

	transitioned := false
	if w.info.State == types.WidgetBound {
		w.info.State = types.WidgetActive
		transitioned = true
	}
	w.mu.Unlock()

	if transitioned {
		m.updateGauges()
		m.publishStatus(instanceID, types.WidgetActive, "")
	}
	m.logger.Debug("widget subscribed",
		zap.String("instance_id", instanceID),
		zap.String("source_id", sourceID))
	return nil
}

// Suspend parks an instance: subscriptions stay warm, refreshes are skipped.
// Suspending an already suspended instance is a no-op.
func (m *Manager) Suspend(instanceID string) error {
	w, ok := m.lookup(instanceID)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownWidget, instanceID)
	}

	w.mu.Lock()
	switch w.info.State {
	case types.WidgetDisposed:
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrAlreadyDisposed, instanceID)
	case types.WidgetSuspended:
		w.mu.Unlock()
		return nil
	}
	w.info.State = types.WidgetSuspended
	w.mu.Unlock()

	m.updateGauges()
	m.publishStatus(instanceID, types.WidgetSuspended, "")
	m.logger.Debug("widget suspended", zap.String("instance_id", instanceID))
	return nil
}

// Resume reactivates a suspended instance and refreshes it once to catch up
// on whatever arrived while it was parked.
func (m *Manager) Resume(instanceID string) error {
	w, ok := m.lookup(instanceID)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownWidget, instanceID)
	}

	w.mu.Lock()
	if w.info.State == types.WidgetDisposed {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrAlreadyDisposed, instanceID)
	}
	if w.info.State != types.WidgetSuspended {
		w.mu.Unlock()
		return nil
	}
	w.info.State = types.WidgetBound
	if len(w.subs) > 0 {
		w.info.State = types.WidgetActive
	}
	state := w.info.State
	w.mu.Unlock()

	m.updateGauges()
	m.publishStatus(instanceID, state, "")
	m.safeRefresh(w, "")
	m.logger.Debug("widget resumed", zap.String("instance_id", instanceID))
	return nil
}

// Dispose tears an instance down: all source references are released, the
// widget's Dispose runs exactly once, and the record stays behind as a
// terminal tombstone. Every later operation returns ErrAlreadyDisposed.
func (m *Manager) Dispose(instanceID string) error {
	w, ok := m.lookup(instanceID)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownWidget, instanceID)
	}

	w.callMu.Lock()
	defer w.callMu.Unlock()

	w.mu.Lock()
	if w.info.State == types.WidgetDisposed {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrAlreadyDisposed, instanceID)
	}
	w.info.State = types.WidgetDisposed
	released := make([]string, len(w.info.Subscriptions))
	copy(released, w.info.Subscriptions)
	w.mu.Unlock()

	for _, sourceID := range released {
		m.sources.Release(sourceID)
	}

	if err := disposeWidget(w.widget); err != nil {
		m.metrics.IncWidgetFaults()
		m.logger.Warn("widget dispose failed",
			zap.String("instance_id", instanceID),
			zap.Error(err))
		m.publishStatus(instanceID, types.WidgetDisposed, err.Error())
	} else {
		m.publishStatus(instanceID, types.WidgetDisposed, "")
	}

	m.updateGauges()
	m.logger.Info("widget disposed",
		zap.String("instance_id", instanceID),
		zap.Int("sources_released", len(released)))
	return nil
}

// UpdateGeometry records a placement change pushed in from the shell
func (m *Manager) UpdateGeometry(instanceID string, geom types.Geometry) error {
	w, ok := m.lookup(instanceID)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownWidget, instanceID)
	}

	w.mu.Lock()
	if w.info.State == types.WidgetDisposed {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrAlreadyDisposed, instanceID)
	}
	w.info.Geometry = geom
	w.mu.Unlock()

	m.logger.Debug("widget geometry updated", zap.String("instance_id", instanceID))
	return nil
}

// HandleEvent routes one data change to every instance subscribed to the
// source, in creation order. A faulting instance never affects its siblings.
// Returns the number of refreshes actually invoked.
func (m *Manager) HandleEvent(sourceID string, ev events.Event) int {
	if ev.Type != events.TypeDataChanged {
		return 0
	}

	refreshed := 0
	for _, w := range m.subscribersOf(sourceID) {
		if m.safeRefresh(w, sourceID) {
			refreshed++
		}
	}
	return refreshed
}

// RefreshAll force-refreshes every non-suspended instance and nudges all
// pollers for an immediate re-poll. Returns the number of widgets refreshed.
func (m *Manager) RefreshAll() int {
	m.mu.RLock()
	targets := make([]*managed, 0, len(m.order))
	for _, instanceID := range m.order {
		targets = append(targets, m.widgets[instanceID])
	}
	m.mu.RUnlock()

	refreshed := 0
	for _, w := range targets {
		if m.safeRefresh(w, "") {
			refreshed++
		}
	}
	nudged := m.sources.RefreshAll()

	m.logger.Info("refresh all",
		zap.Int("widgets", refreshed),
		zap.Int("sources_nudged", nudged))
	return refreshed
}

// Get retrieves a copy of one instance record
func (m *Manager) Get(instanceID string) (types.WidgetInstance, bool) {
	w, ok := m.lookup(instanceID)
	if !ok {
		return types.WidgetInstance{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return copyInfo(w.info), true
}

// List returns every instance record, disposed tombstones included, in
// creation order
func (m *Manager) List() []types.WidgetInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.WidgetInstance, 0, len(m.order))
	for _, instanceID := range m.order {
		w := m.widgets[instanceID]
		w.mu.Lock()
		out = append(out, copyInfo(w.info))
		w.mu.Unlock()
	}
	return out
}

// Stats returns per-state instance counts
func (m *Manager) Stats() types.WidgetStats {
	byState, total := m.counts()
	return types.WidgetStats{
		Total:     total,
		Active:    byState[types.WidgetActive],
		Suspended: byState[types.WidgetSuspended],
		Disposed:  byState[types.WidgetDisposed],
	}
}

// Len reports the number of instance records, tombstones included
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.widgets)
}

// Close detaches the manager from the bus and waits for in-flight dispatch.
// Live instances are not disposed.
func (m *Manager) Close() {
	if m.stream != nil {
		m.bus.Unsubscribe(m.stream)
	}
	m.wg.Wait()
}

// dispatch drains the wildcard subscription until it closes
func (m *Manager) dispatch(stream *events.Subscription) {
	defer m.wg.Done()
	for ev := range stream.C {
		m.HandleEvent(ev.Topic, ev)
	}
}

// safeRefresh invokes one instance's Refresh under its call lock. Suspended
// and disposed instances are skipped. An error or panic is contained to the
// instance: logged, counted and reported as a widget_status event, and the
// instance stays live. Reports whether Refresh was invoked.
func (m *Manager) safeRefresh(w *managed, sourceID string) bool {
	w.callMu.Lock()
	defer w.callMu.Unlock()

	w.mu.Lock()
	state := w.info.State
	instanceID := w.info.ID
	w.mu.Unlock()
	if state == types.WidgetSuspended || state == types.WidgetDisposed {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
	defer cancel()

	if err := refreshWidget(ctx, w.widget, sourceID); err != nil {
		m.metrics.IncWidgetFaults()
		m.logger.Warn("widget refresh failed",
			zap.String("instance_id", instanceID),
			zap.String("source_id", sourceID),
			zap.Error(err))
		m.publishStatus(instanceID, state, err.Error())
	}
	return true
}

// subscribersOf collects the instances subscribed to a source, in creation
// order
func (m *Manager) subscribersOf(sourceID string) []*managed {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var targets []*managed
	for _, instanceID := range m.order {
		w := m.widgets[instanceID]
		w.mu.Lock()
		_, subscribed := w.subs[sourceID]
		w.mu.Unlock()
		if subscribed {
			targets = append(targets, w)
		}
	}
	return targets
}

func (m *Manager) lookup(instanceID string) (*managed, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.widgets[instanceID]
	return w, ok
}

func (m *Manager) publishStatus(instanceID string, state types.WidgetState, errMsg string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(types.TopicWidgets, events.TypeWidgetStatus, types.WidgetStatus{
		InstanceID: instanceID,
		State:      state,
		Error:      errMsg,
	})
}

func (m *Manager) counts() (map[types.WidgetState]int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byState := make(map[types.WidgetState]int, 4)
	for _, w := range m.widgets {
		w.mu.Lock()
		byState[w.info.State]++
		w.mu.Unlock()
	}
	return byState, len(m.widgets)
}

// updateGauges mirrors per-state counts into metrics. Callers must not hold
// any manager or instance lock.
func (m *Manager) updateGauges() {
	byState, total := m.counts()
	m.metrics.SetWidgetsLive(string(types.WidgetActive), byState[types.WidgetActive])
	m.metrics.SetWidgetsLive(string(types.WidgetBound), byState[types.WidgetBound])
	m.metrics.SetWidgetsLive(string(types.WidgetSuspended), byState[types.WidgetSuspended])
	m.metrics.SetLiveWidgetTotal(total - byState[types.WidgetDisposed])
}

// copyInfo clones an instance record so callers never alias manager state
func copyInfo(info types.WidgetInstance) types.WidgetInstance {
	out := info
	out.Subscriptions = make([]string, len(info.Subscriptions))
	copy(out.Subscriptions, info.Subscriptions)
	return out
}

// invokeFactory runs a plugin factory, converting a panic into an error
func invokeFactory(factory types.WidgetFactory, wctx types.WidgetContext) (w types.Widget, err error) {
	defer func() {
		if r := recover(); r != nil {
			w, err = nil, fmt.Errorf("factory panic: %v", r)
		}
	}()

	if factory == nil {
		return nil, fmt.Errorf("%w: manifest has no factory", types.ErrInvalidManifest)
	}
	w, err = factory(wctx)
	if err != nil {
		return nil, fmt.Errorf("factory: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("factory returned no widget")
	}
	return w, nil
}

// restoreState replays a private state blob, converting a panic into an error
func restoreState(w types.Widget, blob []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("restore state panic: %v", r)
		}
	}()

	if err := w.RestoreState(blob); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	return nil
}

// disposeWidget runs a widget's Dispose, converting a panic into an error
func disposeWidget(w types.Widget) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispose panic: %v", r)
		}
	}()
	return w.Dispose()
}

// refreshWidget runs a widget's Refresh, converting a panic into an error
func refreshWidget(ctx context.Context, w types.Widget, sourceID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panic: %v", r)
		}
	}()
	return w.Refresh(ctx, sourceID)
}
