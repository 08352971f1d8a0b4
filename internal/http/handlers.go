package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/domain/cache"
	"github.com/inthisone/dashcore/internal/domain/ingest"
	"github.com/inthisone/dashcore/internal/domain/layout"
	"github.com/inthisone/dashcore/internal/domain/registry"
	"github.com/inthisone/dashcore/internal/domain/widget"
	"github.com/inthisone/dashcore/internal/infrastructure/monitoring"
	"github.com/inthisone/dashcore/internal/infrastructure/schedule"
	"github.com/inthisone/dashcore/internal/shared/types"
	"github.com/inthisone/dashcore/internal/shared/utils"
)

// Version is the daemon version reported by the root endpoint
const Version = "0.3.0"

// Options wires the handler set to the daemon's subsystems. Scheduler and
// Metrics may be nil; the corresponding fields drop out of /stats.
type Options struct {
	Plugins *registry.Registry
	Widgets *widget.Manager
	Sources *ingest.Manager
	Data    *cache.Cache
	Layout  *layout.Store
	Sched   *schedule.Scheduler
	Metrics *monitoring.Metrics
	Logger  *zap.Logger

	// PluginDir backs POST /plugins/discover; empty disables rescans
	PluginDir string
	// Build turns discovered manifests into widget factories
	Build registry.FactoryBuilder
}

// Handlers contains all HTTP handlers
type Handlers struct {
	plugins *registry.Registry
	widgets *widget.Manager
	sources *ingest.Manager
	data    *cache.Cache
	layout  *layout.Store
	sched   *schedule.Scheduler
	metrics *monitoring.Metrics
	logger  *zap.Logger

	pluginDir string
	build     registry.FactoryBuilder
}

// NewHandlers creates a new handler set
func NewHandlers(opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handlers{
		plugins:   opts.Plugins,
		widgets:   opts.Widgets,
		sources:   opts.Sources,
		data:      opts.Data,
		layout:    opts.Layout,
		sched:     opts.Sched,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		pluginDir: opts.PluginDir,
		build:     opts.Build,
	}
}

// Root handles the banner check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "dashcore",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"plugins": h.plugins.Stats(),
		"widgets": h.widgets.Stats(),
		"sources": h.sources.Len(),
		"cache":   h.data.Stats(),
	})
}

// ListPlugins lists every registered plugin manifest
func (h *Handlers) ListPlugins(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"plugins": h.plugins.List(),
		"stats":   h.plugins.Stats(),
	})
}

// DiscoverPlugins rescans the plugin directory for manifests
func (h *Handlers) DiscoverPlugins(c *gin.Context) {
	if h.pluginDir == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no plugin directory configured"})
		return
	}

	results := h.plugins.Discover(c.Request.Context(), h.pluginDir, h.build)
	registered := 0
	for _, res := range results {
		if res.Registered {
			registered++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"dir":        h.pluginDir,
		"found":      len(results),
		"registered": registered,
		"results":    results,
	})
}

// ListWidgets lists all live widget instances
func (h *Handlers) ListWidgets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"widgets": h.widgets.List(),
		"stats":   h.widgets.Stats(),
	})
}

// CreateWidget instantiates a widget from a registered plugin
func (h *Handlers) CreateWidget(c *gin.Context) {
	var req struct {
		PluginID string          `json:"plugin_id" binding:"required"`
		Title    string          `json:"title"`
		Geometry types.Geometry  `json:"geometry"`
		State    json.RawMessage `json:"state"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidatePluginID(req.PluginID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateStateBlob(req.State); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var instance types.WidgetInstance
	var err error
	if req.Title == "" && req.State == nil {
		instance, err = h.widgets.Create(req.PluginID, req.Geometry)
	} else {
		// A custom title or a seeded state blob goes through the snapshot
		// path, which generates a fresh instance ID for an empty one
		instance, err = h.widgets.CreateFromSnapshot(types.SnapshotEntry{
			PluginID:     req.PluginID,
			Title:        req.Title,
			Geometry:     req.Geometry,
			PrivateState: req.State,
		})
	}
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"widget": instance})
}

// GetWidget returns one widget instance record
func (h *Handlers) GetWidget(c *gin.Context) {
	instanceID := c.Param("id")
	if err := utils.ValidateID(instanceID, "instance_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	instance, ok := h.widgets.Get(instanceID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "widget not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"widget": instance})
}

// DisposeWidget tears a widget down and releases its subscriptions
func (h *Handlers) DisposeWidget(c *gin.Context) {
	instanceID := c.Param("id")
	if err := utils.ValidateID(instanceID, "instance_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.widgets.Dispose(instanceID); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"instance_id": instanceID,
	})
}

// SubscribeWidget binds a live widget to a data source declaration
func (h *Handlers) SubscribeWidget(c *gin.Context) {
	instanceID := c.Param("id")
	if err := utils.ValidateID(instanceID, "instance_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Kind         string         `json:"kind" binding:"required"`
		URI          string         `json:"uri_or_path" binding:"required"`
		PollInterval types.Duration `json:"poll_interval"`
		ParserHint   string         `json:"parser_hint"`
		TTL          types.Duration `json:"ttl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateURI(req.URI); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := types.SourceConfig{
		Kind:         types.SourceKind(req.Kind),
		URI:          req.URI,
		PollInterval: req.PollInterval,
		ParserHint:   req.ParserHint,
		TTL:          req.TTL,
	}
	if !cfg.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("invalid source declaration: kind=%q uri=%q", req.Kind, req.URI),
		})
		return
	}

	if err := h.widgets.Subscribe(instanceID, cfg); err != nil {
		fail(c, err)
		return
	}

	instance, _ := h.widgets.Get(instanceID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"widget":  instance,
	})
}

// SuspendWidget mutes a widget's refreshes until resume
func (h *Handlers) SuspendWidget(c *gin.Context) {
	instanceID := c.Param("id")
	if err := utils.ValidateID(instanceID, "instance_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.widgets.Suspend(instanceID); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"instance_id": instanceID,
		"state":       types.WidgetSuspended,
	})
}

// ResumeWidget reactivates a suspended widget and refreshes it once
func (h *Handlers) ResumeWidget(c *gin.Context) {
	instanceID := c.Param("id")
	if err := utils.ValidateID(instanceID, "instance_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.widgets.Resume(instanceID); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"instance_id": instanceID,
		"state":       types.WidgetActive,
	})
}

// UpdateGeometry records a placement change pushed in from the shell
func (h *Handlers) UpdateGeometry(c *gin.Context) {
	instanceID := c.Param("id")
	if err := utils.ValidateID(instanceID, "instance_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var geom types.Geometry
	if err := c.ShouldBindJSON(&geom); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.widgets.UpdateGeometry(instanceID, geom); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"instance_id": instanceID,
	})
}

// RefreshAll force-refreshes every widget and nudges every poller
func (h *Handlers) RefreshAll(c *gin.Context) {
	refreshed := h.widgets.RefreshAll()

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"refreshed": refreshed,
	})
}

// ListSources reports every tracked data source with its poll state
func (h *Handlers) ListSources(c *gin.Context) {
	infos := h.sources.Statuses()
	degraded := 0
	for _, info := range infos {
		if info.State == types.SourceDegraded {
			degraded++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"sources":  infos,
		"tracked":  len(infos),
		"degraded": degraded,
	})
}

// RefreshSource forces one fetch for a source and waits for its outcome
func (h *Handlers) RefreshSource(c *gin.Context) {
	sourceID := c.Param("id")
	if err := utils.ValidateID(sourceID, "source_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sources.Refresh(c.Request.Context(), sourceID); err != nil {
		fail(c, err)
		return
	}

	info, _ := h.sources.Status(sourceID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"source":  info,
	})
}

// GetCacheEntry returns the cached payload for one source
func (h *Handlers) GetCacheEntry(c *gin.Context) {
	sourceID := c.Param("source")
	if err := utils.ValidateID(sourceID, "source_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, ok := h.data.Get(sourceID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached payload for source"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

// SaveLayout captures the live workspace and checkpoints it to disk
func (h *Handlers) SaveLayout(c *gin.Context) {
	snap := h.widgets.CaptureSnapshot()
	if err := h.layout.Save(snap); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"path":    h.layout.Path(),
		"widgets": len(snap.Widgets),
	})
}

// RestoreLayout loads the saved snapshot and rebuilds its widgets
func (h *Handlers) RestoreLayout(c *gin.Context) {
	snap, err := h.layout.Load()
	if err != nil {
		fail(c, err)
		return
	}

	restored := h.widgets.RestoreSnapshot(snap)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"version":  snap.Version,
		"widgets":  len(snap.Widgets),
		"restored": restored,
	})
}

// Stats returns the aggregated daemon statistics
func (h *Handlers) Stats(c *gin.Context) {
	snapshot := h.metrics.Snapshot()

	infos := h.sources.Statuses()
	degraded := 0
	for _, info := range infos {
		if info.State == types.SourceDegraded {
			degraded++
		}
	}

	stats := gin.H{
		"uptime_seconds": h.metrics.UptimeSeconds(),
		"requests": gin.H{
			"total":               snapshot.TotalRequests,
			"errors":              snapshot.TotalErrors,
			"avg_latency_seconds": h.metrics.AverageLatency(),
		},
		"plugins": h.plugins.Stats(),
		"widgets": h.widgets.Stats(),
		"sources": gin.H{
			"tracked":  len(infos),
			"degraded": degraded,
		},
		"cache":      h.data.Stats(),
		"ws_clients": snapshot.WSClients,
	}
	if h.sched != nil {
		stats["jobs"] = h.sched.List()
	}

	c.JSON(http.StatusOK, stats)
}
