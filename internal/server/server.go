package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/domain/cache"
	"github.com/inthisone/dashcore/internal/domain/cache/sqlite"
	"github.com/inthisone/dashcore/internal/domain/ingest"
	"github.com/inthisone/dashcore/internal/domain/layout"
	"github.com/inthisone/dashcore/internal/domain/registry"
	"github.com/inthisone/dashcore/internal/domain/widget"
	"github.com/inthisone/dashcore/internal/events"
	api "github.com/inthisone/dashcore/internal/http"
	"github.com/inthisone/dashcore/internal/infrastructure/config"
	"github.com/inthisone/dashcore/internal/infrastructure/monitoring"
	"github.com/inthisone/dashcore/internal/infrastructure/schedule"
	"github.com/inthisone/dashcore/internal/logging"
	"github.com/inthisone/dashcore/internal/middleware"
	"github.com/inthisone/dashcore/internal/plugins"
	"github.com/inthisone/dashcore/internal/shared/paths"
	"github.com/inthisone/dashcore/internal/ws"
)

// Server wraps the HTTP server and every daemon subsystem
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	bus     *events.Bus
	data    *cache.Cache
	sources *ingest.Manager
	plugins *registry.Registry
	widgets *widget.Manager
	layout  *layout.Store
	sched   *schedule.Scheduler
	router  *gin.Engine
	http    *http.Server
}

// New builds the daemon: cache over its durable store, source pollers,
// plugin registry, widget manager, layout store, background jobs, and the
// HTTP surface. Optional pieces (durable cache, saved layout, plugin
// discovery) log a warning and fall back instead of failing startup.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	base := logger.Logger

	metrics := monitoring.NewMetrics()
	bus := events.New(base.Named("bus"), metrics)

	dataDir, err := paths.Expand(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	if err := paths.EnsureDir(dataDir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var durable cache.DurableStore
	if cfg.Cache.Persistent {
		store, serr := sqlite.NewStore(paths.DataFile(dataDir, paths.CacheDBFile))
		if serr != nil {
			base.Named("cache").Warn("durable cache unavailable, holding data in memory only",
				zap.Error(serr))
		} else {
			durable = store
		}
	}

	// Assigned below. Eviction checks only run once widgets subscribe,
	// well after both subsystems exist.
	var sources *ingest.Manager

	data := cache.New(cache.Options{
		MaxEntries:        cfg.Cache.MaxEntries,
		MaxBytes:          cfg.Cache.MaxBytes,
		CompressThreshold: cfg.Cache.CompressThreshold,
		Subscribers: func(sourceID string) int {
			if sources == nil {
				return 0
			}
			return sources.Refs(sourceID)
		},
		Store:   durable,
		Logger:  base.Named("cache"),
		Metrics: metrics,
		Bus:     bus,
	})

	clientOpts := ingest.ClientOptions{
		Timeout:   cfg.Ingest.FetchTimeout,
		UserAgent: "dashcore/" + api.Version,
	}
	if cfg.RateLimit.Enabled {
		clientOpts.RequestsPerSecond = float64(cfg.RateLimit.RequestsPerSecond)
		clientOpts.Burst = cfg.RateLimit.Burst
	}

	sources = ingest.New(ingest.Options{
		Logger:  base.Named("ingest"),
		Metrics: metrics,
		Bus:     bus,
		Cache:   data,
		Settings: ingest.Settings{
			MinInterval:   cfg.Ingest.MinPollInterval,
			MaxInterval:   cfg.Ingest.MaxPollInterval,
			BackoffFactor: cfg.Ingest.BackoffFactor,
			BackoffCap:    cfg.Ingest.BackoffCap,
			DegradedAfter: cfg.Ingest.DegradedThreshold,
			FetchTimeout:  cfg.Ingest.FetchTimeout,
			MaxConcurrent: cfg.Ingest.MaxConcurrent,
		},
		Client: ingest.NewClient(clientOpts),
	})

	if durable != nil {
		if n, werr := data.WarmStart(context.Background()); werr != nil {
			base.Named("cache").Warn("cache warm start failed", zap.Error(werr))
		} else if n > 0 {
			base.Named("cache").Info("cache warmed from disk", zap.Int("entries", n))
		}
	}

	reg := registry.New(base.Named("registry"))
	registry.NewSeeder(reg, base.Named("registry")).Seed(plugins.Builtins())

	var pluginDir string
	if cfg.Plugins.Dir != "" {
		pluginDir, err = paths.Expand(cfg.Plugins.Dir)
		if err != nil {
			return nil, fmt.Errorf("resolve plugin dir: %w", err)
		}
		discover(reg, pluginDir, base.Named("registry"))
	}

	widgets := widget.New(widget.Options{
		Registry: reg,
		Sources:  sources,
		Data:     data,
		Bus:      bus,
		Logger:   base.Named("widgets"),
		Metrics:  metrics,
	})

	layoutPath, err := resolveLayoutPath(cfg, dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve layout path: %w", err)
	}
	layoutStore := layout.NewStore(layoutPath, base.Named("layout"), metrics)

	if snap, lerr := layoutStore.Load(); lerr != nil {
		base.Named("layout").Warn("saved layout unreadable, starting empty", zap.Error(lerr))
	} else if len(snap.Widgets) > 0 {
		restored := widgets.RestoreSnapshot(snap)
		base.Named("layout").Info("workspace restored",
			zap.Int("widgets", len(snap.Widgets)),
			zap.Int("restored", restored))
	}

	sched, err := schedule.New(base.Named("schedule"), nil)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	registerJobs(sched, cfg, widgets, layoutStore, data, base)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	handlers := api.NewHandlers(api.Options{
		Plugins:   reg,
		Widgets:   widgets,
		Sources:   sources,
		Data:      data,
		Layout:    layoutStore,
		Sched:     sched,
		Metrics:   metrics,
		Logger:    base.Named("http"),
		PluginDir: pluginDir,
		Build:     plugins.Descriptor,
	})
	wsHandler := ws.NewHandler(bus, widgets, metrics, base.Named("ws"))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Plugin catalog
	router.GET("/plugins", handlers.ListPlugins)
	router.POST("/plugins/discover", handlers.DiscoverPlugins)

	// Widget lifecycle
	router.GET("/widgets", handlers.ListWidgets)
	router.POST("/widgets", handlers.CreateWidget)
	router.GET("/widgets/:id", handlers.GetWidget)
	router.DELETE("/widgets/:id", handlers.DisposeWidget)
	router.POST("/widgets/:id/subscribe", handlers.SubscribeWidget)
	router.POST("/widgets/:id/suspend", handlers.SuspendWidget)
	router.POST("/widgets/:id/resume", handlers.ResumeWidget)
	router.POST("/widgets/:id/geometry", handlers.UpdateGeometry)
	router.POST("/widgets/refresh", handlers.RefreshAll)

	// Source health and cached data
	router.GET("/sources", handlers.ListSources)
	router.POST("/sources/:id/refresh", handlers.RefreshSource)
	router.GET("/cache/:source", handlers.GetCacheEntry)

	// Layout persistence
	router.POST("/layout/save", handlers.SaveLayout)
	router.POST("/layout/restore", handlers.RestoreLayout)

	// Introspection
	router.GET("/stats", handlers.Stats)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Event stream
	router.GET("/stream", wsHandler.HandleConnection)

	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		bus:     bus,
		data:    data,
		sources: sources,
		plugins: reg,
		widgets: widgets,
		layout:  layoutStore,
		sched:   sched,
		router:  router,
		http: &http.Server{
			Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

// Run starts the background jobs and serves HTTP until Shutdown or failure.
// The caller filters http.ErrServerClosed.
func (s *Server) Run() error {
	s.sched.Start()
	s.logger.Info("daemon listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

// Shutdown drains the HTTP server, stops background jobs, checkpoints the
// workspace one last time, and closes every subsystem in dependency order.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("daemon stopping")

	// Stop intake first so the final checkpoint sees a settled workspace.
	err := s.http.Shutdown(ctx)

	if serr := s.sched.Stop(); serr != nil {
		s.logger.Warn("scheduler stop failed", zap.Error(serr))
	}

	snap := s.widgets.CaptureSnapshot()
	if serr := s.layout.Save(snap); serr != nil {
		s.logger.Warn("final layout checkpoint failed", zap.Error(serr))
	} else {
		s.logger.Info("layout checkpointed", zap.Int("widgets", len(snap.Widgets)))
	}

	s.widgets.Close()
	s.sources.Close()
	if cerr := s.data.Close(); cerr != nil {
		s.logger.Warn("cache close failed", zap.Error(cerr))
	}
	s.bus.Close()

	return err
}

// discover scans a plugin directory once at startup. Rejected manifests are
// logged individually; the daemon starts either way.
func discover(reg *registry.Registry, dir string, logger *zap.Logger) {
	results := reg.Discover(context.Background(), dir, plugins.Descriptor)

	registered := 0
	for _, res := range results {
		switch {
		case res.Registered:
			registered++
		case res.Error != "":
			logger.Warn("plugin manifest rejected",
				zap.String("path", res.Path),
				zap.String("error", res.Error))
		}
	}
	logger.Info("plugin discovery finished",
		zap.String("dir", dir),
		zap.Int("found", len(results)),
		zap.Int("registered", registered))
}

// registerJobs wires the periodic layout checkpoint and cache sweep. A zero
// interval disables the job.
func registerJobs(sched *schedule.Scheduler, cfg *config.Config, widgets *widget.Manager, layoutStore *layout.Store, data *cache.Cache, base *zap.Logger) {
	if cfg.Layout.CheckpointInterval > 0 {
		log := base.Named("layout")
		err := sched.Every("layout-checkpoint", cfg.Layout.CheckpointInterval, func() {
			if err := layoutStore.Save(widgets.CaptureSnapshot()); err != nil {
				log.Warn("periodic layout checkpoint failed", zap.Error(err))
			}
		})
		if err != nil {
			base.Named("schedule").Warn("checkpoint job rejected", zap.Error(err))
		}
	}

	if cfg.Cache.SweepInterval > 0 {
		log := base.Named("cache")
		err := sched.Every("cache-sweep", cfg.Cache.SweepInterval, func() {
			if expired := data.Sweep(); len(expired) > 0 {
				log.Debug("sweep removed expired entries", zap.Int("count", len(expired)))
			}
		})
		if err != nil {
			base.Named("schedule").Warn("sweep job rejected", zap.Error(err))
		}
	}
}

func resolveLayoutPath(cfg *config.Config, dataDir string) (string, error) {
	if cfg.Layout.Path == "" {
		return paths.DataFile(dataDir, paths.LayoutFile), nil
	}
	return paths.Expand(cfg.Layout.Path)
}
