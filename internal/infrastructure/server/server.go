package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/filedeck/internal/api/http"
	"github.com/GriffinCanCode/filedeck/internal/api/middleware"
	"github.com/GriffinCanCode/filedeck/internal/api/ws"
	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/domain/service"
	"github.com/GriffinCanCode/filedeck/internal/domain/workspace"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/config"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/logging"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/objectstore"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/store"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/filedeck/internal/providers/auth"
	"github.com/GriffinCanCode/filedeck/internal/providers/cloud"
	"github.com/GriffinCanCode/filedeck/internal/providers/documents"
	"github.com/GriffinCanCode/filedeck/internal/providers/editor"
	"github.com/GriffinCanCode/filedeck/internal/providers/search"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/providers/sheets"
	"github.com/GriffinCanCode/filedeck/internal/providers/system"
	"github.com/GriffinCanCode/filedeck/internal/shared/paths"
)

// maintenanceInterval is how often idle edit sessions and expired logins are swept
const maintenanceInterval = time.Minute

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *http.Server
	registry  *service.Registry
	tree      *doctree.LocalTree
	workspace *workspace.Manager
	auth      *auth.Provider
	hub       *ws.Hub
	store     *store.Store
	tracer    *tracing.Tracer
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	data := paths.Data{Dir: cfg.Storage.DataDir}
	for _, dir := range data.StandardDirectories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logCfg := logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	}
	if cfg.Logging.ToFile {
		logCfg.File = data.LogPath()
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing FileDeck server",
		zap.String("port", cfg.Server.Port),
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.Bool("cloud", cfg.Cloud.Enabled),
	)

	db, err := store.Open(data.StorePath(), logger.Component("store"))
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:   db,
		logger:  logger,
		config:  cfg,
		metrics: monitoring.NewMetrics(),
	}
	if err := s.wire(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("Server initialized successfully",
		zap.Int("document_roots", len(s.tree.Roots())),
		zap.Any("services", s.registry.Stats()),
	)
	return s, nil
}

// wire builds every component on top of the opened store
func (s *Server) wire() error {
	cfg, logger := s.config, s.logger

	s.tracer = tracing.New("filedeck", logger.Component("tracing"))

	tree, err := doctree.NewLocalTree(s.store, logger.Component("doctree"))
	if err != nil {
		return fmt.Errorf("failed to load document roots: %w", err)
	}
	for _, dir := range cfg.Storage.Roots {
		root, err := tree.Grant(dir)
		if err != nil {
			logger.Warn("Failed to grant document root", zap.String("dir", dir), zap.Error(err))
			continue
		}
		logger.Info("Document root granted", zap.String("root", root.ID), zap.String("name", root.Name))
	}
	s.tree = tree

	prefs, err := settings.NewProvider(settings.Options{
		Backend: s.store,
		Logger:  logger.Component("settings"),
		Overrides: map[string]interface{}{
			settings.KeyMaxReadBytes:  int(cfg.Storage.MaxReadBytes),
			settings.KeyHistoryDepth:  cfg.Editor.HistoryDepth,
			settings.KeyCloudCompress: cfg.Cloud.Compress,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	s.auth, err = auth.NewProvider(auth.Options{
		Backend:    s.store,
		SessionTTL: cfg.Auth.SessionTTL,
		BcryptCost: cfg.Auth.BcryptCost,
		Metrics:    s.metrics,
		Logger:     logger.Component("auth"),
	})
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	s.workspace = workspace.NewManager(workspace.Options{
		HistoryDepth: cfg.Editor.HistoryDepth,
		MaxSessions:  cfg.Editor.MaxSessions,
		IdleTimeout:  cfg.Editor.IdleTimeout,
		Metrics:      s.metrics,
		Logger:       logger.Component("workspace"),
	})

	s.hub = ws.NewHub(ws.Options{
		Auth:           s.auth,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        s.metrics,
		Logger:         logger.Component("stream"),
	})

	objects, err := s.objectStore()
	if err != nil {
		return err
	}
	cloudProvider := cloud.NewProvider(cloud.Options{
		Store:       objects,
		Tree:        tree,
		Backend:     s.store,
		Prefs:       prefs,
		Prefix:      cfg.Cloud.Prefix,
		Publisher:   s.hub,
		SyncWorkers: cfg.Cloud.Workers,
		Metrics:     s.metrics,
		Logger:      logger.Component("cloud"),
	})

	s.registry = service.NewRegistry(
		service.WithMetrics(s.metrics),
		service.WithTracer(s.tracer),
		service.WithLogger(logger.Component("registry")),
	)
	providers := []service.Provider{
		documents.NewProvider(documents.Options{
			Tree:    tree,
			Prefs:   prefs,
			Metrics: s.metrics,
			Logger:  logger.Component("documents"),
		}),
		editor.NewProvider(editor.Options{
			Tree:      tree,
			Workspace: s.workspace,
			Prefs:     prefs,
			Metrics:   s.metrics,
			Logger:    logger.Component("editor"),
		}),
		sheets.NewProvider(sheets.Options{
			Tree:    tree,
			Prefs:   prefs,
			Metrics: s.metrics,
			Logger:  logger.Component("sheets"),
		}),
		search.NewProvider(search.Options{
			Tree:   tree,
			Prefs:  prefs,
			Logger: logger.Component("search"),
		}),
		cloudProvider,
		s.auth,
		prefs,
		system.NewProvider(system.Options{
			Version:  apihttp.Version,
			DataDir:  cfg.Storage.DataDir,
			Tree:     tree,
			Sessions: s.workspace,
			Clients:  s.hub,
			Levels:   logger,
			Logger:   logger.Component("client"),
		}),
	}
	for _, p := range providers {
		if err := s.registry.Register(p); err != nil {
			return fmt.Errorf("failed to register %s provider: %w", p.Definition().ID, err)
		}
	}

	breaker := cloudProvider.Breaker()
	if objects == nil {
		breaker = nil
	}
	aggregator := apihttp.NewMetricsAggregator(s.metrics, s.workspace, s.hub, breaker)
	handlers := apihttp.NewHandlers(apihttp.Options{
		Registry:  s.registry,
		Auth:      s.auth,
		Tree:      tree,
		Workspace: s.workspace,
		Metrics:   aggregator,
		Logger:    logger.Component("api"),
	})
	s.router = s.routes(handlers, aggregator)
	s.http = &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// objectStore connects the configured S3 bucket, nil when cloud is disabled
func (s *Server) objectStore() (objectstore.Store, error) {
	cfg := s.config.Cloud
	if !cfg.Enabled {
		s.logger.Info("Cloud storage disabled")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	objects, err := objectstore.NewS3(ctx, objectstore.S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		PathStyle: cfg.PathStyle,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure cloud storage: %w", err)
	}
	s.logger.Info("Cloud storage configured",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("bucket", cfg.Bucket),
	)
	return objects, nil
}

func (s *Server) routes(handlers *apihttp.Handlers, aggregator *apihttp.MetricsAggregator) *gin.Engine {
	cfg := s.config
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.AllowedOrigins)))
	if cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	router.Use(middleware.Auth(s.auth, s.logger.Component("auth")))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Service management
	router.GET("/services", handlers.ListServices)
	router.POST("/services/discover", handlers.DiscoverServices)
	router.POST("/services/execute", handlers.ExecuteService)

	// Accounts
	router.POST("/auth/register", handlers.Register)
	router.POST("/auth/login", handlers.Login)
	router.POST("/auth/logout", handlers.Logout)

	// Sync progress stream
	router.GET("/stream", s.hub.HandleConnection)

	// Metrics endpoints
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	router.GET("/metrics/json", aggregator.GetAggregatedMetrics)

	return router
}

// Router returns the configured gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Registry returns the service registry
func (s *Server) Registry() *service.Registry {
	return s.registry
}

// Run starts background maintenance and serves HTTP until Shutdown
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.workspace.Run(ctx, maintenanceInterval)
	}()
	go func() {
		defer s.wg.Done()
		s.purgeLogins(ctx)
	}()

	if s.config.Storage.Watch {
		s.startWatcher(ctx)
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// startWatcher broadcasts filesystem changes below granted roots to every
// stream client
func (s *Server) startWatcher(ctx context.Context) {
	w := doctree.NewWatcher(s.tree, func(changes []doctree.Change) {
		s.hub.Broadcast("documents.changed", changes)
	}, doctree.WatchOptions{
		Debounce: s.config.Storage.WatchDebounce,
		MaxDirs:  s.config.Storage.WatchMaxDirs,
		Logger:   s.logger.Component("watch"),
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := w.Run(ctx); err != nil {
			s.logger.Warn("document watcher stopped", zap.Error(err))
		}
	}()
}

func (s *Server) purgeLogins(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.auth.PurgeExpired(now); n > 0 {
				s.logger.Debug("purged expired logins", zap.Int("count", n))
			}
		}
	}
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// every resource
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.hub.Close()
	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("HTTP shutdown incomplete", zap.Error(err))
	}
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close releases background workers and the store
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.hub.Close()
		s.tracer.Close()

		if cerr := s.store.Close(); cerr != nil {
			s.logger.Error("Failed to close store", zap.Error(cerr))
			err = fmt.Errorf("failed to close store: %w", cerr)
		}
		_ = s.logger.Sync()
	})
	return err
}
