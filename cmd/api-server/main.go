package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swrfmods/internal/catalog"
	"swrfmods/internal/library"
	"swrfmods/internal/prefs"
	"swrfmods/internal/submit"
	synchub "swrfmods/internal/sync"
	"swrfmods/internal/visitor"
	"swrfmods/pkg/database"
	"swrfmods/pkg/utils"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger, err := utils.NewLogger(cfg.LogLevel, cfg.Dev)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, ready, closeBackend, err := openPrefs(ctx, cfg.Prefs)
	if err != nil {
		logger.Fatal("open preference store", zap.String("backend", cfg.Prefs.Backend), zap.Error(err))
	}
	defer closeBackend()

	loader := catalog.NewLoader(datasetSource(cfg.Data), logger)
	tokens := visitor.TokenService{
		Secret:   []byte(cfg.Visitor.Secret),
		Issuer:   cfg.Visitor.Issuer,
		Duration: cfg.Visitor.TTL,
	}

	hub := synchub.NewHub(logger)
	tcpSrv := synchub.NewServer(cfg.HTTP.SyncAddr, hub, tokens.VisitorID, logger)
	saved := library.NewService(backend, hub, logger)

	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), utils.GinLogger(logger))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "prefs": cfg.Prefs.Backend})
	})
	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"prefs_error": err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"prefs":       "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	// Static site assets
	if cfg.Data.URL == "" {
		router.StaticFile(catalog.DatasetPath, cfg.Data.File)
	} else {
		router.GET(catalog.DatasetPath, func(c *gin.Context) {
			c.JSON(http.StatusOK, loader.Load(c.Request.Context()))
		})
	}
	router.Static("/thumbnails", filepath.Join(cfg.HTTP.PublicDir, "thumbnails"))
	router.Static("/images", filepath.Join(cfg.HTTP.PublicDir, "images"))

	// Submission relay carries no visitor state
	submit.NewRelay(cfg.Submit.Upstream, cfg.Submit.Timeout, logger).RegisterRoutes(router.Group("/api"))

	mw := visitor.Middleware(tokens, cfg.Visitor.SecureCookie)
	router.GET("/ws", mw, synchub.WSHandler(hub))

	api := router.Group("/api", mw)
	catalog.NewHandler(loader, backend, saved, logger).RegisterRoutes(api)
	library.NewHandler(saved, loader).RegisterRoutes(api)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tcpSrv.Run()
	})
	g.Go(func() error {
		logger.Info("http api listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		if err := tcpSrv.Close(); err != nil {
			logger.Warn("tcp shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("servers stopped")
}

func datasetSource(cfg utils.DataConfig) catalog.Source {
	if cfg.URL != "" {
		return catalog.NewHTTPSource(cfg.URL)
	}
	return catalog.NewFileSource(cfg.File)
}

// openPrefs opens the configured preference backend and returns its
// readiness check and closer.
func openPrefs(ctx context.Context, cfg utils.PrefsConfig) (prefs.Backend, func(context.Context) error, func(), error) {
	if cfg.Backend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, err
		}
		ready := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return prefs.NewRedisBackend(client), ready, func() { _ = client.Close() }, nil
	}

	dbCfg := database.Config{Path: cfg.DBPath}
	if dbCfg.Path == "" {
		dbCfg.Path = database.DefaultPath()
	}
	db, err := openSQLite(ctx, dbCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return prefs.NewRepo(db), db.PingContext, func() { _ = db.Close() }, nil
}

func openSQLite(ctx context.Context, cfg database.Config) (*sql.DB, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
