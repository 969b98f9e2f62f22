package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/pd-triglav/contentd/config"
	"github.com/pd-triglav/contentd/internal/archive"
	"github.com/pd-triglav/contentd/internal/content"
	"github.com/pd-triglav/contentd/internal/feed"
	"github.com/pd-triglav/contentd/internal/provider"
	"github.com/pd-triglav/contentd/internal/store"
	"github.com/pd-triglav/contentd/internal/task"
)

// Run boots the HTTP server and everything behind it. addr overrides the
// configured listen address when non-empty.
func Run(cfgPath, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	cfg := appconfig.LoadConfig(cfgPath)
	if addr == "" {
		addr = cfg.Server.Address
	}

	ctx := context.Background()

	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	adapters := []provider.Adapter{
		provider.NewMoonshot(cfg.Providers.Moonshot),
		provider.NewDeepSeek(cfg.Providers.DeepSeek),
	}
	providers, err := provider.NewManager(adapters, cfg.Providers.Order)
	if err != nil {
		return err
	}

	aggregator := feed.NewAggregator(buildCollectors(cfg.Feeds), cfg.Aggregation)

	registry := task.NewRegistry(cfg.Generation.TaskRetention)
	runner := task.NewRunner(cfg.Generation.Workers)
	runner.Start(ctx)
	defer runner.Stop()

	index, err := archive.NewIndex()
	if err != nil {
		return err
	}
	if n, err := index.Rebuild(ctx, st); err != nil {
		baseLogger.Printf("archive rebuild failed: %v", err)
	} else {
		baseLogger.Printf("archive rebuilt with %d events", n)
	}

	orch := content.NewOrchestrator(st, providers, aggregator, registry, runner, index, cfg.Generation)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Host + ":" + cfg.Storage.Redis.Port,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	sched := &Scheduler{
		Cfg:      cfg.Schedule,
		Store:    st,
		Rdb:      rdb,
		Orch:     orch,
		Registry: registry,
		Stop:     make(chan struct{}),
	}
	sched.Start()
	defer close(sched.Stop)

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	api := e.Group("/api")
	ch := &ContentHandler{Resolver: orch, Index: index}
	ch.Register(api.Group("/content"))
	ah := &AdminHandler{Store: st, Resolver: orch}
	ah.Register(api.Group("/admin"), []byte(secret))

	return e.Start(addr)
}

func buildCollectors(cfg appconfig.FeedsConfig) []feed.Collector {
	var collectors []feed.Collector
	for _, rss := range cfg.RSS {
		collectors = append(collectors, feed.NewRSS(rss))
	}
	if cfg.NewsAPI.APIKey != "" {
		collectors = append(collectors, feed.NewNewsAPI(cfg.NewsAPI, cfg.Timeout))
	}
	if cfg.Chronicle.BaseURL != "" {
		collectors = append(collectors, feed.NewChronicle(cfg.Chronicle, cfg.Timeout))
	}
	return collectors
}
