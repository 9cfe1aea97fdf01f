package main

import (
	"context"
	"net/http"
	"time"

	"github.com/mehmetcc/cmsgate/internal/admin"
	"github.com/mehmetcc/cmsgate/internal/audit"
	"github.com/mehmetcc/cmsgate/internal/auth"
	"github.com/mehmetcc/cmsgate/internal/config"
	"github.com/mehmetcc/cmsgate/internal/database"
	"github.com/mehmetcc/cmsgate/internal/gateway"
	"github.com/mehmetcc/cmsgate/internal/guard"
	"github.com/mehmetcc/cmsgate/internal/metrics"
	"github.com/mehmetcc/cmsgate/internal/person"
	"github.com/mehmetcc/cmsgate/internal/route"
	"github.com/mehmetcc/cmsgate/internal/server"
	"github.com/mehmetcc/cmsgate/internal/session"
	"github.com/mehmetcc/cmsgate/internal/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// init logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	// load config
	cfg, err := config.LoadConfig(logger, ".env")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// load database
	db, err := database.Init(context.Background(), cfg.DbConfig)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// run migrations
	database.SetMigrationLogger(logger)
	if err := database.Migrate(context.Background(), db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// route rules
	matcher, err := route.FromConfig(cfg.GateConfig)
	if err != nil {
		logger.Fatal("invalid protected patterns", zap.Error(err))
	}
	for _, s := range matcher.Shadowed() {
		logger.Warn("protected pattern is unreachable", zap.String("shadow", s.String()))
	}

	// session
	codec, err := token.NewCodec(cfg.SessionConfig, logger)
	if err != nil {
		logger.Fatal("failed to initialize session codec", zap.Error(err))
	}
	store := session.NewCookieStore(cfg.CookieConfig.Name, cfg.CookieConfig.Domain, cfg.CookieConfig.Secure, cfg.CookieConfig.SameSite)

	// audit + metrics
	dispatcher := audit.NewDispatcher(audit.MultiSink{
		audit.NewZapSink(logger.Named("audit")),
		audit.NewPostgresSink(db),
	}, cfg.AuditConfig.BufferSize, logger)
	defer dispatcher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// enforcement layers
	gw, err := gateway.New(matcher, store, codec, cfg.GateConfig, logger,
		gateway.WithHook(dispatcher),
		gateway.WithMetrics(m),
	)
	if err != nil {
		logger.Fatal("failed to initialize gateway", zap.Error(err))
	}
	pageGuard := guard.New(store, codec, logger, guard.WithHook(dispatcher), guard.WithMetrics(m))

	// handlers
	personRepo := person.NewPersonRepo(db, logger)
	authService := auth.NewAuthenticationService(personRepo, logger)

	router := server.NewRouter(server.Deps{
		Gateway:     gw,
		Auth:        auth.NewAuthenticationHandler(authService, codec, store, cfg.SessionConfig.TTL, logger),
		Admin:       admin.NewAdminHandler(pageGuard, personRepo, logger),
		Gatherer:    reg,
		Logger:      logger,
		CORSOrigins: cfg.AppConfig.CORSOrigins,
		TrustProxy:  cfg.AppConfig.TrustProxy,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.AppConfig.Port,
		Handler:           router,
		ReadTimeout:       cfg.AppConfig.ReadTimeout,
		ReadHeaderTimeout: cfg.AppConfig.ReadTimeout,
		WriteTimeout:      cfg.AppConfig.WriteTimeout,
		IdleTimeout:       cfg.AppConfig.IdleTimeout,
	}

	logger.Info("application started", zap.Int("protected_patterns", len(cfg.GateConfig.Rules)))
	if err := server.Run(srv, logger, 10*time.Second); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
	}
	dispatcher.Close()
	logger.Info("audit events dropped", zap.Uint64("count", dispatcher.Dropped()))
}
