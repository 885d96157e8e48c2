package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ErlanBelekov/backup-desk/config"
	"github.com/ErlanBelekov/backup-desk/internal/auth"
	"github.com/ErlanBelekov/backup-desk/internal/backend"
	"github.com/ErlanBelekov/backup-desk/internal/email"
	"github.com/ErlanBelekov/backup-desk/internal/guard"
	"github.com/ErlanBelekov/backup-desk/internal/health"
	"github.com/ErlanBelekov/backup-desk/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/backup-desk/internal/infrastructure/sqlite"
	applog "github.com/ErlanBelekov/backup-desk/internal/log"
	"github.com/ErlanBelekov/backup-desk/internal/metrics"
	"github.com/ErlanBelekov/backup-desk/internal/repository"
	"github.com/ErlanBelekov/backup-desk/internal/session"
	httptransport "github.com/ErlanBelekov/backup-desk/internal/transport/http"
	"github.com/ErlanBelekov/backup-desk/internal/transport/http/handler"
	"github.com/ErlanBelekov/backup-desk/internal/usecase"
	"github.com/ErlanBelekov/backup-desk/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := applog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// Local session store
	db, err := sqlite.Open(ctx, cfg.SessionDBPath)
	if err != nil {
		stop()
		log.Fatalf("session store: %v", err)
	}
	defer db.Close()
	sessionRepo := sqlite.NewSessionRepository(db)

	// Backend
	backendClient := backend.NewClient(backend.Options{
		BaseURL: cfg.BackendURL,
		AnonKey: cfg.BackendAnonKey,
		Timeout: cfg.BackendTimeout,
	}, logger)

	verifier, err := backend.NewTokenVerifier(ctx, cfg.BackendJWKSURL, []byte(cfg.BackendJWTSecret), cfg.BackendTimeout)
	if err != nil {
		stop()
		log.Fatalf("token verifier: %v", err)
	}

	authClient := auth.NewClient(backendClient, sessionRepo, logger,
		auth.WithVerifier(verifier),
		auth.WithRefreshMargin(cfg.RefreshMargin),
	)

	deps := map[string]health.Pinger{
		"auth_api":      backendClient,
		"session_store": health.PingFunc(db.PingContext),
	}

	// Profiles go through the data API unless a direct database is configured.
	var profiles repository.ProfileRepository = backend.NewProfileRepository(backendClient, authClient)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			stop()
			log.Fatalf("db: %v", err)
		}
		defer pool.Close()
		profiles = postgres.NewProfileRepository(pool)
		deps["postgres"] = pool
	}

	var orphans usecase.OrphanReporter
	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	if alerter := email.NewOrphanAlerter(sender, cfg.AlertEmail, logger); alerter != nil {
		orphans = alerter
	}

	// Session state
	listener := session.NewListener(authClient, logger)
	refresher, err := auth.NewRefresher(authClient, cfg.RefreshSchedule, logger)
	if err != nil {
		stop()
		log.Fatalf("refresher: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// an initial fetch that cannot finish counts as signed out
		startCtx, cancel := context.WithTimeout(ctx, cfg.BackendTimeout)
		defer cancel()
		listener.Start(startCtx)
	}()
	go func() {
		defer wg.Done()
		refresher.Start(ctx)
	}()

	// Screens
	newActions := func(nav usecase.Navigator) *usecase.AuthActions {
		return usecase.NewAuthActions(authClient, profiles, orphans, nav, cfg.SiteURL, logger)
	}
	newProfile := func() *usecase.ProfileAccessor {
		return usecase.NewProfileAccessor(profiles, logger)
	}

	tmpl, err := web.Templates()
	if err != nil {
		stop()
		log.Fatalf("templates: %v", err)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{cfg.SiteURL}
	}

	router, err := httptransport.NewRouter(logger, listener, guard.DefaultRoutes(), append([]string{cfg.SiteURL}, origins...), tmpl, web.Static(), httptransport.Handlers{
		Auth:      handler.NewAuthHandler(newActions, authClient, logger),
		Dashboard: handler.NewDashboardHandler(newProfile, newActions, logger),
		API:       handler.NewAPIHandler(),
	})
	if err != nil {
		stop()
		log.Fatalf("router: %v", err)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	})

	metrics.Register()
	checker := health.NewChecker(deps, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(net.JoinHostPort(cfg.Host, cfg.MetricsPort), checker)

	go func() {
		logger.Info("server started", "addr", srv.Addr, "site_url", cfg.SiteURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	wg.Wait()
	listener.Close()
}
