package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/liveops/internal/adapters/cache"
	"github.com/Amund211/liveops/internal/adapters/gateway"
	"github.com/Amund211/liveops/internal/adapters/health"
	"github.com/Amund211/liveops/internal/adapters/identity"
	"github.com/Amund211/liveops/internal/adapters/leaderboard"
	"github.com/Amund211/liveops/internal/adapters/progressionstore"
	"github.com/Amund211/liveops/internal/app"
	"github.com/Amund211/liveops/internal/config"
	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/logging"
	"github.com/Amund211/liveops/internal/ports"
	"github.com/Amund211/liveops/internal/reporting"
	"github.com/Amund211/liveops/internal/scheduler"
	"github.com/Amund211/liveops/internal/signing"
	"github.com/Amund211/liveops/internal/telemetry"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	// Embed root certificates in case the host has none
	_ "golang.org/x/crypto/x509roots/fallback"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Optional local overrides, missing file is fine
	_ = godotenv.Load()

	instanceID := uuid.New().String()
	logger := slog.New(logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil))).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.AddToContext(ctx, logger)

	if config.OTelEnabled() {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, "liveops")
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := shutdownOTel(shutdownCtx); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(logging.NewTransport(http.DefaultTransport, time.Now)),
		Timeout:   10 * time.Second,
	}

	signer := signing.NewHMACSigner([]byte(config.HMACSecret()))

	dispatcher, err := gateway.NewDispatcher(config.GatewayURL(), httpClient, signer, time.Now, time.After)
	if err != nil {
		fail("Failed to initialize event dispatcher", "error", err.Error())
	}

	progressStore, err := progressionstore.NewStore(config.ProgressionURL(), httpClient)
	if err != nil {
		fail("Failed to initialize progression store", "error", err.Error())
	}

	leaderboardBaseURL := config.LeaderboardURL()
	if leaderboard.Route(config.LeaderboardRoute()) == leaderboard.RouteWindow {
		leaderboardBaseURL = config.GatewayURL()
	}
	leaderboardClient, err := leaderboard.NewClient(leaderboardBaseURL, leaderboard.Route(config.LeaderboardRoute()), httpClient)
	if err != nil {
		fail("Failed to initialize leaderboard client", "error", err.Error())
	}

	healthChecker, err := health.NewChecker(httpClient, time.Now)
	if err != nil {
		fail("Failed to initialize health checker", "error", err.Error())
	}

	identityResolver := identity.NewResolver(config.GatewayURL(), httpClient)
	logger.Info("Initialized adapters")

	leaderboardCache, stopLeaderboardCache := cache.NewTTLCache[[]domain.LeaderboardEntry](2 * time.Second)
	defer stopLeaderboardCache()
	rankCache, stopRankCache := cache.NewTTLCache[int](5 * time.Second)
	defer stopRankCache()

	services := map[domain.ServiceName]string{
		domain.ServiceGateway:     config.GatewayURL(),
		domain.ServiceLeaderboard: config.LeaderboardURL(),
		domain.ServiceProgression: config.ProgressionURL(),
		domain.ServiceFairness:    config.FairnessURL(),
	}

	// Stopped through the session on shutdown so subscribers are closed first
	loop := scheduler.New(context.WithoutCancel(ctx), time.After)
	go func() {
		if err := loop.Run(); err != nil {
			logger.Error("Session loop exited", "error", err.Error())
		}
	}()

	session := app.NewSession(app.Deps{
		Loop: loop,

		ResolveIdentity: app.BuildResolveIdentity(identityResolver, identity.NewOfflineIdentity),
		GetProgress:     app.BuildGetProgress(progressStore),
		SubmitXP:        app.BuildSubmitXP(progressStore),
		DispatchEvent:   app.BuildDispatchEvent(dispatcher),
		GetLeaderboard:  app.BuildGetLeaderboardWithCache(leaderboardCache, leaderboardClient),
		GetRank:         app.BuildGetRankWithCache(rankCache, leaderboardClient),
		CheckHealth:     app.BuildCheckHealth(healthChecker, services),

		LeaderboardLimit:    config.LeaderboardLimit(),
		LeaderboardInterval: config.LeaderboardInterval(),
		DashboardInterval:   config.DashboardInterval(),
		HealthInterval:      config.HealthInterval(),

		NowFunc: time.Now,
		Rand:    rand.New(rand.NewPCG(rand.Uint64(), uint64(time.Now().UnixNano()))),
	})

	if err := session.Start(ctx); err != nil {
		fail("Failed to start session", "error", err.Error())
	}
	logger.Info("Started session")

	allowedOrigins, err := ports.NewDomainSuffixes(config.AllowedOrigins()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	mux := http.NewServeMux()

	type route struct {
		method  string
		path    string
		handler func(ports.Session, *ports.DomainSuffixes, *slog.Logger, func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc
	}
	routes := []route{
		{http.MethodGet, "/v1/state", ports.MakeGetStateHandler},
		{http.MethodPost, "/v1/clicker/click", ports.MakeClickHandler},
		{http.MethodPost, "/v1/clicker/upgrade", ports.MakeBuyUpgradeHandler},
		{http.MethodPost, "/v1/memory/start", ports.MakeStartMemoryHandler},
		{http.MethodPost, "/v1/memory/submit", ports.MakeSubmitMemoryHandler},
		{http.MethodPost, "/v1/reaction/start", ports.MakeStartReactionHandler},
		{http.MethodPost, "/v1/reaction/hit", ports.MakeHitReactionHandler},
		{http.MethodPost, "/v1/view", ports.MakeSetViewHandler},
	}
	for _, r := range routes {
		mux.HandleFunc(
			fmt.Sprintf("OPTIONS %s", r.path),
			ports.BuildCORSHandler(allowedOrigins),
		)
		mux.HandleFunc(
			fmt.Sprintf("%s %s", r.method, r.path),
			r.handler(session, allowedOrigins, logger, sentryMiddleware),
		)
	}

	mux.HandleFunc("GET /v1/stream", ports.MakeStreamHandler(session, allowedOrigins, logger))
	mux.HandleFunc("GET /healthz", ports.MakeHealthzHandler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.ListenPort()),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		session.Stop(shutdownCtx)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", "error", err.Error())
		}
	}()

	logger.Info("Init complete", "port", config.ListenPort())
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
