package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/devcampus/devcampus/cmd/devcampus/cli"
	"github.com/devcampus/devcampus/internal/admin"
	"github.com/devcampus/devcampus/internal/app"
	"github.com/devcampus/devcampus/internal/auth"
	"github.com/devcampus/devcampus/internal/gate"
	"github.com/devcampus/devcampus/internal/identity"
	"github.com/devcampus/devcampus/internal/observability"
	"github.com/devcampus/devcampus/internal/pages"
	"github.com/devcampus/devcampus/internal/platform/cache"
	"github.com/devcampus/devcampus/internal/platform/db"
	"github.com/devcampus/devcampus/internal/platform/migrations"
	"github.com/devcampus/devcampus/internal/profiles"
	"github.com/devcampus/devcampus/internal/shared"
	"github.com/devcampus/devcampus/internal/view"
	"github.com/devcampus/devcampus/jobs"
)

const sessionCookieName = "devcampus_session"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = migrate(cfg, logger, os.Args[2:])
	case "jobs":
		err = jobsCommand(ctx, cfg, os.Args[2:])
	default:
		err = errors.New("usage: devcampus [serve|migrate|jobs]")
	}
	if err != nil {
		logger.Error(cmd, slog.Any("error", err))
		os.Exit(1)
	}
}

func migrate(cfg *app.Config, logger *slog.Logger, args []string) error {
	runner, err := migrations.Open(cfg.PGDSN, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.Warn("migrations close", slog.Any("error", err))
		}
	}()
	return cli.RunMigrate(runner, args, os.Stdout)
}

func jobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	redisOpts, err := cache.QueueOptions(cfg.RedisAddr)
	if err != nil {
		return err
	}
	client := jobs.NewClient(redisOpts)
	defer client.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()
	return cli.NewJobsCLI(client, inspector).Run(ctx, args, os.Stdout)
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if !cfg.OIDCConfigured() {
		return errors.New("OIDC_ISSUER, OIDC_CLIENT_ID and OIDC_REDIRECT_URL must be set")
	}

	if cfg.MigrationsAuto {
		if err := migrate(cfg, logger, []string{"up"}); err != nil {
			return err
		}
	}

	dbpool, err := db.New(ctx, db.Config{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns, ApplicationName: "devcampus"})
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, sessionCookieName, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		return err
	}

	provider, err := identity.NewOIDCProvider(ctx, identity.OIDCConfig{
		Issuer:       cfg.OIDCIssuer,
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
	}, logger)
	if err != nil {
		return err
	}
	states, err := identity.NewStateSigner(cfg.SessionSecret)
	if err != nil {
		return err
	}

	redisOpts, err := cache.QueueOptions(cfg.RedisAddr)
	if err != nil {
		return err
	}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	superAdmin := profiles.NewSuperAdmin(cfg.SuperAdminEmail)
	profileRepo := profiles.NewRepository(dbpool)
	profileService := profiles.NewService(profileRepo, shared.NewAuditLogger(dbpool), logger)
	bootstrapper := profiles.NewBootstrapper(profileRepo, superAdmin, jobs.NewWelcomeMailer(jobClient, cfg.AppBaseURL), logger)

	metrics := observability.NewMetrics()
	policy := gate.Policy{SuperAdmin: superAdmin, DashboardPath: cfg.DashboardPath, HomePath: "/"}
	accessGate := gate.New(gate.Config{
		Resolver: gate.NewResolver(provider, logger),
		Roles:    profileService,
		Policy:   policy,
		Recorder: metrics,
		Logger:   logger,
	})

	authHandler := auth.NewHandler(auth.HandlerConfig{
		Logger:        logger,
		Provider:      provider,
		States:        states,
		Bootstrapper:  bootstrapper,
		Templates:     templates,
		Sessions:      sessionManager,
		CSRF:          csrfManager,
		Policy:        policy,
		SecureCookies: cfg.IsProduction(),
	})
	pagesHandler := pages.NewHandler(logger, profileService, templates, csrfManager)
	adminHandler := admin.NewHandler(logger, profileService, admin.NewBroadcaster(jobClient), templates, csrfManager)
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Gate:           accessGate,
		AuthHandler:    authHandler,
		PagesHandler:   pagesHandler,
		AdminHandler:   adminHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
