package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mehmetcc/polyconsole/internal/api"
	"github.com/mehmetcc/polyconsole/internal/auth"
	"github.com/mehmetcc/polyconsole/internal/config"
	"github.com/mehmetcc/polyconsole/internal/console"
	"github.com/mehmetcc/polyconsole/internal/guard"
	"github.com/mehmetcc/polyconsole/internal/httpx"
	"github.com/mehmetcc/polyconsole/internal/session"
	"github.com/mehmetcc/polyconsole/internal/store"
	"github.com/mehmetcc/polyconsole/internal/view"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"moul.io/chizap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile := pflag.String("env-file", config.DefaultEnvFile, "dotenv file to load before reading the environment")
	addr := pflag.String("addr", "", "listen address, overrides APP_ADDR")
	pflag.Parse()

	// init logger
	bootLogger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	// load config
	cfg, err := config.LoadConfig(bootLogger, *envFile)
	if err != nil {
		bootLogger.Fatal("failed to load configuration", zap.Error(err))
	}
	logger := bootLogger
	if cfg.Development() {
		if logger, err = zap.NewDevelopment(); err != nil {
			bootLogger.Fatal("failed to initialize development logger", zap.Error(err))
		}
	}
	if *addr != "" {
		cfg.AppConfig.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// credential store
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open credential store", zap.String("backend", cfg.StoreConfig.Backend), zap.Error(err))
	}

	// session and remote api
	mgr := session.NewManager(st, logger.Named("session"))
	apiCfg := api.Config{
		BaseURL: cfg.APIConfig.BaseURL,
		Timeout: cfg.APIConfig.Timeout,
		Device:  deviceMeta(cfg, logger),
	}
	if cfg.ConsoleConfig.LogoutOnUnauthorized {
		apiCfg.OnUnauthorized = mgr.HandleUnauthorized
	}
	client := api.New(apiCfg, mgr, logger.Named("api"))
	mgr.SetAuthenticator(client)
	mgr.Initialize(ctx)

	if cfg.ConsoleConfig.FollowStore {
		go func() {
			if err := mgr.Follow(ctx); err != nil {
				if errors.Is(err, session.ErrFollowUnsupported) {
					logger.Debug("store does not report external changes", zap.String("backend", cfg.StoreConfig.Backend))
					return
				}
				logger.Warn("stopped following credential store", zap.Error(err))
			}
		}()
	}

	// pages
	renderer, err := view.New(logger.Named("view"))
	if err != nil {
		logger.Fatal("failed to parse templates", zap.Error(err))
	}
	authHandler := auth.NewAuthenticationHandler(mgr, renderer, auth.Options{
		LoginRateLimit:  cfg.ConsoleConfig.LoginRateLimit,
		LoginRateWindow: cfg.ConsoleConfig.LoginRateWindow,
		AllowedOrigins:  cfg.ConsoleConfig.AllowedOrigins,
	}, logger.Named("auth"))
	consoleHandler := console.NewHandler(client, renderer, logger.Named("console"))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(chizap.New(logger, &chizap.Opts{
		WithReferer:   true,
		WithUserAgent: true,
	}))
	r.Use(guard.SameOrigin)
	authHandler.Mount(r)
	r.With(guard.Require(mgr, auth.LoginPath)).Mount("/", consoleHandler.Routes())

	srv := &http.Server{
		Addr:         cfg.AppConfig.Addr,
		Handler:      r,
		ReadTimeout:  cfg.AppConfig.ReadTimeout,
		WriteTimeout: cfg.AppConfig.WriteTimeout,
		IdleTimeout:  cfg.AppConfig.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("console listening",
			zap.String("addr", srv.Addr),
			zap.String("api", client.BaseURL()),
			zap.String("store", cfg.StoreConfig.Backend),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = multierr.Combine(
		srv.Shutdown(shutdownCtx),
		st.Close(),
	)
	if err != nil {
		logger.Error("unclean shutdown", zap.Error(err))
	}
	_ = logger.Sync()
}

// deviceMeta identifies this console to the backend. Without API_DEVICE_ID a
// fresh id is generated per process.
func deviceMeta(cfg *config.Config, logger *zap.Logger) httpx.DeviceMeta {
	meta := httpx.DeviceMeta{
		DeviceID:   cfg.APIConfig.DeviceID,
		Platform:   httpx.PlatformWeb,
		AppVersion: cfg.APIConfig.AppVersion,
	}
	if meta.DeviceID == "" {
		meta.DeviceID = uuid.NewString()
	}
	if host, err := os.Hostname(); err == nil {
		if len(host) > 64 {
			host = host[:64]
		}
		meta.DeviceName = host
	}
	if err := validator.New().Struct(meta); err != nil {
		logger.Fatal("invalid device metadata", zap.Error(err))
	}
	return meta
}
