package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"healthTrackerAPI/handlers"
	"healthTrackerAPI/middleware"
)

const serviceName = "health-tracker-api"

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	app, err := loadApp(cmd, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config
	log := app.Log

	if cfg.ClerkSecretKey != "" {
		clerk.SetKey(cfg.ClerkSecretKey)
		log.Info("Clerk initialized successfully")
	} else {
		log.Warn("CLERK_SECRET_KEY is not set, every request will be treated as anonymous")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	middleware.InitPrometheus(reg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Cleanup(ctx)

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(NewRouter(app, limiter, reg, middleware.ClerkVerifier)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Port, "store", cfg.StoreDriver, "achievements", app.Catalog.Len())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
		return err
	}

	log.Info("server shutdown complete")
	return nil
}

// NewRouter builds the API routes on top of the rate limiter and request
// metrics.
func NewRouter(app *App, limiter *middleware.RateLimiter, reg *prometheus.Registry, verify middleware.TokenVerifier) *mux.Router {
	achievementHandler := handlers.NewAchievementHandler(app.Achievements, app.Log)
	healthHandler := handlers.NewHealthHandler(app.Store, serviceName, app.Log)

	r := mux.NewRouter()
	r.Use(limiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(app.Config.MetricsUser, app.Config.MetricsPass)(
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)).Methods("GET")
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.OptionalAuthMiddleware(verify, app.Log))

	api.HandleFunc("/achievements/check", achievementHandler.CheckAchievements).Methods("POST")
	api.HandleFunc("/achievements", achievementHandler.GetAchievements).Methods("GET")
	api.HandleFunc("/user/level", achievementHandler.GetLevel).Methods("GET")

	return r
}
