package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	auth "Waternet/internal/auth"
	network "Waternet/internal/calc/network"
	"Waternet/internal/calc/premium/autodesign"
	"Waternet/internal/calc/premium/batch"
	"Waternet/internal/calc/premium/importer"
	"Waternet/internal/calc/premium/recommend"
	report "Waternet/internal/calc/report"
	"Waternet/internal/config"
	"Waternet/internal/metrics"
	repo "Waternet/internal/repo"
)

var wg sync.WaitGroup

func CORS(mux *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "X-Run-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})
}

func HandleList(mux *mux.Router, cfg config.Config, runs repo.Repository, reg *metrics.Registry, logger *slog.Logger) {
	authEnv := &auth.Authenv{
		JWTKey:        []byte(cfg.TokenKey),
		AccessKeyHash: []byte(cfg.AccessKeyHash),
		Logger:        logger,
	}
	limiter := auth.NewIPRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)

	mux.Handle("/metrics", reg.Handler()).Methods("GET")
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		network.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	api := mux.PathPrefix("/api").Subrouter()
	api.Use(limiter.LimitMiddleware)
	api.HandleFunc("/token", authEnv.TokenHandler).Methods("POST")

	secureApi := api.PathPrefix("/tools").Subrouter()
	secureApi.Use(authEnv.AuthMiddleware)

	networkH := network.NewHandler(cfg.Solver, runs, reg, logger)
	reportH := &report.Handler{Analyze: networkH.Analyze, Logger: logger}
	importH := &importer.Handler{Analyze: networkH.Analyze, Logger: logger}
	batchH := &batch.Handler{Analyze: networkH.Analyze, Limit: cfg.BatchLimit}
	recommendH := &recommend.Handler{}
	autoH := &autodesign.Handler{Defaults: cfg.Solver, Analyze: networkH.Analyze}

	secureApi.HandleFunc("/network/calc", networkH.Calc).Methods("POST")
	secureApi.HandleFunc("/network/runs", networkH.ListRuns).Methods("GET")
	secureApi.HandleFunc("/network/runs/{id}", networkH.GetRun).Methods("GET")
	secureApi.HandleFunc("/network/report", reportH.Generate).Methods("POST")
	secureApi.HandleFunc("/network/import", importH.Import).Methods("POST")
	secureApi.HandleFunc("/network/export", importH.Export).Methods("POST")
	secureApi.HandleFunc("/network/batch", batchH.Calc).Methods("POST")
	secureApi.HandleFunc("/network/recommend", recommendH.PipeSize).Methods("POST")
	secureApi.HandleFunc("/network/autodesign", autoH.Resize).Methods("POST")
}

// openRuns picks Postgres when DATABASE_URL is set and falls back to memory.
func openRuns(ctx context.Context, cfg config.Config, logger *slog.Logger) (repo.Repository, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL is not set, runs are kept in memory")
		return repo.NewMemoryRunDB(), func() {}, nil
	}
	db, err := repo.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	runs := repo.NewPostgresRunDB(db)
	if err := runs.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return runs, func() { db.Close() }, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", slog.Any("error", err))
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	runs, closeRuns, err := openRuns(startCtx, cfg, logger)
	startCancel()
	if err != nil {
		logger.Error("database unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeRuns()

	mux := mux.NewRouter()
	HandleList(mux, cfg, runs, metrics.DefaultRegistry(), logger)
	handler := CORS(mux)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting server", slog.String("addr", cfg.Addr), slog.Bool("tls", cfg.TLS()))
		var err error
		if cfg.TLS() {
			err = server.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, closing active connections")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	wg.Wait()
	logger.Info("server stopped")
}
