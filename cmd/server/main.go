package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodorder-be/internal/config"
	"foodorder-be/internal/db"
	"foodorder-be/internal/events"
	"foodorder-be/internal/httpapi"
	"foodorder-be/internal/logger"
	"foodorder-be/internal/metrics"
	"foodorder-be/internal/middleware"
	"foodorder-be/internal/order"
	"foodorder-be/internal/store"
	"foodorder-be/internal/user"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	initDBFunc       = db.InitDB
	newPublisherFunc = events.NewPublisher
	startServerFunc  = serve
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

type server struct {
	handler   http.Handler
	limiter   *middleware.RateLimiter
	publisher events.Publisher
}

func (s *server) Close() {
	s.limiter.Close()
	if err := s.publisher.Close(); err != nil {
		logger.L().Warn("failed to close event publisher", zap.Error(err))
	}
}

func newServer(cfg *config.Config, database *sql.DB, pub events.Publisher) *server {
	reg := metrics.NewRegistry()

	storeRepo := store.NewRepository(database)
	userRepo := user.NewRepository(database)
	orderRepo := order.NewRepository(database)

	orderSvc := order.NewService(
		orderRepo,
		storeRepo,
		userRepo,
		events.NewEmitter(pub, cfg.OrderEventsSubject),
		reg,
	)

	limiter := middleware.NewRateLimiter(cfg.InternalSecretKey)
	router := httpapi.NewRouter(httpapi.RouterDeps{
		Handler:       httpapi.NewHandler(orderSvc, storeRepo),
		Metrics:       reg.Handler(),
		Limiter:       limiter,
		JWTSecret:     cfg.JWTSecret,
		AllowedOrigin: cfg.AllowedOrigin,
	})

	return &server{handler: router, limiter: limiter, publisher: pub}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	database := initDBFunc(cfg)
	defer database.Close()

	pub, err := newPublisherFunc(cfg.NATSURL)
	if err != nil {
		log.Warn("order events disabled", zap.Error(err))
		pub = events.NoopPublisher{}
	}

	srv := newServer(cfg, database, pub)
	defer srv.Close()

	addr := ":" + cfg.AppPort
	log.Info("order server running", zap.String("addr", addr))
	return startServerFunc(addr, srv.handler)
}

// serve blocks until SIGINT or SIGTERM, then drains in-flight requests.
func serve(addr string, handler http.Handler) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
