package server

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/zhirschtritt/deals/internal/config"
	"github.com/zhirschtritt/deals/internal/domain"
	"github.com/zhirschtritt/deals/internal/events"
	"github.com/zhirschtritt/deals/internal/migrations"
	"github.com/zhirschtritt/deals/internal/repository"
)

//go:embed openapi.json
var openAPISpec []byte

type Server struct {
	logger        *slog.Logger
	startTime     time.Time
	pool          *pgxpool.Pool
	db            *sql.DB
	config        *config.Config
	migrator      *migrations.Migrator
	dealService   *domain.DealService
	eventConsumer events.EventConsumer
	*http.Server
}

type HealthResponse struct {
	Status    string        `json:"status"`
	Uptime    time.Duration `json:"uptime"`
	StartTime time.Time     `json:"start_time"`
}

func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	logger.Info("configuration loaded",
		"port", cfg.Port,
		"event_consumer_type", cfg.EventConsumerType,
		"run_migrations", cfg.RunMigrations,
	)

	server := &Server{
		logger:    logger,
		startTime: time.Now(),
		config:    cfg,
	}

	if err := server.initDatabase(); err != nil {
		server.closeResources()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := server.initEventConsumer(); err != nil {
		server.closeResources()
		return nil, fmt.Errorf("failed to initialize event consumer: %w", err)
	}

	server.dealService = domain.NewDealService(
		repository.NewDBDealRepository(server.db),
		server.eventConsumer,
		logger,
	)

	server.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      server.routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return server, nil
}

func (s *Server) routes() *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	router.Get("/health", s.healthHandler)
	router.Get("/healthz", s.healthzHandler)
	router.Get("/openapi", s.openAPIHandler)

	dealRouter := NewDealRouter(s.dealService, s.logger)
	router.Mount("/deals", dealRouter.Routes())

	return router
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, MessageResponse{Message: "OK"})
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Uptime:    time.Since(s.startTime),
		StartTime: s.startTime,
	})
}

func (s *Server) openAPIHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(openAPISpec); err != nil {
		s.logger.Error("failed to write openapi document", "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting server", "port", s.config.Port, "start_time", s.startTime)

	serveErr := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	s.logger.Info("server is ready to handle requests", "addr", s.Addr)

	return s.gracefulShutdown(serveErr)
}

func (s *Server) initDatabase() error {
	pool, err := openPool(s.config.DBConnString, s.logger)
	if err != nil {
		return err
	}
	s.pool = pool
	s.db = stdlib.OpenDBFromPool(pool)

	if !s.config.RunMigrations {
		s.logger.Info("skipping database migrations")
		return nil
	}

	migrator, err := migrations.NewMigrator(s.config.DBConnString, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	s.migrator = migrator

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func openPool(connString string, logger *slog.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	logger.Info("connecting to database",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established successfully")
	return pool, nil
}

func (s *Server) initEventConsumer() error {
	ctx := context.Background()
	eventsRepo := repository.NewDBEventsRepository(s.pool)

	switch s.config.EventConsumerType {
	case config.ConsumerGoChannel:
		s.eventConsumer = events.NewConsumer(eventsRepo, events.ConsumerOptions{
			BufferSize:   1000,
			BatchSize:    100,
			BatchTimeout: 100 * time.Millisecond,
			WorkerCount:  4,
			Logger:       s.logger,
		})
	case config.ConsumerWAL:
		walConsumer, err := events.NewWALConsumer(eventsRepo, events.WALConsumerOptions{
			BufferSize:       1000,
			BatchSize:        100,
			BatchTimeout:     100 * time.Millisecond,
			WALDir:           filepath.Clean(s.config.WALDir),
			SegmentThreshold: 1000,
			MaxSegments:      10,
			WorkerCount:      4,
			Logger:           s.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create WAL consumer: %w", err)
		}
		s.eventConsumer = walConsumer
	default:
		return fmt.Errorf("unsupported event consumer type: %s", s.config.EventConsumerType)
	}

	s.eventConsumer.Start(ctx)
	s.logger.Info("initialized deal event consumer", "type", s.config.EventConsumerType)
	return nil
}

func (s *Server) gracefulShutdown(serveErr <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	var listenErr error
	select {
	case sig := <-quit:
		s.logger.Info("server is shutting down", "reason", sig.String())
	case err, ok := <-serveErr:
		if ok {
			s.logger.Error("could not listen on", "addr", s.Addr, "error", err)
			listenErr = err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.SetKeepAlivesEnabled(false)
	if err := s.Shutdown(ctx); err != nil {
		s.logger.Error("could not gracefully shutdown the server", "error", err)
	}

	s.closeResources()
	s.logger.Info("server stopped")

	return listenErr
}

// closeResources releases whatever was initialised, in reverse order.
func (s *Server) closeResources() {
	if s.eventConsumer != nil {
		s.eventConsumer.Stop()
		s.logger.Info("event consumer stopped")
	}

	if s.migrator != nil {
		if err := s.migrator.Close(); err != nil {
			s.logger.Error("could not close migrator", "error", err)
		}
		s.logger.Info("migrator closed")
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("could not close sql db", "error", err)
		}
	}

	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("database connection closed")
	}
}
