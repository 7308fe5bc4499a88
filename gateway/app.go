package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"golang.org/x/exp/slog"

	gw8583 "github.com/jonanatree/paygate/gateway/iso8583"
	"github.com/jonanatree/paygate/internal/expiry"
	"github.com/jonanatree/paygate/internal/middleware"
)

// App is the main application, it contains all the components of the gateway
// and is responsible for starting and stopping them.
type App struct {
	srv               *http.Server
	wg                *sync.WaitGroup
	Addr              string
	ISO8583ServerAddr string
	logger            *slog.Logger
	iso8583Server     io.Closer
	repository        *Repository
	config            *Config
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "paygate"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

// OpenRepository opens the configured backend and makes sure the schema exists.
func OpenRepository(ctx context.Context, cfg *Config) (*Repository, error) {
	hashKey := []byte(cfg.PANHashKey)
	var repository *Repository
	switch cfg.RepoBackend {
	case "pg":
		if cfg.DatabaseDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required for pg backend")
		}
		db, err := sql.Open("postgres", cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(10)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		repository = NewPGRepository(db, hashKey)
	case "sqlite":
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repository = NewSQLiteRepository(db, hashKey)
	case "mem":
		if !cfg.AllowMemBackend {
			return nil, fmt.Errorf("mem repository is disabled at runtime; set ALLOW_MEM_BACKEND_FOR_TESTS=true only in tests")
		}
		repository = NewRepository()
		if len(hashKey) > 0 {
			repository.hashKey = hashKey
		}
	default:
		return nil, fmt.Errorf("unsupported REPO_BACKEND=%s", cfg.RepoBackend)
	}

	if err := repository.Migrate(ctx); err != nil {
		repository.Close()
		return nil, err
	}
	return repository, nil
}

// ApplyExpirySettings pushes the expiry timezone and product validity into internal/expiry.
func ApplyExpirySettings(logger *slog.Logger, cfg *Config) {
	if cfg.ExpiryTZ != "" {
		if loc, err := time.LoadLocation(cfg.ExpiryTZ); err == nil {
			expiry.SetDefaultExpiryLocation(loc)
		} else {
			logger.Info("invalid ExpiryTZ; using default UTC", slog.String("tz", cfg.ExpiryTZ), slog.Any("err", err))
		}
	}
	if len(cfg.ProductYears) > 0 {
		expiry.SetProductYears(cfg.ProductYears)
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	ApplyExpirySettings(a.logger, a.config)

	repository, err := OpenRepository(context.Background(), a.config)
	if err != nil {
		return fmt.Errorf("opening repository: %w", err)
	}
	a.repository = repository
	a.logger.Info("repository ready", slog.String("backend", a.config.RepoBackend))

	svc := NewService(repository, a.config, WithLogger(a.logger))

	iso8583Server := gw8583.NewServer(a.logger, a.config.ISO8583Addr, svc)
	if err := iso8583Server.Start(); err != nil {
		return fmt.Errorf("starting iso8583 server: %w", err)
	}
	a.ISO8583ServerAddr = iso8583Server.Addr
	a.iso8583Server = iso8583Server

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(middleware.NewStructuredLogger(a.logger))
	router.Use(chimw.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	api := NewAPI(svc)
	api.AppendRoutes(router)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := repository.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	if a.srv != nil {
		a.srv.Shutdown(context.Background())
	}

	if a.iso8583Server != nil {
		if err := a.iso8583Server.Close(); err != nil {
			a.logger.Error("closing iso8583 server", "err", err)
		}
	}

	a.wg.Wait()

	if a.repository != nil {
		if err := a.repository.Close(); err != nil {
			a.logger.Error("closing repository", "err", err)
		}
	}

	a.logger.Info("app stopped")
}
