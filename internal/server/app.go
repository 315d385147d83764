// Package server initializes and runs the AuthKeeper server: it opens and
// migrates the account store, wires the account service into the HTTP and
// gRPC health servers, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/filex"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpserver"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	accounts *services.AccountService
	registry *prometheus.Registry
}

// NewApp opens and migrates the store and builds the account service. Logs
// go to out as JSON.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	logger := logging.New(out, c.LogLevel, c.RedactFields)

	generated, err := c.EnsureSecretKey()
	if err != nil {
		return nil, fmt.Errorf("secret key: %w", err)
	}
	if generated {
		logger.Warn(ctx, "no secret key configured, generated a random one; sessions will not survive a restart")
	}

	db, repos, err := OpenStore(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	hasher, err := cryptox.NewPasswordHasher(c.PasswordHasher, c.BcryptCost)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	accounts := services.NewAccountService(db, repos, hasher, logger, metrics.New(registry))

	return &App{config: c, logger: logger, db: db, accounts: accounts, registry: registry}, nil
}

// OpenStore opens the database for driver, creating the parent directory of
// an SQLite file when needed, and applies migrations.
func OpenStore(ctx context.Context, driver, dsn string) (*sql.DB, repomanager.RepositoryManager, error) {
	repos, err := repomanager.New(driver)
	if err != nil {
		return nil, nil, err
	}

	if driver == dbx.DriverSQLite {
		if path := sqliteFilePath(dsn); path != "" {
			if _, err := filex.EnsureParentDir(path); err != nil {
				return nil, nil, err
			}
		}
	}

	db, err := dbx.Open(ctx, driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}

	return db, repos, nil
}

// sqliteFilePath extracts the file path from an SQLite DSN, or "" for
// in-memory databases.
func sqliteFilePath(dsn string) string {
	path, query, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" || path == ":memory:" || strings.Contains(query, "mode=memory") {
		return ""
	}
	return path
}

// Accounts returns the account service the servers are wired to.
func (app *App) Accounts() *services.AccountService { return app.accounts }

// HTTPOptions wires the router for the configured auth type.
func (app *App) HTTPOptions() httpserver.Options {
	secret := []byte(app.config.SecretKey)
	return httpserver.Options{
		Accounts:       app.accounts,
		Identifier:     auth.New(app.config.AuthType, app.accounts, app.config.SessionName, secret),
		CookieName:     app.config.SessionName,
		SecretKey:      secret,
		AllowedOrigins: app.config.CORSAllowedOrigins,
		Metrics:        promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}),
		Logger:         app.logger,
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := httpserver.NewRouter(app.HTTPOptions())
	s := httpserver.NewServer(app.config.APIAddr(), h, app.logger, app.config.ShutdownTimeout)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc, s *gs.GRPCServer) {
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// closes the store.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "auth_type", app.config.AuthType, "driver", app.config.DatabaseDriver)

	app.initSignalHandler(cancelFunc)

	health := gs.NewGRPCServer(app.config.GRPCHealthAddr, app.logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.GRPCHealthAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc, health)
		}()
	}

	// the store was migrated in NewApp
	health.SetServing(true)

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
