/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shop engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Build the zap logger
  3. Open the SQL store (SQLite or MySQL)
  4. Wire auth service, engine, reporter and API handler
  5. Seed the system admin and starter catalog
  6. Start the stock monitor and HTTP server with graceful shutdown

COMMAND-LINE FLAGS (override environment):
  -port    HTTP server port (SERVER_PORT, default: 8080)
  -db      Database DSN (DB_DSN, default: shop.db)
           Use ":memory:" for an in-memory SQLite database
  -driver  sqlite3 or mysql (DB_DRIVER, default: sqlite3)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the stock monitor
  4. Close database connection

EXAMPLES:
  ./server -db="./data/shop.db"
  ./server -driver=mysql -db="shop:secret@tcp(localhost:3306)/shop"
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlstore: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/shop-engine/api"
	"github.com/warp/shop-engine/auth"
	"github.com/warp/shop-engine/config"
	"github.com/warp/shop-engine/logger"
	"github.com/warp/shop-engine/shop"
	"github.com/warp/shop-engine/store/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags
	port := flag.String("port", cfg.Server.Port, "HTTP server port")
	dsn := flag.String("db", cfg.Database.DSN, "Database DSN or SQLite path")
	driver := flag.String("driver", cfg.Database.Driver, "Database driver: sqlite3 or mysql")
	flag.Parse()

	l, err := logger.New(cfg.IsProduction(), cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer l.Sync()

	if err := run(cfg, *port, *driver, *dsn, l); err != nil {
		l.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, port, driver, dsn string, l *zap.Logger) error {
	dialect, err := sqlstore.ParseDialect(driver)
	if err != nil {
		return err
	}

	// Initialize store
	store, err := sqlstore.Open(dialect, dsn)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()
	l.Info("database ready", zap.String("driver", string(dialect)))

	tokens := auth.NewTokenIssuer(cfg.JWT.SigningKey, cfg.JWT.ExpirationTime)
	authSvc := auth.NewService(store, tokens, auth.WithServiceLogger(l.Named("auth")))
	engine := shop.NewEngine(store, authSvc,
		shop.WithLogger(l.Named("engine")),
		shop.WithDiscountClamp(cfg.Shop.ClampDiscount),
	)
	reporter := shop.NewReporter(store, authSvc, cfg.Shop.LowStockThreshold)

	if cfg.Shop.Seed {
		if _, err := api.Seed(context.Background(), engine, authSvc, cfg.Shop.AdminPassword, l.Named("seed")); err != nil {
			return err
		}
	}

	monitor := api.NewStockMonitor(reporter, l.Named("monitor"))
	monitor.Start()
	defer monitor.Stop()

	handler := api.NewHandler(engine, reporter, authSvc,
		api.WithHandlerLogger(l.Named("http")),
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		l.Info("server starting", zap.String("addr", "http://localhost:"+port), zap.String("env", cfg.Server.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	l.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	l.Info("server stopped")
	return nil
}
