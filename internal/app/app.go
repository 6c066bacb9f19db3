// Package app boots the quota service: configuration, database, fast
// counter store, and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omniflow/quotad/internal/allocation"
	"github.com/omniflow/quotad/internal/audit"
	"github.com/omniflow/quotad/internal/config"
	"github.com/omniflow/quotad/internal/counter"
	"github.com/omniflow/quotad/internal/db"
	"github.com/omniflow/quotad/internal/enforce"
	"github.com/omniflow/quotad/internal/http/api"
	"github.com/omniflow/quotad/internal/resolver"
	"github.com/omniflow/quotad/internal/scheduler"
	"github.com/omniflow/quotad/internal/usagetrack"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// devSQLitePath is the fallback database when no DSN is configured.
const devSQLitePath = "quotad.db"

const shutdownGrace = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	_ = ctx
	conn, errOpen := openDatabase(cfg)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the quota API server and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)

	conn, errOpen := openDatabase(cfg)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	counters := counter.NewManager(func() config.RedisConfig {
		redisCfg, _ := config.LoadRedisConfig(configPath)
		return redisCfg
	}, time.Now, nil)

	usage := usagetrack.NewService(conn, counters, time.Now)
	allocations := allocation.NewStore(conn, audit.NewGormRecorder(conn))
	engine := enforce.NewEngine(resolver.New(conn), usage)

	serviceAuth, _ := config.LoadServiceAuthConfig(configPath)
	if serviceAuth.Secret == "" {
		log.Warn("no service-token secret configured; API may run open for development")
	}

	aggregation, _ := config.LoadAggregationConfig(configPath)
	if aggregation.InProcess {
		scheduler.New(usage).Start(ctx)
		log.Info("in-process aggregation scheduler started")
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogMiddleware())
	api.RegisterRoutes(router, api.Deps{
		DB:          conn,
		Allocations: allocations,
		Engine:      engine,
		Usage:       usage,
		ServiceAuth: serviceAuth,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("quota service listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// openDatabase resolves the DSN and opens the durable store. A missing DSN
// falls back to a local SQLite file for development.
func openDatabase(cfg config.AppConfig) (*gorm.DB, error) {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, errDSN := config.LoadDatabaseDSN(configPath)
	if errDSN != nil {
		if !errors.Is(errDSN, config.ErrMissingDatabaseDSN) {
			return nil, errDSN
		}
		log.Warnf("no database dsn configured, using local sqlite file %s", devSQLitePath)
		dsn = devSQLitePath
	}
	return db.Open(dsn)
}

// requestLogMiddleware logs one structured line per request.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}
