package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mind-engage/edutest/internal/api/http"
	"github.com/mind-engage/edutest/internal/attempt"
	auth "github.com/mind-engage/edutest/internal/auth/middleware"
	"github.com/mind-engage/edutest/internal/catalog"
	"github.com/mind-engage/edutest/internal/config"
	"github.com/mind-engage/edutest/internal/db"
	"github.com/mind-engage/edutest/internal/events"
	"github.com/mind-engage/edutest/internal/grading"
	"github.com/mind-engage/edutest/internal/importer"
	"github.com/mind-engage/edutest/internal/lock"
	"github.com/mind-engage/edutest/internal/quiz"
	"github.com/mind-engage/edutest/internal/storage"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file (default: ./edutest.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// --- Store ---
	var (
		store quiz.Store
		dbh   *sql.DB
	)
	pubs := []events.Publisher{}
	if cfg.DBDriver == "memory" {
		store = quiz.NewInMemoryStore(nil)
	} else {
		dbh, err = db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		defer dbh.Close()
		store = quiz.NewSQLStore(dbh, cfg.DBDriver)
		pubs = append(pubs, events.NewLog(dbh, cfg.SiteID))
	}

	// --- Attempt locks ---
	guard := lock.NewMemoryGuard(nil)
	if cfg.RedisAddr != "" {
		rc, err := lock.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rc.Close()
		guard = lock.NewRedisGuard(rc)
	}

	// --- Events ---
	if cfg.AMQPURL != "" {
		mq, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("amqp: %v", err)
		}
		defer mq.Close()
		pubs = append(pubs, mq)
	}

	svc := catalog.New(store)
	if cfg.SeedFile != "" {
		if err := seed(ctx, svc, cfg.SeedFile); err != nil {
			log.Fatalf("seed %s: %v", cfg.SeedFile, err)
		}
	}

	scorer := grading.NewScorer(nil)
	mgr := attempt.NewManager(attempt.Config{
		Store:  store,
		Scorer: scorer,
		Guard:  guard,
		Events: events.Multi(pubs...),
		Retain: cfg.AttemptRetain,
	})
	defer mgr.Close()
	svc.OnTestsRemoved(func(ids ...string) { mgr.CancelTests(ids...) })

	var bs storage.BlobStore
	if cfg.MinIOEndpoint != "" {
		bs, err = storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	} else {
		bs, err = storage.NewFSStore(cfg.BlobBasePath)
	}
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.Mount(r, api.Deps{
		Auth:        auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL),
		Catalog:     svc,
		Attempts:    mgr,
		Scorer:      scorer,
		Blobs:       bs,
		TeacherCode: cfg.TeacherCode,
		Metrics:     cfg.MetricsEnabled,
		Ready: func(ctx context.Context) error {
			if dbh == nil {
				return nil
			}
			return dbh.PingContext(ctx)
		},
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func seed(ctx context.Context, svc *catalog.Service, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := importer.Decode(f)
	if err != nil {
		return err
	}
	sum, err := importer.Seed(ctx, svc, auth.HashPassword, b)
	if err != nil {
		return err
	}
	log.Printf("seed: %d groups and %d tests created, %d skipped", len(sum.GroupsCreated), len(sum.TestsCreated), len(sum.Skipped))
	return nil
}
