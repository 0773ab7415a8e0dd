package main // entry point of the admission API server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/college-admission/internal/config"
	"github.com/iliyamo/college-admission/internal/database"
	"github.com/iliyamo/college-admission/internal/handler"
	"github.com/iliyamo/college-admission/internal/letters"
	"github.com/iliyamo/college-admission/internal/logger"
	"github.com/iliyamo/college-admission/internal/metrics"
	"github.com/iliyamo/college-admission/internal/middleware"
	"github.com/iliyamo/college-admission/internal/model"
	"github.com/iliyamo/college-admission/internal/queue"
	"github.com/iliyamo/college-admission/internal/repository"
	"github.com/iliyamo/college-admission/internal/router"
	"github.com/iliyamo/college-admission/internal/scheduler"
	"github.com/iliyamo/college-admission/internal/service"
	"github.com/iliyamo/college-admission/internal/storage"
)

type publisher interface {
	service.EventPublisher
	service.NotificationPublisher
}

func main() {
	_ = godotenv.Load() // a missing .env is fine; the environment may already be set

	cfg := config.Load()
	logger.Initialize(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithService("server")

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Password: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	seedAdmin(ctx, cfg, users)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; using in-process rate limits and no response cache")
	} else {
		defer rdb.Close()
	}

	var events publisher = service.NopPublisher{}
	var wg sync.WaitGroup
	if cfg.AMQPURL != "" {
		p := queue.NewPublisher(cfg.AMQPURL)
		defer p.Close()
		events = p

		consumer := queue.NewEventLogConsumer(cfg.AMQPURL, cfg.EventLog)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("event consumer stopped")
			}
		}()
	} else {
		log.Warn("AMQP_URL not set; admission events are not published")
	}

	files, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.WithError(err).Fatal("upload directory unavailable")
	}

	store := repository.NewStore(db)
	ledger := service.NewSeatLedger(store)
	coordinator := service.NewCoordinator(store, ledger, events, cfg.SelectionMaxRetries)
	workflow := service.NewWorkflow(store, coordinator, events, cfg.SelectionMaxRetries)
	bulk := service.NewBulkEngine(store, workflow)
	documents := service.NewDocumentService(store, events)
	letterService := service.NewLetterService(store, letters.NewGenerator(files, cfg.LetterDir), events)
	payments := service.NewPaymentService(store, service.NewHMACVerifier(cfg.PaymentSecret), events, cfg.SelectionMaxRetries)
	notifier := service.NewNotifier(store, events)

	sched, err := scheduler.New(10*time.Minute,
		scheduler.Job{Name: "admission_letters", Spec: cfg.LetterCron, Run: letterService.RunScheduled},
		scheduler.Job{Name: "refresh_token_cleanup", Spec: cfg.CleanupCron, Run: func(ctx context.Context) {
			n, err := tokens.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				log.WithError(err).Error("refresh token cleanup failed")
				return
			}
			log.WithField("deleted", n).Info("expired refresh tokens removed")
		}},
	)
	if err != nil {
		log.WithError(err).Fatal("scheduler setup failed")
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	cacheCfg := config.LoadCacheConfig()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger.WithService("http")))
	e.Use(metrics.Middleware())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger.WithService("ratelimit")))

	router.RegisterRoutes(e, db)
	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterAdmin(e,
		handler.NewAdminHandler(workflow, bulk, store.Courses, store.Applications, rdb, cacheCfg.Prefix),
		authHandler, cfg.JWTSecret)
	payHandler := handler.NewPaymentHandler(payments)
	router.RegisterOfficer(e,
		handler.NewOfficerHandler(workflow, bulk, documents, letterService, notifier, store.Applications),
		payHandler, cfg.JWTSecret)
	router.RegisterStudent(e,
		handler.NewStudentHandler(workflow, documents, ledger, store.Applications, store.Courses, files),
		payHandler,
		middleware.NewRedisCache(cacheCfg, rdb),
		middleware.NewTokenBucket(config.LoadLookupRateLimitConfig(), rdb, logger.WithService("ratelimit")))

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown failed")
	}
	wg.Wait()
}

// seedAdmin creates the first ADMIN account from ADMIN_EMAIL and
// ADMIN_PASSWORD when none exists yet.
func seedAdmin(ctx context.Context, cfg config.Config, users *repository.UserRepo) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return
	}
	log := logger.WithService("server")
	n, err := users.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		log.WithError(err).Error("admin lookup failed")
		return
	}
	if n > 0 {
		return
	}
	if _, err := users.Create(ctx, cfg.AdminEmail, cfg.AdminPassword, model.RoleAdmin, cfg.BcryptCost); err != nil {
		log.WithError(err).Error("admin seed failed")
		return
	}
	log.WithField("email", cfg.AdminEmail).Info("admin account created")
}
