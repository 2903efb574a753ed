package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/report-dispatch/internal/config"
	"github.com/kursadbilgin/report-dispatch/internal/handler"
	"github.com/kursadbilgin/report-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/report-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/report-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/report-dispatch/internal/mailer"
	"github.com/kursadbilgin/report-dispatch/internal/observability"
	"github.com/kursadbilgin/report-dispatch/internal/queue"
	"github.com/kursadbilgin/report-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/report-dispatch/internal/report"
	"github.com/kursadbilgin/report-dispatch/internal/repository"
	"github.com/kursadbilgin/report-dispatch/internal/service"
	"github.com/kursadbilgin/report-dispatch/internal/transport"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("report-dispatch stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	location, err := cfg.Location()
	if err != nil {
		return err
	}
	lateAfter, err := cfg.LateAfter()
	if err != nil {
		return err
	}

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	var rdb *goredis.Client
	var limiter ratelimit.RelayLimiter
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		relay, ok, err := cfg.MailRelay()
		if err != nil {
			return err
		}
		if ok {
			quotaLimiter, err := infraredis.NewRelayQuotaLimiter(rdb, relay, cfg.MailQuota())
			if err != nil {
				return fmt.Errorf("relay quota limiter initialization failed: %w", err)
			}
			limiter = quotaLimiter
			logger.Info("relay quota enabled",
				zap.String("relay", relay.String()),
				zap.Int("perMinute", cfg.MailRelayPerMinute),
				zap.Int("perDay", cfg.MailRelayPerDay),
			)
		}
	}

	transportMailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	settings := repository.NewGormSettingsRepo(db)

	attendance, err := service.NewAttendanceService(repository.NewGormAttendanceRepo(db), location, lateAfter)
	if err != nil {
		return err
	}
	resolver, err := service.NewRecipientResolver(
		repository.NewGormTeacherRepo(db),
		repository.NewGormStudentRepo(db),
		attendance,
		logger,
	)
	if err != nil {
		return err
	}

	coordinator, err := service.NewCoordinator(
		resolver,
		report.NewPDFRenderer(""),
		transportMailer,
		settings,
		limiter,
		cfg.DeliveryTimeout,
		cfg.DispatchConcurrency,
		logger,
	)
	if err != nil {
		return err
	}
	coordinator.SetMetrics(metrics)

	dispatcher, err := service.NewDispatcher(settings, coordinator, location, logger)
	if err != nil {
		return err
	}
	dispatcher.SetMetrics(metrics)

	if strings.TrimSpace(cfg.RabbitMQURL) != "" {
		rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		publisher := queue.NewRabbitMQPublisher(rabbit)
		defer publisher.Close()
		dispatcher.SetEventPublisher(publisher)
	}

	trigger, err := service.NewPeriodicTrigger(dispatcher, cfg.PollSchedule, logger)
	if err != nil {
		return err
	}

	schedules, err := service.NewScheduleService(settings, location, logger)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               "report-dispatch",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterReportRoutes(app, dispatcher, schedules); err != nil {
		return err
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return trigger.Start(groupCtx)
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("report-dispatch api started",
			zap.String("addr", addr),
			zap.String("timezone", location.String()),
			zap.String("mailTransport", cfg.MailTransport),
			zap.Bool("rateLimited", limiter != nil),
			zap.Bool("batchEvents", strings.TrimSpace(cfg.RabbitMQURL) != ""),
		)
		if err := app.Listen(addr); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	return g.Wait()
}

func newMailer(cfg *config.Config, logger *zap.Logger) (mailer.Mailer, error) {
	switch cfg.MailTransport {
	case config.MailTransportSMTP:
		return mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:          cfg.SMTPHost,
			Port:          cfg.SMTPPort,
			Username:      cfg.SMTPUsername,
			Password:      cfg.SMTPPassword,
			From:          cfg.MailFrom,
			AllowInsecure: cfg.SMTPAllowInsecure,
		})
	case config.MailTransportHTTP:
		return mailer.NewHTTPMailer(cfg.MailAPIURL, cfg.MailAPIToken, cfg.MailFrom)
	case config.MailTransportLog:
		return mailer.NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}
}
