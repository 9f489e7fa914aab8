package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/field-booking/internal/booking"
	"github.com/iliyamo/field-booking/internal/config"
	"github.com/iliyamo/field-booking/internal/database"
	"github.com/iliyamo/field-booking/internal/handler"
	"github.com/iliyamo/field-booking/internal/logger"
	"github.com/iliyamo/field-booking/internal/metrics"
	"github.com/iliyamo/field-booking/internal/middleware"
	"github.com/iliyamo/field-booking/internal/queue"
	"github.com/iliyamo/field-booking/internal/realtime"
	"github.com/iliyamo/field-booking/internal/repository"
	"github.com/iliyamo/field-booking/internal/repository/memstore"
	"github.com/iliyamo/field-booking/internal/router"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

const shutdownTimeout = 10 * time.Second

// backend groups the stores behind whichever driver is configured.
type backend struct {
	users interface {
		booking.UserLookup
		handler.CustomerStore
	}
	fields interface {
		booking.FieldLookup
		handler.FieldStore
	}
	bookings interface {
		booking.BookingStore
		handler.BookingReader
	}
	ping  func(context.Context) error
	close func() error
}

func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	if cfg.DB.IsMemory() {
		s := memstore.New()
		if err := memstore.SeedDemo(ctx, s); err != nil {
			return nil, fmt.Errorf("seed memory store: %w", err)
		}
		log.Warn(ctx, "using in-memory store; data is lost on exit", nil)
		return &backend{users: s, fields: s, bookings: s, close: func() error { return nil }}, nil
	}

	db, err := database.Open(database.Options{
		User:         cfg.DB.User,
		Pass:         cfg.DB.Pass,
		Host:         cfg.DB.Host,
		Port:         cfg.DB.Port,
		Name:         cfg.DB.Name,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		ConnLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if cfg.DB.AutoMigrate {
		if err := database.MigrateUp(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info(ctx, "migrations applied")
	}
	return &backend{
		users:    repository.NewUserRepo(db, cfg.DB.QueryTimeout),
		fields:   repository.NewFieldRepo(db, cfg.DB.QueryTimeout),
		bookings: repository.NewBookingRepo(db, cfg.DB.QueryTimeout, cfg.DB.SlotLockTimeout),
		ping:     db.PingContext,
		close:    db.Close,
	}, nil
}

// catalogueCache keeps a disabled cache as a nil interface.
func catalogueCache(cfg *config.Config, rdb *redis.Client) handler.CatalogueCache {
	if p := middleware.NewCachePurger(cfg.Cache, rdb); p != nil {
		return p
	}
	return nil
}

func main() {
	boot := logger.New(logger.Options{ServiceName: "field-booking"})

	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: "field-booking",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "server stopped", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithFields(ctx, map[string]any{"env": cfg.App.Env, "port": cfg.App.Port})

	open, err := timeslot.ParseTimeOfDay(cfg.Booking.DefaultOpen)
	if err != nil {
		return fmt.Errorf("BOOKING_DEFAULT_OPEN: %w", err)
	}
	closeAt, err := timeslot.ParseTimeOfDay(cfg.Booking.DefaultClose)
	if err != nil {
		return fmt.Errorf("BOOKING_DEFAULT_CLOSE: %w", err)
	}

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			log.Warn(ctx, "error closing database", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	hub := realtime.NewHub(log)
	defer hub.Close()

	var (
		pub      booking.Publisher = booking.NopPublisher{}
		consumer *queue.Consumer
	)
	switch cfg.Events.Transport {
	case "amqp":
		p := queue.NewPublisher(cfg.Events.RabbitURL, cfg.Events.Queue)
		defer func() { _ = p.Close() }()
		pub = p
		if cfg.Events.ConsumerEnabled {
			consumer = queue.NewConsumer(cfg.Events.RabbitURL, cfg.Events.Queue, hub, log)
		}
	case "direct":
		pub = hub
	}

	alloc := booking.NewAllocator(be.users, be.fields, be.bookings, booking.Options{
		Publisher:    pub,
		Logger:       log,
		Metrics:      bookingMetrics,
		CodePrefix:   cfg.Booking.CodePrefix,
		Location:     cfg.Booking.Location(),
		EventTimeout: cfg.Booking.EventTimeout,
	})
	proj := booking.NewProjector(be.fields, be.bookings, booking.ProjectorOptions{
		Window:       booking.WindowPolicy(cfg.Booking.SlotWindow),
		DefaultOpen:  open,
		DefaultClose: closeAt,
	})

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn(ctx, "redis unavailable; rate limiting and response cache disabled", nil)
	} else {
		defer func() { _ = rdb.Close() }()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, be.ping, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.RegisterPublic(e,
		handler.NewPublicHandler(be.fields, be.users, alloc, proj, log),
		middleware.NewRedisCache(cfg.Cache, rdb),
		middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
	)
	router.RegisterBookings(e, handler.NewBookingHandler(be.bookings, alloc, proj, log), cfg.JWT.Secret)
	router.RegisterAdmin(e, handler.NewFieldHandler(be.fields, catalogueCache(cfg, rdb), log), hub, cfg.JWT.Secret)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(ctx, "starting api server")
		if err := e.Start(":" + cfg.App.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err := e.Shutdown(sctx)
		hub.Close()
		alloc.Wait()
		return err
	})
	return g.Wait()
}
