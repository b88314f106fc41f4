package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"dogshare/internal/app/commands"
	availabilityapp "dogshare/internal/app/handlers/availability"
	rentalapp "dogshare/internal/app/handlers/rentals"
	"dogshare/internal/app/middleware"
	appoutbox "dogshare/internal/app/outbox"
	"dogshare/internal/app/queries"
	appavailability "dogshare/internal/app/services/availability"
	apprentals "dogshare/internal/app/services/rentals"
	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/rental"
	"dogshare/internal/domain/shared/daykey"
	"dogshare/internal/infra/broker/kafka"
	"dogshare/internal/infra/config"
	firestoredb "dogshare/internal/infra/db/firestore"
	mongodb "dogshare/internal/infra/db/mongo"
	ginserver "dogshare/internal/infra/http/gin"
	"dogshare/internal/infra/inbox"
	redislock "dogshare/internal/infra/lock/redis"
	"dogshare/internal/infra/obs"
	infraoutbox "dogshare/internal/infra/outbox"
	"dogshare/internal/infra/schedule"
	"dogshare/internal/infra/storage/memory"
)

type application struct {
	handlers  ginserver.Handlers
	checks    []obs.Check
	dogs      dog.Repository
	worker    *infraoutbox.Worker
	consumer  *kafka.Consumer
	scheduler *schedule.Scheduler
	closers   []func(context.Context) error
}

// stores is one backend's implementation of every persistence port.
type stores struct {
	calendars   domainavailability.Repository
	rentals     rental.Repository
	dogs        dog.Repository
	outbox      outboxStore
	idempotency middleware.IdempotencyStore
	inbox       kafka.Inbox
	checks      []obs.Check
	closers     []func(context.Context) error
}

type outboxStore interface {
	appoutbox.Outbox
	infraoutbox.Source
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("stores ready", "backend", cfg.StoreBackend)
	app := &application{dogs: st.dogs, checks: st.checks, closers: st.closers}

	encoder := appoutbox.JSONEventEncoder{}
	calendarSvc := &appavailability.Service{
		Calendars:   st.calendars,
		Outbox:      st.outbox,
		Encoder:     encoder,
		Logger:      logger.With("component", "availability"),
		MaxRetries:  cfg.MaxConflictRetries,
		HorizonDays: cfg.RecurringHorizonDays,
	}
	rentalSvc := &apprentals.Service{
		Rentals:  st.rentals,
		Dogs:     st.dogs,
		Calendar: calendarSvc,
		Outbox:   st.outbox,
		Encoder:  encoder,
		Logger:   logger.With("component", "rentals"),
		MaxDays:  cfg.MaxRentalDays,
	}

	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	availabilityModule := availabilityapp.Module{Service: calendarSvc}
	availabilityModule.RegisterCommands(commandBus)
	availabilityModule.RegisterQueries(queryBus)
	rentalModule := rentalapp.Module{Service: rentalSvc}
	rentalModule.RegisterCommands(commandBus)
	rentalModule.RegisterQueries(queryBus)

	cmdBus := middleware.ChainCommands(
		commandBus,
		middleware.Logging(logger),
		middleware.Validation(),
		middleware.Idempotency(st.idempotency, idempotencyPolicy()...),
		middleware.OutboxFlush(st.outbox),
	)
	qryBus := middleware.ChainQueries(
		queryBus,
		middleware.QueryLogging(logger),
		middleware.QueryValidation(),
	)

	app.handlers = ginserver.Handlers{
		Availability: ginserver.AvailabilityHandler{Commands: cmdBus, Queries: qryBus, Logger: logger},
		Booking:      ginserver.BookingHandler{Commands: cmdBus, Logger: logger},
		Rental:       ginserver.RentalHandler{Commands: cmdBus, Queries: qryBus, Logger: logger},
		Admin:        ginserver.AdminHandler{Commands: cmdBus, Logger: logger},
	}

	if cfg.KafkaEnabled() {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaClientID, nil)
		if err != nil {
			app.close(logger)
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return producer.Close() })
		app.worker = &infraoutbox.Worker{
			Source:      st.outbox,
			Producer:    producer,
			Logger:      logger.With("component", "outbox"),
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
		}
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, nil, kafka.BookingHandler{
			Bookings: calendarSvc,
			Inbox:    st.inbox,
			Logger:   logger.With("component", "rental-events"),
			MaxDays:  cfg.MaxRentalDays,
		}, logger)
		if err != nil {
			app.close(logger)
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
		app.consumer = consumer
	} else {
		logger.Warn("KAFKA_BROKERS not set, events stay in the outbox")
	}

	var locker schedule.Locker
	if cfg.RedisAddr != "" {
		client := redislock.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		locker = redislock.NewLocker(client, "")
		app.checks = append(app.checks, obs.Check{Name: "redis", Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() }})
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
	} else {
		logger.Warn("REDIS_ADDR not set, scheduled jobs run without a cluster lock")
	}
	app.scheduler = schedule.New(logger.With("component", "scheduler"), locker, cfg.JobLockTTL)
	if err := app.scheduler.Add(ctx,
		schedule.SweepJob(cfg.SweepSchedule, rentalSvc),
		schedule.PatternRefreshJob(cfg.PatternRefreshSchedule, calendarSvc),
	); err != nil {
		app.close(logger)
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return app, nil
}

// idempotencyPolicy keeps outages and lost races retryable under the same
// key, and replays recorded business failures with their original status.
func idempotencyPolicy() []middleware.IdempotencyOption {
	return []middleware.IdempotencyOption{
		middleware.SkipErrors(
			domainavailability.ErrStoreUnavailable,
			domainavailability.ErrVersionConflict,
		),
		middleware.ReplayErrors(
			apprentals.ErrDatesUnavailable,
			domainavailability.ErrNotOwner,
			domainavailability.ErrNoDays,
			rental.ErrNotFound,
			rental.ErrInvalidTransition,
			rental.ErrRenterRequired,
			rental.ErrSelfRental,
			dog.ErrNotFound,
			daykey.ErrInvalidRange,
			daykey.ErrRangeTooLong,
		),
	}
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		st, err := mongoStores(ctx, cfg, client)
		if err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		return st, nil
	case config.BackendFirestore:
		client, err := firestoredb.New(ctx, cfg.FirestoreProject, cfg.FirebaseCredentials)
		if err != nil {
			return nil, fmt.Errorf("firestore: %w", err)
		}
		return &stores{
			calendars:   firestoredb.NewAvailabilityRepository(client),
			rentals:     firestoredb.NewRentalRepository(client),
			dogs:        firestoredb.NewDogRepository(client),
			outbox:      memory.NewOutbox(),
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			inbox:       memory.NewInbox(),
			checks:      []obs.Check{{Name: "firestore", Ping: client.Ping}},
			closers:     []func(context.Context) error{func(context.Context) error { return client.Close() }},
		}, nil
	default:
		return &stores{
			calendars:   memory.NewAvailabilityRepository(),
			rentals:     memory.NewRentalRepository(),
			dogs:        memory.NewDogRepository(),
			outbox:      memory.NewOutbox(),
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			inbox:       memory.NewInbox(),
		}, nil
	}
}

func mongoStores(ctx context.Context, cfg config.Config, client *mongodb.Client) (*stores, error) {
	st := &stores{
		calendars: mongodb.NewAvailabilityRepository(client.DB),
		dogs:      mongodb.NewDogRepository(client.DB),
		checks:    []obs.Check{{Name: "mongo", Ping: client.Ping}},
		closers:   []func(context.Context) error{client.Close},
	}
	var err error
	if st.rentals, err = mongodb.NewRentalRepository(ctx, client.DB); err != nil {
		return nil, err
	}
	if st.outbox, err = infraoutbox.NewStore(ctx, client.DB); err != nil {
		return nil, err
	}
	if st.idempotency, err = mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL); err != nil {
		return nil, err
	}
	if st.inbox, err = inbox.NewStore(ctx, client.DB, cfg.ConsumerGroup); err != nil {
		return nil, err
	}
	return st, nil
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}

type dogFixture struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"owner_id"`
	Name      string  `json:"name"`
	DailyRate float64 `json:"daily_rate"`
}

// loadDogFixtures seeds dogs for local runs. Existing dogs are left as they
// are.
func (a *application) loadDogFixtures(ctx context.Context, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("dog fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []dogFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	now := time.Now().UTC()
	for _, fx := range fixtures {
		if _, err := a.dogs.ByID(ctx, dog.ID(fx.ID)); err == nil {
			continue
		}
		d := &dog.Dog{
			ID:          dog.ID(fx.ID),
			OwnerID:     fx.OwnerID,
			Name:        fx.Name,
			DailyRate:   fx.DailyRate,
			IsAvailable: true,
			Status:      dog.StatusAvailable,
			UpdatedAt:   now,
		}
		if err := a.dogs.Save(ctx, d); err != nil {
			logger.Error("cannot store fixture dog", "dog_id", fx.ID, "error", err)
			continue
		}
		logger.Info("dog fixture imported", "dog_id", fx.ID)
	}
	return nil
}
