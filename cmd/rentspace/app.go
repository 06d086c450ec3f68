package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rentspace/internal/app/commands"
	"rentspace/internal/app/dto"
	bookingapp "rentspace/internal/app/handlers/booking"
	refundsapp "rentspace/internal/app/handlers/refunds"
	walletapp "rentspace/internal/app/handlers/wallet"
	"rentspace/internal/app/middleware"
	"rentspace/internal/app/outbox"
	"rentspace/internal/app/policies"
	"rentspace/internal/app/queries"
	"rentspace/internal/app/uow"
	"rentspace/internal/domain/cancellation"
	"rentspace/internal/domain/fees"
	domainlistings "rentspace/internal/domain/listings"
	"rentspace/internal/infra/broker/kafka"
	"rentspace/internal/infra/config"
	mongodb "rentspace/internal/infra/db/mongo"
	"rentspace/internal/infra/db/postgres"
	ginserver "rentspace/internal/infra/http/gin"
	"rentspace/internal/infra/obs"
	infraoutbox "rentspace/internal/infra/outbox"
	"rentspace/internal/infra/payments"
	"rentspace/internal/infra/pricing"
	boltstore "rentspace/internal/infra/storage/bolt"
	"rentspace/internal/infra/storage/memory"
	"rentspace/internal/infra/storage/s3"
)

type application struct {
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	relay    *infraoutbox.Worker
	listings domainlistings.ListingRepository
	closers  []func(context.Context) error
}

// relayOutbox is an outbox the commands write to and the relay drains.
type relayOutbox interface {
	outbox.Outbox
	infraoutbox.Store
	Wake() <-chan struct{}
}

type storage struct {
	factory     uow.UoWFactory
	listings    domainlistings.ListingRepository
	outbox      relayOutbox
	idempotency middleware.IdempotencyStore
	checks      map[string]func(context.Context) error
	closers     []func(context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	table, err := pricing.LoadFeeTable(cfg.FeeScheduleOverrides, fees.DefaultTable(), logger)
	if err != nil {
		return nil, err
	}
	feeEngine := fees.NewEngine(table)

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app := &application{listings: store.listings, closers: store.closers}

	paymentsPort, sandbox, err := openPayments(cfg)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	receipts := openReceipts(cfg, logger)
	producer, err := openProducer(cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	if closer, ok := producer.(*kafka.Producer); ok {
		app.closers = append(app.closers, func(context.Context) error { return closer.Close() })
	}

	encoder := outbox.JSONEventEncoder{}
	factory := store.factory

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.RequestBookingCommand, *bookingapp.RequestBookingResult](commandBus, bookingapp.RequestBookingCommand{}.Key(),
		&bookingapp.RequestBookingHandler{UoWFactory: factory, Encoder: encoder, Logger: logger})
	commands.RegisterHandler[bookingapp.CreatePaymentIntentCommand, *bookingapp.PaymentIntentResult](commandBus, bookingapp.CreatePaymentIntentCommand{}.Key(),
		&bookingapp.CreatePaymentIntentHandler{UoWFactory: factory, Fees: feeEngine, Payments: paymentsPort, Encoder: encoder, Logger: logger})
	commands.RegisterHandler[bookingapp.ConfirmPaymentCommand, *bookingapp.ConfirmPaymentResult](commandBus, bookingapp.ConfirmPaymentCommand{}.Key(),
		&bookingapp.ConfirmPaymentHandler{UoWFactory: factory, Payments: paymentsPort, Receipts: receipts, Encoder: encoder, Logger: logger})
	commands.RegisterHandler[refundsapp.RequestRefundCommand, *refundsapp.RefundOutcome](commandBus, refundsapp.RequestRefundCommand{}.Key(),
		&refundsapp.RequestRefundHandler{
			UoWFactory:       factory,
			Policy:           cancellation.Default(),
			Payments:         paymentsPort,
			Encoder:          encoder,
			Logger:           logger,
			Retry:            refundsapp.RetryPolicy{MaxAttempts: cfg.RefundMaxAttempts, Backoff: cfg.RefundRetryBackoff},
			RefundServiceFee: cfg.RefundServiceFee,
		})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[bookingapp.QuoteFeesQuery, *bookingapp.QuoteResult](queryBus, bookingapp.QuoteFeesQuery{}.Key(),
		&bookingapp.QuoteFeesHandler{UoWFactory: factory, Fees: feeEngine, Logger: logger})
	queries.RegisterHandler[bookingapp.GetBookingQuery, dto.BookingDTO](queryBus, bookingapp.GetBookingQuery{}.Key(),
		&bookingapp.GetBookingHandler{UoWFactory: factory})
	queries.RegisterHandler[bookingapp.ListBookingsQuery, bookingapp.BookingCollection](queryBus, bookingapp.ListBookingsQuery{}.Key(),
		&bookingapp.ListBookingsHandler{UoWFactory: factory})
	queries.RegisterHandler[walletapp.HostWalletQuery, dto.WalletDTO](queryBus, walletapp.HostWalletQuery{}.Key(),
		&walletapp.HostWalletHandler{UoWFactory: factory})

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Logging(logger),
		middleware.Validation(middleware.SelfValidator{}),
		middleware.Idempotency(store.idempotency, middleware.IdempotencyOptions{TTL: cfg.IdempotencyTTL}),
		middleware.OutboxFlush(store.outbox, logger),
		middleware.Transaction(factory, nil),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryLogging(logger),
		middleware.QueryValidation(middleware.SelfValidator{}),
	)

	app.handlers = ginserver.Handlers{
		Booking: ginserver.BookingHandler{Commands: commandBusWithMiddleware, Queries: queryBusWithMiddleware, Logger: logger},
		Refund:  ginserver.RefundHandler{Commands: commandBusWithMiddleware, Logger: logger},
		Wallet:  ginserver.WalletHandler{Queries: queryBusWithMiddleware, Logger: logger},
	}
	if sandbox != nil {
		app.handlers.Sandbox = ginserver.SandboxHandler{Payments: sandbox, Logger: logger}
	}
	app.health = obs.HealthHandlers{Checks: store.checks}
	app.relay = &infraoutbox.Worker{
		Store:       store.outbox,
		Producer:    producer,
		Logger:      logger,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Wake:        store.outbox.Wake(),
	}
	return app, nil
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.StorageDriver {
	case config.StorageMongo:
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return storage{}, fmt.Errorf("connect mongo: %w", err)
		}
		db := client.DB
		outboxStore := mongodb.NewOutboxStore(db)
		listings := mongodb.NewListingRepository(db)
		idempotency := mongodb.NewIdempotencyStore(db, cfg.IdempotencyTTL)
		if err := idempotency.EnsureIndexes(ctx); err != nil {
			logger.Warn("idempotency index not created", "error", err)
		}
		logger.Info("storage ready", "driver", cfg.StorageDriver, "database", cfg.MongoDB)
		return storage{
			factory: mongodb.Factory{
				DB:           db,
				ListingsRepo: listings,
				BookingRepo:  mongodb.NewBookingRepository(db),
				WalletRepo:   mongodb.NewWalletRepository(db),
				OutboxStore:  outboxStore,
			},
			listings:    listings,
			outbox:      outboxStore,
			idempotency: idempotency,
			checks:      map[string]func(context.Context) error{"mongo": client.Ping},
			closers:     []func(context.Context) error{client.Close},
		}, nil

	case config.StoragePostgres:
		if cfg.AutoMigrate {
			if err := postgres.RunMigrations(cfg.PostgresURL, logger); err != nil {
				return storage{}, err
			}
		}
		pool, err := postgres.NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			return storage{}, err
		}
		outboxStore := postgres.NewOutboxStore(pool)
		listings := postgres.NewListingRepository(pool)
		logger.Info("storage ready", "driver", cfg.StorageDriver)
		return storage{
			factory: postgres.Factory{
				Pool:         pool,
				ListingsRepo: listings,
				BookingRepo:  postgres.NewBookingRepository(pool),
				WalletRepo:   postgres.NewWalletRepository(pool),
				OutboxStore:  outboxStore,
			},
			listings:    listings,
			outbox:      outboxStore,
			idempotency: postgres.NewIdempotencyStore(pool),
			checks:      map[string]func(context.Context) error{"postgres": pool.Ping},
			closers: []func(context.Context) error{func(context.Context) error {
				pool.Close()
				return nil
			}},
		}, nil

	default:
		outboxStore := memory.NewOutbox()
		listings := memory.NewListingRepository()
		st := storage{
			factory: memory.Factory{
				ListingsRepo: listings,
				BookingRepo:  memory.NewBookingRepository(),
				WalletRepo:   memory.NewWalletRepository(),
				OutboxStore:  outboxStore,
			},
			listings:    listings,
			outbox:      outboxStore,
			idempotency: memory.NewIdempotencyStore(),
		}
		// A bolt file keeps idempotency keys across restarts of a single node.
		if cfg.BoltPath != "" {
			bs, err := boltstore.Open(cfg.BoltPath)
			if err != nil {
				return storage{}, fmt.Errorf("open bolt %s: %w", cfg.BoltPath, err)
			}
			st.idempotency = bs
			st.closers = append(st.closers, func(context.Context) error { return bs.Close() })
		}
		logger.Info("storage ready", "driver", config.StorageMemory, "bolt", cfg.BoltPath != "")
		return st, nil
	}
}

// openPayments returns the sandbox separately so its capture endpoint can be mounted.
func openPayments(cfg config.Config) (policies.PaymentsPort, *payments.Sandbox, error) {
	if cfg.PaymentsProvider == config.PaymentsStripe {
		stripe, err := payments.NewStripe(cfg.StripeSecretKey)
		if err != nil {
			return nil, nil, err
		}
		return stripe, nil, nil
	}
	sandbox := payments.NewSandbox(cfg.SandboxAutoCapture)
	return sandbox, sandbox, nil
}

func openReceipts(cfg config.Config, logger *slog.Logger) policies.ReceiptArchive {
	if cfg.S3Endpoint == "" {
		return s3.NoopArchive{}
	}
	archive, err := s3.NewReceiptArchive(s3.Options{
		Endpoint:  cfg.S3Endpoint,
		UseSSL:    cfg.S3UseSSL,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
	}, logger)
	if err != nil {
		logger.Warn("receipt archive disabled", "error", err)
		return s3.NoopArchive{}
	}
	return archive
}

func openProducer(cfg config.Config, logger *slog.Logger) (infraoutbox.Producer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return infraoutbox.LogProducer{Logger: logger}, nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig("rentspace"))
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}
