package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	emailadapter "eventcheckout/internal/adapters/email"
	"eventcheckout/internal/adapters/listsync"
	mongoadapter "eventcheckout/internal/adapters/mongo"
	"eventcheckout/internal/adapters/payment"
	"eventcheckout/internal/adapters/postgres"
	rabbitadapter "eventcheckout/internal/adapters/rabbit"
	redisadapter "eventcheckout/internal/adapters/redis"
	"eventcheckout/internal/checkout"
	"eventcheckout/internal/config"
	"eventcheckout/internal/domain"
	httphandler "eventcheckout/internal/http"
	"eventcheckout/internal/observability"
	"eventcheckout/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewRepository(pool, cfg.LockTimeout)
	events := postgres.NewEventStore(repo)
	vouchers := postgres.NewVoucherStore(repo)
	registrations := postgres.NewRegistrationStore(repo)

	if cfg.SeedFile != "" {
		if err := seedEvents(context.Background(), events, cfg.SeedFile); err != nil {
			log.Fatalf("failed to seed events: %v", err)
		}
	}

	var cache checkout.AvailabilityCache
	var rl *ratelimit.RateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		redisCache := redisadapter.NewCache(redisClient, cfg.AvailCacheTTL)
		cache = redisCache
		rl = ratelimit.NewRateLimiter(redisCache)
	}

	effects := checkout.SideEffects{
		Mailer: emailadapter.NewMailer(emailadapter.Config{
			Provider:    cfg.EmailProvider,
			FromAddress: cfg.EmailFrom,
			FromName:    cfg.EmailFromName,
			SES: emailadapter.SESConfig{
				Region:          cfg.SESRegion,
				AccessKeyID:     cfg.SESAccessKey,
				SecretAccessKey: cfg.SESSecretKey,
			},
		}, logger),
	}
	if cfg.ListSyncURL != "" {
		effects.Contacts = listsync.NewClient(cfg.ListSyncURL, cfg.ListSyncAPIKey, cfg.ListSyncListID)
	}

	if cfg.RabbitURL != "" {
		rabbitConn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer rabbitConn.Close()
		publisher, err := rabbitadapter.NewPublisher(rabbitConn)
		if err != nil {
			log.Fatalf("failed to create publisher: %v", err)
		}
		effects.Publisher = publisher
	}

	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		effects.Auditor = mongoadapter.NewAuditLogger(mongoClient.Database("eventcheckout"), logger)
	}

	gateway := payment.NewClient(cfg.GatewayURL, cfg.GatewayWebhookSecret)

	svc := checkout.NewService(
		events, vouchers, registrations, gateway, cache, effects,
		checkout.URLs{Success: cfg.CheckoutSuccessURL, Cancel: cfg.CheckoutCancelURL},
		logger,
	)

	handlers := httphandler.NewHandlers(svc, logger)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}

// seedEvents inserts the configured events. Existing rows are left
// untouched so sold_count survives restarts.
func seedEvents(ctx context.Context, store *postgres.EventStore, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var seeds []struct {
		ID            string    `json:"event_id"`
		Name          string    `json:"name"`
		Date          time.Time `json:"date"`
		TotalCapacity int       `json:"total_capacity"`
		PriceCents    int64     `json:"price_cents"`
	}
	if err := json.Unmarshal(data, &seeds); err != nil {
		return err
	}
	for _, s := range seeds {
		err := store.EnsureEvent(ctx, domain.Event{
			ID:            s.ID,
			Name:          s.Name,
			Date:          s.Date,
			TotalCapacity: s.TotalCapacity,
			PriceCents:    s.PriceCents,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
