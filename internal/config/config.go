package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN   string
	RedisAddr     string
	RabbitURL     string
	MongoURI      string
	LockTimeout   time.Duration
	AvailCacheTTL time.Duration

	GatewayURL           string
	GatewayWebhookSecret string
	CheckoutSuccessURL   string
	CheckoutCancelURL    string

	EmailProvider string
	EmailFrom     string
	EmailFromName string
	SESRegion     string
	SESAccessKey  string
	SESSecretKey  string

	ListSyncURL    string
	ListSyncAPIKey string
	ListSyncListID string

	OTLPEndpoint string
	Port         string
	SeedFile     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	lockTimeout, _ := time.ParseDuration(os.Getenv("LOCK_TIMEOUT"))
	if lockTimeout == 0 {
		lockTimeout = 3 * time.Second
	}
	cacheTTL, _ := time.ParseDuration(os.Getenv("AVAILABILITY_CACHE_TTL"))
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Second
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RabbitURL:     os.Getenv("RABBIT_URL"),
		MongoURI:      os.Getenv("MONGO_URI"),
		LockTimeout:   lockTimeout,
		AvailCacheTTL: cacheTTL,

		GatewayURL:           os.Getenv("GATEWAY_URL"),
		GatewayWebhookSecret: os.Getenv("GATEWAY_WEBHOOK_SECRET"),
		CheckoutSuccessURL:   os.Getenv("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:    os.Getenv("CHECKOUT_CANCEL_URL"),

		EmailProvider: os.Getenv("EMAIL_PROVIDER"),
		EmailFrom:     os.Getenv("EMAIL_FROM"),
		EmailFromName: os.Getenv("EMAIL_FROM_NAME"),
		SESRegion:     os.Getenv("SES_REGION"),
		SESAccessKey:  os.Getenv("SES_ACCESS_KEY_ID"),
		SESSecretKey:  os.Getenv("SES_SECRET_ACCESS_KEY"),

		ListSyncURL:    os.Getenv("LISTSYNC_URL"),
		ListSyncAPIKey: os.Getenv("LISTSYNC_API_KEY"),
		ListSyncListID: os.Getenv("LISTSYNC_LIST_ID"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Port:         port,
		SeedFile:     os.Getenv("EVENTS_SEED_FILE"),
	}, nil
}
