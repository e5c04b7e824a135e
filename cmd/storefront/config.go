package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/quickcart/internal/cart/poller"
	"github.com/fjod/quickcart/internal/orders/repository"
)

type Config struct {
	Env      string
	LogLevel string

	HTTPPort        string
	GRPCPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	JWTSecret     string
	JWTIssuer     string
	AuthDevHeader bool

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	Postgres repository.Credentials

	ProductDBPath         string
	ProductMigrationsPath string
	CatalogTimeout        time.Duration

	LockTTL  time.Duration
	LockWait time.Duration

	KafkaEnabled bool
	KafkaBrokers []string
	OrdersTopic  string
}

const (
	envDevelopment = "development"
	devJWTSecret   = "dev-secret"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set outside development")

func loadConfig() (*Config, error) {
	env := getEnv("APP_ENV", envDevelopment)
	if os.Getenv("JWT_SECRET") == "" && env != envDevelopment {
		return nil, fmt.Errorf("%w (APP_ENV=%s)", ErrMissingJWTSecret, env)
	}

	pgPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Env:      env,
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		GRPCPort:        getEnv("GRPC_PORT", "50050"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		JWTSecret:     getEnv("JWT_SECRET", devJWTSecret),
		JWTIssuer:     getEnv("JWT_ISSUER", "quickcart"),
		AuthDevHeader: getEnvBool("AUTH_DEV_HEADER", false),

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "cartdb"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		Postgres: repository.Credentials{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              pgPort,
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "ecommerce"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MigrationsDirPath: getEnv("ORDERS_MIGRATIONS_PATH", "./internal/orders/repository/migrations"),
		},

		ProductDBPath:         getEnv("PRODUCT_DB_PATH", "./products.db"),
		ProductMigrationsPath: getEnv("PRODUCT_MIGRATIONS_PATH", "./internal/product/repository/migrations"),
		CatalogTimeout:        getEnvDuration("CATALOG_TIMEOUT", 2*time.Second),

		LockTTL:  getEnvDuration("CHECKOUT_LOCK_TTL", 10*time.Second),
		LockWait: getEnvDuration("CHECKOUT_LOCK_WAIT", 5*time.Second),

		KafkaEnabled: getEnvBool("KAFKA_ENABLED", true),
		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		OrdersTopic:  getEnv("ORDERS_TOPIC", poller.DefaultTopic),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}
