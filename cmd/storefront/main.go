package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cartcache "github.com/fjod/quickcart/internal/cart/cache"
	"github.com/fjod/quickcart/internal/cart/poller"
	cartrepo "github.com/fjod/quickcart/internal/cart/repository"
	cartservice "github.com/fjod/quickcart/internal/cart/service"
	gatewayhttp "github.com/fjod/quickcart/internal/gateway/http"
	"github.com/fjod/quickcart/internal/orders/adapter"
	"github.com/fjod/quickcart/internal/orders/lock"
	"github.com/fjod/quickcart/internal/orders/publisher"
	ordersrepo "github.com/fjod/quickcart/internal/orders/repository"
	orderservice "github.com/fjod/quickcart/internal/orders/service"
	productrepo "github.com/fjod/quickcart/internal/product/repository"
	"github.com/fjod/quickcart/pkg/clock"
	"github.com/fjod/quickcart/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Service: "storefront",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("storefront stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("storefront stopped")
}

func run(ctx context.Context, cfg *Config, log *slog.Logger) error {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	// Catalog
	products, err := productrepo.NewRepository(cfg.ProductDBPath)
	if err != nil {
		return fmt.Errorf("product db: %w", err)
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.ProductMigrationsPath); err != nil {
		return fmt.Errorf("product migrations: %w", err)
	}
	log.Info("product catalog ready", "path", cfg.ProductDBPath)

	// Carts
	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cartrepo.MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDBName})
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoDB.Client().Disconnect(disconnectCtx)
	}()
	carts := cartrepo.NewMongoRepository(mongoDB)
	if err := carts.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("cart indexes: %w", err)
	}
	log.Info("connected to MongoDB", "database", cfg.MongoDBName)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	log.Info("redis ping succeeded", "addr", cfg.RedisAddr)

	cartService := cartservice.NewCartService(carts, cartcache.NewRedisCache(redisClient), log)

	// Orders
	orders, err := ordersrepo.NewRepository(&cfg.Postgres)
	if err != nil {
		return fmt.Errorf("orders db: %w", err)
	}
	defer orders.Close()
	if err := orders.RunMigrations(&cfg.Postgres); err != nil {
		return fmt.Errorf("orders migrations: %w", err)
	}
	log.Info("orders database migrations completed")

	orderService := orderservice.NewOrderService(
		orders,
		adapter.NewCatalog(products, cfg.CatalogTimeout, log),
		lock.NewRedisLocker(redisClient, "lock:checkout:", lock.Options{TTL: cfg.LockTTL, Wait: cfg.LockWait}),
		clock.NewSystem(),
		log,
	)

	// The order-placed consumer clears carts when Kafka runs; otherwise
	// checkout does it inline.
	var checkoutClearer gatewayhttp.CartClearer = cartService
	if cfg.KafkaEnabled {
		checkoutClearer = nil
	}

	router := gatewayhttp.NewRouter(gatewayhttp.RouterConfig{
		Auth:           gatewayhttp.NewTokenAuth(cfg.JWTSecret, cfg.JWTIssuer, cfg.AuthDevHeader),
		Cart:           gatewayhttp.NewCartHandler(cartService, products, cfg.RequestTimeout, log),
		Checkout:       gatewayhttp.NewCheckoutHandler(orderService, checkoutClearer, cfg.RequestTimeout, log),
		Orders:         gatewayhttp.NewOrdersHandler(orderService, cfg.RequestTimeout),
		Products:       gatewayhttp.NewProductHandler(products, cfg.RequestTimeout),
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("gRPC health server starting", "port", cfg.GRPCPort)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return grpcServer.Serve(lis)
	})

	if cfg.KafkaEnabled {
		outbox := publisher.NewOutboxPoller(orders, log, cfg.OrdersTopic, cfg.KafkaBrokers...)
		consumer := poller.NewPoller(cartService, log, cfg.OrdersTopic, cfg.KafkaBrokers...)

		g.Go(func() error {
			defer outbox.Close()
			outbox.Run(gctx)
			return nil
		})
		g.Go(func() error {
			defer consumer.Close()
			consumer.Run(gctx)
			return nil
		})
		log.Info("kafka workers started", "brokers", cfg.KafkaBrokers, "topic", cfg.OrdersTopic)
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
