package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"train-station/internal/analytics"
	analytics_api "train-station/internal/analytics/api"
	"train-station/internal/auth"
	"train-station/internal/config"
	"train-station/internal/database"
	"train-station/internal/database/migrations"
	"train-station/internal/docs"
	"train-station/internal/kafka"
	"train-station/internal/logger"
	"train-station/internal/network"
	networkdb "train-station/internal/network/db"
	"train-station/internal/network/network_api"
	"train-station/internal/order"
	orderdb "train-station/internal/order/db"
	orderkafka "train-station/internal/order/kafka"
	"train-station/internal/order/order_api"
	rediswrap "train-station/internal/order/redis"
	"train-station/internal/tickets/qr"
	"train-station/internal/trip"
	tripdb "train-station/internal/trip/db"
	"train-station/internal/trip/trip_api"
	"train-station/internal/user"
	userdb "train-station/internal/user/db"
	"train-station/internal/user/user_api"
	"train-station/internal/utils"
)

// requestLogger records every request through the API log category.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, r.URL.Path, status, time.Since(start))
		})
	}
}

func healthHandler(bunDB *bun.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"database": "ok", "redis": "ok"}
		status := http.StatusOK
		if err := database.Ping(r.Context(), bunDB); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		_ = utils.WriteJSON(w, status, checks)
	}
}

func setupKafka(cfg config.KafkaConfig, log *logger.Logger) (*kafka.Producer, *orderkafka.Producer) {
	if !cfg.Enabled {
		log.Info("KAFKA", "Kafka disabled, order events will not be published")
		return nil, nil
	}
	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %s", strings.Join(cfg.Brokers, ",")))
	requiredTopics := []string{cfg.Topics.OrderCreated, cfg.Topics.OrderDeleted}
	if err := kafka.EnsureTopicsExist(cfg.Brokers, requiredTopics, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}
	client := kafka.NewProducer(cfg.Brokers, log)
	log.Info("KAFKA", "Kafka producer initialized successfully")
	return client, orderkafka.NewProducer(client, cfg.Topics)
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger(cfg.LogDir)
	defer log.Close()

	log.Info("APP", "Starting train station service initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("CONFIG", "JWT_SECRET not set")
	}
	if cfg.QRSecret == "" {
		log.Warn("CONFIG", "QR_SECRET_KEY not set, deriving QR codes from JWT_SECRET")
		cfg.QRSecret = cfg.Auth.JWTSecret
	}

	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open database: %v", err))
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate && !strings.HasPrefix(cfg.Database.DSN, "sqlite:") {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.Database.MigrationsDir}, log)
		if err := runner.Initialize(); err != nil {
			log.Fatal("MIGRATION", fmt.Sprintf("Failed to initialize migrations: %v", err))
		}
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATION", fmt.Sprintf("Failed to run migrations: %v", err))
		}
	}

	redisClient, err := auth.InitializeRedis(ctx, cfg.Redis.Addr, log)
	if err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()

	kafkaClient, orderEvents := setupKafka(cfg.Kafka, log)
	if kafkaClient != nil {
		defer kafkaClient.Close()
	}

	users := &userdb.DB{Bun: bunDB}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, auth.NewRedisTokenCache(redisClient), users)

	userService := user.NewUserService(users, tokens, log)
	networkService := network.NewNetworkService(&networkdb.DB{Bun: bunDB}, cfg.Media.Root, log)
	tripService := trip.NewTripService(&tripdb.DB{Bun: bunDB}, log)
	var events order.KafkaPublisher
	if orderEvents != nil {
		events = orderEvents
	}
	orderService := order.NewOrderService(
		&orderdb.DB{Bun: bunDB},
		rediswrap.NewSeatHolds(redisClient, cfg.Redis.SeatHoldTTL, log),
		events,
		qr.NewQRGenerator(cfg.QRSecret),
		log,
	)
	analyticsService := analytics.NewService(analytics.NewDB(bunDB), log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler(bunDB, redisClient))
	r.Get("/api/schema/", docs.Handler)
	mediaURL := "/" + strings.Trim(cfg.Media.URL, "/") + "/"
	r.Handle(mediaURL+"*", http.StripPrefix(mediaURL, http.FileServer(http.Dir(cfg.Media.Root))))

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokens, log))
		log.Info("AUTH", "JWT middleware applied to API routes")

		r.Route("/station", func(r chi.Router) {
			network_api.NewHandler(networkService, cfg.Media.URL, log).RegisterRoutes(r)
			trip_api.NewHandler(tripService, log).RegisterRoutes(r)
			order_api.NewHandler(orderService, log).RegisterRoutes(r)
			analytics_api.NewHandler(analyticsService, log).RegisterRoutes(r)
		})
		log.Info("ROUTER", "Station routes registered under /station")

		user_api.NewHandler(userService, tokens, log).RegisterRoutes(r)
		log.Info("ROUTER", "User routes registered under /user")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Train station service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Train station service shutdown complete")
	}
}
