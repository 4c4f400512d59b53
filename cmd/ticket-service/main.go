package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"pos-ticketing/internal/auth"
	"pos-ticketing/internal/config"
	"pos-ticketing/internal/database/migrations"
	"pos-ticketing/internal/logger"
	"pos-ticketing/internal/loyalty"
	"pos-ticketing/internal/sse"
	ticket_db "pos-ticketing/internal/tickets/db"
	ticket_redis "pos-ticketing/internal/tickets/redis"
	tickets "pos-ticketing/internal/tickets/service"
	"pos-ticketing/internal/tickets/ticket_api"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN())
		if err == nil {
			err = sqldb.Ping()
		}
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable, verify locking disabled: %v", err))
		return nil
	}
	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger("ticket-service")
	defer log.Close()

	log.Info("APP", "Starting Ticket Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Info("CONFIG", "No .env file found, using environment")
	}
	cfg := config.Load()

	ctx := context.Background()
	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
	}
	log.Info("DATABASE", "Schema migrations applied")

	service := tickets.NewTicketService(&ticket_db.DB{Bun: bunDB}, cfg.Venue, log)

	if rdb := connectRedis(ctx, cfg.Redis, log); rdb != nil {
		defer rdb.Close()
		service.Lock = ticket_redis.NewVerifyLock(rdb, cfg.Redis.LockTTL)
	}

	if cfg.Kafka.Enabled {
		if err := loyalty.EnsureTopic(cfg.Kafka.Brokers, cfg.Kafka.LoyaltyTopic); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Failed to ensure loyalty topic: %v", err))
		}
		producer := loyalty.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.LoyaltyTopic)
		defer producer.Close()
		service.Loyalty = producer
		log.Info("KAFKA", fmt.Sprintf("Loyalty accrual publishing to %s", cfg.Kafka.LoyaltyTopic))
	} else {
		log.Warn("KAFKA", "Kafka disabled, loyalty accrual events are off")
	}

	emitter := sse.NewRedemptionEventEmitter()
	service.Emitter = emitter

	handler := ticket_api.NewHandler(service, emitter, log)

	r := chi.NewRouter()
	r.Route("/tickets", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth.JWTSecret, auth.RoleOperator, auth.RoleAdmin))
			r.Post("/", handler.CreateTickets)
			r.Get("/stats", handler.Stats)
			r.Get("/{ticketID}", handler.GetTicket)
			r.Post("/{ticketID}/verify", handler.VerifyTicket)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth.JWTSecret, auth.RoleAdmin))
			r.Delete("/clear-all", handler.ClearAll)
		})
		r.Get("/events", handler.Events)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("APP", fmt.Sprintf("Ticket Service listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("APP", fmt.Sprintf("HTTP error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctxShutdown)
	log.Info("APP", "Ticket service shutdown complete")
}
