package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Venue    VenueConfig
	Auth     AuthConfig
	POS      POSConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DSN builds the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

type RedisConfig struct {
	Addr    string
	LockTTL time.Duration
}

type KafkaConfig struct {
	Brokers      []string
	LoyaltyTopic string
	Enabled      bool
}

// VenueConfig is the single source of truth for the combo constants. The
// multiplier and the coupon face value used to be duplicated across the POS
// clients with drifting values; they are configured once here.
type VenueConfig struct {
	ComboMultiplier int
	CouponFaceValue int
	Timezone        string
}

// Location resolves the venue timezone; ticket expiry is by calendar day in
// this location, not a rolling 24h window.
func (v VenueConfig) Location() *time.Location {
	loc, err := time.LoadLocation(v.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type AuthConfig struct {
	JWTSecret string
}

type POSConfig struct {
	StoreURL       string
	QueuePath      string
	RequestTimeout time.Duration
	OperatorName   string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "pos_user"),
			Password:     getEnv("DB_PASSWORD", "pos_pass"),
			Database:     getEnv("DB_NAME", "pos_tickets"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			LockTTL: time.Duration(getEnvInt("VERIFY_LOCK_TTL_SECONDS", 10)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:      []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			LoyaltyTopic: getEnv("KAFKA_TOPIC_LOYALTY", "venue.loyalty.points"),
			Enabled:      getEnvBool("KAFKA_ENABLED", true),
		},
		Venue: VenueConfig{
			ComboMultiplier: getEnvInt("COMBO_MULTIPLIER", 6),
			CouponFaceValue: getEnvInt("COUPON_FACE_VALUE", 100),
			Timezone:        getEnv("VENUE_TIMEZONE", "Asia/Kolkata"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		POS: POSConfig{
			StoreURL:       getEnv("TICKET_SERVICE_URL", "http://localhost:8080"),
			QueuePath:      getEnv("POS_QUEUE_PATH", "pos-queue.db"),
			RequestTimeout: time.Duration(getEnvInt("POS_REQUEST_TIMEOUT_SECONDS", 5)) * time.Second,
			OperatorName:   getEnv("POS_OPERATOR", "counter-1"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
