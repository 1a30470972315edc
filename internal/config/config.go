package config

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jamilsaadou/naneye-sub000/internal/config/connections/mongo"
	"github.com/jamilsaadou/naneye-sub000/internal/config/connections/postgres"
	"github.com/jamilsaadou/naneye-sub000/internal/config/connections/redis"
	"github.com/jamilsaadou/naneye-sub000/internal/config/connections/s3"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	S3       *s3.S3
	Mongo    *mongo.Mongo
	Postgres *postgres.Postgres
	Redis    *redis.Redis // nil when REDIS_ADDR is unset

	// SecretKey decrypts collector HMAC secrets stored at rest.
	SecretKey []byte

	RateLimitPerWindow int
	RateLimitWindow    time.Duration

	// ExternalPaymentMax is the sanity ceiling for collector-reported amounts.
	ExternalPaymentMax decimal.Decimal
}

func Init(ctx context.Context) *Config {
	_ = godotenv.Load()
	port := getenv("SERVER_PORT", "8070")

	s3c, err := s3.NewConnection(s3.ConnectionInfo{
		Endpoint:  getenv("AWS_ENDPOINT", "http://localhost:9000"),
		AccessKey: getenv("AWS_ACCESS_KEY_ID", "minioadmin"),
		SecretKey: getenv("AWS_SECRET_ACCESS_KEY", "minioadmin"),
		Region:    getenv("AWS_DEFAULT_REGION", "us-east-1"),
		Bucket:    getenv("AWS_BUCKET", "proofs"),
		UseSSL:    getenv("AWS_USE_SSL", "false") == "true",
	})
	if err != nil {
		log.Fatal("S3 connect error:", err)
	}

	mg, err := mongo.NewConnection(ctx, mongo.ConnectionInfo{
		Scheme:      getenv("MONGO_SCHEME", "mongodb"),
		User:        getenv("MONGO_USER", "root"),
		Password:    getenv("MONGO_PASSWORD", "secret"),
		Host:        getenv("MONGO_HOST", "127.0.0.1"),
		Port:        getenv("MONGO_PORT", "27017"),
		DB:          getenv("MONGO_DB", "notice_logs"),
		AuthSource:  getenv("MONGO_AUTH_SOURCE", "admin"),
		MaxPoolSize: uint64(getenvInt("MONGO_MAX_POOL", 0)),
	})
	if err != nil {
		log.Fatal("Mongo connect error:", err)
	}

	pg, err := postgres.NewConnection(ctx, postgres.ConnectionInfo{
		Host:     getenv("PG_HOST", "127.0.0.1"),
		Port:     getenv("PG_PORT", "5432"),
		User:     getenv("PG_USER", "root"),
		Password: getenv("PG_PASSWORD", "hello-world"),
		DB:       getenv("PG_DB", "notices"),
		SSLMode:  getenv("PG_SSLMODE", "disable"),
		MaxConns: int32(getenvInt("PG_MAX_CONNS", 0)),
	})
	if err != nil {
		log.Fatal("Postgres connect error:", err)
	}

	var rd *redis.Redis
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rd, err = redis.NewConnection(ctx, redis.ConnectionInfo{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getenvInt("REDIS_DB", 0),
		})
		if err != nil {
			log.Fatal("Redis connect error:", err)
		}
	}

	secretKey, err := hex.DecodeString(getenv("COLLECTOR_SECRET_KEY", ""))
	if err != nil || (len(secretKey) != 16 && len(secretKey) != 32) {
		log.Fatal("COLLECTOR_SECRET_KEY must be a hex-encoded 16 or 32 byte key")
	}

	maxAmount, err := decimal.NewFromString(getenv("EXTERNAL_PAYMENT_MAX", "999999999999"))
	if err != nil {
		log.Fatal("EXTERNAL_PAYMENT_MAX is not a valid decimal:", err)
	}

	window := time.Duration(getenvInt("RATE_LIMIT_WINDOW_SEC", 60)) * time.Second
	if window <= 0 {
		window = time.Minute
	}

	return &Config{
		S3:                 s3c,
		Mongo:              mg,
		Postgres:           pg,
		Redis:              rd,
		Port:               port,
		SecretKey:          secretKey,
		RateLimitPerWindow: getenvInt("RATE_LIMIT_PER_WINDOW", 60),
		RateLimitWindow:    window,
		ExternalPaymentMax: maxAmount,
	}
}

func (c *Config) CheckConnections(ctx context.Context) error {
	var errs []error

	if c.Postgres == nil || c.Postgres.Pool == nil {
		errs = append(errs, errors.New("postgres not initialized"))
	} else if err := c.Postgres.Pool.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("postgres ping failed: %w", err))
	}

	if c.Mongo == nil || c.Mongo.Client == nil {
		errs = append(errs, errors.New("mongo not initialized"))
	} else if err := c.Mongo.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("mongo ping failed: %w", err))
	}

	if c.S3 == nil || c.S3.Client == nil {
		errs = append(errs, errors.New("s3 not initialized"))
	} else if err := c.S3.EnsureBucket(ctx); err != nil {
		errs = append(errs, fmt.Errorf("s3 bucket check failed: %w", err))
	}

	if c.Redis != nil {
		if err := c.Redis.Client.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis ping failed: %w", err))
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
