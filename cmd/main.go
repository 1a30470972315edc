package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jamilsaadou/naneye-sub000/internal/adapters/proofs"
	"github.com/jamilsaadou/naneye-sub000/internal/config"
	"github.com/jamilsaadou/naneye-sub000/internal/handlers"
	"github.com/jamilsaadou/naneye-sub000/internal/ratelimit"
	"github.com/jamilsaadou/naneye-sub000/internal/repository"
	"github.com/jamilsaadou/naneye-sub000/internal/repository/auditlog"
	"github.com/jamilsaadou/naneye-sub000/internal/repository/collectorlog"
	"github.com/jamilsaadou/naneye-sub000/internal/repository/database"
	"github.com/jamilsaadou/naneye-sub000/internal/server"
	"github.com/jamilsaadou/naneye-sub000/internal/services/payments"
	"github.com/jamilsaadou/naneye-sub000/internal/services/reductions"
	auth "github.com/jamilsaadou/naneye-sub000/internal/transport/auth"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.Init(setupCtx)
	fmt.Println("✅ All connections successfully established!")

	if err := cfg.CheckConnections(setupCtx); err != nil {
		log.Fatalf("❌ Connection check failed: %v", err)
	}
	fmt.Println("🟢 All connections OK")

	store := database.NewStore(cfg.Postgres)
	audit := auditlog.NewWriter(cfg.Mongo)
	calls := collectorlog.NewWriter(cfg.Mongo)
	proofStore := proofs.NewStore(cfg.S3)

	paySvc := payments.NewService(store, audit, proofStore, cfg.ExternalPaymentMax)
	redSvc := reductions.NewService(store, audit)

	var limiter ratelimit.Limiter
	if cfg.Redis != nil {
		limiter = ratelimit.NewRedisWindow(cfg.Redis.Client, cfg.RateLimitPerWindow, cfg.RateLimitWindow)
	} else {
		limiter = ratelimit.NewWindow(cfg.RateLimitPerWindow, cfg.RateLimitWindow)
	}

	tokens := repository.NewPersonalAccessTokenRepository(cfg.Postgres)
	staffMW := auth.StaffMiddleware(tokens)
	collectorMW := auth.CollectorMiddleware(store, cfg.SecretKey, limiter, calls)

	h := handlers.New(cfg.Postgres, cfg.Mongo, cfg.S3, paySvc, redSvc, proofStore, calls)
	srv := server.NewServer(cfg.Port, server.Routes(h, staffMW, collectorMW))

	if err := srv.Run(runCtx); err != nil {
		log.Fatal(err)
	}
}
