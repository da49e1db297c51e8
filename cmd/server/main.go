package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"gatepass/visits/internal/config"
	"gatepass/visits/internal/db"
	"gatepass/visits/internal/directory"
	internalhttp "gatepass/visits/internal/http"
	"gatepass/visits/internal/jobs"
	"gatepass/visits/internal/notify"
	"gatepass/visits/internal/operations"
	"gatepass/visits/internal/token"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	dir := directory.New(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
	}

	issuer := token.NewIssuer(cfg.PassSecret, cfg.PassTTL)
	index := token.NewIndex(redisClient)

	registry := notify.NewRegistry(notify.NewInAppChannel())
	for name, url := range map[string]string{
		notify.ChannelEmail: cfg.EmailChannelURL,
		notify.ChannelSMS:   cfg.SMSChannelURL,
		notify.ChannelPush:  cfg.PushChannelURL,
	} {
		if url == "" {
			continue
		}
		ch, err := notify.NewShoutrrrChannel(name, url, cfg.ChannelSendTimeout)
		if err != nil {
			log.Fatalf("channel %s init failed: %v", name, err)
		}
		registry.Register(ch)
	}

	notifyRepo := notify.NewRepository(pool)
	engine := notify.NewEngine(notifyRepo, registry, func(ctx context.Context, userID string) (bool, error) {
		_, ok, err := dir.FindUser(ctx, userID)
		return ok, err
	}, notify.Options{
		TTL:         cfg.NotificationTTL,
		MaxRetries:  cfg.NotificationMaxRetries,
		SendTimeout: cfg.ChannelSendTimeout,
		BatchSize:   cfg.NotificationBatchSize,
	})

	service := operations.NewService(store, dir, issuer, index, engine)

	server := internalhttp.NewServer(cfg, service, engine, notifyRepo, dir)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	jobs.StartNotificationSweepJob(ctx, cfg, engine)
	jobs.StartNotificationRetryJob(ctx, cfg, engine)
	jobs.StartNotificationCleanupJob(ctx, cfg, engine)
	jobs.StartVisitExpiryJob(ctx, cfg, service)

	go func() {
		log.Printf("gatepass http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
