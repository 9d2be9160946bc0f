package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"epharmacy-auth/internal/config"
	"epharmacy-auth/internal/db"
	"epharmacy-auth/internal/email"
	apihttp "epharmacy-auth/internal/http"
	"epharmacy-auth/internal/repository"
	"epharmacy-auth/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	identityRepo := repository.NewPgIdentityRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var (
		resendLimiter   service.ResendRateLimiter
		revocationStore service.RevocationStore
		redisClient     *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			resendLimiter = service.NewRedisResendRateLimiter(redisClient, time.Duration(cfg.ResendWindowMinutes)*time.Minute, cfg.ResendMaxPerWindow)
			revocationStore = service.NewRedisRevocationStore(redisClient)
		}
		cancel()
	}

	tokenSvc := service.NewTokenServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLHours)*time.Hour,
		revocationStore,
	)

	verificationSvc := service.NewVerificationService(
		logger,
		identityRepo,
		emailSender,
		resendLimiter,
		cfg.VerificationLinkBase,
		time.Duration(cfg.VerificationTTLHours)*time.Hour,
	)
	authSvc := service.NewAuthService(logger, identityRepo, tokenSvc, verificationSvc)

	authHandler := apihttp.NewAuthHandler(logger, authSvc, verificationSvc)
	router := apihttp.NewRouter(logger, authHandler, tokenSvc, pool)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
