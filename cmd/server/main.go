package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cms-backend/internal/auth"
	"cms-backend/internal/config"
	apphttp "cms-backend/internal/http"
	"cms-backend/internal/ratelimit"
	"cms-backend/internal/service"
	"cms-backend/internal/storage"
	"cms-backend/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer repos.Close()
	if err := repos.Init(ctx); err != nil {
		logger.Fatalf("init store: %v", err)
	}

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil)
	userService, err := service.NewUserService(repos.Users, auth.NewBcryptHasher(cfg.Auth.BcryptCost), tokens)
	if err != nil {
		logger.Fatalf("setup user service: %v", err)
	}

	mirror, err := buildMirror(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup avatar mirror: %v", err)
	}

	login, closeLimiter := buildLoginLimit(ctx, cfg, logger)
	defer closeLimiter()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Services{
		Users:    userService,
		Avatars:  service.NewAvatarService(repos.Users, mirror, logger),
		Posts:    service.NewPostService(repos.Posts, repos.Users),
		Comments: service.NewCommentService(repos.Comments, repos.Posts, repos.Users),
	}, auth.NewGuard(tokens), login, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

// buildMirror returns nil when no bucket is configured.
func buildMirror(ctx context.Context, cfg config.Config, logger *logrus.Logger) (service.AvatarMirror, error) {
	if cfg.Storage.Bucket == "" {
		return nil, nil
	}

	awsCfg, err := store.LoadAWSConfig(ctx, cfg, cfg.Storage.Region)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("mirroring avatars to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewAvatarMirror(storage.NewS3Service(client), cfg.Storage.Bucket, cfg.Storage.KeyPrefix), nil
}

// buildLoginLimit prefers a shared Redis limiter and falls back to an in-process one.
func buildLoginLimit(ctx context.Context, cfg config.Config, logger *logrus.Logger) (apphttp.LoginLimit, func()) {
	login := apphttp.LoginLimit{
		Max:    cfg.RateLimit.LoginLimit,
		Window: cfg.RateLimit.LoginWindow,
	}
	if login.Max <= 0 {
		return login, func() {}
	}

	if cfg.RateLimit.RedisAddr != "" {
		limiter, err := ratelimit.NewRedisLimiter(cfg.RateLimit.RedisAddr, cfg.RateLimit.RedisPassword, cfg.RateLimit.RedisDB, nil)
		if err != nil {
			logger.Fatalf("setup redis limiter: %v", err)
		}
		if err := limiter.Ping(ctx); err != nil {
			logger.Warnf("redis %s unreachable, login limiting fails open: %v", cfg.RateLimit.RedisAddr, err)
		}
		logger.Infof("limiting logins to %d per %s via redis", login.Max, login.Window)
		login.Limiter = limiter
		return login, func() { _ = limiter.Close() }
	}

	logger.Infof("limiting logins to %d per %s in process", login.Max, login.Window)
	login.Limiter = ratelimit.NewMemoryLimiter(nil, 0)
	return login, func() {}
}
