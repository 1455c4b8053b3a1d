package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-auth-service/internal/api"
	"social-auth-service/internal/biz"
	"social-auth-service/internal/conf"
	"social-auth-service/internal/data"
	"social-auth-service/internal/provider"
	"social-auth-service/internal/server"
	"social-auth-service/internal/service"
	"social-auth-service/internal/token"
)

var flagconf string

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

type accountStore interface {
	biz.AccountRepo
	biz.AccessTokenRepo
	Close() error
}

func main() {
	flag.Parse()
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// load config
	cfg, err := conf.Load(flagconf)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// 手动依赖注入
	// data 层
	var repo accountStore
	switch cfg.Database.Driver {
	case "postgres":
		repo, err = data.NewPostgresAccountRepo(cfg.Database.DSN)
	default:
		repo, err = data.NewSQLiteAccountRepo(cfg.Database.Path)
	}
	if err != nil {
		logger.Error("failed to init account repo", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	var pending biz.PendingStore
	switch cfg.Pending.Store {
	case "redis":
		redisStore, rerr := data.NewRedisPendingStore(cfg.Pending.RedisAddr, cfg.Pending.RedisPassword, cfg.Pending.TTL.Std())
		if rerr != nil {
			logger.Error("failed to init pending store", "error", rerr)
			os.Exit(1)
		}
		defer redisStore.Close()
		pending = redisStore
	default:
		memStore := data.NewMemoryPendingStore(cfg.Pending.TTL.Std())
		defer memStore.Close()
		pending = memStore
	}

	// provider 层
	providers := make([]provider.Provider, 0, len(cfg.Providers))
	for name, pcfg := range cfg.Providers {
		redirectURL := pcfg.GetRedirectURL(name, cfg.Server.BaseURL, cfg.Routes.Prefix)
		p, perr := provider.New(ctx, name, pcfg, redirectURL)
		if perr != nil {
			logger.Error("failed to init provider", "provider", name, "error", perr)
			os.Exit(1)
		}
		providers = append(providers, p)
		logger.Info("provider configured", "provider", name, "redirect_url", redirectURL)
	}
	registry := provider.NewRegistry(providers...)
	states := provider.NewStateStore(10 * time.Minute)
	defer states.Close()

	issuer, err := token.NewIssuer(cfg.Token, repo)
	if err != nil {
		logger.Error("failed to init token issuer", "error", err)
		os.Exit(1)
	}

	// biz 层
	mapper := biz.NewMapper(cfg.Users)
	resolver := biz.NewResolver(repo, mapper)
	flow := biz.NewCallbackFlow(pending, resolver, issuer, mapper)

	// service 层
	authService := service.NewAuthService(registry, states, flow, pending, cfg.Users.RequiredFields, logger)

	// api 层
	oauthHandler := api.NewOAuthHandler(authService, cfg.Routes, logger)
	router := api.NewRouter(oauthHandler, cfg.Routes.Prefix, logger)

	srv := server.New(cfg.Server.Addr, router)
	go func() {
		if err := srv.Run(); err != nil {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("server started", "addr", cfg.Server.Addr, "prefix", cfg.Routes.Prefix)

	// wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down cleanly", "error", err)
	}
}
