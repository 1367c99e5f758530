package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/segment"
	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/handler"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
	"github.com/zhouzirui/z-companion/backend/internal/service/render"
	"github.com/zhouzirui/z-companion/backend/internal/service/session"
	"github.com/zhouzirui/z-companion/backend/internal/service/speech"
	applog "github.com/zhouzirui/z-companion/backend/pkg/log"
	redisPkg "github.com/zhouzirui/z-companion/backend/pkg/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := applog.New(applog.Config{Level: cfg.Log.Level, File: cfg.Log.File, NoColors: cfg.Log.NoColors})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	if envErr != nil {
		logger.WithError(envErr).Debug("no .env file, using system environment variables only")
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	rules, err := lexicon.NewStore(cfg.Rules.Path, logger)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	store, closeStore, err := newSessionStore(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	personas := persona.NewMemoryStore(persona.Seed())
	sessions := session.NewService(session.Options{
		Rules:    rules,
		Personas: personas,
		Store:    store,
		Tokenizer: func(r *lexicon.Ruleset) segment.Tokenizer {
			return segment.New(r, logger)
		},
		Logger: logger,
	})

	var chatModel model.BaseChatModel
	if cfg.AI.Enabled() {
		cm, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize chat model, replies fall back to templates")
		} else {
			chatModel = cm
			logger.Info("chat model initialized")
		}
	} else {
		logger.Info("Ark 凭证未配置，对话回复使用内置模板")
	}

	renderSvc, err := render.NewService(ctx, chatModel, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), logger)
	if err != nil {
		return fmt.Errorf("init render service: %w", err)
	}

	deps := handler.Dependencies{
		Rules:    rules,
		Personas: personas,
		Sessions: sessions,
		Render:   renderSvc,
		Logger:   logger,
	}
	if cfg.Speech.Enabled() {
		client, err := speech.NewClient(speech.Config{
			AppID:       cfg.Speech.AppID,
			AccessToken: cfg.Speech.AccessToken,
			Speaker:     cfg.Speech.Speaker,
			Endpoint:    cfg.Speech.Endpoint,
			Format:      cfg.Speech.Format,
			Timeout:     cfg.Speech.Timeout,
		}, logger)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize speech synthesis")
		} else {
			deps.Speech = client
			logger.WithField("speaker", cfg.Speech.Speaker).Info("speech synthesis enabled")
		}
	} else {
		logger.Info("语音合成凭证未配置，回复只返回文本")
	}

	router := handler.NewRouter(deps)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger.WithField("addr", cfg.Server.Addr).Info("companion backend listening")
	return runServer(ctx, srv)
}

// newSessionStore 配置了 Redis 时使用 Redis，否则使用内存存储。
func newSessionStore(ctx context.Context, cfg config.RedisConfig, logger logrus.FieldLogger) (session.Store, func(), error) {
	if !cfg.Enabled() {
		return session.NewMemoryStore(), func() {}, nil
	}
	client, err := redisPkg.New(ctx, redisPkg.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.WithError(err).Warn("failed to close redis client")
		}
	}
	return session.NewRedisStore(client, cfg.KeyPrefix, cfg.TTL), closeFn, nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
