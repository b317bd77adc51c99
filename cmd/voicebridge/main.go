package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	voicebridge "github.com/bt-bridge/voicebridge"
	"github.com/bt-bridge/voicebridge/actions"
	"github.com/bt-bridge/voicebridge/booking"
	"github.com/bt-bridge/voicebridge/config"
	"github.com/bt-bridge/voicebridge/knowledge"
	"github.com/bt-bridge/voicebridge/messaging"
	"github.com/bt-bridge/voicebridge/shared"
	"github.com/bt-bridge/voicebridge/store"
	"go.uber.org/zap"
)

const (
	envKeyModelAPIKey   = "OPENAI_API_KEY"
	envKeySupabaseKey   = "SUPABASE_API_KEY"
	envKeyTwilioToken   = "TWILIO_AUTH_TOKEN"
	envKeyQdrantKey     = "QDRANT_API_KEY"
	envKeyRedisPassword = "REDIS_PASSWORD"
)

func main() {
	configPath := flag.String("config", "voicebridge.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	var logger shared.LoggerAdapter
	if cfg.Log.File != "" {
		logger = shared.NewFileLogger(
			cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays, cfg.Log.Compress,
		)
	} else {
		logger = shared.NewStdLogger()
	}
	logger = logger.With(
		zap.String("component", "voicebridge"),
		zap.String("version", shared.Version),
	)

	// Environment overrides for secrets.
	modelKey := shared.MustGetenv(shared.GetenvString, envKeyModelAPIKey, false, cfg.Model.APIKey)
	supabaseKey := shared.MustGetenv(shared.GetenvString, envKeySupabaseKey, false, cfg.Supabase.APIKey)
	twilioToken := shared.MustGetenv(shared.GetenvString, envKeyTwilioToken, false, cfg.Twilio.AuthToken)
	qdrantKey := shared.MustGetenv(shared.GetenvString, envKeyQdrantKey, false, cfg.Qdrant.APIKey)
	redisPassword := shared.MustGetenv(shared.GetenvString, envKeyRedisPassword, false, cfg.Redis.Password)

	st, err := store.New(logger, cfg.Supabase.URL, supabaseKey)
	if err != nil {
		logger.Error("creating store", err)
		os.Exit(1)
	}

	var cache *store.ConfigCache
	if cfg.Redis.Addr != "" {
		cache = store.NewConfigCache(
			cfg.Redis.Addr, redisPassword, cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSeconds)*time.Second,
		)
		defer cache.Close()
	}
	resolver := store.NewResolver(logger, st, cache)

	var searcher actions.Searcher
	if cfg.Qdrant.URL != "" {
		s, err := knowledge.NewSearcher(logger, knowledge.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     qdrantKey,
			Collection: cfg.Qdrant.Collection,
			OpenAIKey:  modelKey,
		})
		if err != nil {
			logger.Error("creating knowledge searcher", err)
			os.Exit(1)
		}
		searcher = s
	}

	var messenger actions.Messenger
	if cfg.Twilio.AccountSid != "" {
		m, err := messaging.NewMessenger(logger, cfg.Twilio.AccountSid, twilioToken, cfg.Twilio.From, "")
		if err != nil {
			logger.Error("creating messenger", err)
			os.Exit(1)
		}
		messenger = m
	}

	booker, err := booking.NewBooker(logger, st, messenger)
	if err != nil {
		logger.Error("creating booker", err)
		os.Exit(1)
	}

	handler, err := voicebridge.NewHandler(logger, resolver, st, searcher, messenger, booker, voicebridge.HandlerConfig{
		APIKey:       modelKey,
		ModelBaseUrl: cfg.Model.BaseUrl,
		ModelName:    cfg.Model.Name,
		PublicHost:   cfg.Server.PublicHost,
		Bridge: voicebridge.Options{
			DrainMargin: time.Duration(cfg.Bridge.DrainMarginMs) * time.Millisecond,
			GracePeriod: time.Duration(cfg.Bridge.GracePeriodMs) * time.Millisecond,
		},
	})
	if err != nil {
		logger.Error("creating handler", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/call/inbound", handler.HandleInboundCall)
	mux.HandleFunc("/call/stream", handler.HandleStream)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", err)
		os.Exit(1)
	}
	logger.Info("graceful shutdown complete")
}
