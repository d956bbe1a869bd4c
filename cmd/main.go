package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vovarama1992/go-utils/httputil"
	"github.com/Vovarama1992/go-utils/logger"

	"github.com/Vovarama1992/line_tutor/internal/ai"
	"github.com/Vovarama1992/line_tutor/internal/config"
	"github.com/Vovarama1992/line_tutor/internal/conversation"
	"github.com/Vovarama1992/line_tutor/internal/delivery"
	"github.com/Vovarama1992/line_tutor/internal/error_notificator"
	"github.com/Vovarama1992/line_tutor/internal/line"
	"github.com/Vovarama1992/line_tutor/internal/logging"
	"github.com/Vovarama1992/line_tutor/internal/metrics"
	"github.com/Vovarama1992/line_tutor/internal/relay"
	"github.com/Vovarama1992/line_tutor/internal/telegram"
	"github.com/Vovarama1992/line_tutor/internal/transcript"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const serviceName = "line_tutor"

func main() {

	// =========================================================================
	// ENV / LOGGER
	// =========================================================================

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	baseLogger, err := logging.New(logging.Options{
		Level:     cfg.LogLevel,
		File:      cfg.LogFile,
		MaxSizeMB: cfg.LogMaxSizeMB,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer baseLogger.Sync()
	sugar := baseLogger.Sugar()
	zl := logger.NewZapLogger(sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register(prometheus.DefaultRegisterer)

	// =========================================================================
	// INFRASTRUCTURE
	// =========================================================================

	var generator ai.Generator
	switch cfg.Backend {
	case config.BackendOpenAI:
		generator = ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	default:
		gc, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Fatalf("failed to init gemini client: %v", err)
		}
		generator = gc
	}

	lineBot, err := messaging_api.NewMessagingApiAPI(cfg.LineChannelAccessToken)
	if err != nil {
		log.Fatalf("failed to init line client: %v", err)
	}

	var tgBot *tgbotapi.BotAPI
	if cfg.TelegramBotToken != "" {
		tgBot, err = tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			log.Fatalf("failed to init telegram bot: %v", err)
		}
		sugar.Infow("[telegram] bot ready", "username", tgBot.Self.UserName)
	}

	var transcriptRepo transcript.Repo
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			log.Fatalf("db ping failed: %v", err)
		}

		transcriptRepo = transcript.NewRepo(db)
		if err := transcriptRepo.Migrate(ctx); err != nil {
			log.Fatalf("transcript migration failed: %v", err)
		}
	}

	// =========================================================================
	// SERVICES
	// =========================================================================

	store := conversation.NewStore(cfg.HistoryWindow)
	transcriptService := transcript.NewService(transcriptRepo, sugar)

	if cfg.MirrorEnabled() {
		s3Client, err := transcript.NewS3Client(ctx, transcript.S3Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Secure:    cfg.S3Secure,
		})
		if err != nil {
			log.Fatalf("failed to init s3: %v", err)
		}
		transcriptService.WithMirror(transcript.NewS3Mirror(s3Client, cfg.S3Bucket))
	}

	aiService, err := ai.NewAiService(generator, ai.Options{
		Models:            cfg.Models,
		SystemInstruction: cfg.SystemInstruction,
		Temperature:       cfg.Temperature,
		Policy:            cfg.FallbackPolicy,
		AttemptTimeout:    cfg.GenerationTimeout,
	}, sugar)
	if err != nil {
		log.Fatalf("failed to init ai service: %v", err)
	}

	var errInfra error_notificator.Notificator = error_notificator.NewLogInfra(sugar)
	if tgBot != nil && cfg.TelegramAdminChatID != 0 {
		errInfra = error_notificator.NewTelegramInfra(tgBot, cfg.TelegramAdminChatID)
	}
	errorNotify := error_notificator.NewService(errInfra, 30*time.Second, 3, sugar)

	relayService := relay.NewService(store, aiService, errorNotify, transcriptService, sugar)

	// =========================================================================
	// HTTP ROUTER
	// =========================================================================

	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// WEBHOOKS
	r.Group(func(wr chi.Router) {
		wr.Use(
			httputil.RecoverMiddleware,
			httprate.LimitByIP(cfg.WebhookRateLimit, time.Minute),
		)

		lineHandler := line.NewHandler(cfg.LineChannelSecret, lineBot, relayService, sugar)
		wr.Post("/callback", lineHandler.Callback)

		if tgBot != nil {
			tgHandler := telegram.NewWebhookHandler(cfg.TelegramWebhookSecret, tgBot, relayService, sugar)
			wr.Post("/telegram/webhook", tgHandler.Update)
		}
	})

	// ADMIN
	if cfg.AdminToken != "" {
		adminHandler := delivery.NewAdminHandler(store, aiService, transcriptService, zl)
		delivery.RegisterRoutes(r, adminHandler, cfg.AdminToken)
	}

	r.With(httputil.RecoverMiddleware).Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("pong"))
	})
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// =========================================================================
	// BACKGROUND JOBS
	// =========================================================================

	if cfg.HistoryIdleTTL > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.HistorySweepInterval)
			defer ticker.Stop()

			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n := store.Sweep(cfg.HistoryIdleTTL); n > 0 {
						sugar.Infow("[history-sweep] dropped idle conversations", "count", n)
					}
					metrics.SetConversations(store.Len())
				}
			}
		})
	}

	// =========================================================================
	// START SERVER
	// =========================================================================

	g.Go(func() error {
		zl.Log(logger.LogEntry{
			Level:   "info",
			Message: "listening at " + srv.Addr,
			Service: serviceName,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zl.Log(logger.LogEntry{Level: "error", Message: "server stopped", Error: err, Service: serviceName})
		baseLogger.Sync()
		os.Exit(1)
	}

	sugar.Infow("shutdown complete", "service", serviceName)
}
