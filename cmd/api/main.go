package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/npcforge/npcforge/internal/ai"
	"github.com/npcforge/npcforge/internal/blob"
	"github.com/npcforge/npcforge/internal/chat"
	"github.com/npcforge/npcforge/internal/config"
	"github.com/npcforge/npcforge/internal/db"
	"github.com/npcforge/npcforge/internal/httpapi"
	"github.com/npcforge/npcforge/internal/httpapi/handlers"
	"github.com/npcforge/npcforge/internal/logger"
	"github.com/npcforge/npcforge/internal/npc"
	"github.com/npcforge/npcforge/internal/portrait"
	"github.com/npcforge/npcforge/internal/queue/rabbitmq"
	"github.com/npcforge/npcforge/internal/store/redisstore"
	"github.com/npcforge/npcforge/internal/users"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()

	zlog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zlog.Sync()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		zlog.Fatal("db connect failed", "driver", cfg.DBDriver, "error", err)
	}
	if err := db.Migrate(gdb); err != nil {
		zlog.Fatal("db migrate failed", "error", err)
	}

	var limiter *redisstore.Store
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := rds.Ping(ctx); err != nil {
		zlog.Warn("redis unreachable, generation rate limiting disabled", "addr", cfg.RedisAddr, "error", err)
		_ = rds.Close()
	} else {
		limiter = rds
		defer rds.Close()
	}

	provider := ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	images := ai.NewOpenAIImageProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIImageModel)

	var blobs blob.Store
	switch cfg.BlobDriver {
	case "gcs":
		gcs, err := blob.NewGCSStore(ctx, cfg.BlobGCSBucket, cfg.PublicBaseURL)
		if err != nil {
			zlog.Fatal("gcs init failed", "bucket", cfg.BlobGCSBucket, "error", err)
		}
		defer gcs.Close()
		blobs = gcs
	default:
		blobs = blob.NewLocalStore(cfg.BlobLocalDir, cfg.PublicBaseURL)
	}

	userRepo := users.NewRepo(gdb)
	npcRepo := npc.NewRepo(gdb)
	chatRepo := chat.NewRepo(gdb)

	pipeline := portrait.NewService(npcRepo, images, blobs, zlog)

	var dispatcher npc.PortraitDispatcher
	switch cfg.PortraitQueueDriver {
	case "rabbitmq":
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			zlog.Fatal("rabbit publisher init failed", "error", err)
		}
		defer pub.Close()
		dispatcher = portrait.NewInlineThenEnqueue(pipeline, pub, zlog)
	default:
		dispatcher = portrait.NewInlineOnly(pipeline, zlog)
	}

	npcSvc := npc.NewService(npcRepo, provider, dispatcher, zlog)
	chatSvc := chat.NewService(chatRepo, npcRepo, provider, cfg.ChatContextWindowSize, zlog)

	h := handlers.NewHandler(cfg, zlog, userRepo, npcSvc, npcRepo, chatSvc, dispatcher, limiter)
	r := httpapi.NewRouter(cfg, zlog, h)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("api listening", "addr", cfg.HTTPAddr, "queue_driver", cfg.PortraitQueueDriver, "blob_driver", cfg.BlobDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", "error", err)
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", "error", err)
	}
}
