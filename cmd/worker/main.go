package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/npcforge/npcforge/internal/ai"
	"github.com/npcforge/npcforge/internal/blob"
	"github.com/npcforge/npcforge/internal/config"
	"github.com/npcforge/npcforge/internal/db"
	"github.com/npcforge/npcforge/internal/logger"
	"github.com/npcforge/npcforge/internal/npc"
	"github.com/npcforge/npcforge/internal/portrait"
	"github.com/npcforge/npcforge/internal/queue/rabbitmq"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
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

	npcRepo := npc.NewRepo(gdb)
	images := ai.NewOpenAIImageProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIImageModel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	pipeline := portrait.NewService(npcRepo, images, blobs, zlog)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		zlog.Fatal("rabbit dial failed", "error", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		zlog.Fatal("rabbit channel failed", "error", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		zlog.Fatal("queue declare failed", "error", err)
	}

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		zlog.Fatal("rabbit publisher init failed", "error", err)
	}
	defer pub.Close()

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		zlog.Fatal("qos failed", "error", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		zlog.Fatal("consume failed", "error", err)
	}

	zlog.Info("worker started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				handleDelivery(ctx, zlog.With("worker", workerID), pipeline, pub, d)
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			zlog.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				zlog.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func handleDelivery(ctx context.Context, zlog *logger.Logger, pipeline *portrait.Service, pub *rabbitmq.Publisher, d amqp.Delivery) {
	var job rabbitmq.PortraitJob
	if err := json.Unmarshal(d.Body, &job); err != nil || job.NpcID == "" {
		zlog.Warn("bad portrait message", "error", err)
		_ = d.Nack(false, false)
		return
	}
	if job.Attempt < 1 {
		job.Attempt = 1
	}

	start := time.Now()
	if pipeline.Generate(ctx, job.NpcID) {
		zlog.Info("portrait job done", "npc_id", job.NpcID, "attempt", job.Attempt, "cost", time.Since(start))
		_ = d.Ack(false)
		return
	}

	if job.Attempt >= rabbitmq.MaxAttempts {
		zlog.Error("portrait job exhausted", "npc_id", job.NpcID, "attempt", job.Attempt)
		pipeline.MarkFailed(ctx, job.NpcID, "portrait generation failed after retries")
		_ = d.Nack(false, false)
		return
	}

	delay := rabbitmq.BackoffFor(job.Attempt)
	next := rabbitmq.PortraitJob{NpcID: job.NpcID, Attempt: job.Attempt + 1}
	if err := pub.RequeueWithDelay(ctx, next, delay); err != nil {
		zlog.Error("portrait requeue failed", "npc_id", job.NpcID, "attempt", job.Attempt, "error", err)
		// Redeliver through the broker instead of losing the job.
		_ = d.Nack(false, true)
		return
	}
	zlog.Warn("portrait job retry scheduled", "npc_id", job.NpcID, "next_attempt", next.Attempt, "delay", delay)
	_ = d.Ack(false)
}
