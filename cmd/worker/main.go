package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"

	"image-batch-service/internal/config"
	"image-batch-service/internal/imaging"
	"image-batch-service/internal/repository/postgresql"
	"image-batch-service/internal/service"
	"image-batch-service/internal/storage"
	"image-batch-service/internal/webhook"
	"image-batch-service/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			log.Fatalf("sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("pg: %v", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	jobRepo := postgresql.NewJobRepository(pool)
	imageRepo := postgresql.NewImageRepository(pool)
	queue := service.NewRedisQueue(rdb, cfg.QueueKey, cfg.ProcessingKey)

	// Reaper: returns ids whose claim went stale to the queue, so jobs
	// claimed by a dead worker get redelivered. Claims younger than
	// StaleClaimAge belong to live runners and are left alone.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := queue.RequeueStale(ctx, cfg.StaleClaimAge, 100)
				if err != nil {
					log.Printf("requeue error: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("requeued %d jobs from processing", n)
				}
			}
		}
	}()

	store, err := buildImageStore(ctx, cfg, imageRepo)
	if err != nil {
		log.Fatalf("image store: %v", err)
	}

	transformer := imaging.NewTransformer(cfg.JPEGQuality, cfg.MaxDimension)
	notifier := webhook.NewNotifier(10 * time.Second)
	orch := worker.NewOrchestrator(transformer, store, jobRepo)
	runner := worker.NewRunner(jobRepo, orch, notifier)
	processor := worker.NewProcessor(jobRepo, runner)

	workerPool := worker.NewPool(queue, processor, cfg.Workers)

	log.Printf("worker started: workers=%d store=%s", cfg.Workers, cfg.ImageStore)
	workerPool.Run(ctx)

	log.Println("worker stopped")
}

func buildImageStore(ctx context.Context, cfg *config.Config, imageRepo *postgresql.ImageRepository) (storage.ImageStore, error) {
	if cfg.ImageStore == "s3" {
		return storage.NewS3Store(ctx, &cfg.S3)
	}
	return storage.NewPostgresStore(imageRepo, cfg.PublicBaseURL), nil
}
