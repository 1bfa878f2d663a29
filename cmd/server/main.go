package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/api"
	"github.com/fathima-sithara/studycircle-realtime/internal/auth"
	"github.com/fathima-sithara/studycircle-realtime/internal/board"
	"github.com/fathima-sithara/studycircle-realtime/internal/broker"
	"github.com/fathima-sithara/studycircle-realtime/internal/config"
	"github.com/fathima-sithara/studycircle-realtime/internal/conversation"
	"github.com/fathima-sithara/studycircle-realtime/internal/events"
	"github.com/fathima-sithara/studycircle-realtime/internal/hub"
	"github.com/fathima-sithara/studycircle-realtime/internal/metrics"
	"github.com/fathima-sithara/studycircle-realtime/internal/middleware"
	"github.com/fathima-sithara/studycircle-realtime/internal/presence"
	"github.com/fathima-sithara/studycircle-realtime/internal/repository"
	"github.com/fathima-sithara/studycircle-realtime/internal/storage"
	"github.com/fathima-sithara/studycircle-realtime/internal/utils"
	"github.com/fathima-sithara/studycircle-realtime/internal/ws"
)

const presenceTTL = 24 * time.Hour

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Dev(), cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx := context.Background()

	store, mongoClient := openStore(ctx, cfg, logger)
	rdb := openRedis(ctx, cfg, logger)

	verifier, err := auth.NewVerifier(cfg.JWT.Alg, cfg.JWT.HSSecret, cfg.JWT.PublicKeyPath)
	if err != nil {
		logger.Fatalw("jwt verifier init", "err", err)
	}

	blobs, urls, uploadsDir := openBlobs(ctx, cfg, rdb, logger)

	var pub events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Infow("publishing domain events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	h := hub.New()
	var mirror presence.Mirror
	var records api.PresenceRecords
	if rdb != nil {
		rm := presence.NewRedisMirror(rdb, cfg.Redis.Prefix, presenceTTL)
		mirror, records = rm, rm
	}
	tracker := presence.NewTracker(h, mirror, logger)

	b := broker.New(store, h, pub, urls, logger)
	sockets := ws.NewHandler(h, tracker, b, ws.Options{
		PingInterval:    cfg.PingInterval,
		PongWait:        cfg.PongWait,
		WriteDeadline:   cfg.WriteDeadline,
		MaxMessageSize:  cfg.WS.MaxMessageSizeBytes,
		RateLimitPerSec: cfg.WS.RateLimitPerSec,
		SendBuffer:      cfg.WS.SendBuffer,
		OpTimeout:       cfg.RequestTimeout,
	}, logger)

	var limit fiber.Handler
	if rdb != nil {
		limit = middleware.NewRateLimiter(rdb, cfg.Redis.Prefix, cfg.HTTP.RateLimitPerMin, time.Minute, logger).
			MiddlewareByKey(middleware.KeyByUser)
	} else {
		ipl := middleware.NewIPRateLimiter(cfg.HTTP.RateLimitPerMin, 20, logger)
		defer ipl.Close()
		limit = ipl.Handler()
	}

	app := api.NewServer(api.Deps{
		Broker:      b,
		Resolver:    conversation.NewResolver(store, b, logger),
		Board:       board.NewService(store, b, logger),
		Presence:    tracker,
		Records:     records,
		Attachments: storage.NewAttachments(blobs, cfg.Uploads.MaxFiles, cfg.Uploads.MaxFileBytes, logger),
		Verifier:    verifier,
		Sockets:     sockets,
		RateLimit:   limit,
		UploadsDir:  uploadsDir,
	}, api.Options{
		RequestTimeout: cfg.RequestTimeout,
		BodyLimit:      int(cfg.Uploads.MaxFileBytes)*cfg.Uploads.MaxFiles + 1<<20,
		AccessLog:      cfg.Dev(),
	}, logger)

	errs := make(chan error, 1)
	go func() {
		logger.Infow("starting realtime service", "addr", cfg.App.Addr(), "storage", cfg.Storage.Driver)
		errs <- app.Listen(cfg.App.Addr())
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		logger.Errorw("server error", "err", e)
	case s := <-sig:
		logger.Infow("signal received", "signal", s.String())
	}

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		logger.Warnw("fiber shutdown", "err", err)
	}
	if err := pub.Close(); err != nil {
		logger.Warnw("publisher close", "err", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if mongoClient != nil {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(sctx)
	}
	logger.Info("shut down")
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*repository.Store, *mongo.Client) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn("using in-memory storage; data is lost on restart")
		return repository.NewMemoryStore().Store(), nil
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := repository.Connect(cctx, cfg.Mongo.URI)
	if err != nil {
		logger.Fatalw("mongo connect", "err", err)
	}
	store, err := repository.NewMongoStore(cctx, client.Database(cfg.Mongo.Database))
	if err != nil {
		logger.Fatalw("mongo init", "err", err)
	}
	return store, client
}

// openRedis returns nil when Redis is not configured or unreachable;
// presence mirroring and the shared rate limiter are then skipped.
func openRedis(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		logger.Warnw("redis unavailable, continuing without it", "addr", cfg.Redis.Addr, "err", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// openBlobs picks S3 when a bucket is configured and local disk
// otherwise. uploadsDir is non-empty only for disk.
func openBlobs(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *zap.SugaredLogger) (storage.BlobStore, broker.URLResolver, string) {
	if cfg.AWS.Bucket != "" {
		s3, err := storage.NewS3Store(ctx, cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.Endpoint, cfg.S3.PublicRead, cfg.PresignTTL)
		if err != nil {
			logger.Fatalw("s3 init", "err", err)
		}
		var urls broker.URLResolver = s3
		if rdb != nil && !cfg.S3.PublicRead {
			urls = storage.NewCachedURLs(s3, rdb, cfg.Redis.Prefix, cfg.PresignTTL, logger)
		}
		return s3, urls, ""
	}
	disk, err := storage.NewDiskStore(cfg.Uploads.Dir)
	if err != nil {
		logger.Fatalw("uploads dir", "dir", cfg.Uploads.Dir, "err", err)
	}
	return disk, disk, disk.Dir()
}
