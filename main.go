package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zlnvch/drawroom/api"
	"github.com/zlnvch/drawroom/cache"
	"github.com/zlnvch/drawroom/cache/redis"
	"github.com/zlnvch/drawroom/config"
	"github.com/zlnvch/drawroom/metrics"
	"github.com/zlnvch/drawroom/mq"
	"github.com/zlnvch/drawroom/mq/sqsmq"
	"github.com/zlnvch/drawroom/store"
	"github.com/zlnvch/drawroom/store/dynamo"
	"github.com/zlnvch/drawroom/store/postgres"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		log.Printf("drawroom: %v", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "drawroom",
		Short:        "Shared drawing rooms over websockets",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		buildServeCmd(),
		buildTokenCmd(),
		buildSnapshotCmd(),
	)
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openStore returns the configured store and a func releasing it.
func openStore(ctx context.Context, cfg config.Config) (store.DrawroomStore, func() error, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pgStore, err := postgres.NewPostgresDrawroomStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("create postgres store: %w", err)
		}
		return pgStore, pgStore.Close, nil
	default:
		dynamoStore, err := dynamo.NewDynamoDrawroomStore(ctx, cfg.DevMode, cfg.DynamoDBEndpoint, cfg.DynamoDBTable)
		if err != nil {
			return nil, nil, fmt.Errorf("create dynamodb store: %w", err)
		}
		return dynamoStore, func() error { return nil }, nil
	}
}

func serve(cfg config.Config) error {
	ctx := context.Background()

	jwtSecret, err := cfg.JWTSecretBytes()
	if err != nil {
		return err
	}

	drawroomStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Without redis the server runs as a single instance
	var drawroomCache cache.DrawroomCache
	if cfg.RedisEndpoint != "" {
		redisCache, err := redis.NewRedisDrawroomCache(ctx, cfg.DevMode, cfg.RedisEndpoint)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()
		drawroomCache = redisCache
	} else {
		log.Printf("REDIS_ENDPOINT not set, running without cache")
	}

	var clearRoomQueue mq.MessageQueue
	if cfg.ClearRoomQueue != "" {
		sqsQueue, err := sqsmq.NewSQSMessageQueue(ctx, cfg.DevMode, cfg.SQSEndpoint, cfg.ClearRoomQueue)
		if err != nil {
			return fmt.Errorf("create SQS MQ: %w", err)
		}
		clearRoomQueue = sqsQueue
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	drawroomAPI, err := api.NewDrawroomAPI(drawroomStore, drawroomCache, clearRoomQueue, jwtSecret, metrics.New(), shutdownCtx)
	if err != nil {
		return fmt.Errorf("create drawroom api: %w", err)
	}

	mux := http.NewServeMux()
	drawroomAPI.RegisterRoutes(mux, cfg.OriginAllowed)

	server := &http.Server{
		Addr:              ":" + cfg.HostPort,
		Handler:           api.WithCORS(mux, cfg.OriginAllowed),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on host port: %s", cfg.HostPort)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-shutdownCtx.Done():
	}

	log.Printf("Server shutting down...")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(timeoutCtx)
}
