// Package main provides the NextUp CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"nextup/internal/cache"
	"nextup/internal/catalog"
	"nextup/internal/core"
	httpserver "nextup/internal/http"
	"nextup/internal/persist"
	"nextup/internal/recommend"
	"nextup/internal/store"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nextup",
	Short: "NextUp - playback queue and recommendation service",
	Long: `NextUp manages a playback queue with shuffle and repeat semantics and
keeps it topped up with recommendations resolved through a chain of
sources: cache, AI suggestions, catalog similarity and radio fallback.`,
	RunE: runNextUp,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("catalog-base-url", "", "catalog API base URL")
	rootCmd.PersistentFlags().String("recommender-provider", "none", "recommendation provider (openai, anthropic, none)")
	rootCmd.PersistentFlags().String("recommender-model", "", "recommendation model name")
	rootCmd.PersistentFlags().String("recommender-api-key", "", "recommendation API key")
	rootCmd.PersistentFlags().String("cache-backend", "memory", "recommendation cache backend (memory, redis)")
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address for the redis cache backend")
	rootCmd.PersistentFlags().String("db-path", "", "path to the SQLite database")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("NEXTUP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	if v := viper.GetString("catalog-base-url"); v != "" {
		cfg.Catalog.BaseURL = v
	}

	cfg.Recommender.Provider = viper.GetString("recommender-provider")
	cfg.Recommender.Model = viper.GetString("recommender-model")
	cfg.Recommender.APIKey = viper.GetString("recommender-api-key")
	cfg.Recommender.BaseURL = viper.GetString("recommender-base-url")

	if v := viper.GetString("cache-backend"); v != "" {
		cfg.Cache.Backend = v
	}
	cfg.Cache.RedisAddr = viper.GetString("redis-addr")
	cfg.Cache.RedisDB = viper.GetInt("redis-db")

	if v := viper.GetString("db-path"); v != "" {
		cfg.Persist.DBPath = v
	}

	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	cfg.Server.Port = viper.GetInt("server-port")

	cfg.Log.Level = viper.GetString("log-level")

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

const noneProvider = "none"

// queueState adapts the queue and controller to the HTTP state endpoint.
// The controller field is set right after construction, before the server
// starts serving.
type queueState struct {
	queue *core.PlaybackQueue
	ctrl  *core.AutoQueueController
}

func (s *queueState) Snapshot() core.QueueSnapshot { return s.queue.Snapshot() }
func (s *queueState) IsFetching() bool             { return s.ctrl.IsFetching() }

func runNextUp(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting NextUp",
		zap.String("version", "1.0.0"),
		zap.String("recommender_provider", config.Recommender.Provider),
		zap.String("cache_backend", config.Cache.Backend))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	db, err := persist.Open(config.Persist.DBPath, config.App.DefaultSettings, logger.Named("persist"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var recCache core.RecommendationCache
	switch config.Cache.Backend {
	case "redis":
		redisCache := cache.NewRedis(&config.Cache, logger.Named("cache"))
		defer redisCache.Close()
		recCache = redisCache
	default:
		recCache = cache.NewMemory(&config.Cache, logger.Named("cache"))
	}

	catalogClient := catalog.NewClient(&config.Catalog, logger.Named("catalog"))

	var primary core.PrimaryRecommender
	if config.Recommender.Provider != noneProvider && config.Recommender.Provider != "" {
		provider, err := recommend.NewProvider(&config.Recommender, logger.Named("recommend"))
		if err != nil {
			return fmt.Errorf("failed to create recommendation provider: %w", err)
		}
		primary = provider
	}

	seen := store.NewSeenStore(config.App.SeenStoreCapacity, 0.001)

	chain := core.NewSourceChain(
		recCache,
		catalogClient,
		primary,
		catalogClient,
		seen,
		&config.App,
		&config.Catalog,
		logger.Named("chain"),
	)

	queue := core.NewPlaybackQueue(logger.Named("queue"))

	state := &queueState{queue: queue}
	httpServer := httpserver.NewServer(&config.Server, state, logger.Named("http"))

	policy := core.NewDiversityPolicy()
	service := core.NewRecommendationService(chain, policy, db, httpServer, &config.App, logger.Named("recs"))

	controller := core.NewAutoQueueController(queue, service, db, seen, httpServer, logger.Named("autoqueue"))
	state.ctrl = controller

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Start(gCtx)
	})

	g.Go(func() error {
		return controller.Run(gCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				httpServer.SetQueueLength(queue.Len())
			}
		}
	})

	logger.Info("NextUp started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("NextUp stopped with error", zap.Error(err))
		return err
	}

	logger.Info("NextUp stopped gracefully")
	return nil
}

func validateConfig() error {
	if config.Persist.DBPath == "" {
		return fmt.Errorf("database path is required")
	}

	if config.Cache.Backend == "redis" && config.Cache.RedisAddr == "" {
		return fmt.Errorf("redis address is required for the redis cache backend")
	}

	if config.Recommender.Provider != noneProvider && config.Recommender.Provider != "" {
		if config.Recommender.APIKey == "" {
			return fmt.Errorf("recommender API key is required for provider: %s", config.Recommender.Provider)
		}
	}

	return nil
}
