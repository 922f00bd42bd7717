package core

import (
	"time"
)

type Config struct {
	Catalog     CatalogConfig
	Recommender RecommenderConfig
	Cache       CacheConfig
	Persist     PersistConfig
	Server      ServerConfig
	Log         LogConfig
	App         AppConfig
}

type CatalogConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	RadioPageLimit int
}

type RecommenderConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

type CacheConfig struct {
	Backend   string
	TTL       time.Duration
	MaxSeeds  int
	RedisAddr string
	RedisDB   int
}

type PersistConfig struct {
	DBPath string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	StepTimeout       time.Duration
	SmartMixSeedLimit int
	SmartMixPerSeed   int
	SeenStoreCapacity int
	DefaultSettings   SmartQueueSettings
}

func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			BaseURL:        "https://api.deezer.com",
			Timeout:        10 * time.Second,
			RequestsPerSec: 10,
			RadioPageLimit: 100,
		},
		Recommender: RecommenderConfig{
			Provider: "none",
		},
		Cache: CacheConfig{
			Backend:  "memory",
			TTL:      24 * time.Hour,
			MaxSeeds: 512,
		},
		Persist: PersistConfig{
			DBPath: "./nextup.db",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			StepTimeout:       8 * time.Second,
			SmartMixSeedLimit: 5,
			SmartMixPerSeed:   20,
			SeenStoreCapacity: 10000,
			DefaultSettings: SmartQueueSettings{
				AutoQueueEnabled:     true,
				AutoQueueThreshold:   3,
				AutoQueueCount:       5,
				SimilarityPreference: SimilarityBalanced,
				SmartMixEnabled:      true,
			},
		},
	}
}
