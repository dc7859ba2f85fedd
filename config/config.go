package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultCacheTTLSeconds  = 60
	defaultAsynqQueue       = "ingest"
	defaultAsynqConcurrency = 4
)

type Config struct {
	// database path (sqlite)
	DatabasePath string

	// root directory holding one sub-directory per album
	ImagesBasePath string

	// cache / job transport (redis)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// cache expiration applied to every cached read
	CacheTTLSeconds int

	// ingestion queue settings
	AsynqQueue       string
	AsynqConcurrency int

	// auth
	JWTSecret string

	// comma-separated allowed CORS origins
	CORSOrigins []string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "gallery.db")

	imagesBase := getEnvOrDefault("IMAGES_BASE_PATH", filepath.Join(".", "imagens"))
	absImagesBase, err := filepath.Abs(imagesBase)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for images base '%s': %w", imagesBase, err)
	}

	var origins []string
	for _, o := range strings.Split(getEnvOrDefault("CORS_ORIGINS", "http://localhost:5173"), ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}

	cfg := Config{
		DatabasePath:     dbPath,
		ImagesBasePath:   absImagesBase,
		RedisAddr:        getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvIntOrDefault("REDIS_DB", 0),
		CacheTTLSeconds:  getEnvIntOrDefault("CACHE_TTL_SECONDS", defaultCacheTTLSeconds),
		AsynqQueue:       getEnvOrDefault("ASYNQ_QUEUE", defaultAsynqQueue),
		AsynqConcurrency: getEnvIntOrDefault("ASYNQ_CONCURRENCY", defaultAsynqConcurrency),
		JWTSecret:        getEnvOrDefault("JWT_SECRET", ""),
		CORSOrigins:      origins,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	return cfg, nil
}
