package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultAddr      = "127.0.0.1:8091"
	defaultRetention = 30 * 24 * time.Hour
	defaultCacheTTL  = 1 * time.Hour
)

type Config struct {
	DBPath        string
	Addr          string
	RedisAddr     string // empty disables the shared report cache
	CacheTTL      time.Duration
	Retention     time.Duration
	PruneInterval time.Duration
	Workers       int
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultDBPath := filepath.Join(cwd, "depwarden.db")

	dbPath := envOrDefault("DEPWARDEN_DB_PATH", defaultDBPath)
	addr := addrFromEnv(defaultAddr)
	redisAddr := os.Getenv("DEPWARDEN_REDIS_ADDR")

	retention := defaultRetention
	if retentionEnv := os.Getenv("DEPWARDEN_RETENTION"); retentionEnv != "" {
		parsed, err := time.ParseDuration(retentionEnv)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEPWARDEN_RETENTION: %w", err)
		}
		retention = parsed
	}

	cacheTTL := defaultCacheTTL
	if ttlEnv := os.Getenv("DEPWARDEN_CACHE_TTL"); ttlEnv != "" {
		parsed, err := time.ParseDuration(ttlEnv)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEPWARDEN_CACHE_TTL: %w", err)
		}
		cacheTTL = parsed
	}

	flagSet := flag.NewFlagSet("depwarden-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("db", dbPath, "path to SQLite database")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagRedis := flagSet.String("redis", redisAddr, "redis address for the shared report cache (empty disables)")
	flagRetention := flagSet.String("retention", retention.String(), "run retention window")
	flagPruneInterval := flagSet.String("prune-interval", "1h", "how often retention is enforced")
	flagWorkers := flagSet.Int("workers", 0, "evaluation workers (0 = one per CPU)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	retentionParsed, err := time.ParseDuration(*flagRetention)
	if err != nil {
		return Config{}, fmt.Errorf("invalid retention: %w", err)
	}
	if retentionParsed < 0 {
		return Config{}, errors.New("retention must not be negative")
	}

	pruneIntervalParsed, err := time.ParseDuration(*flagPruneInterval)
	if err != nil {
		return Config{}, fmt.Errorf("invalid prune interval: %w", err)
	}
	if pruneIntervalParsed <= 0 {
		return Config{}, errors.New("prune interval must be positive")
	}

	config := Config{
		DBPath:        resolvePath(*flagDB, cwd),
		Addr:          strings.TrimSpace(*flagAddr),
		RedisAddr:     strings.TrimSpace(*flagRedis),
		CacheTTL:      cacheTTL,
		Retention:     retentionParsed,
		PruneInterval: pruneIntervalParsed,
		Workers:       *flagWorkers,
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("DEPWARDEN_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("DEPWARDEN_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
