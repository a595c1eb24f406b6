package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/depwarden/depwarden/pkg/api"
	"github.com/depwarden/depwarden/pkg/engine"
	"github.com/depwarden/depwarden/pkg/integrity"
	"github.com/depwarden/depwarden/pkg/license"
	"github.com/depwarden/depwarden/pkg/store"
	redisstore "github.com/depwarden/depwarden/pkg/store/redis"
)

var (
	Version   = "v1.0.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	fmt.Println(`{"level":"info","msg":"system_started","component":"depwarden-d"}`)

	config, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Printf(`{"level":"fatal","msg":"invalid_config","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	st, err := store.NewStore(config.DBPath)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_init_store","error":"%v"}`+"\n", err)
		os.Exit(1)
	}
	fmt.Printf(`{"level":"info","msg":"store_initialized","path":"%s"}`+"\n", config.DBPath)

	var cache api.CacheInterface
	if config.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: config.RedisAddr})
		cache = redisstore.NewReportCache(rdb, config.CacheTTL)
		fmt.Printf(`{"level":"info","msg":"report_cache_enabled","addr":"%s"}`+"\n", config.RedisAddr)
	}

	evaluator := license.NewEvaluator(license.DefaultTaxonomy(), integrity.NewLocalSource(""))
	checker := engine.NewChecker(evaluator, config.Workers)

	server := api.NewServer(config.Addr, st, checker, cache, Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pruner := store.NewPruneWorker(st, config.Retention, config.PruneInterval)
	go pruner.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		fmt.Printf(`{"level":"info","msg":"shutdown_initiated","signal":"%s"}`+"\n", sig)
	case err := <-serverErr:
		if err != nil {
			fmt.Printf(`{"level":"fatal","msg":"server_failed","error":"%v"}`+"\n", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_stop_server","error":"%v"}`+"\n", err)
	}

	if err := st.Close(); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_close_store","error":"%v"}`+"\n", err)
	} else {
		fmt.Println(`{"level":"info","msg":"store_closed"}`)
	}

	fmt.Println(`{"level":"info","msg":"shutdown_complete"}`)
}
