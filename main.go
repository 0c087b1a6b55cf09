package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"auction-house/internal/bidengine"
	"auction-house/internal/cache"
	"auction-house/internal/config"
	"auction-house/internal/notify"
	"auction-house/internal/realtime"
	"auction-house/internal/repository"
	"auction-house/internal/scheduler"
	"auction-house/internal/server"
	"auction-house/internal/statemachine"
	"auction-house/services/auction/handler"
	"auction-house/utils"
)

func main() {
	cfg := config.Load()

	store, err := repository.NewGormStore(cfg.DBDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	jobStore, err := scheduler.NewGormJobStore(store.DB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to migrate job table: %v\n", err)
		os.Exit(1)
	}

	redisCache, err := cache.NewRedisCache(cfg.RedisAddr, "", cfg.RedisDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to redis: %v\n", err)
		os.Exit(1)
	}
	invalidator := cache.NewInvalidator(redisCache)

	notifier, err := notify.NewNATSNotifier(cfg.NATSURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to NATS: %v\n", err)
		os.Exit(1)
	}
	defer notifier.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// realtime: local hub, redis bridge so events reach every instance
	hub := realtime.NewHub()
	bridge := realtime.NewBridge(redisCache.Client(), hub)
	hub.LeaveHook = func(auctionID string) {
		if count, err := bridge.Leave(ctx, auctionID); err == nil {
			bridge.EmitParticipants(auctionID, count)
		}
	}
	go func() {
		if err := bridge.Run(ctx); err != nil {
			utils.Error("realtime bridge stopped", map[string]any{"error": err.Error()})
		}
	}()

	jobs := scheduler.New(jobStore, instanceID(), int64(cfg.WorkerCount), cfg.PollInterval)
	machine := statemachine.New(store, jobs, notifier, bridge, invalidator)
	for _, name := range []string{scheduler.JobStartAuction, scheduler.JobEndAuction, scheduler.JobUpdateStatus} {
		jobs.RegisterHandler(name, machine.HandleTransitionJob)
	}
	go func() {
		if err := jobs.Run(ctx); err != nil {
			utils.Error("scheduler stopped", map[string]any{"error": err.Error()})
		}
	}()

	engine := bidengine.NewEngine(store, redisCache, invalidator, notifier, bridge)

	ticker := realtime.NewTicker(store, bridge)
	c := cron.New()
	c.AddFunc("@every 1m", jobs.UnlockStaleTask(cfg.StaleAfter))
	c.AddFunc("@every 30s", ticker.Task())
	c.Start()
	defer c.Stop()

	auctionHandler := handler.NewAuctionHandler(machine)
	bidHandler := handler.NewBidHandler(engine)
	wsHandler := realtime.NewWSHandler(hub, bridge, bridge)

	router := server.SetupRouter(cfg.JWTSecret, auctionHandler, bidHandler, wsHandler)

	fmt.Printf("Starting auction server on %s...\n", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}

// instanceID identifies this process in the shared job table
func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		return utils.GenerateID()
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
