package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"attendlive/internal/config"
	"attendlive/internal/event"
	"attendlive/internal/render"
	"attendlive/internal/session"
	"attendlive/internal/store"
)

// Worker runs the presentation adapter out of process: it subscribes to the
// Redis event bus and renders rolling attendance summaries to the log.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.BusBackend != "redis" {
		log.Println("WARNING: BUS_BACKEND is not redis; a separate worker cannot see in-memory events")
	}
	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	bus := event.NewRedisBus(redisClient.Client, "attendlive:events")

	messages, err := bus.Consume(ctx)
	if err != nil {
		log.Fatalf("bus consume init failed: %v", err)
	}

	r := render.New()
	log.Println("worker started, waiting for session events...")
	for msg := range messages {
		var p session.EventPayload
		if err := json.Unmarshal(msg.Body, &p); err != nil {
			log.Printf("bad event body: %v", err)
			continue
		}
		r.Apply(msg.Type, p)
	}

	log.Println("worker stopped")
}
