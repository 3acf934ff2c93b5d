package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"facemark/internal/attendance"
	"facemark/internal/config"
	"facemark/internal/notify"
	"facemark/internal/queue"
	"facemark/internal/store"
)

// Worker consumes queued notices and delivers them through the SMS gateway.
// Delivery is best effort: failures are logged and the notice is dropped.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "facemark:notices")
	}

	repo := attendance.NewRepository(db.Client)
	sms := notify.NewSMSClient(cfg.SMSGatewayURL, cfg.SMSSender, cfg.SMSSkip)
	deliverer := notify.NewDeliverer(repo, sms, cfg.SMSCountryPrefix)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for notices...")
	for msg := range messages {
		if msg.Type != "notice" {
			continue
		}

		var notice notify.Notice
		if err := json.Unmarshal(msg.Body, &notice); err != nil {
			log.Printf("bad notice payload: %v", err)
			continue
		}

		if err := deliverer.Deliver(ctx, notice); err != nil {
			log.Printf("notice %s for %s failed: %v", notice.ID, notice.Identity, err)
			continue
		}
		log.Printf("notice %s delivered to %s", notice.ID, notice.Identity)
	}

	log.Println("worker stopped")
}
