package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AntrikshVats/HostelManagement/internal/config"
	"github.com/AntrikshVats/HostelManagement/internal/queue"
	"github.com/AntrikshVats/HostelManagement/internal/store"
	"github.com/AntrikshVats/HostelManagement/internal/token"
	"github.com/AntrikshVats/HostelManagement/internal/violation"
)

// Sweeper runs the nightly curfew sweep on an interval, reclaims expired
// presence tokens, and publishes an alert per flagged student. The sweep is
// idempotent per day, so waking every interval inside the night window is
// safe; outside the window each run is a no-op.
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
		q = queue.NewRedisQueue(redisClient.Client, "hostel:alerts")
	}

	curfewHour, curfewMinute := cfg.Curfew()
	detector := violation.NewDetector(violation.NewRepository(db.Client), curfewHour, curfewMinute, cfg.Location())
	tokens := token.NewService(token.NewRepository(db.Client), cfg.TokenTTL)

	// Alert delivery loop. Warden notification transport plugs in here; for
	// now every alert is logged.
	go func() {
		messages, err := q.Consume(ctx)
		if err != nil {
			log.Printf("queue consume init failed: %v", err)
			return
		}
		for msg := range messages {
			if msg.Type != "curfew_alert" {
				continue
			}
			var res violation.SweepResult
			if err := json.Unmarshal(msg.Body, &res); err != nil {
				log.Printf("bad alert payload: %v", err)
				continue
			}
			log.Printf("ALERT: %s (%s) out since %s (%.1fh past curfew window)",
				res.Name, res.StudentID, res.LastOut.Format("15:04"), res.HoursOut)
		}
	}()

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	log.Printf("sweeper started, interval %s, curfew %02d:%02d", cfg.SweepInterval, curfewHour, curfewMinute)
	runOnce(ctx, detector, tokens, q)
	for {
		select {
		case <-ticker.C:
			runOnce(ctx, detector, tokens, q)
		case <-ctx.Done():
			log.Println("sweeper stopped")
			return
		}
	}
}

func runOnce(ctx context.Context, detector *violation.Detector, tokens *token.Service, q queue.Queue) {
	results, err := detector.Sweep(ctx)
	if err != nil {
		log.Printf("curfew sweep failed: %v", err)
	} else if len(results) > 0 {
		log.Printf("curfew sweep flagged %d student(s)", len(results))
		for _, res := range results {
			payload, err := json.Marshal(res)
			if err != nil {
				continue
			}
			if err := q.Publish(ctx, queue.Message{Type: "curfew_alert", Body: payload}); err != nil {
				log.Printf("alert publish failed for %s: %v", res.StudentID, err)
			}
		}
	}

	removed, err := tokens.CleanupExpired(ctx)
	if err != nil {
		log.Printf("token cleanup failed: %v", err)
	} else if removed > 0 {
		log.Printf("reclaimed %d expired token(s)", removed)
	}
}
