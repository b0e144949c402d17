package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/whisper/modengine/loadtest/gateway"
	"github.com/whisper/modengine/loadtest/stats"
)

// runFlood implements the clean-message throughput test. It publishes
// harmless text messages from many synthetic users across many chats at a
// fixed rate and watches the engine's metrics. No rule should fire: the test
// measures how much clean traffic the cascade absorbs and what latency the
// engine reports for it.
func runFlood(args []string) {
	fs := flag.NewFlagSet("flood", flag.ExitOnError)
	natsURL := fs.String("nats", nats.DefaultURL, "NATS server URL")
	metricsURL := fs.String("metrics", "http://localhost:9102/metrics", "Engine metrics URL")
	chats := fs.Int("chats", 50, "Number of synthetic chats")
	users := fs.Int("users", 500, "Number of synthetic users")
	rate := fs.Int("rate", 1000, "Publish rate in events per second")
	duration := fs.Duration("duration", 30*time.Second, "Test duration")
	fs.Parse(args)

	fmt.Printf("Flood test: %d events/s for %s across %d chats, %d users\n",
		*rate, *duration, *chats, *users)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		fmt.Printf("NATS connect failed: %v\n", err)
		return
	}
	defer nc.Close()

	gw, err := gateway.New(nc, gateway.Options{})
	if err != nil {
		fmt.Printf("gateway start failed: %v\n", err)
		return
	}
	defer gw.Close()

	// Drain the action stream; flood traffic should produce nothing beyond
	// role lookups, and the final counts will show whether that held.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-gw.Actions():
			}
		}
	}()

	collector := stats.NewCollector()
	scraper := stats.NewScraper(*metricsURL, 5*time.Second)
	scraper.Start(ctx)
	collector.SetScraper(scraper)

	interval := time.Second / time.Duration(*rate)
	if interval <= 0 {
		interval = time.Microsecond
	}

	var msgID atomic.Int64
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.After(*duration)

	// Progress reporting every 5 seconds.
	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()

	i := 0
loop:
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nInterrupted.")
			break loop
		case <-deadline:
			break loop
		case <-progress.C:
			fmt.Printf("  [flood] published: %d  errors: %d\n",
				collector.PublishedCount(), collector.ErrorCount())
		case <-ticker.C:
			chatID := int64(-1000 - i%*chats)
			userID := int64(1 + i%*users)
			evt := gateway.TextMessage(chatID, userID, msgID.Add(1),
				fmt.Sprintf("hello from user %d", userID))
			if err := gateway.PublishEvent(nc, evt); err != nil {
				collector.AddError()
			} else {
				collector.AddPublished()
			}
			i++
		}
	}

	// Let in-flight events settle before the final scrape.
	time.Sleep(2 * time.Second)
	scraper.Stop()

	counts := gw.Counts()
	fmt.Printf("\nGateway action counts: %v (dropped %d)\n", counts, gw.Dropped())
	if n := counts["ban_user"] + counts["delete_message"] + counts["delete_messages"]; n > 0 {
		fmt.Printf("WARNING: %d moderation actions fired on clean traffic\n", n)
	}

	collector.Report()
}
