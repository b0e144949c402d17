package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/whisper/modengine/loadtest/gateway"
	"github.com/whisper/modengine/loadtest/stats"
)

// mediaSpamLimit mirrors the engine's media window threshold.
const mediaSpamLimit = 20

// runSpam implements the media flood test. Each synthetic user fires a burst
// of stickers that must trip the engine's media window, and the test measures
// the latency from the burst's last publish to the bulk-delete arriving at
// the gateway.
func runSpam(args []string) {
	fs := flag.NewFlagSet("spam", flag.ExitOnError)
	natsURL := fs.String("nats", nats.DefaultURL, "NATS server URL")
	metricsURL := fs.String("metrics", "http://localhost:9102/metrics", "Engine metrics URL")
	users := fs.Int("users", 100, "Number of synthetic spammers")
	concurrency := fs.Int("concurrency", 10, "Simultaneous bursts")
	timeout := fs.Duration("timeout", 10*time.Second, "Per-burst wait for the bulk delete")
	fs.Parse(args)

	fmt.Printf("Spam test: %d users, bursts of %d stickers, concurrency=%d\n",
		*users, mediaSpamLimit, *concurrency)

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

	collector := stats.NewCollector()
	scraper := stats.NewScraper(*metricsURL, 5*time.Second)
	scraper.Start(ctx)
	collector.SetScraper(scraper)

	router := newActionRouter(ctx, gw, "delete_messages")

	var msgID atomic.Int64
	var incomplete atomic.Int64

	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup

	for u := 0; u < *users; u++ {
		if ctx.Err() != nil {
			break
		}
		userID := int64(10_000 + u)
		chatID := int64(-2000 - u)

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			ch := router.register(userID)
			defer router.unregister(userID)

			var lastPublish time.Time
			for i := 0; i < mediaSpamLimit; i++ {
				evt := gateway.StickerMessage(chatID, userID, msgID.Add(1))
				if err := gateway.PublishEvent(nc, evt); err != nil {
					collector.AddError()
					return
				}
				collector.AddPublished()
				lastPublish = time.Now()
			}

			act, ok := await(ch, *timeout)
			if !ok {
				collector.AddError()
				return
			}
			collector.AddTriggerLatency(act.At.Sub(lastPublish))
			if len(act.MsgIDs) != mediaSpamLimit {
				incomplete.Add(1)
			}
		}()
	}

	wg.Wait()
	scraper.Stop()

	if n := incomplete.Load(); n > 0 {
		fmt.Printf("\nWARNING: %d bulk deletes covered fewer than %d messages\n", n, mediaSpamLimit)
	}
	fmt.Printf("\nGateway action counts: %v\n", gw.Counts())

	collector.Report()
}
