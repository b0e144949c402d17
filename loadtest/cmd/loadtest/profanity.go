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

// runProfanity implements the content filter test. Each synthetic user sends
// one message containing a filtered phrase and the test measures the latency
// until the engine's ban lands at the gateway.
func runProfanity(args []string) {
	fs := flag.NewFlagSet("profanity", flag.ExitOnError)
	natsURL := fs.String("nats", nats.DefaultURL, "NATS server URL")
	metricsURL := fs.String("metrics", "http://localhost:9102/metrics", "Engine metrics URL")
	users := fs.Int("users", 200, "Number of synthetic offenders")
	concurrency := fs.Int("concurrency", 20, "Simultaneous offenders")
	timeout := fs.Duration("timeout", 10*time.Second, "Per-user wait for the ban")
	fs.Parse(args)

	fmt.Printf("Profanity test: %d users, concurrency=%d\n", *users, *concurrency)

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

	router := newActionRouter(ctx, gw, "ban_user")

	var msgID atomic.Int64

	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup

	for u := 0; u < *users; u++ {
		if ctx.Err() != nil {
			break
		}
		userID := int64(20_000 + u)
		chatID := int64(-3000 - u%10)

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			ch := router.register(userID)
			defer router.unregister(userID)

			evt := gateway.TextMessage(chatID, userID, msgID.Add(1), "subscribe to my onlyfans")
			published := time.Now()
			if err := gateway.PublishEvent(nc, evt); err != nil {
				collector.AddError()
				return
			}
			collector.AddPublished()

			act, ok := await(ch, *timeout)
			if !ok {
				collector.AddError()
				return
			}
			collector.AddTriggerLatency(act.At.Sub(published))
		}()
	}

	wg.Wait()
	scraper.Stop()

	fmt.Printf("\nGateway action counts: %v\n", gw.Counts())

	collector.Report()
}
