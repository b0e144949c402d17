// Package main is an end-to-end smoke test for a running moderation engine.
// It connects to NATS, serves the action subject as a fake gateway, publishes
// a handful of crafted events, and verifies the engine reacts the way the
// rule cascade promises. Exit code 0 means every scenario passed.
//
// Usage:
//
//	e2etest [-nats URL] [-metrics URL]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/whisper/modengine/loadtest/gateway"
)

const (
	resultPass = "PASS"
	resultFail = "FAIL"
)

type scenarioResult struct {
	name   string
	result string
	detail string
}

var msgID atomic.Int64

func main() {
	natsURL := flag.String("nats", nats.DefaultURL, "NATS server URL")
	metricsURL := flag.String("metrics", "http://localhost:9102/metrics", "Engine metrics URL")
	flag.Parse()

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		fmt.Printf("NATS connect failed: %v\n", err)
		os.Exit(1)
	}
	defer nc.Close()

	gw, err := gateway.New(nc, gateway.Options{})
	if err != nil {
		fmt.Printf("gateway start failed: %v\n", err)
		os.Exit(1)
	}
	defer gw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := []scenarioResult{
		checkMetrics(*metricsURL),
		checkProfanityBan(ctx, nc, gw),
		checkMediaFlood(ctx, nc, gw),
		checkCleanMessage(nc, gw),
	}

	fmt.Println("\n=== E2E Results ===")
	failed := 0
	for _, r := range results {
		fmt.Printf("  [%s] %s", r.result, r.name)
		if r.detail != "" {
			fmt.Printf(" — %s", r.detail)
		}
		fmt.Println()
		if r.result == resultFail {
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// checkMetrics verifies the engine's metrics endpoint is up and exposing the
// engine's counters.
func checkMetrics(url string) scenarioResult {
	const name = "metrics endpoint"
	resp, err := http.Get(url)
	if err != nil {
		return scenarioResult{name, resultFail, err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return scenarioResult{name, resultFail, err.Error()}
	}
	if !strings.Contains(string(body), "modengine_events_total") {
		return scenarioResult{name, resultFail, "missing modengine_events_total"}
	}
	return scenarioResult{name, resultPass, ""}
}

// awaitOp waits for the next action with the given op for userID.
func awaitOp(gw *gateway.Gateway, op string, userID int64, timeout time.Duration) (gateway.Action, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case act := <-gw.Actions():
			if act.Op == op && act.UserID == userID {
				return act, true
			}
		case <-deadline:
			return gateway.Action{}, false
		}
	}
}

// checkProfanityBan publishes a filtered phrase from a plain member and
// expects a revoking ban.
func checkProfanityBan(ctx context.Context, nc *nats.Conn, gw *gateway.Gateway) scenarioResult {
	const name = "profanity draws ban"
	userID := int64(910_001)

	evt := gateway.TextMessage(-910_001, userID, msgID.Add(1), "free nsfw content here")
	if err := gateway.PublishEvent(nc, evt); err != nil {
		return scenarioResult{name, resultFail, err.Error()}
	}
	if _, ok := awaitOp(gw, "ban_user", userID, 5*time.Second); !ok {
		return scenarioResult{name, resultFail, "no ban_user within 5s"}
	}
	return scenarioResult{name, resultPass, ""}
}

// checkMediaFlood publishes a burst of stickers and expects a bulk delete
// plus a warning message.
func checkMediaFlood(ctx context.Context, nc *nats.Conn, gw *gateway.Gateway) scenarioResult {
	const name = "media flood draws bulk delete"
	userID := int64(910_002)
	chatID := int64(-910_002)

	for i := 0; i < 20; i++ {
		if err := gateway.PublishEvent(nc, gateway.StickerMessage(chatID, userID, msgID.Add(1))); err != nil {
			return scenarioResult{name, resultFail, err.Error()}
		}
	}
	act, ok := awaitOp(gw, "delete_messages", userID, 5*time.Second)
	if !ok {
		return scenarioResult{name, resultFail, "no delete_messages within 5s"}
	}
	if len(act.MsgIDs) != 20 {
		return scenarioResult{name, resultFail, fmt.Sprintf("bulk delete covered %d messages, want 20", len(act.MsgIDs))}
	}
	return scenarioResult{name, resultPass, ""}
}

// checkCleanMessage publishes a harmless message and expects no moderation
// action against its author.
func checkCleanMessage(nc *nats.Conn, gw *gateway.Gateway) scenarioResult {
	const name = "clean message passes"
	userID := int64(910_003)

	evt := gateway.TextMessage(-910_003, userID, msgID.Add(1), "good morning everyone")
	if err := gateway.PublishEvent(nc, evt); err != nil {
		return scenarioResult{name, resultFail, err.Error()}
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case act := <-gw.Actions():
			if act.UserID == userID && act.Op != "get_role" {
				return scenarioResult{name, resultFail, "unexpected action " + act.Op}
			}
		case <-deadline:
			return scenarioResult{name, resultPass, ""}
		}
	}
}
