package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/whisper/modengine/internal/admin"
	"github.com/whisper/modengine/internal/audit"
	"github.com/whisper/modengine/internal/ban"
	"github.com/whisper/modengine/internal/command"
	"github.com/whisper/modengine/internal/directory"
	"github.com/whisper/modengine/internal/engine"
	"github.com/whisper/modengine/internal/event"
	"github.com/whisper/modengine/internal/filter"
	"github.com/whisper/modengine/internal/globalban"
	"github.com/whisper/modengine/internal/messaging"
	"github.com/whisper/modengine/internal/metrics"
	"github.com/whisper/modengine/internal/platform"
	"github.com/whisper/modengine/internal/window"
)

func main() {
	log.Println("Starting moderation engine...")

	// Local development convenience; missing .env is not an error.
	if err := godotenv.Load(); err == nil {
		log.Println("[main] loaded .env")
	}

	operatorID, err := strconv.ParseInt(os.Getenv("OPERATOR_ID"), 10, 64)
	if err != nil || operatorID == 0 {
		log.Fatalf("OPERATOR_ID must be set to the operator's numeric user ID")
	}

	actionTimeout := platform.DefaultActionTimeout
	if v := os.Getenv("ACTION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid ACTION_TIMEOUT %q: %v", v, err)
		}
		actionTimeout = d
	}

	metricsAddr := ":9102"
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		metricsAddr = v
	}

	// NATS setup.
	natsConfig := messaging.DefaultConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}

	natsClient, err := messaging.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	actions := platform.NewInstrumented(platform.NewNATSActions(natsClient), actionTimeout)

	// Optional Redis ban ledger.
	var (
		rdb      *redis.Client
		banStore *ban.Store
	)
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		cancel()
		banStore = ban.NewStore(rdb)
	} else {
		log.Println("[main] REDIS_ADDR not set, ban ledger disabled")
	}

	// Optional Postgres audit log.
	var auditStore *audit.Store
	postgresDSN := os.Getenv("POSTGRES_DSN")
	if postgresDSN != "" {
		auditStore, err = audit.Open(postgresDSN)
		if err != nil {
			log.Fatalf("failed to open audit store: %v", err)
		}
	} else {
		log.Println("[main] POSTGRES_DSN not set, audit log disabled")
	}

	// Core moderation state.
	dir := directory.New()
	windows := window.NewStore()
	admins := admin.New(actions)
	contentFilter := filter.New()

	engineCfg := engine.Config{
		Actions:   actions,
		Filter:    contentFilter,
		Windows:   windows,
		Directory: dir,
		Admins:    admins,
	}
	if auditStore != nil {
		engineCfg.Audit = auditStore
	}
	if banStore != nil {
		engineCfg.Ledger = banStore
	}
	eng := engine.New(engineCfg)

	var gbanLedger globalban.Ledger
	if banStore != nil {
		gbanLedger = banStore
	}
	gbans := globalban.New(actions, dir, gbanLedger)

	commandCfg := command.Config{
		Actions:    actions,
		Directory:  dir,
		Admins:     admins,
		GlobalBans: gbans,
		OperatorID: operatorID,
		Started:    time.Now(),
	}
	if auditStore != nil {
		commandCfg.Audit = auditStore
	}
	if banStore != nil {
		commandCfg.Ledger = banStore
	}
	router := command.New(commandCfg).Router()

	// Consume the platform event stream. One goroutine per event: the rule
	// cascade issues blocking action RPCs and must not stall the subscription.
	err = natsClient.SubscribeEvents(func(data []byte) {
		go func() {
			var evt event.Event
			if err := json.Unmarshal(data, &evt); err != nil {
				metrics.EventsTotal.WithLabelValues("invalid").Inc()
				log.Printf("[main] bad event payload: %v", err)
				return
			}

			ctx := context.Background()
			if inv, ok := command.Parse(evt); ok {
				// Commands bypass the rule cascade but still feed the directory.
				dir.Observe(evt.Chat, evt.From)
				router.Dispatch(ctx, inv)
				return
			}
			eng.HandleEvent(ctx, evt)
		}()
	})
	if err != nil {
		log.Fatalf("failed to subscribe to events: %v", err)
	}

	// Metrics endpoint.
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		log.Printf("[main] metrics listening on %s", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics server: %v", err)
		}
	}()

	// Periodic gauge refresh.
	gaugeStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.KnownChats.Set(float64(dir.ChatCount()))
				metrics.TrackedWindows.Set(float64(windows.Tracked()))
			case <-gaugeStop:
				return
			}
		}
	}()

	log.Printf("Moderation engine running")
	log.Printf("  nats_url:       %s", natsConfig.URL)
	log.Printf("  metrics_addr:   %s", metricsAddr)
	log.Printf("  action_timeout: %s", actionTimeout)
	log.Printf("  ban_ledger:     %v", banStore != nil)
	log.Printf("  audit_log:      %v", auditStore != nil)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	close(gaugeStop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] metrics server shutdown: %v", err)
	}
	cancel()

	natsClient.Close()
	if rdb != nil {
		rdb.Close()
	}
	if auditStore != nil {
		auditStore.Close()
	}
}
