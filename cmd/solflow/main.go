// Command solflow runs the full SolFlow pipeline: trade producers feeding
// a bounded ingestion channel, the single-writer aggregation engine, the
// flush coordinator persisting to the embedded store, and the read-only
// API/websocket surface. Wiring mirrors the teacher's main.go: config
// loaded once, dependencies constructed in order, background tasks
// started against one root context, graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"solflow/internal/alerts"
	"solflow/internal/api"
	"solflow/internal/blocklist"
	"solflow/internal/config"
	"solflow/internal/engine"
	"solflow/internal/eventbus"
	"solflow/internal/flush"
	"solflow/internal/ingestion"
	"solflow/internal/metadata"
	"solflow/internal/models"
	"solflow/internal/producers"
	"solflow/internal/pruner"
	"solflow/internal/store"
)

func main() {
	configPath := os.Getenv("SOLFLOW_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	log.Printf("Starting SolFlow pipeline (store=%s pipeline_enabled=%v)", cfg.StorePath, cfg.PipelineEnabled)

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	bus := eventbus.New()
	defer bus.Close()

	oracle := blocklist.New(st)
	oracle.Refresh(context.Background())

	eng := engine.New(time.Now)

	api.ConfigureRateLimit(cfg.APIRateLimitRPS, cfg.APIRateBurst, time.Duration(cfg.APIRateLimitTTLMinutes)*time.Minute)
	auth := api.NewAuthenticator(cfg.APIJWTSecret)
	apiServer := api.NewServer(st, bus, auth)

	var delivery alerts.Delivery
	if cfg.AlertsWebhookAuthToken != "" {
		svixDelivery, err := alerts.NewSvixDelivery(cfg.AlertsWebhookAuthToken)
		if err != nil {
			log.Fatalf("create svix delivery: %v", err)
		}
		delivery = svixDelivery
	} else {
		delivery = alerts.NewNoopDelivery()
	}
	dispatcher := alerts.NewDispatcher(delivery, cfg.AlertsAppID)

	signalCh := make(chan eventbus.Event, 256)
	bus.Subscribe("signal", signalCh)
	go func() {
		for evt := range signalCh {
			sig, ok := evt.Data.(models.Signal)
			if !ok {
				continue
			}
			dispatcher.Dispatch(context.Background(), sig)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// The ingestion channel and producers are constructed unconditionally:
	// per spec section 6, pipeline_enabled=false only turns off the engine
	// (and everything downstream of it — flush, pruner, metadata), not
	// ingestion itself. Producers keep pushing trades onto the channel
	// either way; with the engine absent there is simply no consumer
	// draining it, so Send's non-blocking drop path is what bounds memory.
	channel := ingestion.NewChannel(cfg.ChannelCapacity)

	apiServer.SetStatsSource(func() map[string]interface{} {
		stats := map[string]interface{}{
			"ingested":        channel.Stats().Ingested(),
			"dropped":         channel.Stats().Dropped(),
			"fill_level":      channel.FillLevel(),
			"signal_subs":     bus.SubscriberCount("signal"),
			"signal_bus_drop": bus.DroppedCount("signal"),
		}
		if cfg.PipelineEnabled {
			eng.Lock()
			stats["active_mints"] = len(eng.ActiveMintsLocked())
			eng.Unlock()
		}
		return stats
	})

	if cfg.PipelineEnabled {
		consumer := ingestion.NewConsumer(channel, eng)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()

		coordinator := flush.New(eng, st, oracle, bus, time.Now, flush.Config{
			DeltaInterval: time.Duration(cfg.DeltaFlushSeconds) * time.Second,
			FullInterval:  time.Duration(cfg.FullFlushSeconds) * time.Second,
			BatchSize:     cfg.BatchSize,
		})
		coordinator.Start(ctx)

		p := pruner.New(eng, time.Now, time.Duration(cfg.PruneThresholdSec)*time.Second, time.Duration(cfg.PruneIntervalSec)*time.Second)
		p.Start(ctx)

		wg.Add(1)
		go func() {
			defer wg.Done()
			oracle.RunRefreshLoop(ctx, time.Minute)
		}()

		activeMints := func() []string {
			eng.Lock()
			defer eng.Unlock()
			return eng.ActiveMintsLocked()
		}
		metaTask := metadata.NewTask(st, activeMints, time.Duration(cfg.MetadataRefreshSeconds)*time.Second)
		metaTask.Start(ctx)
	} else {
		log.Println("Pipeline is DISABLED (pipeline_enabled=false): engine/flush/pruner/metadata are not started, API serves stored data only")
	}

	if cfg.TradeSourceURL != "" {
		startProducers(ctx, &wg, cfg.TradeSourceURL, channel)
	} else {
		log.Println("[Producers] SOLFLOW_TRADE_SOURCE_URL unset, producers disabled")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	addr := ":" + strconv.Itoa(cfg.APIPort)
	go func() {
		log.Printf("[API] listening on %s", addr)
		if err := api.Serve(ctx, addr, apiServer.Handler()); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server failed: %v", err)
		}
	}()

	<-sigChan
	log.Println("shutting down...")
	cancel()
	wg.Wait()
}

// startProducers dials the configured Geyser-compatible endpoint once and
// spawns one subscription loop per tracked program, per spec section 2
// item 8. A dial failure disables producers for this run rather than
// crashing the process — the API and any already-stored aggregates
// remain usable.
func startProducers(ctx context.Context, wg *sync.WaitGroup, target string, sink producers.Sink) {
	client, err := producers.Dial(ctx, target)
	if err != nil {
		log.Printf("[Producers] dial %s failed, producers disabled: %v", target, err)
		return
	}
	for program, programID := range producers.TrackedPrograms {
		p := producers.New(client, program, programID, sink)
		wg.Add(1)
		go func(p *producers.Producer) {
			defer wg.Done()
			p.Run(ctx)
		}(p)
	}
}
