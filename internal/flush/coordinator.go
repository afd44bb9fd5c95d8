// Package flush implements the flush coordinator of spec section 4.3,
// directly modeled on the teacher's ingester.CheckpointCommitter
// (internal/ingester/committer.go): one goroutine multiplexing two
// tickers in a single select, acquiring the engine lock exactly once per
// tick and performing all store I/O after releasing it.
package flush

import (
	"context"
	"time"

	"solflow/internal/blocklist"
	"solflow/internal/engine"
	"solflow/internal/eventbus"
	"solflow/internal/logging"
	"solflow/internal/models"
	"solflow/internal/store"
)

// Coordinator owns the delta and full flush timers.
type Coordinator struct {
	engine    *engine.Engine
	store     *store.Store
	blocklist *blocklist.Oracle
	bus       *eventbus.Bus
	clock     func() time.Time
	log       *logging.Logger

	deltaInterval time.Duration
	fullInterval  time.Duration
	batchSize     int
}

// Config holds the coordinator's tunables, all sourced from
// internal/config.Config.
type Config struct {
	DeltaInterval time.Duration
	FullInterval  time.Duration
	BatchSize     int
}

func New(eng *engine.Engine, st *store.Store, oracle *blocklist.Oracle, bus *eventbus.Bus, clock func() time.Time, cfg Config) *Coordinator {
	return &Coordinator{
		engine:        eng,
		store:         st,
		blocklist:     oracle,
		bus:           bus,
		clock:         clock,
		log:           logging.New("Flush"),
		deltaInterval: cfg.DeltaInterval,
		fullInterval:  cfg.FullInterval,
		batchSize:     cfg.BatchSize,
	}
}

// Start spawns the background goroutine running the coordinator's loop.
func (c *Coordinator) Start(ctx context.Context) {
	c.log.Printf("starting flush coordinator: delta=%s full=%s batch=%d", c.deltaInterval, c.fullInterval, c.batchSize)
	go c.runLoop(ctx)
}

func (c *Coordinator) runLoop(ctx context.Context) {
	deltaTicker := time.NewTicker(c.deltaInterval)
	fullTicker := time.NewTicker(c.fullInterval)
	defer deltaTicker.Stop()
	defer fullTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Println("stopping, running final full flush")
			c.fullFlush(context.Background())
			return
		case <-deltaTicker.C:
			c.deltaFlush(ctx)
		case <-fullTicker.C:
			c.fullFlush(ctx)
		}
	}
}

// deltaFlush computes metrics only for mints touched since the previous
// delta flush.
func (c *Coordinator) deltaFlush(ctx context.Context) {
	now := c.clock()

	c.engine.Lock()
	mints := c.engine.TouchedLocked()
	snapshots, signals := c.computeMany(mints, now)
	c.engine.ClearTouchedLocked()
	c.engine.Unlock()

	c.write(ctx, snapshots, signals)
}

// fullFlush computes metrics for every mint currently in memory.
func (c *Coordinator) fullFlush(ctx context.Context) {
	now := c.clock()

	c.engine.Lock()
	mints := c.engine.ActiveMintsLocked()
	snapshots, signals := c.computeMany(mints, now)
	c.engine.Unlock()

	c.write(ctx, snapshots, signals)
}

// computeMany must be called with the engine lock held. It is the only
// place ComputeLocked is invoked, so the lock is acquired exactly once
// per tick regardless of how many mints are in scope.
func (c *Coordinator) computeMany(mints []string, now time.Time) ([]models.AggregateSnapshot, []models.Signal) {
	snapshots := make([]models.AggregateSnapshot, 0, len(mints))
	var signals []models.Signal
	for _, mint := range mints {
		snap, sigs, ok := c.engine.ComputeLocked(mint, now)
		if !ok {
			continue
		}
		snapshots = append(snapshots, snap)
		signals = append(signals, sigs...)
	}
	return snapshots, signals
}

// write performs every I/O operation outside the engine lock: the
// aggregate batch UPSERT, the blocklist-gated signal inserts, and the DCA
// sparkline bucket updates.
func (c *Coordinator) write(ctx context.Context, snapshots []models.AggregateSnapshot, signals []models.Signal) {
	if len(snapshots) == 0 && len(signals) == 0 {
		return
	}

	if len(snapshots) > 0 {
		if err := writeWithBackoff(func() error {
			return c.store.UpsertAggregatesBatch(ctx, snapshots, c.batchSize)
		}); err != nil {
			c.log.Printf("aggregate batch write exhausted retries, dropping %d rows: %v", len(snapshots), err)
		}
		c.writeDCABuckets(ctx, snapshots)
	}

	now := c.clock()
	for _, sig := range signals {
		if c.blocklist.IsBlocked(sig.Mint, now) {
			continue
		}
		if err := writeWithBackoff(func() error { return c.store.WriteSignal(ctx, sig) }); err != nil {
			c.log.Printf("signal write exhausted retries, dropping signal for mint %s: %v", sig.Mint, err)
			continue
		}
		if c.bus != nil {
			c.bus.Publish(eventbus.Event{Type: "signal", Timestamp: now, Data: sig})
		}
	}
}

// writeDCABuckets writes, for each mint with DCA activity this cycle, the
// current-minute sparkline bucket (spec section 4.10).
func (c *Coordinator) writeDCABuckets(ctx context.Context, snapshots []models.AggregateSnapshot) {
	now := c.clock()
	bucketTs := (now.Unix() / 60) * 60
	for _, snap := range snapshots {
		count := snap.DCABuys[60]
		if count == 0 {
			continue
		}
		bucket := models.DCABucket{Mint: snap.Mint, BucketTimestamp: bucketTs, Count: count}
		if err := c.store.UpsertDCABucket(ctx, bucket); err != nil {
			c.log.Printf("dca bucket write failed for mint %s: %v", snap.Mint, err)
		}
	}
}

// writeWithBackoff retries op with a capped exponential backoff (spec
// section 7: "retried with backoff; if retries exhaust, the batch is
// logged and dropped"). Three attempts with a doubling delay is enough
// headroom for a transient lock-contention or disk hiccup without
// stalling the next tick.
func writeWithBackoff(op func() error) error {
	const maxAttempts = 3
	delay := 50 * time.Millisecond
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt < maxAttempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
