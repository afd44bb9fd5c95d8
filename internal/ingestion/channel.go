// Package ingestion implements the bounded trade channel and the
// ingestion task described in spec section 4.1: a single
// multi-producer/single-consumer channel with non-blocking backpressure,
// draining into the pipeline engine under its lock one trade at a time.
package ingestion

import (
	"sync/atomic"

	"golang.org/x/time/rate"

	"solflow/internal/logging"
	"solflow/internal/models"
)

// Stats holds the atomic counters backing the observability requirements
// of spec section 6: ingestion rate, channel fill level, dropped-trade
// count.
type Stats struct {
	ingested int64
	dropped  int64
}

func (s *Stats) Ingested() int64 { return atomic.LoadInt64(&s.ingested) }
func (s *Stats) Dropped() int64  { return atomic.LoadInt64(&s.dropped) }

// Channel wraps the bounded trade channel plus the drop-rate-limited
// logger producers share. Producers must never block on the engine: Send
// uses a non-blocking select exactly mirroring the teacher eventbus's
// Publish drop-if-full pattern (internal/eventbus/bus.go).
type Channel struct {
	ch    chan models.TradeEvent
	stats Stats
	log   *logging.Logger

	// dropLog rate-limits the "trade dropped" log line so a sustained
	// downstream stall does not flood stderr with one line per drop.
	dropLog rate.Sometimes
}

// NewChannel creates a trade channel with the given capacity (spec
// section 4.1 default: 10000).
func NewChannel(capacity int) *Channel {
	return &Channel{
		ch:      make(chan models.TradeEvent, capacity),
		log:     logging.New("Ingestion"),
		dropLog: rate.Sometimes{Interval: 0, First: 1, Every: 100},
	}
}

// Send performs a non-blocking enqueue. If the channel is full, the trade
// is dropped and the drop counter incremented; producers never suspend
// here.
func (c *Channel) Send(trade models.TradeEvent) {
	select {
	case c.ch <- trade:
		atomic.AddInt64(&c.stats.ingested, 1)
	default:
		atomic.AddInt64(&c.stats.dropped, 1)
		c.dropLog.Do(func() {
			c.log.Printf("dropping trades: channel at capacity (dropped=%d so far)", c.Stats().Dropped())
		})
	}
}

// Recv exposes the receive-only side of the channel for the consumer task.
func (c *Channel) Recv() <-chan models.TradeEvent { return c.ch }

// Stats returns a snapshot accessor for the ingestion counters.
func (c *Channel) Stats() *Stats { return &c.stats }

// FillLevel returns the current occupancy ratio in [0,1], used by the
// observability loop to warn at >=50% and alert at >=95% (spec section 6).
func (c *Channel) FillLevel() float64 {
	if cap(c.ch) == 0 {
		return 0
	}
	return float64(len(c.ch)) / float64(cap(c.ch))
}
