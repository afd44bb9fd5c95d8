package ingestion

import (
	"context"
	"time"

	"solflow/internal/engine"
	"solflow/internal/logging"
)

// Consumer drains the trade channel one event at a time, ingesting each
// into the engine under its lock, and logs periodic observability.
type Consumer struct {
	channel *Channel
	engine  *engine.Engine
	log     *logging.Logger
}

func NewConsumer(channel *Channel, eng *engine.Engine) *Consumer {
	return &Consumer{channel: channel, engine: eng, log: logging.New("Ingestion")}
}

// Run drains the channel until it is closed (graceful shutdown) or ctx is
// cancelled, ingesting one trade at a time. It also runs the 10s
// observability report required by spec section 6 in the same goroutine's
// loop via a ticker multiplexed alongside channel receives.
func (c *Consumer) Run(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.drainRemaining()
			return
		case trade, ok := <-c.channel.Recv():
			if !ok {
				return
			}
			c.engine.Ingest(trade)
		case <-ticker.C:
			c.reportStats()
		}
	}
}

// drainRemaining consumes whatever is already buffered in the channel
// without blocking, so a final flush sees every trade ingested before
// shutdown was requested.
func (c *Consumer) drainRemaining() {
	for {
		select {
		case trade, ok := <-c.channel.Recv():
			if !ok {
				return
			}
			c.engine.Ingest(trade)
		default:
			return
		}
	}
}

func (c *Consumer) reportStats() {
	fill := c.channel.FillLevel()
	level := ""
	switch {
	case fill >= 0.95:
		level = " ALERT: channel fill >= 95%"
	case fill >= 0.5:
		level = " warning: channel fill >= 50%"
	}
	c.log.Printf("ingested=%d dropped=%d fill=%.2f%s",
		c.channel.Stats().Ingested(), c.channel.Stats().Dropped(), fill, level)
}
