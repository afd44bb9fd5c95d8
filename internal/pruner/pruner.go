// Package pruner implements the periodic inactive-mint eviction task of
// spec section 4.9.
package pruner

import (
	"context"
	"time"

	"solflow/internal/engine"
	"solflow/internal/logging"
)

type Pruner struct {
	engine    *engine.Engine
	clock     func() time.Time
	threshold time.Duration
	interval  time.Duration
	log       *logging.Logger
}

func New(eng *engine.Engine, clock func() time.Time, threshold, interval time.Duration) *Pruner {
	return &Pruner{engine: eng, clock: clock, threshold: threshold, interval: interval, log: logging.New("Pruner")}
}

func (p *Pruner) Start(ctx context.Context) {
	go p.runLoop(ctx)
}

func (p *Pruner) runLoop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run()
		}
	}
}

func (p *Pruner) run() {
	p.engine.Lock()
	n := p.engine.PruneLocked(p.clock(), p.threshold)
	p.engine.Unlock()
	if n > 0 {
		p.log.Printf("pruned %d inactive mints", n)
	}
}
