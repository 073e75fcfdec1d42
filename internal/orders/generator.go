package orders

import (
	"math/rand"
	"time"

	"roibot/internal/warehouse"
)

// GenerationStatus is the Generator's own run state, independent of the
// simulation's overall status.
type GenerationStatus int

const (
	StatusStopped GenerationStatus = iota
	StatusRunning
	StatusPaused
)

// GeneratorConfig tunes order cadence and sizing.
type GeneratorConfig struct {
	GenerationInterval time.Duration
	MinItems           int
	MaxItems           int
}

// Generator emits new orders at a configured cadence, drawing items without
// replacement from the grid's pool.
type Generator struct {
	cfg         GeneratorConfig
	pool        []warehouse.Item
	status      GenerationStatus
	lastEmitTS  time.Time
	started     bool
	rng         *rand.Rand
	idGenerator func(time.Time) string
}

// NewGenerator constructs a generator drawing from the supplied pool.
func NewGenerator(cfg GeneratorConfig, pool []warehouse.Item, seed int64) *Generator {
	if cfg.MinItems < 1 {
		cfg.MinItems = 1
	}
	if cfg.MaxItems < cfg.MinItems {
		cfg.MaxItems = cfg.MinItems
	}
	if cfg.MaxItems > 10 {
		cfg.MaxItems = 10
	}
	if cfg.GenerationInterval <= 0 {
		cfg.GenerationInterval = 30 * time.Second
	}
	return &Generator{
		cfg:         cfg,
		pool:        pool,
		status:      StatusStopped,
		rng:         rand.New(rand.NewSource(seed)),
		idGenerator: NewID,
	}
}

// Start transitions the generator to RUNNING. Idempotent.
func (g *Generator) Start(now time.Time) {
	if g == nil || g.status == StatusRunning {
		return
	}
	g.status = StatusRunning
	if !g.started {
		g.lastEmitTS = now
		g.started = true
	}
}

// Stop transitions the generator to STOPPED. Idempotent.
func (g *Generator) Stop() {
	if g == nil || g.status == StatusStopped {
		return
	}
	g.status = StatusStopped
	g.started = false
}

// Pause transitions the generator to PAUSED. Idempotent.
func (g *Generator) Pause() {
	if g == nil || g.status != StatusRunning {
		return
	}
	g.status = StatusPaused
}

// Resume transitions the generator back to RUNNING from PAUSED. Idempotent.
func (g *Generator) Resume() {
	if g == nil || g.status != StatusPaused {
		return
	}
	g.status = StatusRunning
}

// Status reports the generator's current run state.
func (g *Generator) Status() GenerationStatus {
	if g == nil {
		return StatusStopped
	}
	return g.status
}

// Tick emits at most one order if the generation interval has elapsed and
// the generator is RUNNING. Returns nil if the pool is empty, the generator
// is not running, or the interval has not yet elapsed; this is a boundary
// behaviour, not an error.
func (g *Generator) Tick(now time.Time) *Order {
	if g == nil || g.status != StatusRunning {
		return nil
	}
	if len(g.pool) == 0 {
		return nil
	}
	if now.Sub(g.lastEmitTS) < g.cfg.GenerationInterval {
		return nil
	}

	count := g.cfg.MinItems
	if g.cfg.MaxItems > g.cfg.MinItems {
		count += g.rng.Intn(g.cfg.MaxItems - g.cfg.MinItems + 1)
	}
	if count > len(g.pool) {
		count = len(g.pool)
	}

	items := g.drawWithoutReplacement(count)
	order := NewOrder(g.idGenerator(now), items, now)
	g.lastEmitTS = now
	return order
}

func (g *Generator) drawWithoutReplacement(count int) []warehouse.Item {
	// //1.- Fisher-Yates partial shuffle over a copy of the pool indices so
	// the underlying pool ordering (and callers holding references to it)
	// is never mutated.
	indices := make([]int, len(g.pool))
	for i := range indices {
		indices[i] = i
	}
	for i := 0; i < count; i++ {
		j := i + g.rng.Intn(len(indices)-i)
		indices[i], indices[j] = indices[j], indices[i]
	}
	items := make([]warehouse.Item, count)
	for i := 0; i < count; i++ {
		items[i] = g.pool[indices[i]]
	}
	return items
}
