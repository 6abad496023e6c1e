/*
scheduler.go - Live-mode day stepper

PURPOSE:
  While live mode is on, advances the simulation one day per tick and,
  when the policy allows it, auto-executes the top rebalancing batch.

DESIGN:
  - One background goroutine driven by a ticker
  - Start / Stop are idempotent and mutex-guarded
  - Stop waits for an in-flight tick, so no step runs after it returns
  - Each tick goes through the store, which serializes it against
    HTTP-driven commands

CONFIGURATION:
  - Interval: time between ticks (default: 1.2s)

USAGE:
  live := NewLiveRunner(store, 1200*time.Millisecond, log)
  live.Start()
  // ... later
  live.Stop()

SEE ALSO:
  - handlers.go: POST /api/live
  - autopilot/store.go: Step, AutoExecute
*/
package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warp/autopilot/autopilot"
	"github.com/warp/autopilot/logger"
)

// DefaultLiveInterval is the tick period used when none is configured.
const DefaultLiveInterval = 1200 * time.Millisecond

// LiveRunner steps the store on a ticker while live mode is on.
type LiveRunner struct {
	Store    *autopilot.Store
	Interval time.Duration

	log    *logger.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	ticks  atomic.Int64
}

// NewLiveRunner creates a stopped runner.
func NewLiveRunner(store *autopilot.Store, interval time.Duration, log *logger.Logger) *LiveRunner {
	if interval <= 0 {
		interval = DefaultLiveInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LiveRunner{
		Store:    store,
		Interval: interval,
		log:      log.With("component", "live"),
	}
}

// Start turns live mode on. Calling Start on a running runner is a no-op.
func (lr *LiveRunner) Start() {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	if lr.ticker != nil {
		return
	}

	lr.ticker = time.NewTicker(lr.Interval)
	lr.stop = make(chan struct{})
	lr.wg.Add(1)
	go lr.run(lr.ticker, lr.stop)

	lr.Store.SetRunning(true)
	lr.log.Info("live mode started", "interval", lr.Interval.String())
}

// Stop turns live mode off and waits for an in-flight tick to finish.
// Calling Stop on a stopped runner only clears the store flag.
func (lr *LiveRunner) Stop() {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	if lr.ticker != nil {
		lr.ticker.Stop()
		close(lr.stop)
		lr.wg.Wait()
		lr.ticker = nil
		lr.log.Info("live mode stopped", "ticks", lr.ticks.Load())
	}
	if lr.Store.Running() {
		lr.Store.SetRunning(false)
	}
}

// Running reports whether the ticker goroutine is active.
func (lr *LiveRunner) Running() bool {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.ticker != nil
}

// Ticks is the number of ticks processed since creation.
func (lr *LiveRunner) Ticks() int64 {
	return lr.ticks.Load()
}

func (lr *LiveRunner) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer lr.wg.Done()

	for {
		select {
		case <-ticker.C:
			lr.Tick(context.Background())
		case <-stop:
			return
		}
	}
}

// Tick advances one day and runs auto-execute. It does nothing when the
// store's running flag was cleared (e.g. by a regenerate).
func (lr *LiveRunner) Tick(ctx context.Context) {
	if !lr.Store.Running() {
		return
	}
	lr.ticks.Add(1)

	c := lr.Store.Step(1)

	res, executed, err := lr.Store.AutoExecute(ctx)
	switch {
	case err != nil:
		lr.log.Error("auto-execute failed", "day", c.State.Today, "error", err)
	case executed:
		lr.log.Info("auto-executed rebalance", "day", c.State.Today, "cost", res.Log.Cost.String())
	case res.Reason != "":
		lr.log.Debug("auto-execute skipped", "day", c.State.Today, "reason", res.Reason)
	}
}
