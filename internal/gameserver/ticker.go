package gameserver

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Ticker invokes a callback at a fixed period for the lifetime of the
// process. The control and snapshot broadcasts each run on their own
// Ticker; the two share no state beyond the coordinator they drive.
//
// Invariant: the callback is invoked at most once per period and never
// after Stop returns.
type Ticker struct {
	name     string
	interval time.Duration
	fn       func()
	logger   *zap.Logger

	mu      sync.Mutex
	quit    chan struct{}
	done    chan struct{}
	running bool
}

// NewTicker creates a Ticker that fires fn every interval once started.
//
// Precondition: interval must be > 0; fn and logger must be non-nil.
func NewTicker(name string, interval time.Duration, fn func(), logger *zap.Logger) *Ticker {
	if interval <= 0 {
		panic("gameserver.NewTicker: interval must be > 0")
	}
	return &Ticker{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the tick loop. It blocks until Stop is called, satisfying the
// server.Service contract.
func (t *Ticker) Start() error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = true
	t.mu.Unlock()

	t.logger.Info("ticker started",
		zap.String("ticker", t.name),
		zap.Duration("interval", t.interval),
	)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	defer close(t.done)

	for {
		select {
		case <-t.quit:
			return nil
		case <-ticker.C:
			t.fn()
		}
	}
}

// Stop terminates the tick loop and waits for the running callback, if any,
// to finish.
//
// Postcondition: fn is not invoked after Stop returns.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.running = false

	close(t.quit)
	<-t.done
	t.logger.Info("ticker stopped", zap.String("ticker", t.name))
}
