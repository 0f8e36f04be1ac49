package manager

import (
	"sync"
	"time"
)

// IdleWatchdog monitors OCR activity from a background goroutine and
// invokes an on-idle hook once no activity has been recorded for the
// configured quiet period. The hook fires at most once per Start.
type IdleWatchdog struct {
	timeout  time.Duration
	interval time.Duration
	onIdle   func()

	mu           sync.Mutex
	lastActivity time.Time
	running      bool
	stop         chan struct{}
}

// NewIdleWatchdog builds a watchdog. interval controls how often the
// idle clock is inspected; a zero interval defaults to 30 seconds.
func NewIdleWatchdog(timeout, interval time.Duration, onIdle func()) *IdleWatchdog {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &IdleWatchdog{
		timeout:  timeout,
		interval: interval,
		onIdle:   onIdle,
	}
}

// RecordActivity resets the idle clock. Call it around each OCR request.
func (w *IdleWatchdog) RecordActivity() {
	w.mu.Lock()
	w.lastActivity = time.Now()
	w.mu.Unlock()
}

// Start launches the monitor goroutine. Starting a running watchdog is a
// no-op.
func (w *IdleWatchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.lastActivity = time.Now()
	w.stop = make(chan struct{})
	go w.monitor(w.stop)
}

// Stop halts the monitor goroutine. Stopping a stopped watchdog is a
// no-op.
func (w *IdleWatchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stop)
}

func (w *IdleWatchdog) idleFor() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Since(w.lastActivity)
}

func (w *IdleWatchdog) monitor(stop chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if w.idleFor() >= w.timeout {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			w.onIdle()
			return
		}
	}
}
