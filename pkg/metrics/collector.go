// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package metrics

import (
	"runtime"
	"time"
)

// ResourceCollector samples the process-level gauges (goroutines, heap,
// GC pause, uptime) on a fixed interval while the server runs.
type ResourceCollector struct {
	interval time.Duration
	started  time.Time
	stop     chan struct{}
	done     chan struct{}
}

// NewResourceCollector creates a collector that samples every interval.
func NewResourceCollector(interval time.Duration) *ResourceCollector {
	return &ResourceCollector{
		interval: interval,
		started:  time.Now(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sampling loop in its own goroutine and returns
// immediately. An initial sample is taken before the first tick.
func (rc *ResourceCollector) Start() {
	go rc.run()
}

// Stop ends the sampling loop and waits for it to exit. Stop must be
// called at most once.
func (rc *ResourceCollector) Stop() {
	close(rc.stop)
	<-rc.done
}

func (rc *ResourceCollector) run() {
	defer close(rc.done)

	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	rc.sample()
	for {
		select {
		case <-rc.stop:
			return
		case <-ticker.C:
			rc.sample()
		}
	}
}

func (rc *ResourceCollector) sample() {
	if !IsEnabled() {
		return
	}

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	MemoryAllocBytes.Set(float64(ms.Alloc))
	MemorySysBytes.Set(float64(ms.Sys))
	GCPauseTotalSeconds.Set(float64(ms.PauseTotalNs) / 1e9)

	ServerUptime.Set(time.Since(rc.started).Seconds())
}
