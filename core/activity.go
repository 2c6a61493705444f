package session

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// activitySampleInterval is how often the input level is reported.
const activitySampleInterval = 100 * time.Millisecond

// activityMonitor samples input signal energy from the capture stream at
// a fixed interval, independent of session or speaking state. Its
// lifecycle is tied only to the capture stream: started once capture
// begins, stopped by the resource teardown.
type activityMonitor struct {
	interval time.Duration
	onLevel  func(level float64)

	mu      sync.Mutex
	energy  float64
	samples int
	ticker  *time.Ticker
	done    chan struct{}
	started bool
}

func newActivityMonitor(interval time.Duration, onLevel func(level float64)) *activityMonitor {
	return &activityMonitor{interval: interval, onLevel: onLevel}
}

// Push accumulates one 16-bit little-endian PCM frame.
func (a *activityMonitor) Push(frame []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i+1 < len(frame); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(frame[i:]))) / math.MaxInt16
		a.energy += sample * sample
		a.samples++
	}
}

func (a *activityMonitor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return
	}

	a.started = true
	a.ticker = time.NewTicker(a.interval)
	a.done = make(chan struct{})

	go func() {
		for {
			select {
			case <-a.done:
				return
			case <-a.ticker.C:
				if level, ok := a.sample(); ok && a.onLevel != nil {
					a.onLevel(level)
				}
			}
		}
	}()
}

// sample computes the normalized RMS level accumulated since the last
// tick and resets the accumulator.
func (a *activityMonitor) sample() (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.samples == 0 {
		return 0, false
	}

	level := math.Sqrt(a.energy / float64(a.samples))
	a.energy = 0
	a.samples = 0
	return min(level, 1), true
}

func (a *activityMonitor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return
	}

	a.started = false
	a.ticker.Stop()
	close(a.done)
}
