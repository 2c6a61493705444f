package session

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"
)

func TestActivityMonitorReportsNormalizedLevel(t *testing.T) {
	levels := &levelRecorder{}
	monitor := newActivityMonitor(5*time.Millisecond, levels.record)
	monitor.Start()
	defer monitor.Stop()

	monitor.Push(pcmFrame(t, 0.5, 128))

	waitForCondition(t, time.Second, "a level sample", func() bool {
		return levels.count() > 0
	})

	level := levels.last()
	if level <= 0 || level > 1 {
		t.Fatalf("expected normalized level in (0, 1], got %f", level)
	}
	if math.Abs(level-0.5) > 0.05 {
		t.Fatalf("expected level near 0.5 for a half-amplitude tone, got %f", level)
	}
}

func TestActivityMonitorSilenceProducesNoSamples(t *testing.T) {
	levels := &levelRecorder{}
	monitor := newActivityMonitor(5*time.Millisecond, levels.record)
	monitor.Start()
	defer monitor.Stop()

	// No frames pushed at all: ticks with an empty accumulator report
	// nothing.
	time.Sleep(30 * time.Millisecond)
	if count := levels.count(); count != 0 {
		t.Fatalf("expected no samples without input, got %d", count)
	}
}

func TestActivityMonitorStopIsIdempotent(t *testing.T) {
	monitor := newActivityMonitor(5*time.Millisecond, nil)
	monitor.Start()

	monitor.Stop()
	monitor.Stop()
}

// pcmFrame builds a constant-amplitude 16-bit LE frame.
func pcmFrame(t *testing.T, amplitude float64, samples int) []byte {
	t.Helper()

	frame := make([]byte, samples*2)
	value := int16(amplitude * math.MaxInt16)
	for i := 0; i < len(frame); i += 2 {
		binary.LittleEndian.PutUint16(frame[i:], uint16(value))
	}
	return frame
}

type levelRecorder struct {
	mu     sync.Mutex
	levels []float64
}

func (r *levelRecorder) record(level float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, level)
}

func (r *levelRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.levels)
}

func (r *levelRecorder) last() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.levels[len(r.levels)-1]
}
