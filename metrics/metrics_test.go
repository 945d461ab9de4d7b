package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestObserveAggregates(t *testing.T) {
	c := NewCollector()

	start := time.Now().Add(-20 * time.Millisecond)
	c.Observe(OpRegister, start, true)
	c.Observe(OpRegister, start, false)

	snap := c.Snapshot()
	m, ok := snap.Operations[OpRegister]
	if !ok {
		t.Fatal("register operation missing from snapshot")
	}
	if m.Count != 2 || m.Failures != 1 {
		t.Fatalf("count = %d failures = %d, want 2 and 1", m.Count, m.Failures)
	}
	if m.TotalTimeMS < 40 {
		t.Fatalf("total time = %dms, want at least 40ms", m.TotalTimeMS)
	}
	if m.AverageTimeMS < 20 {
		t.Fatalf("average time = %dms, want at least 20ms", m.AverageTimeMS)
	}
}

func TestSnapshotOfEmptyCollector(t *testing.T) {
	c := NewCollector()
	snap := c.Snapshot()
	if len(snap.Operations) != 0 {
		t.Fatalf("operations = %v, want empty", snap.Operations)
	}
}

func TestObserveConcurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Observe(OpVote, time.Now(), true)
			}
		}()
	}
	wg.Wait()

	if got := c.Snapshot().Operations[OpVote].Count; got != 1600 {
		t.Fatalf("count = %d, want 1600", got)
	}
}
