package carousel_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"reelay/internal/carousel"
)

type flushRecorder struct {
	mu      sync.Mutex
	flushes []flushRecord
	done    chan struct{}
}

type flushRecord struct {
	groupID string
	items   [][]byte
	caption string
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{done: make(chan struct{}, 16)}
}

func (r *flushRecorder) flush(_ context.Context, groupID string, items [][]byte, caption string) {
	r.mu.Lock()
	r.flushes = append(r.flushes, flushRecord{groupID: groupID, items: items, caption: caption})
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *flushRecorder) records() []flushRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]flushRecord, len(r.flushes))
	copy(out, r.flushes)
	return out
}

func (r *flushRecorder) waitForFlush(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
	}
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestAggregatorFlushesOnceAfterQuietPeriod(t *testing.T) {
	rec := newFlushRecorder()
	agg := carousel.New(30*time.Millisecond, 10, rec.flush, discard())
	defer agg.Close()

	for i := 0; i < 4; i++ {
		caption := ""
		if i == 0 {
			caption = "primer caption"
		}
		agg.Add("group-1", []byte(fmt.Sprintf("item-%d", i)), caption)
		time.Sleep(5 * time.Millisecond)
	}

	rec.waitForFlush(t)
	records := rec.records()
	if len(records) != 1 {
		t.Fatalf("expected exactly one flush, got %d", len(records))
	}
	if len(records[0].items) != 4 {
		t.Fatalf("expected 4 buffered items, got %d", len(records[0].items))
	}
	if records[0].caption != "primer caption" {
		t.Fatalf("caption must come from the first arrival, got %q", records[0].caption)
	}
	if agg.Len() != 0 {
		t.Fatalf("group must be absent after flush, registry has %d groups", agg.Len())
	}
}

func TestAggregatorCaptionFromFirstItemOnly(t *testing.T) {
	rec := newFlushRecorder()
	agg := carousel.New(20*time.Millisecond, 10, rec.flush, discard())
	defer agg.Close()

	agg.Add("g", []byte("a"), "first")
	agg.Add("g", []byte("b"), "second")

	rec.waitForFlush(t)
	records := rec.records()
	if records[0].caption != "first" {
		t.Fatalf("expected caption from first item, got %q", records[0].caption)
	}
}

func TestAggregatorTimerResetDelaysFlush(t *testing.T) {
	rec := newFlushRecorder()
	agg := carousel.New(60*time.Millisecond, 10, rec.flush, discard())
	defer agg.Close()

	agg.Add("g", []byte("a"), "")
	// Keep arriving inside the quiet period; no flush may happen until the
	// arrivals stop.
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		agg.Add("g", []byte("b"), "")
	}
	if got := len(rec.records()); got != 0 {
		t.Fatalf("flush fired while items were still arriving: %d", got)
	}

	rec.waitForFlush(t)
	records := rec.records()
	if len(records) != 1 || len(records[0].items) != 5 {
		t.Fatalf("expected one flush with 5 items, got %+v", records)
	}
}

func TestAggregatorAbandonsOverfullGroup(t *testing.T) {
	rec := newFlushRecorder()
	agg := carousel.New(20*time.Millisecond, 2, rec.flush, discard())
	defer agg.Close()

	abandoned := make(chan int, 1)
	agg.OnAbandon(func(groupID string, count int) {
		if groupID == "g" {
			abandoned <- count
		}
	})

	agg.Add("g", []byte("a"), "")
	agg.Add("g", []byte("b"), "")
	agg.Add("g", []byte("c"), "")

	select {
	case count := <-abandoned:
		if count != 3 {
			t.Fatalf("abandon callback got count %d, want 3", count)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for abandonment")
	}
	if got := len(rec.records()); got != 0 {
		t.Fatalf("overfull group must not publish, got %d flushes", got)
	}
	if agg.Len() != 0 {
		t.Fatal("abandoned group must be removed from the registry")
	}
}

func TestAggregatorIndependentGroups(t *testing.T) {
	rec := newFlushRecorder()
	agg := carousel.New(25*time.Millisecond, 10, rec.flush, discard())
	defer agg.Close()

	agg.Add("g1", []byte("a"), "uno")
	agg.Add("g2", []byte("b"), "dos")
	agg.Add("g1", []byte("c"), "")

	rec.waitForFlush(t)
	rec.waitForFlush(t)

	records := rec.records()
	if len(records) != 2 {
		t.Fatalf("expected 2 flushes, got %d", len(records))
	}
	counts := map[string]int{}
	for _, r := range records {
		counts[r.groupID] = len(r.items)
	}
	if counts["g1"] != 2 || counts["g2"] != 1 {
		t.Fatalf("unexpected item distribution: %v", counts)
	}
}

func TestAggregatorConcurrentArrivalsSameGroup(t *testing.T) {
	rec := newFlushRecorder()
	agg := carousel.New(40*time.Millisecond, 64, rec.flush, discard())
	defer agg.Close()

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agg.Add("g", []byte{byte(i)}, "cap")
		}(i)
	}
	wg.Wait()

	rec.waitForFlush(t)
	records := rec.records()
	if len(records) != 1 {
		t.Fatalf("expected a single flush, got %d", len(records))
	}
	if len(records[0].items) != n {
		t.Fatalf("lost appends: got %d items, want %d", len(records[0].items), n)
	}
}

func TestAggregatorCloseAbandonsPendingGroups(t *testing.T) {
	rec := newFlushRecorder()
	agg := carousel.New(time.Hour, 10, rec.flush, discard())

	var mu sync.Mutex
	abandoned := map[string]int{}
	agg.OnAbandon(func(groupID string, count int) {
		mu.Lock()
		abandoned[groupID] = count
		mu.Unlock()
	})

	agg.Add("g", []byte("a"), "")
	agg.Add("g", []byte("b"), "")
	agg.Close()

	if got := len(rec.records()); got != 0 {
		t.Fatalf("closed aggregator must not flush, got %d", got)
	}
	mu.Lock()
	count := abandoned["g"]
	mu.Unlock()
	if count != 2 {
		t.Fatalf("close must report the collecting group as abandoned with its count, got %d", count)
	}
	agg.Add("g", []byte("c"), "")
	if agg.Len() != 0 {
		t.Fatal("adds after close must be dropped")
	}
}

func TestAggregatorCloseReturnsAfterTimerResets(t *testing.T) {
	rec := newFlushRecorder()
	agg := carousel.New(20*time.Millisecond, 10, rec.flush, discard())

	// Each arrival after the first replaces the group's timer; the stopped
	// timer must not hold Close hostage.
	for i := 0; i < 5; i++ {
		agg.Add("g", []byte{byte(i)}, "")
	}
	rec.waitForFlush(t)

	done := make(chan struct{})
	go func() {
		agg.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after the group flushed")
	}
}
