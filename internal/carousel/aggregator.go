// Package carousel buffers grouped media items arriving over time and flushes
// each group to publishing after a quiet period with no further arrivals.
package carousel

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FlushFunc receives a completed group: its identifier, the buffered items in
// arrival order, and the caption captured from the first arrival.
type FlushFunc func(ctx context.Context, groupID string, items [][]byte, caption string)

// Aggregator is a timed buffering state machine keyed by group identifier.
// Each group moves absent -> collecting -> flushed, or -> abandoned when it
// exceeds the item limit. A single quiet-period timer per group is reset on
// every arrival, so exactly one flush decision is made per group.
type Aggregator struct {
	mu     sync.Mutex
	groups map[string]*group

	quiet    time.Duration
	maxItems int
	flush    FlushFunc
	abandon  func(groupID string, count int)
	logger   *slog.Logger

	closed bool
	wg     sync.WaitGroup
}

type group struct {
	items     [][]byte
	caption   string
	createdAt time.Time
	timer     *time.Timer
	// gen invalidates timer callbacks that lost the Stop race with a
	// subsequent arrival.
	gen int
}

// New constructs an aggregator. The flush callback runs on its own goroutine
// once per group, after the quiet period elapses without new arrivals.
func New(quiet time.Duration, maxItems int, flush FlushFunc, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		groups:   make(map[string]*group),
		quiet:    quiet,
		maxItems: maxItems,
		flush:    flush,
		logger:   logger,
	}
}

// OnAbandon registers a callback invoked when a group is abandoned for
// exceeding the item limit. Set it before the first Add.
func (a *Aggregator) OnAbandon(fn func(groupID string, count int)) {
	a.abandon = fn
}

// Add buffers one item for the group. The caption is captured from the first
// arrival only; later captions are ignored. Each arrival resets the group's
// quiet-period timer.
func (a *Aggregator) Add(groupID string, item []byte, caption string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		a.logger.Warn("carousel item dropped: aggregator closed", "group_id", groupID)
		return
	}

	entry, ok := a.groups[groupID]
	if !ok {
		entry = &group{caption: caption, createdAt: time.Now()}
		a.groups[groupID] = entry
		a.logger.Info("carousel group started", "group_id", groupID)
	}
	entry.items = append(entry.items, item)
	a.logger.Info("carousel item buffered",
		"group_id", groupID,
		"count", len(entry.items),
		"max_items", a.maxItems)

	// A stopped timer never fires its callback, so its WaitGroup slot must be
	// released here just like in Close.
	if entry.timer != nil && entry.timer.Stop() {
		a.wg.Done()
	}
	entry.gen++
	gen := entry.gen
	a.wg.Add(1)
	entry.timer = time.AfterFunc(a.quiet, func() {
		defer a.wg.Done()
		a.expire(groupID, gen)
	})
}

// Len reports the number of groups currently collecting.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

// Close stops all pending timers and waits for in-flight flushes. Groups
// still collecting are abandoned and reported through the OnAbandon callback
// so their bookkeeping can be settled.
func (a *Aggregator) Close() {
	type abandoned struct {
		groupID string
		count   int
	}
	var dropped []abandoned

	a.mu.Lock()
	a.closed = true
	for id, entry := range a.groups {
		if entry.timer != nil && entry.timer.Stop() {
			a.wg.Done()
		}
		delete(a.groups, id)
		dropped = append(dropped, abandoned{groupID: id, count: len(entry.items)})
		a.logger.Warn("carousel group abandoned on shutdown", "group_id", id, "count", len(entry.items))
	}
	a.mu.Unlock()

	if a.abandon != nil {
		for _, entry := range dropped {
			a.abandon(entry.groupID, entry.count)
		}
	}
	a.wg.Wait()
}

// expire runs when a group's quiet period elapses. The append+decision is one
// atomic unit under the mutex: the entry is removed before the callback runs,
// so a group can never flush twice.
func (a *Aggregator) expire(groupID string, gen int) {
	a.mu.Lock()
	entry, ok := a.groups[groupID]
	if !ok || entry.gen != gen {
		a.mu.Unlock()
		return
	}
	delete(a.groups, groupID)
	closed := a.closed
	a.mu.Unlock()

	if closed {
		return
	}
	if a.maxItems > 0 && len(entry.items) > a.maxItems {
		a.logger.Warn("carousel group abandoned: too many items",
			"group_id", groupID,
			"count", len(entry.items),
			"max_items", a.maxItems)
		if a.abandon != nil {
			a.abandon(groupID, len(entry.items))
		}
		return
	}

	a.logger.Info("carousel group complete",
		"group_id", groupID,
		"count", len(entry.items),
		"buffered_for", time.Since(entry.createdAt))
	a.flush(context.Background(), groupID, entry.items, entry.caption)
}
