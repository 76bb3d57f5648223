// Package daemon runs the long-poll loop against the Telegram Bot API and
// dispatches inbound messages to the processor. It enforces single-instance
// execution with a file lock.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"reelay/internal/journal"
	"reelay/internal/telegram"
)

// pollErrorBackoff spaces retries after a failed getUpdates call so a broken
// network or revoked token does not spin the loop.
const pollErrorBackoff = 5 * time.Second

// Poller long-polls Telegram for new updates.
type Poller interface {
	GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]telegram.Update, error)
}

// Handler consumes one inbound message. Close releases buffered state, such
// as carousel groups still collecting.
type Handler interface {
	HandleMessage(ctx context.Context, msg *telegram.Message) error
	Close()
}

// Options wires a Daemon.
type Options struct {
	Poller      Poller
	Handler     Handler
	Journal     *journal.Store
	PollTimeout time.Duration
	// DataDir hosts the instance lock file.
	DataDir string
	Logger  *slog.Logger
}

// Daemon owns the update loop and enforces single-instance execution.
type Daemon struct {
	poller      Poller
	handler     Handler
	journal     *journal.Store
	pollTimeout time.Duration
	logger      *slog.Logger

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	inflight sync.WaitGroup
}

// Status reports daemon runtime information for the CLI.
type Status struct {
	Running      bool
	JournalPath  string
	LockFilePath string
	Counts       map[journal.Status]int
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Poller == nil || opts.Handler == nil || opts.Journal == nil {
		return nil, errors.New("daemon requires poller, handler, and journal")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 25 * time.Second
	}

	lockPath := filepath.Join(opts.DataDir, "reelay.lock")
	return &Daemon{
		poller:      opts.Poller,
		handler:     opts.Handler,
		journal:     opts.Journal,
		pollTimeout: pollTimeout,
		logger:      logger.With("component", "daemon"),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the poll loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelay instance is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.loopDone = make(chan struct{})
	d.running.Store(true)

	go func() {
		defer close(d.loopDone)
		d.pollLoop(loopCtx)
	}()

	d.logger.Info("reelay daemon started", "lock", d.lockPath)
	return nil
}

// Stop ends the poll loop, waits for in-flight pipelines, closes the handler,
// and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	<-d.loopDone
	d.inflight.Wait()
	d.handler.Close()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release instance lock", "error", err)
	}
	d.running.Store(false)
	d.logger.Info("reelay daemon stopped")
}

// Close stops the daemon and closes the journal.
func (d *Daemon) Close() error {
	d.Stop()
	return d.journal.Close()
}

// Status returns the current runtime state and journal counts.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	counts, err := d.journal.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:      d.running.Load(),
		JournalPath:  d.journal.Path(),
		LockFilePath: d.lockPath,
		Counts:       counts,
	}, nil
}

// pollLoop advances the update offset and fans each message out to its own
// goroutine. Failed pipelines are journaled by the handler; the loop never
// re-delivers an update.
func (d *Daemon) pollLoop(ctx context.Context) {
	var offset int64
	for {
		if ctx.Err() != nil {
			return
		}

		updates, err := d.poller.GetUpdates(ctx, offset, d.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Warn("update poll failed", "error", err, "retry_in", pollErrorBackoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollErrorBackoff):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if update.Message == nil {
				continue
			}
			msg := update.Message
			d.inflight.Add(1)
			go func() {
				defer d.inflight.Done()
				if err := d.handler.HandleMessage(ctx, msg); err != nil {
					d.logger.Error("message handling failed",
						"chat_id", msg.Chat.ID,
						"message_id", msg.MessageID,
						"error", err)
				}
			}()
		}
	}
}
