// Package syncer provides the background runner that drains the sync queue
// against a remote backend when connectivity allows.
//
// The runner moves between two states. Idle is the default; a drain pass
// starts on any of three triggers: an offline-to-online edge, the polling
// interval, or an explicit SyncNow. At most one pass is ever in flight;
// triggers arriving mid-drain are coalesced, not queued. Local mutations are
// never blocked by sync activity - the entity store keeps accepting writes
// while a pass runs.
//
// A queue item is marked synced only after the pusher confirms the remote
// accepted it. Failed items stay pending with an incremented attempt counter
// and are retried on the next trigger; push failures are never fatal.
package syncer

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukaanhq/dukaan-core/internal/outbox"
)

// ErrDrainInProgress is returned by Drain when another pass is already in
// flight. Internal triggers treat it as a no-op.
var ErrDrainInProgress = errors.New("drain already in progress")

// Signal is the binary connectivity input the runner consumes. Changes
// delivers edge-triggered transitions; a true value is the "reconnected"
// event that kicks off a drain.
type Signal interface {
	Online() bool
	Changes() <-chan bool
}

// StaticSignal is a Signal pinned to one state, with no transitions.
// Useful for one-shot drains and tests.
type StaticSignal bool

// Online implements Signal.
func (s StaticSignal) Online() bool { return bool(s) }

// Changes implements Signal.
func (s StaticSignal) Changes() <-chan bool { return nil }

// Status is the aggregate snapshot exposed to observers: the only
// user-facing surface of sync failures is the pending count, never a
// blocking error.
type Status struct {
	Online     bool      `json:"online"`
	Syncing    bool      `json:"syncing"`
	Pending    int       `json:"pending"`
	LastSyncAt time.Time `json:"lastSyncAt,omitzero"`
}

// Queue is the slice of the outbox the runner needs.
type Queue interface {
	ListPending(ctx context.Context) ([]outbox.Item, error)
	MarkSynced(ctx context.Context, ids ...int64) error
	RecordFailure(ctx context.Context, id int64, pushErr error) error
	PurgeSynced(ctx context.Context) (int64, error)
	PendingCount(ctx context.Context) (int, error)
}

// Config holds runner configuration.
type Config struct {
	// Interval is the polling period between automatic drain attempts.
	Interval time.Duration

	// Logger for runner activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: 30 * time.Second,
		Logger:   log.New(os.Stderr, "[syncer] ", log.LstdFlags),
	}
}

// Runner drains the sync queue opportunistically and reports live status.
type Runner struct {
	queue  Queue
	pusher Pusher
	signal Signal
	config *Config

	inFlight atomic.Bool
	trigger  chan struct{}

	statusMu  sync.Mutex
	status    Status
	observers []func(Status)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Runner. All three collaborators are required; config may be
// nil for defaults.
func New(queue Queue, pusher Pusher, signal Signal, config *Config) *Runner {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		queue:   queue,
		pusher:  pusher,
		signal:  signal,
		config:  config,
		trigger: make(chan struct{}, 1),
		status:  Status{Online: signal.Online()},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the trigger loop. Use Stop to shut down; the periodic
// timer is cleared on teardown.
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.loop()
	r.config.Logger.Printf("Runner started (interval %v)", r.config.Interval)
}

// Stop shuts the runner down and waits for any in-flight pass to finish.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
	r.config.Logger.Println("Runner stopped")
}

// SyncNow requests a drain pass. Non-blocking: if a trigger is already
// queued or a pass is in flight, the request coalesces into it.
func (r *Runner) SyncNow() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Status returns the current snapshot with a fresh pending count.
func (r *Runner) Status(ctx context.Context) Status {
	pending, err := r.queue.PendingCount(ctx)

	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	if err == nil {
		r.status.Pending = pending
	}
	r.status.Online = r.signal.Online()
	return r.status
}

// Observe registers a callback invoked with every status change. Callbacks
// run on the runner goroutine and must not block.
func (r *Runner) Observe(fn func(Status)) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.observers = append(r.observers, fn)
}

func (r *Runner) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case online, ok := <-r.signal.Changes():
			if !ok {
				continue
			}
			r.setStatus(func(s *Status) { s.Online = online })
			if online {
				r.config.Logger.Println("Back online, draining queue")
				r.tryDrain()
			}

		case <-ticker.C:
			r.tryDrain()

		case <-r.trigger:
			r.tryDrain()
		}
	}
}

// tryDrain runs a pass and swallows the coalescing sentinel.
func (r *Runner) tryDrain() {
	if err := r.Drain(r.ctx); err != nil && !errors.Is(err, ErrDrainInProgress) {
		r.config.Logger.Printf("Drain error: %v", err)
	}
}

// Drain runs one pass over the pending queue. Returns ErrDrainInProgress if
// another pass is already in flight (the caller's request coalesces into
// it). A pass that pushes nothing because the store is offline or the queue
// is empty returns nil.
//
// Items are pushed in FIFO order. When an item fails, later items targeting
// the same record are skipped for the rest of the pass: replaying an update
// before its failed add would corrupt remote state. Other records continue.
func (r *Runner) Drain(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return ErrDrainInProgress
	}
	defer r.inFlight.Store(false)

	if !r.signal.Online() {
		r.setStatus(func(s *Status) { s.Online = false })
		return nil
	}

	pending, err := r.queue.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		r.setStatus(func(s *Status) {
			s.Online = true
			s.Pending = 0
		})
		return nil
	}

	r.setStatus(func(s *Status) {
		s.Online = true
		s.Syncing = true
		s.Pending = len(pending)
	})
	r.config.Logger.Printf("Draining %d pending items", len(pending))

	var (
		synced        []int64
		failedRecords = make(map[string]bool)
		failures      int
	)

	for _, item := range pending {
		if ctx.Err() != nil {
			break
		}

		if failedRecords[item.Key()] {
			r.config.Logger.Printf("Skipping %s %s: earlier item for this record failed", item.Op, item.Key())
			continue
		}

		if err := r.pusher.Push(ctx, item); err != nil {
			failures++
			failedRecords[item.Key()] = true
			pushErr := &PushError{Collection: item.Collection, RecordID: item.RecordID, Err: err}
			r.config.Logger.Printf("Push failed (attempt %d): %v", item.Attempts+1, pushErr)
			if rerr := r.queue.RecordFailure(ctx, item.ID, pushErr); rerr != nil {
				r.config.Logger.Printf("Failed to record failure for item %d: %v", item.ID, rerr)
			}
			continue
		}

		// Remote acknowledged: only now may the item be marked synced.
		if err := r.queue.MarkSynced(ctx, item.ID); err != nil {
			r.config.Logger.Printf("Failed to mark item %d synced: %v", item.ID, err)
			failedRecords[item.Key()] = true
			failures++
			continue
		}
		synced = append(synced, item.ID)
	}

	if len(synced) > 0 {
		if _, err := r.queue.PurgeSynced(ctx); err != nil {
			r.config.Logger.Printf("Failed to purge synced items: %v", err)
		}
	}

	remaining, err := r.queue.PendingCount(ctx)
	if err != nil {
		remaining = len(pending) - len(synced)
	}

	r.setStatus(func(s *Status) {
		s.Syncing = false
		s.Pending = remaining
		if failures == 0 {
			s.LastSyncAt = time.Now()
		}
	})

	r.config.Logger.Printf("Drain complete: %d synced, %d failed, %d pending", len(synced), failures, remaining)
	return nil
}

// setStatus mutates the snapshot under lock and notifies observers.
func (r *Runner) setStatus(mutate func(*Status)) {
	r.statusMu.Lock()
	mutate(&r.status)
	snapshot := r.status
	observers := make([]func(Status), len(r.observers))
	copy(observers, r.observers)
	r.statusMu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}
