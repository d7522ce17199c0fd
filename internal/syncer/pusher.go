package syncer

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dukaanhq/dukaan-core/internal/outbox"
)

// Pusher delivers one queued mutation to the remote backend.
//
// The push call is the runner's only fallible external dependency. A nil
// error means the remote acknowledged the mutation; the runner marks an item
// synced on nothing less. Implementations must tolerate replays: a retried
// delete against an already-deleted remote record is a success, not an error.
type Pusher interface {
	Push(ctx context.Context, item outbox.Item) error
}

// PushError is a transport-level failure from the remote backend. It never
// propagates past the runner boundary: the item stays pending for the next
// drain and the failure only shows up in queue bookkeeping.
type PushError struct {
	Collection string
	RecordID   string
	Err        error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push %s/%s: %v", e.Collection, e.RecordID, e.Err)
}

func (e *PushError) Unwrap() error { return e.Err }

// LogPusher is the placeholder remote: it logs each mutation and reports
// success. It stands in until a real backend exists and can be swapped out
// without changing any runner or queue contract.
type LogPusher struct {
	Logger *log.Logger
}

// NewLogPusher creates a LogPusher. If logger is nil, a default stderr
// logger is used.
func NewLogPusher(logger *log.Logger) *LogPusher {
	if logger == nil {
		logger = log.New(os.Stderr, "[push] ", log.LstdFlags)
	}
	return &LogPusher{Logger: logger}
}

// Push implements Pusher.
func (p *LogPusher) Push(_ context.Context, item outbox.Item) error {
	p.Logger.Printf("Pushed %s %s/%s (%d bytes)", item.Op, item.Collection, item.RecordID, len(item.Payload))
	return nil
}
