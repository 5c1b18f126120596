package watcher

import (
	"context"
	"time"

	"github.com/ritzau/translation-network/pkg/logging"
)

// Debouncer batches rapid file system events to avoid excessive recomputation.
// A batch is flushed after quietPeriod without new events, or maxWait after
// its first event, whichever comes first.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func (d *Debouncer) run(ctx context.Context) {
	quiet := time.NewTimer(d.quietPeriod)
	stopTimer(quiet)
	deadline := time.NewTimer(d.maxWait)
	stopTimer(deadline)

	accumulated := make(map[ChangeType][]string)
	eventCount := 0

	flush := func() {
		stopTimer(quiet)
		stopTimer(deadline)
		if eventCount == 0 {
			return
		}

		logging.Debug("flushing accumulated events", "count", eventCount)

		// Config first: it can change what a records reload means
		for _, typ := range []ChangeType{ChangeTypeConfig, ChangeTypeRecords} {
			if paths := accumulated[typ]; len(paths) > 0 {
				d.output <- ChangeEvent{Type: typ, Paths: paths, Timestamp: time.Now()}
			}
		}

		accumulated = make(map[ChangeType][]string)
		eventCount = 0
	}

	defer close(d.output)
	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}

			accumulated[event.Type] = append(accumulated[event.Type], event.Paths...)
			eventCount++

			stopTimer(quiet)
			quiet.Reset(d.quietPeriod)
			if eventCount == 1 {
				deadline.Reset(d.maxWait)
			}

		case <-quiet.C:
			flush()

		case <-deadline.C:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
