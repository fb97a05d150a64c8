package batch

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// Stream dispatch defaults, tuned for persistent per-item channels where
// framing cost is paid per message.
const (
	DefaultMaxInFlight   = 5
	DefaultWindowSize    = 3
	DefaultWindowTimeout = 10 * time.Second
)

// Options bounds a streaming dispatch. MaxInFlight caps the number of
// outstanding calls at any moment; completed results are coalesced into
// windows of up to WindowSize items or WindowTimeout of elapsed time,
// whichever comes first, before being committed onward.
type Options struct {
	MaxInFlight   int
	WindowSize    int
	WindowTimeout time.Duration

	// OnWindow, when set, is invoked with the number of results in each
	// committed window. Used for logging and tests; a window boundary
	// never reorders the results inside it.
	OnWindow func(count int)
}

func (o Options) withDefaults() Options {
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = DefaultMaxInFlight
	}
	if o.WindowSize <= 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.WindowTimeout <= 0 {
		o.WindowTimeout = DefaultWindowTimeout
	}
	return o
}

type outcome[R any] struct {
	idx int
	val R
	err error
}

// StreamOrdered runs call once per item through a fixed-size worker pool,
// never exceeding opts.MaxInFlight concurrently outstanding calls, and
// returns the results in input order. Completed results are buffered into
// size/time windows before being committed to the output.
//
// Like InOrder, the dispatch is atomic: the first failure cancels the
// remaining work and the whole call errors with no partial results.
func StreamOrdered[T, R any](ctx context.Context, items []T, opts Options, call func(ctx context.Context, item T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return []R{}, nil
	}
	opts = opts.withDefaults()

	pool, err := ants.NewPool(opts.MaxInFlight)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so workers never block on delivery: Submit blocks once the
	// pool is saturated, and the collector loop below only starts after
	// every item has been submitted.
	outcomes := make(chan outcome[R], len(items))
	var wg sync.WaitGroup
	for i := range items {
		i := i
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := cctx.Err(); err != nil {
				outcomes <- outcome[R]{idx: i, err: err}
				return
			}
			val, err := call(cctx, items[i])
			outcomes <- outcome[R]{idx: i, val: val, err: err}
		})
		if submitErr != nil {
			wg.Done()
			cancel()
			wg.Wait()
			return nil, submitErr
		}
	}

	out := make([]R, len(items))
	var firstErr error

	pending := make([]outcome[R], 0, opts.WindowSize)
	commit := func() {
		if len(pending) == 0 {
			return
		}
		for _, oc := range pending {
			out[oc.idx] = oc.val
		}
		if opts.OnWindow != nil {
			opts.OnWindow(len(pending))
		}
		pending = pending[:0]
	}

	timer := time.NewTimer(opts.WindowTimeout)
	defer timer.Stop()

	for received := 0; received < len(items); {
		select {
		case oc := <-outcomes:
			received++
			if oc.err != nil {
				// Cancellation fallout from an earlier failure is not the
				// root cause; keep the first real error.
				if firstErr == nil {
					firstErr = oc.err
				}
				cancel()
				continue
			}
			pending = append(pending, oc)
			if len(pending) >= opts.WindowSize {
				commit()
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(opts.WindowTimeout)
			}
		case <-timer.C:
			commit()
			timer.Reset(opts.WindowTimeout)
		}
	}
	commit()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
