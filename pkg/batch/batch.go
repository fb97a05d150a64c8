package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrGroupSize indicates a non-positive group size was requested.
var ErrGroupSize = errors.New("group size must be positive")

// InOrder splits items into consecutive groups of at most groupSize,
// invokes call once per group concurrently, and reassembles the per-group
// results into a single flat slice matching the input order.
//
// Each group is tagged with its ordinal (0, 1, 2, ...) at split time; the
// ordinal is handed to call so transports can log or correlate it. The
// output is rebuilt by ordinal, never by completion order, so out[i]
// always corresponds to items[i] no matter how the calls interleave.
//
// The dispatch is atomic: if any group fails, the first observed failure
// (in ordinal order) is returned and no partial results are exposed.
// The shared context is cancelled as soon as one group fails so in-flight
// siblings can abort early.
func InOrder[T, R any](ctx context.Context, items []T, groupSize int, call func(ctx context.Context, group []T, ordinal int) ([]R, error)) ([]R, error) {
	if groupSize <= 0 {
		return nil, ErrGroupSize
	}
	if len(items) == 0 {
		return []R{}, nil
	}

	groups := split(items, groupSize)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]R, len(groups))
	errs := make([]error, len(groups))

	var wg sync.WaitGroup
	for i, group := range groups {
		wg.Add(1)
		go func(ordinal int, group []T) {
			defer wg.Done()
			res, err := call(cctx, group, ordinal)
			if err != nil {
				errs[ordinal] = err
				cancel()
				return
			}
			if len(res) != len(group) {
				errs[ordinal] = fmt.Errorf("group %d: got %d results for %d items", ordinal, len(res), len(group))
				cancel()
				return
			}
			results[ordinal] = res
		}(i, group)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := make([]R, 0, len(items))
	for _, res := range results {
		out = append(out, res...)
	}
	return out, nil
}

// split cuts items into consecutive chunks of at most size elements.
func split[T any](items []T, size int) [][]T {
	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		groups = append(groups, items[start:end])
	}
	return groups
}
