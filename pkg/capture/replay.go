// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"context"
	"errors"
	"io"
	"time"
)

// ReplayOptions selects which records are replayed and how fast
type ReplayOptions struct {
	// Dir filters records by direction
	Dir Direction
	// Speed scales the recorded gaps between records. 0 replays without delay.
	Speed float64
}

// Replay feeds the data of every matching record in r to feed and returns the
// number of records replayed. It stops early when ctx is done.
func Replay(ctx context.Context, r io.Reader, opts ReplayOptions, feed func([]byte)) (int, error) {
	reader := NewReader(r)
	var (
		n    int
		last time.Time
	)
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if rec.Dir != opts.Dir {
			continue
		}

		if opts.Speed > 0 && !last.IsZero() {
			gap := time.Duration(float64(rec.Time.Sub(last)) / opts.Speed)
			if gap > 0 {
				timer := time.NewTimer(gap)
				select {
				case <-ctx.Done():
					timer.Stop()
					return n, ctx.Err()
				case <-timer.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}

		last = rec.Time
		feed(rec.Data)
		n++
	}
}
