package sheets

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"

	"tablesalive/pkg/logging"
)

type State int

const (
	StateFetching State = iota
	StateComparing
	StateStable
	StateRetrying
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateComparing:
		return "comparing"
	case StateStable:
		return "stable"
	case StateRetrying:
		return "retrying"
	case StateTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// Stabilizer re-fetches a snapshot until two consecutive fetches are identical.
// Once Ceiling has elapsed the latest snapshot is returned if it holds any data,
// otherwise ErrStabilizationTimeout.
type Stabilizer struct {
	Interval time.Duration
	Ceiling  time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewStabilizer(interval, ceiling time.Duration) *Stabilizer {
	return &Stabilizer{
		Interval: interval,
		Ceiling:  ceiling,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run drives fetch through the Fetching → Comparing → {Stable, Retrying, TimedOut} cycle.
func (s *Stabilizer) Run(ctx context.Context, fetch FetchFunc) ([][]string, error) {
	logger := logging.FromContext(ctx)

	var (
		grid     [][]string
		previous uint64
		attempts int
		err      error
	)
	start := s.now()
	state := StateFetching
	for {
		switch state {
		case StateFetching:
			grid, err = fetch(ctx)
			if err != nil {
				return nil, err
			}
			attempts++
			state = StateComparing

		case StateComparing:
			fp := Fingerprint(grid)
			logger.Debugf("snapshot %d: %d rows, fingerprint %016x", attempts, len(grid), fp)
			if attempts > 1 && fp == previous {
				state = StateStable
				continue
			}
			previous = fp
			if s.now().Sub(start) > s.Ceiling {
				state = StateTimedOut
			} else {
				state = StateRetrying
			}

		case StateRetrying:
			if err := s.sleep(ctx, s.Interval); err != nil {
				return nil, err
			}
			state = StateFetching

		case StateStable:
			logger.Debugf("snapshot stable after %d fetches", attempts)
			return grid, nil

		case StateTimedOut:
			if hasData(grid) {
				logger.Warnf("snapshot did not stabilize after %d fetches, using latest", attempts)
				return grid, nil
			}
			return nil, ErrStabilizationTimeout
		}
	}
}

// Fingerprint digests a grid. Lengths are hashed ahead of contents so that
// differently split rows never collide trivially.
func Fingerprint(grid [][]string) uint64 {
	d := xxhash.New()
	var n [8]byte
	for _, row := range grid {
		binary.LittleEndian.PutUint64(n[:], uint64(len(row)))
		_, _ = d.Write(n[:])
		for _, cell := range row {
			binary.LittleEndian.PutUint64(n[:], uint64(len(cell)))
			_, _ = d.Write(n[:])
			_, _ = d.WriteString(cell)
		}
	}
	return d.Sum64()
}

// hasData reports whether any cell is non-empty.
func hasData(grid [][]string) bool {
	for _, row := range grid {
		for _, cell := range row {
			if cell != "" {
				return true
			}
		}
	}
	return false
}
