package saga

import (
	"context"
	"errors"
	"time"
)

// OutcomeKind classifies how a stage attempt ended.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTimeout
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return EventOK
	case OutcomeTimeout:
		return EventTimeout
	default:
		return EventFailure
	}
}

// Outcome describes one stage attempt for the timeline and the sink.
type Outcome struct {
	Stage        Stage
	Kind         OutcomeKind
	Err          error
	FallbackUsed bool
	Duration     time.Duration
}

// recoverable reports whether an error is worth one retry on the fallback
// path. Transient transport failures qualify; domain rejections do not.
type recoverable interface {
	Recoverable() bool
}

func isRecoverable(err error) bool {
	var r recoverable
	return errors.As(err, &r) && r.Recoverable()
}

// invoke runs fn under the stage's timeout budget. When fn fails with a
// recoverable error and a fallback is supplied, the fallback gets exactly one
// try on whatever is left of the same budget. A deadline hit anywhere maps to
// a timeout outcome so the engine can end the run in TIMED_OUT(stage).
func invoke[T any](ctx context.Context, stage Stage, timeout time.Duration, fn, fallback func(context.Context) (T, error)) (T, Outcome) {
	var zero T
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := run(ctx, fn)
	fallbackUsed := false
	if err != nil && fallback != nil && isRecoverable(err) && ctx.Err() == nil {
		fallbackUsed = true
		out, err = run(ctx, fallback)
	}

	oc := Outcome{
		Stage:        stage,
		Err:          err,
		FallbackUsed: fallbackUsed,
		Duration:     time.Since(start),
	}
	switch {
	case err == nil:
		oc.Kind = OutcomeSuccess
		return out, oc
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		oc.Kind = OutcomeTimeout
		return zero, oc
	default:
		oc.Kind = OutcomeFailure
		return zero, oc
	}
}

type result[T any] struct {
	out T
	err error
}

// run executes fn in its own goroutine so a stage that ignores ctx still
// cannot hold the saga past its deadline. The goroutine is left to finish
// in the background; its result is discarded.
func run[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	done := make(chan result[T], 1)
	go func() {
		out, err := fn(ctx)
		done <- result[T]{out: out, err: err}
	}()
	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
