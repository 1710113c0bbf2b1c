package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	ErrTimeout    = errors.New("evaluation timed out")
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

type evalResult struct {
	design *Design
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch for at most timeout. A result
// whose generation is no longer current is discarded. On timeout the
// evaluation goroutine keeps running; its result is dropped into the
// buffered channel and never read.
func waitWithTimeout(
	ch <-chan evalResult,
	timeout time.Duration,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
) (*Design, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()
		if gen != current {
			return nil, nil, ErrSuperseded
		}
		return res.design, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
