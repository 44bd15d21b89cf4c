package alert

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/sleepcheck/internal/logic"
)

// DefaultAsyncTimeout bounds one background dispatch.
const DefaultAsyncTimeout = 10 * time.Second

// Async runs each Fire in its own goroutine so the caller's tick loop is
// never held up by a slow channel. Close waits for dispatches in flight.
type Async struct {
	next    Alerter
	timeout time.Duration

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewAsync wraps next. A zero timeout uses DefaultAsyncTimeout.
func NewAsync(next Alerter, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = DefaultAsyncTimeout
	}
	return &Async{next: next, timeout: timeout}
}

// Fire implements Alerter. Alerts after Close are dropped.
func (a *Async) Fire(ctx context.Context, message string, severity logic.Severity) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()

	// Detach from the caller's cancellation: an alert already due is still delivered.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	go func() {
		defer a.wg.Done()
		defer cancel()
		a.next.Fire(ctx, message, severity)
	}()
}

// Close stops accepting alerts and waits for those in flight.
func (a *Async) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.wg.Wait()
}
