package store

import (
	"context"
	"sync"
	"time"

	"fabrikmcp/internal/log"
)

// DefaultWriteTimeout bounds one background write.
const DefaultWriteTimeout = 10 * time.Second

// Async runs each Record on its own goroutine. Failures are logged and never
// reach the caller. Close waits for writes in flight before closing the
// wrapped recorder.
type Async struct {
	next    Recorder
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync wraps next. A zero timeout means DefaultWriteTimeout.
func NewAsync(next Recorder, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Async{next: next, timeout: timeout}
}

// Record schedules the write and returns immediately. ctx is not used for the
// write itself, which must outlive the tool call that triggered it.
func (a *Async) Record(_ context.Context, in *Interaction) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Record(ctx, in); err != nil {
			log.Errorf("failed to record interaction %s: %v", in.ID, err)
			return
		}
		log.Debugf("recorded interaction %s", in.ID)
	}()
	return nil
}

// Wait blocks until all scheduled writes have finished.
func (a *Async) Wait() {
	a.wg.Wait()
}

func (a *Async) Close() error {
	a.wg.Wait()
	return a.next.Close()
}
