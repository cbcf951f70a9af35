package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gauntlet-service/internal/domain"
)

// DefaultTimeout applies when no timeout is configured.
const DefaultTimeout = 45 * time.Second

// Client performs one raw generation call against the external model.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, prompt string) (string, error)

func (f ClientFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

var errTicketUsed = errors.New("classifier ticket already used")

// Bounded wraps a Client with fail-fast admission control and a deadline.
// The in-flight counter tracks calls until they actually settle, including
// calls the caller stopped waiting for.
type Bounded struct {
	client   Client
	max      int64
	timeout  time.Duration
	inFlight atomic.Int64
}

func NewBounded(client Client, maxConcurrent int, timeout time.Duration) *Bounded {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bounded{client: client, max: int64(maxConcurrent), timeout: timeout}
}

// InFlight reports the number of admitted calls that have not settled yet.
func (b *Bounded) InFlight() int64 {
	return b.inFlight.Load()
}

// Reserve claims a concurrency slot or fails immediately with
// domain.ErrCapacityExhausted. It never waits.
func (b *Bounded) Reserve() (*Ticket, error) {
	for {
		current := b.inFlight.Load()
		if current >= b.max {
			return nil, domain.ErrCapacityExhausted
		}
		if b.inFlight.CompareAndSwap(current, current+1) {
			return &Ticket{bounded: b}, nil
		}
	}
}

// Ticket is one admitted slot. It runs at most one call and frees its slot exactly once.
type Ticket struct {
	bounded *Bounded
	used    atomic.Bool
	release sync.Once
}

// Release frees the slot. Safe to call more than once; only the first call counts.
func (t *Ticket) Release() {
	t.release.Do(func() {
		t.bounded.inFlight.Add(-1)
	})
}

type settled struct {
	text string
	err  error
}

// Classify runs the external call. The call is detached from ctx cancellation
// and keeps its slot until it returns, even after the caller has timed out.
func (t *Ticket) Classify(ctx context.Context, responses []domain.Response, userName string) (domain.ClassificationResult, error) {
	if !t.used.CompareAndSwap(false, true) {
		return domain.ClassificationResult{}, errTicketUsed
	}

	prompt := BuildPrompt(responses, userName)
	done := make(chan settled, 1)
	callCtx := context.WithoutCancel(ctx)

	go func() {
		var out settled
		defer func() {
			if r := recover(); r != nil {
				out.err = fmt.Errorf("classifier panic: %v", r)
			}
			t.Release()
			done <- out
		}()
		out.text, out.err = t.bounded.client.Generate(callCtx, prompt)
	}()

	timer := time.NewTimer(t.bounded.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return domain.ClassificationResult{}, fmt.Errorf("classify: %w", out.err)
		}
		return ParseResult(out.text)
	case <-timer.C:
		return domain.ClassificationResult{}, domain.ErrClassifierTimeout
	case <-ctx.Done():
		return domain.ClassificationResult{}, fmt.Errorf("classify: %w", ctx.Err())
	}
}
