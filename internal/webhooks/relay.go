package webhooks

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"mailevents/internal/observability"
)

type Sender interface {
	Trigger(ctx context.Context, t Trigger) (int, []byte, error)
}

// Relay drains the outbox into the webhook dispatch service with rate
// limiting, a circuit breaker and bounded retries. Triggers that exhaust
// their attempts are dead-lettered.
type Relay struct {
	Outbox         Outbox
	Sender         Sender
	Limiter        *rate.Limiter
	Breaker        *gobreaker.CircuitBreaker
	MaxAttempts    int
	RequestTimeout time.Duration
	// BackoffFunc overrides the default jittered backoff.
	BackoffFunc func(attempt int) time.Duration
	// BreakerWait is how long to hold a trigger while the breaker is open.
	// It should match the breaker's open-state timeout.
	BreakerWait time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewRelay wires a relay with a per-process rate limit and a breaker that
// trips after consecutive dispatch-service failures.
func NewRelay(outbox Outbox, sender Sender, rps float64, burst, maxAttempts int) *Relay {
	const openTimeout = 20 * time.Second
	return &Relay{
		Outbox:  outbox,
		Sender:  sender,
		Limiter: rate.NewLimiter(rate.Limit(rps), burst),
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "webhook-service",
			MaxRequests: 3,
			Timeout:     openTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
		}),
		MaxAttempts: maxAttempts,
		BreakerWait: openTimeout,
	}
}

// Run starts workers and blocks until ctx is canceled.
func (r *Relay) Run(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				t, err := r.Outbox.Receive(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					if !errors.Is(err, ErrNoTrigger) {
						slog.Error("webhook outbox receive failed", "err", err)
						sleepCtx(ctx, 500*time.Millisecond)
					}
					continue
				}
				_ = r.Deliver(ctx, t)
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Deliver sends one trigger, retrying transient failures.
func (r *Relay) Deliver(ctx context.Context, t Trigger) error {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	var lastErr error
	for t.Attempts < maxAttempts {
		attempt := t.Attempts
		t.Attempts++

		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				r.requeue(t)
				return err
			}
		}

		start := time.Now()
		httpStatus, err := r.execute(ctx, t)
		if err == nil {
			observability.WebhookTrigger.WithLabelValues("ok", strconv.Itoa(httpStatus)).Inc()
			observability.WebhookLatency.Observe(time.Since(start).Seconds())
			return nil
		}
		lastErr = err

		switch {
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			observability.WebhookTrigger.WithLabelValues("cb_open", "0").Inc()
			// The service was never called, so the attempt is not spent.
			t.Attempts--
			if !sleepCtx(ctx, r.breakerWait()) {
				r.requeue(t)
				return ctx.Err()
			}
			continue
		case !ShouldRetry(err, httpStatus):
			observability.WebhookTrigger.WithLabelValues("rejected", strconv.Itoa(httpStatus)).Inc()
			r.deadLetter(t, err)
			return err
		default:
			observability.WebhookTrigger.WithLabelValues("error", strconv.Itoa(httpStatus)).Inc()
		}

		if t.Attempts >= maxAttempts {
			break
		}
		if !sleepCtx(ctx, r.backoff(attempt)) {
			r.requeue(t)
			return ctx.Err()
		}
	}

	r.deadLetter(t, lastErr)
	return lastErr
}

func (r *Relay) execute(ctx context.Context, t Trigger) (int, error) {
	call := func() (any, error) {
		timeout := r.RequestTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		status, _, err := r.Sender.Trigger(reqCtx, t)
		if err != nil {
			return status, triggerError{err: err, httpStatus: status}
		}
		return status, nil
	}

	var res any
	var err error
	if r.Breaker == nil {
		res, err = call()
	} else {
		res, err = r.Breaker.Execute(call)
	}

	var te triggerError
	if errors.As(err, &te) {
		return te.httpStatus, err
	}
	status, _ := res.(int)
	return status, err
}

func (r *Relay) breakerWait() time.Duration {
	if r.BreakerWait > 0 {
		return r.BreakerWait
	}
	return time.Second
}

func (r *Relay) backoff(attempt int) time.Duration {
	if r.BackoffFunc != nil {
		return r.BackoffFunc(attempt)
	}
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return Backoff(attempt, r.rng)
}

// requeue puts an interrupted trigger back so shutdown does not lose it.
func (r *Relay) requeue(t Trigger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Outbox.Publish(ctx, t); err != nil {
		slog.Error("webhook requeue failed", "err", err, "trigger_id", t.ID, "team_id", t.TeamID)
	}
}

func (r *Relay) deadLetter(t Trigger, cause error) {
	slog.Error("webhook trigger dead-lettered",
		"err", cause,
		"trigger_id", t.ID,
		"team_id", t.TeamID,
		"kind", t.Kind,
		"attempts", t.Attempts,
	)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Outbox.DeadLetter(ctx, t); err != nil {
		slog.Error("webhook dead-letter write failed", "err", err, "trigger_id", t.ID)
	}
}

type triggerError struct {
	err        error
	httpStatus int
}

func (e triggerError) Error() string { return e.err.Error() }
func (e triggerError) Unwrap() error { return e.err }

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
