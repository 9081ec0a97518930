package store

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerSettings configures the store circuit breaker
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// Breaker fails store calls fast while the backend keeps failing.
// Only transient store errors count as failures; domain outcomes such as
// ErrAlreadyEnrolled pass through without tripping it.
type Breaker struct {
	next recovery.Store
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreaker wraps next with a circuit breaker
func NewBreaker(next recovery.Store, settings BreakerSettings, logger *zap.Logger) *Breaker {
	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "store",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Store circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, apperrors.ErrTransientStore)
		},
	})

	return &Breaker{next: next, cb: cb}
}

// State reports the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func call[T any](b *Breaker, op string, fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(func() (any, error) {
		r, err := fn()
		return r, err
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, apperrors.Transient(op, err)
		}
		return zero, err
	}
	return v.(T), nil
}

func exec(b *Breaker, op string, fn func() error) error {
	_, err := call(b, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (b *Breaker) FetchEnrollment(ctx context.Context, patientID string) (*recovery.Enrollment, error) {
	return call(b, "fetch enrollment", func() (*recovery.Enrollment, error) {
		return b.next.FetchEnrollment(ctx, patientID)
	})
}

func (b *Breaker) InsertEnrollment(ctx context.Context, e *recovery.Enrollment) error {
	return exec(b, "insert enrollment", func() error {
		return b.next.InsertEnrollment(ctx, e)
	})
}

func (b *Breaker) UpdateEnrollment(ctx context.Context, e *recovery.Enrollment) error {
	return exec(b, "update enrollment", func() error {
		return b.next.UpdateEnrollment(ctx, e)
	})
}

func (b *Breaker) FetchTaskInstances(ctx context.Context, patientID string, day int) ([]recovery.TaskInstance, error) {
	return call(b, "fetch task instances", func() ([]recovery.TaskInstance, error) {
		return b.next.FetchTaskInstances(ctx, patientID, day)
	})
}

func (b *Breaker) FetchTaskInstance(ctx context.Context, id string) (*recovery.TaskInstance, error) {
	return call(b, "fetch task instance", func() (*recovery.TaskInstance, error) {
		return b.next.FetchTaskInstance(ctx, id)
	})
}

func (b *Breaker) InsertTaskInstance(ctx context.Context, inst *recovery.TaskInstance) (*recovery.TaskInstance, error) {
	return call(b, "insert task instance", func() (*recovery.TaskInstance, error) {
		return b.next.InsertTaskInstance(ctx, inst)
	})
}

func (b *Breaker) FetchCompletion(ctx context.Context, taskInstanceID string) (*recovery.CompletionRecord, error) {
	return call(b, "fetch completion", func() (*recovery.CompletionRecord, error) {
		return b.next.FetchCompletion(ctx, taskInstanceID)
	})
}

func (b *Breaker) UpsertCompletion(ctx context.Context, rec *recovery.CompletionRecord) error {
	return exec(b, "upsert completion", func() error {
		return b.next.UpsertCompletion(ctx, rec)
	})
}

// Close closes the wrapped store; it bypasses the breaker.
func (b *Breaker) Close() error {
	return b.next.Close()
}
