// Package paginate follows page tokens of remote list APIs with per-page retries.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// ErrStalled is returned when a page claims more data but hands back no new token
var ErrStalled = errors.New("pagination stalled")

// Page is one response of a list API
type Page[T any] struct {
	Items     []T
	PageToken string
	HasMore   bool
	Total     int
}

// Query fetches the page starting at pageToken; "" is the first page
type Query[T any] func(ctx context.Context, pageToken string) (*Page[T], error)

// Options controls retries and progress reporting
type Options struct {
	MaxRetries int           // retries per page, default 3
	BaseDelay  time.Duration // first backoff, default 500ms
	MaxDelay   time.Duration // backoff cap, default 10s
	OnPage     func(index, items int)
	Logger     *zap.Logger
}

func (o *Options) normalize() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error that must not be retried
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Paginate collects every item by following page tokens until HasMore is false
func Paginate[T any](ctx context.Context, query Query[T], opts Options) ([]T, error) {
	opts.normalize()

	var (
		items []T
		token string
	)
	for index := 0; ; index++ {
		page, err := fetch(ctx, query, token, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", index, err)
		}

		items = append(items, page.Items...)
		if opts.OnPage != nil {
			opts.OnPage(index, len(page.Items))
		}

		if !page.HasMore {
			return items, nil
		}
		if page.PageToken == "" || page.PageToken == token {
			return nil, fmt.Errorf("%w at page %d", ErrStalled, index)
		}
		token = page.PageToken
	}
}

func fetch[T any](ctx context.Context, query Query[T], token string, opts Options) (*Page[T], error) {
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt, opts.BaseDelay, opts.MaxDelay)
			opts.Logger.Info("Retrying page",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		page, err := query(ctx, token)
		if err == nil {
			if page == nil {
				page = &Page[T]{}
			}
			return page, nil
		}

		lastErr = err
		if IsPermanent(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("gave up after %d retries: %w", opts.MaxRetries, lastErr)
}

// backoff doubles per attempt with up to 50% jitter, capped at maxDelay
func backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	delay := base << (attempt - 1)
	if delay <= 0 || delay > maxDelay {
		delay = maxDelay
	}
	jitter := time.Duration(rand.Int64N(int64(delay)/2 + 1))
	return min(delay+jitter, maxDelay)
}
