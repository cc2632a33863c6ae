package core

import (
	"time"

	"github.com/pkg/errors"
)

// ErrWriteConflict reports a write that was not observed to affect a row,
// e.g. an optimistic-lock version mismatch. It is transient: callers retry
// it within a bounded RetryPolicy before surfacing a failure.
var ErrWriteConflict = errors.New("write conflict")

// RetryPolicy retries an operation a fixed number of times with a fixed
// delay between attempts. Only write conflicts are retried; any other
// error aborts immediately.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func NewRetryPolicy(conf RetryConfig) RetryPolicy {
	return RetryPolicy{MaxAttempts: conf.MaxAttempts, Delay: conf.Delay}
}

func (rp RetryPolicy) Run(op func() error) error {
	maxAttempts := rp.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if errors.Cause(err) != ErrWriteConflict {
			return err
		}
		if attempt < maxAttempts {
			time.Sleep(rp.Delay)
		}
	}
	return err
}
