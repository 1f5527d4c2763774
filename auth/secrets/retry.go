package secrets

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
)

// CustomRetryer retries throttling errors with jittered exponential backoff and
// gives up immediately on everything else.
type CustomRetryer struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

var _ aws.Retryer = (*CustomRetryer)(nil)

// NewRetryer returns a retryer with the given limits. Non-positive values fall
// back to 10 attempts, a 100ms base delay and a 30s cap.
func NewRetryer(maxAttempts int, baseDelay, maxDelay time.Duration) *CustomRetryer {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &CustomRetryer{maxAttempts: maxAttempts, baseDelay: baseDelay, maxDelay: maxDelay}
}

// MaxAttempts implements aws.Retryer.
func (r *CustomRetryer) MaxAttempts() int {
	return r.maxAttempts
}

// RetryDelay implements aws.Retryer: baseDelay * 2^(attempt-1) with ±25% jitter,
// capped at maxDelay.
func (r *CustomRetryer) RetryDelay(attempt int, _ error) (time.Duration, error) {
	attempt = max(attempt, 1)
	delay := r.baseDelay << min(attempt-1, 30)
	if delay <= 0 || delay > r.maxDelay {
		delay = r.maxDelay
	}

	if jitter := int64(delay) / 4; jitter > 0 {
		delay += time.Duration(rand.Int64N(2*jitter) - jitter)
	}
	return min(max(delay, 0), r.maxDelay), nil
}

// IsErrorRetryable implements aws.Retryer.
func (r *CustomRetryer) IsErrorRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException",
			"ProvisionedThroughputExceededException",
			"RequestLimitExceeded",
			"TooManyRequestsException":
			return true
		}
	}
	return false
}

// GetRetryToken implements aws.Retryer without a token bucket.
func (r *CustomRetryer) GetRetryToken(context.Context, error) (func(error) error, error) {
	return func(error) error { return nil }, nil
}

// GetInitialToken implements aws.Retryer without a token bucket.
func (r *CustomRetryer) GetInitialToken() func(error) error {
	return func(error) error { return nil }
}
