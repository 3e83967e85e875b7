package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-pipeline/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type PipelineError struct {
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks
type ConfigurationError struct{ PipelineError }
type DatabaseError struct{ PipelineError }
type ValidationError struct{ PipelineError }

// -----------------------------------------------------------------------------

// GatewayError is a failed exchange call. Status is the HTTP status (0 for transport errors).
// Retriable is set for rate limits, server errors and transport failures.
type GatewayError struct {
	PipelineError
	Status    int
	Retriable bool
}

func NewGatewayError(message string, status int, retriable bool, cause error) *GatewayError {
	return &GatewayError{
		PipelineError: PipelineError{Message: message, Cause: cause},
		Status:        status,
		Retriable:     retriable,
	}
}

// -----------------------------------------------------------------------------

// InvalidPeriodError is returned for a look-back label outside the supported set.
type InvalidPeriodError struct {
	Period string
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid period %q (expected one of 1week, 1month, 3months, 6months)", e.Period)
}

// -----------------------------------------------------------------------------

// LoaderError aborts a paginated load. Page is the zero-based page that failed.
type LoaderError struct {
	PipelineError
	Symbol string
	Page   int
}

func NewLoaderError(symbol string, page int, cause error) *LoaderError {
	return &LoaderError{
		PipelineError: PipelineError{Message: fmt.Sprintf("history load for %s failed at page %d", symbol, page), Cause: cause},
		Symbol:        symbol,
		Page:          page,
	}
}

// -----------------------------------------------------------------------------

// IsRetriable reports whether err (or anything it wraps) is a retriable gateway failure.
func IsRetriable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Retriable
	}
	return false
}

// IsInvalidPeriod reports whether err is an InvalidPeriodError.
func IsInvalidPeriod(err error) bool {
	var pErr *InvalidPeriodError
	return errors.As(err, &pErr)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries+1 times. Only retriable errors are retried;
// the delay doubles after each attempt and waiting stops when ctx is done.
func RetryWithBackoff[T any](ctx context.Context, operation string, maxRetries int, baseDelay time.Duration, log *logger.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}

		lastErr = err
		if !IsRetriable(err) || attempt == maxRetries {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("%s failed (attempt %d/%d): %v. Retrying in %v", operation, attempt+1, maxRetries+1, err, delay)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler counts consecutive failures of background jobs.
type ErrorHandler struct {
	Logger         *logger.Logger
	ErrorCount     int
	MaxErrorsAlarm int
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{
		Logger:         log,
		MaxErrorsAlarm: 10,
	}
}

// -----------------------------------------------------------------------------

// Handle logs err and returns true when the consecutive error count reached the alarm level.
func (e *ErrorHandler) Handle(err error, where string) bool {
	if err == nil {
		if e.ErrorCount > 0 {
			e.ErrorCount--
		}
		return false
	}

	e.ErrorCount++
	e.Logger.Error("Error in %s: %v", where, err)
	if e.ErrorCount >= e.MaxErrorsAlarm {
		e.Logger.Warning("%d consecutive errors, last in %s", e.ErrorCount, where)
		return true
	}
	return false
}
