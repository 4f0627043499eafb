package helpers

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"battery-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ObserverError struct {
	Message string
	Cause   error
}

func (e *ObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks
type ConfigurationError struct{ ObserverError }
type ConnectionError struct{ ObserverError }
type HandshakeError struct{ ObserverError }
type DecodeError struct{ ObserverError }
type DatabaseError struct{ ObserverError }
type NotificationError struct{ ObserverError }

// -----------------------------------------------------------------------------

func NewConnectionError(msg string, cause error) error {
	return &ConnectionError{ObserverError{Message: msg, Cause: cause}}
}

func NewHandshakeError(msg string, cause error) error {
	return &HandshakeError{ObserverError{Message: msg, Cause: cause}}
}

func NewDecodeError(msg string, cause error) error {
	return &DecodeError{ObserverError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{ObserverError{Message: msg, Cause: cause}}
}

func NewNotificationError(msg string, cause error) error {
	return &NotificationError{ObserverError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler counts consecutive failures of one long-running operation.
type ErrorHandler struct {
	Logger *logger.Logger

	mu         sync.Mutex
	errorCount int
	sleep      func(time.Duration)
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{
		Logger: log,
		sleep:  time.Sleep,
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.mu.Lock()
	e.errorCount = 0
	e.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ErrorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorCount
}

// -----------------------------------------------------------------------------

// ExecuteWithRetry runs fn up to maxRetries times with exponential backoff
// starting at baseDelay. Used for one-shot startup work such as opening an
// archive; the event source uses its own fixed-delay loop.
func (e *ErrorHandler) ExecuteWithRetry(operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			e.ResetErrorCount()
			return nil
		}
		lastErr = err

		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		e.Logger.Warning("%s failed (attempt %d/%d): %v. Retrying in %v", operation, attempt+1, maxRetries, err, delay)
		e.sleep(delay)
	}

	e.Handle(lastErr, operation)

	lowerOp := strings.ToLower(operation)
	msg := fmt.Sprintf("%s failed after %d attempts", operation, maxRetries)
	if strings.Contains(lowerOp, "database") || strings.Contains(lowerOp, "archive") {
		return NewDatabaseError(msg, lastErr)
	}
	return &ObserverError{Message: msg, Cause: lastErr}
}

// -----------------------------------------------------------------------------

// Handle logs err and bumps the consecutive failure count.
func (e *ErrorHandler) Handle(err error, context string) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.errorCount++
	n := e.errorCount
	e.mu.Unlock()

	e.Logger.Error("Error in %s (consecutive failures: %d): %v", context, n, err)
}
