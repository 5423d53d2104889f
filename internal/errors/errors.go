// Package errors defines the application error taxonomy and central handling.
package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError carries an error code, severity, and the message shown to the user.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// NewValidationError covers malformed user input such as an out-of-range
// answer index. Recovered locally with a transient alert.
func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        "E100",
		Message:     msg,
		UserMessage: "Некорректный выбор.",
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewStorageError covers database and session store failures.
func NewStorageError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Message:     fmt.Sprintf("Storage error: %s", underlyingMsg),
		UserMessage: "Временная проблема, попробуйте позже",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewRenderError covers a failed screen delivery after the fallback resend
// also failed.
func NewRenderError(cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Message:     "Failed to render wizard screen",
		UserMessage: "Произошла ошибка. Пожалуйста, напишите /restart, чтобы начать проверку заново.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewSessionError covers corrupted or inconsistent wizard session state.
func NewSessionError(msg string) *AppError {
	return &AppError{
		Code:        "E400",
		Message:     msg,
		UserMessage: "Кажется, я перезагрузился и забыл, на чём мы остановились. Напишите /restart.",
		Severity:    SeverityMedium,
		Retryable:   false,
	}
}

// NewUnmuteError covers the case where the quiz was passed but the permission
// restore failed: database and chat state now disagree, so this is critical
// and must reach an operator.
func NewUnmuteError(cause error) *AppError {
	return &AppError{
		Code:        "E500",
		Message:     "Failed to restore chat permissions after passed verification",
		UserMessage: "Произошла ошибка. Свяжитесь с администратором чата.",
		Severity:    SeverityCritical,
		Retryable:   false,
		cause:       cause,
	}
}

// NewContentError covers an unusable content document. Fatal at startup.
func NewContentError(cause error) *AppError {
	return &AppError{
		Code:        "E600",
		Message:     fmt.Sprintf("Content load error: %v", cause),
		UserMessage: "Сервис временно недоступен",
		Severity:    SeverityCritical,
		Retryable:   false,
		cause:       cause,
	}
}
