package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unified error code across the pipeline and the
// delivery layer. The code is what clients see; the raw cause never is.
type ErrorCode string

// Common codes
const (
	ErrValidation ErrorCode = "validation_error"
	ErrTimeout    ErrorCode = "timeout"
	ErrUnknown    ErrorCode = "unknown_error"
)

// Retrieval / postprocess codes
const (
	ErrRetrievalEmpty    ErrorCode = "retrieval_empty"
	ErrRetrievalFailed   ErrorCode = "retrieval_failed"
	ErrPostprocessFailed ErrorCode = "postprocess_failed"
)

// Generation codes
const (
	ErrLLMFailed          ErrorCode = "llm_failed"
	ErrModelOutputInvalid ErrorCode = "model_output_invalid"
)

// Infrastructure codes
const (
	ErrQueueFailed  ErrorCode = "queue_failed"
	ErrStreamFailed ErrorCode = "stream_failed"
	ErrRedisFailed  ErrorCode = "redis_failed"
)

// Safeguard codes, split by label so the client can distinguish the block reason.
const (
	ErrSafeguardBlocked ErrorCode = "safeguard_blocked"
	ErrPIIBlocked       ErrorCode = "pii_blocked"
	ErrHarmfulBlocked   ErrorCode = "harmful_blocked"
	ErrInjectionBlocked ErrorCode = "prompt_injection_blocked"
)

// ErrCancelled is attached to streams of jobs cancelled before or after execution.
const ErrCancelled ErrorCode = "cancelled"

// userMessages maps every code to one short, non-technical message.
var userMessages = map[ErrorCode]string{
	ErrValidation:         "The request could not be validated. Please adjust it and retry.",
	ErrTimeout:            "Processing took too long. Please try again shortly.",
	ErrRetrievalEmpty:     "No relevant information was found, so only a general answer is available.",
	ErrRetrievalFailed:    "Something went wrong while searching. Please try again.",
	ErrPostprocessFailed:  "A processing problem occurred, so a basic answer is provided.",
	ErrLLMFailed:          "Answer generation ran into a problem, so a basic answer is provided.",
	ErrModelOutputInvalid: "The generated output was malformed, so a basic answer is provided.",
	ErrQueueFailed:        "The job queue ran into a problem.",
	ErrStreamFailed:       "Streaming ran into a problem.",
	ErrRedisFailed:        "The backing store is unavailable.",
	ErrSafeguardBlocked:   "This request cannot be processed. Please ask something else.",
	ErrPIIBlocked:         "This request cannot be processed due to the personal data policy.",
	ErrHarmfulBlocked:     "This request was classified as harmful and cannot be processed.",
	ErrInjectionBlocked:   "This request was judged unsafe and has been blocked.",
	ErrCancelled:          "The job was cancelled.",
	ErrUnknown:            "Something went wrong. Please try again shortly.",
}

// UserMessage 返回面向最终用户的短消息，未知码回退到 unknown 文案。
func (c ErrorCode) UserMessage() string {
	if msg, ok := userMessages[c]; ok {
		return msg
	}
	return userMessages[ErrUnknown]
}

// Domain 返回错误码所属的领域分组，用于日志与指标标签。
func (c ErrorCode) Domain() string {
	switch c {
	case ErrRetrievalEmpty, ErrRetrievalFailed, ErrPostprocessFailed:
		return "retrieval"
	case ErrLLMFailed, ErrModelOutputInvalid:
		return "generation"
	case ErrQueueFailed, ErrStreamFailed, ErrRedisFailed:
		return "infrastructure"
	case ErrSafeguardBlocked, ErrPIIBlocked, ErrHarmfulBlocked, ErrInjectionBlocked:
		return "safeguard"
	case ErrValidation, ErrTimeout:
		return "common"
	default:
		return "common"
	}
}

// Retriable 返回调用方是否可以用同一输入重试。
// safeguard 与 validation 永不重试。
func (c ErrorCode) Retriable() bool {
	switch c {
	case ErrTimeout, ErrRetrievalFailed, ErrLLMFailed,
		ErrQueueFailed, ErrStreamFailed, ErrRedisFailed, ErrUnknown:
		return true
	default:
		return false
	}
}

// CodeFromString 将外部字符串解析为已知错误码，未知值归为 ErrUnknown。
func CodeFromString(raw string) ErrorCode {
	code := ErrorCode(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := userMessages[code]; ok {
		return code
	}
	return ErrUnknown
}

// CodeFromError 按错误类型与消息启发式归类到统一错误码。
func CodeFromError(err error) ErrorCode {
	if err == nil {
		return ErrUnknown
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "timeout"):
		return ErrTimeout
	case strings.Contains(message, "redis"):
		return ErrRedisFailed
	case strings.Contains(message, "queue"):
		return ErrQueueFailed
	case strings.Contains(message, "stream"):
		return ErrStreamFailed
	case strings.Contains(message, "retriev"), strings.Contains(message, "search"):
		return ErrRetrievalFailed
	case strings.Contains(message, "llm"), strings.Contains(message, "model"):
		return ErrLLMFailed
	default:
		return ErrUnknown
	}
}

// Error is a structured error carrying a code and an optional cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}
