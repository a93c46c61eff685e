package unitlog

import (
	"errors"
	"fmt"
	"time"
)

// Entry is one buffered log message.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`

	// Exception is set when the entry documents an error or panic.
	Exception *ExceptionDetail `json:"exception,omitempty"`

	// Category groups entries belonging to one logical sub-task.
	Category string `json:"category,omitempty"`

	// Caller is the file:line that appended the entry.
	Caller string `json:"caller,omitempty"`
}

// ExceptionDetail is the structured description of an error or panic.
type ExceptionDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// NewExceptionDetail describes err. The innermost wrapped error's type is
// reported; verbose formatting is kept as the stack when it adds detail.
func NewExceptionDetail(err error) *ExceptionDetail {
	if err == nil {
		return nil
	}
	inner := err
	for {
		next := errors.Unwrap(inner)
		if next == nil {
			break
		}
		inner = next
	}
	detail := &ExceptionDetail{
		Type:    fmt.Sprintf("%T", inner),
		Message: err.Error(),
	}
	if verbose := fmt.Sprintf("%+v", err); verbose != detail.Message {
		detail.Stack = verbose
	}
	return detail
}

// PanicDetail describes a recovered panic value.
func PanicDetail(v any, stack []byte) *ExceptionDetail {
	detail := &ExceptionDetail{
		Type:  fmt.Sprintf("%T", v),
		Stack: string(stack),
	}
	if err, ok := v.(error); ok {
		detail.Message = err.Error()
	} else {
		detail.Message = fmt.Sprint(v)
	}
	return detail
}
