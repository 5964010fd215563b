// Package crm – result.go defines the uniform result envelope returned by
// every remote operation. Callers branch on Success instead of error-typing.
package crm

import "fmt"

// Result is the envelope every CRM-facing operation resolves to. Failures are
// carried inside the envelope so a calling loop can log and continue; Go
// errors are reserved for transport-level surprises.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OK builds a success envelope.
func OK(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}

// Fail builds a failure envelope.
func Fail(format string, args ...any) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// FailErr wraps an error into a failure envelope with a short prefix.
func FailErr(prefix string, err error) Result {
	if err == nil {
		return Fail("%s", prefix)
	}
	return Fail("%s: %v", prefix, err)
}
