package llm

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors. Match with errors.Is.
var (
	// ErrRateLimited marks a backend quota or throttling rejection.
	ErrRateLimited = errors.New("rate limited")
	// ErrPoolExhausted means every candidate failed or was unavailable.
	ErrPoolExhausted = errors.New("all models failed")
	// ErrEmptyPool is the degenerate exhaustion of a router with no models.
	// errors.Is(ErrEmptyPool, ErrPoolExhausted) holds.
	ErrEmptyPool = fmt.Errorf("%w: no models configured", ErrPoolExhausted)
)

// FailureKind is how a single candidate attempt failed.
type FailureKind string

const (
	FailureRateLimited FailureKind = "rate_limited"
	FailureRequest     FailureKind = "request_failed"
	// FailureUnavailable means the candidate's family has no adapter in the pool.
	FailureUnavailable FailureKind = "unavailable"
	FailureCanceled    FailureKind = "canceled"
)

// AdapterError is the typed failure every adapter returns.
type AdapterError struct {
	Kind       FailureKind
	Family     string
	Model      string
	StatusCode int       // HTTP status when known, else 0
	Class      ErrorType // finer classification for messages and metrics
	Detail     string
	Err        error
}

func (e *AdapterError) Error() string {
	var b strings.Builder
	b.WriteString(e.Family)
	if e.Model != "" {
		b.WriteString("/")
		b.WriteString(e.Model)
	}
	b.WriteString(": ")
	switch e.Kind {
	case FailureRateLimited:
		b.WriteString("rate limited")
		if e.Detail != "" {
			b.WriteString(" (" + e.Detail + ")")
		}
	case FailureUnavailable:
		b.WriteString("provider unavailable")
	default:
		b.WriteString("request failed")
		if e.StatusCode != 0 {
			fmt.Fprintf(&b, " (status %d)", e.StatusCode)
		}
		if e.Detail != "" {
			b.WriteString(": " + e.Detail)
		}
	}
	return b.String()
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRateLimited) see through the typed error.
func (e *AdapterError) Is(target error) bool {
	return target == ErrRateLimited && e.Kind == FailureRateLimited
}

// RateLimited builds a rate-limit failure.
func RateLimited(family, model string, status int, err error) *AdapterError {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &AdapterError{
		Kind:       FailureRateLimited,
		Family:     family,
		Model:      model,
		StatusCode: status,
		Class:      ErrorTypeRateLimit,
		Detail:     detail,
		Err:        err,
	}
}

// RequestFailed builds a generic failure. The detail is classified with
// ClassifyError so callers can still tell auth from timeout.
func RequestFailed(family, model string, status int, detail string, err error) *AdapterError {
	if detail == "" && err != nil {
		detail = err.Error()
	}
	return &AdapterError{
		Kind:       FailureRequest,
		Family:     family,
		Model:      model,
		StatusCode: status,
		Class:      ClassifyError(detail),
		Detail:     detail,
		Err:        err,
	}
}

// KindOf reports the failure kind of err. Untyped errors are classified by
// message, which is how third-party adapters without AdapterError still fail
// over consistently.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, ErrRateLimited) || IsRateLimitMessage(err.Error()) {
		return FailureRateLimited
	}
	return FailureRequest
}

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool {
	return KindOf(err) == FailureRateLimited
}

// Attempt records one candidate tried during a search.
type Attempt struct {
	Index    int
	Model    ModelDescriptor
	Kind     FailureKind // empty on success
	Err      error
	Duration time.Duration
}

// OK reports whether the attempt produced a response.
func (a Attempt) OK() bool { return a.Err == nil }

// PoolExhaustedError is returned when no candidate produced a response.
// It matches ErrPoolExhausted and unwraps to every attempt error.
type PoolExhaustedError struct {
	Attempts []Attempt
}

func (e *PoolExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return ErrPoolExhausted.Error()
	}
	last := e.Attempts[len(e.Attempts)-1]
	return fmt.Sprintf("all %d models failed (last: %v)", len(e.Attempts), last.Err)
}

func (e *PoolExhaustedError) Is(target error) bool {
	return target == ErrPoolExhausted
}

func (e *PoolExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// ErrorType categorizes backend errors for user messaging.
type ErrorType string

const (
	ErrorTypeUnknown    ErrorType = "unknown"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeOverloaded ErrorType = "overloaded"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeBilling    ErrorType = "billing"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeFormat     ErrorType = "format"
)

// errorPatterns is checked in order of specificity; first hit wins.
// Billing is checked before auth since quota messages often mention keys.
var errorPatterns = []struct {
	typ      ErrorType
	patterns []string
}{
	{ErrorTypeRateLimit, []string{
		"429", "rate_limit", "rate limit", "too many requests",
		"exceeded your current quota", "quota exceeded",
		"resource_exhausted", "resourceexhausted", "resource has been exhausted",
		"usage limit", "requests per minute", "requests per day", "tokens per minute",
	}},
	{ErrorTypeOverloaded, []string{
		"overloaded", "server is busy", "temporarily unavailable", "503 service unavailable", "capacity",
	}},
	{ErrorTypeBilling, []string{
		"402", "payment required", "insufficient credits", "credit balance",
		"billing", "insufficient_quota", "account balance",
	}},
	{ErrorTypeAuth, []string{
		"401", "403", "invalid api key", "invalid_api_key", "incorrect api key",
		"unauthorized", "forbidden", "permission_denied", "access denied",
		"authentication", "api key not valid", "invalid credentials",
	}},
	{ErrorTypeTimeout, []string{
		"408", "504", "timeout", "timed out", "deadline exceeded", "connection reset",
	}},
	{ErrorTypeFormat, []string{
		"invalid request format", "roles must alternate", "invalid_request_error",
		"malformed", "schema validation",
	}},
}

// ClassifyError determines the error type from an error message.
// Returns ErrorTypeUnknown if the message doesn't match any known pattern.
func ClassifyError(msg string) ErrorType {
	if msg == "" {
		return ErrorTypeUnknown
	}
	lower := strings.ToLower(msg)
	for _, group := range errorPatterns {
		for _, p := range group.patterns {
			if strings.Contains(lower, p) {
				return group.typ
			}
		}
	}
	return ErrorTypeUnknown
}

// IsRateLimitMessage checks if a message indicates rate limiting.
func IsRateLimitMessage(msg string) bool {
	return ClassifyError(msg) == ErrorTypeRateLimit
}

// FormatErrorForUser returns a short human explanation of a failure.
func FormatErrorForUser(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrEmptyPool) {
		return "No models are available. Set GROQ_API_KEY, GEMINI_API_KEY or another provider key."
	}
	var pe *PoolExhaustedError
	if errors.As(err, &pe) {
		return fmt.Sprintf("All %d models failed. Try again later or pick a model with /use.", len(pe.Attempts))
	}

	var ae *AdapterError
	class := ClassifyError(err.Error())
	if errors.As(err, &ae) {
		class = ae.Class
	}
	switch class {
	case ErrorTypeRateLimit:
		return "Rate limited - too many requests."
	case ErrorTypeOverloaded:
		return "The service is temporarily overloaded."
	case ErrorTypeAuth:
		return "Authentication failed. Check your API key."
	case ErrorTypeBilling:
		return "Billing issue with the provider. Check your plan or credits."
	case ErrorTypeTimeout:
		return "Request timed out."
	case ErrorTypeFormat:
		return "The provider rejected the request format."
	}
	return err.Error()
}
