package types

import (
	"errors"
	"fmt"
)

// TransientNetworkError an RPC or HTTP transport failure. No status change,
// the next poll or sweep retries it.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error during %s: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// NewTransientNetworkError wraps err as a transient failure of op
func NewTransientNetworkError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientNetworkError{Op: op, Err: err}
}

// ExternalServiceError a generation or storage service rejected the request
type ExternalServiceError struct {
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Service, e.Err)
	default:
		return fmt.Sprintf("%s failed", e.Service)
	}
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// FinalizeErrorKind classifies chain finalization failures
type FinalizeErrorKind string

const (
	FinalizeAlreadyDone        FinalizeErrorKind = "already_done"        // URI already set or token not finalizable
	FinalizeSequencingConflict FinalizeErrorKind = "sequencing_conflict" // nonce race, retried without penalty
	FinalizeUnknown            FinalizeErrorKind = "unknown"
)

// ChainFinalizeError returned by the chain finalizer
type ChainFinalizeError struct {
	Kind   FinalizeErrorKind
	TxHash string
	Err    error
}

func (e *ChainFinalizeError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("finalize %s (tx %s): %v", e.Kind, e.TxHash, e.Err)
	}
	return fmt.Sprintf("finalize %s: %v", e.Kind, e.Err)
}

func (e *ChainFinalizeError) Unwrap() error { return e.Err }

// ConfigurationError missing or invalid startup parameter. Fatal.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// IsTransient reports whether err is a TransientNetworkError
func IsTransient(err error) bool {
	var target *TransientNetworkError
	return errors.As(err, &target)
}

// FinalizeKind returns the finalize classification of err, or "" if err is
// not a ChainFinalizeError
func FinalizeKind(err error) FinalizeErrorKind {
	var target *ChainFinalizeError
	if errors.As(err, &target) {
		return target.Kind
	}
	return ""
}

func IsAlreadyDone(err error) bool {
	return FinalizeKind(err) == FinalizeAlreadyDone
}

func IsSequencingConflict(err error) bool {
	return FinalizeKind(err) == FinalizeSequencingConflict
}

// IsConfigurationError reports whether err is a ConfigurationError
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
