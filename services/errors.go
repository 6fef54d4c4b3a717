package services

import (
	"errors"
	"fmt"

	"multimodal-rag-platform/models"
)

// ErrNoData is returned when retrieval is attempted against an empty store.
// Callers can render "upload documents first" instead of an error banner.
var ErrNoData = errors.New("no documents in vector store")

// ErrCapabilityUnavailable marks failures of an external capability
// (embedding, captioning, completion, or the store itself).
var ErrCapabilityUnavailable = errors.New("capability unavailable")

// ValidationError reports malformed query or document input. It is never
// retried and surfaces immediately.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func newValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// capabilityError wraps a capability failure so callers can match it with
// errors.Is(err, ErrCapabilityUnavailable) while keeping the cause.
func capabilityError(capability string, cause error) error {
	return fmt.Errorf("%s: %w: %w", capability, ErrCapabilityUnavailable, cause)
}

// PartialIngestionFailure reports that one or more documents in a batch
// failed while the rest succeeded. The batch result slice still carries one
// entry per input document.
type PartialIngestionFailure struct {
	Failed int
	Total  int
}

func (e *PartialIngestionFailure) Error() string {
	return fmt.Sprintf("%d of %d documents failed to ingest", e.Failed, e.Total)
}

// BatchFailure inspects a batch result and returns a PartialIngestionFailure
// if any document failed, or nil when the whole batch succeeded.
func BatchFailure(results []models.IngestResult) error {
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return &PartialIngestionFailure{Failed: failed, Total: len(results)}
}
