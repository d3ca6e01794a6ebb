package core

import "errors"

// Sentinel errors for the pipeline error taxonomy. Callers match them with
// errors.Is; producers wrap them with fmt.Errorf("...: %w", ...) so the
// original cause stays attached.
var (
	// ErrIngestion marks malformed or unreadable input. It terminates the
	// run at the Bronze layer.
	ErrIngestion = errors.New("ingestion failed")

	// ErrRuleEvaluation marks a failure inside a single rule. It is isolated
	// per rule and recorded as a failed check result; it never aborts the run.
	ErrRuleEvaluation = errors.New("rule evaluation failed")

	// ErrAggregation marks a fatal error while computing or persisting the
	// Gold layer.
	ErrAggregation = errors.New("aggregation failed")

	// ErrConcurrentRun is returned when a run is requested for a source that
	// already has a non-terminal run in flight. No run record is created.
	ErrConcurrentRun = errors.New("another run is in flight for this source")

	// ErrNotFound is returned by read operations for unknown ids.
	ErrNotFound = errors.New("not found")

	// ErrInvalid marks caller input that fails validation before any work
	// is attempted.
	ErrInvalid = errors.New("invalid input")
)

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConcurrentRun reports whether err is, or wraps, ErrConcurrentRun.
func IsConcurrentRun(err error) bool { return errors.Is(err, ErrConcurrentRun) }

// IsIngestion reports whether err is, or wraps, ErrIngestion.
func IsIngestion(err error) bool { return errors.Is(err, ErrIngestion) }

// IsInvalid reports whether err is, or wraps, ErrInvalid.
func IsInvalid(err error) bool { return errors.Is(err, ErrInvalid) }
