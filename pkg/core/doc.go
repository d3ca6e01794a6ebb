// Package core defines the shared language of the LeapDQ system.
//
// This package contains:
//   - Domain entities (DataSource, Dataset, QualityRule, PipelineRun, CheckResult)
//   - Service interfaces (Store, AlertSink)
//   - The error taxonomy shared by the pipeline and its callers
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
