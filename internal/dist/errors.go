// Package dist defines the error taxonomy shared by the distribution
// pipeline and the exit-code mapping used by scripting consumers.
package dist

import (
	"errors"
	"fmt"
)

// Exit codes returned by the CLI. Scripts depend on these values.
const (
	ExitOK         = 0
	ExitValidation = 1
	ExitSchema     = 2
	ExitLoad       = 3
	ExitSource     = 4
)

// ManifestParseError reports a malformed or incomplete table manifest.
type ManifestParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ManifestParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("manifest %s: %s", e.Path, e.Reason)
}

func (e *ManifestParseError) Unwrap() error { return e.Err }

// SourceNotFoundError reports a required input file that could not be
// located locally: a table's columnar source, or (with Table empty) the
// artifact itself.
type SourceNotFoundError struct {
	Table string
	Path  string
}

func (e *SourceNotFoundError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s not found", e.Path)
	}
	return fmt.Sprintf("no columnar source for table %s: %s not found", e.Table, e.Path)
}

// RemoteFetchError reports a failed download of a release asset. There is
// never a fallback to a stale local copy.
type RemoteFetchError struct {
	Table string
	URL   string
	Err   error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Table, e.URL, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// SchemaError reports a DDL statement that failed to apply. Schema
// correctness is a precondition; this is never repaired at runtime.
type SchemaError struct {
	Stmt string
	Err  error
}

func (e *SchemaError) Error() string {
	stmt := e.Stmt
	if len(stmt) > 80 {
		stmt = stmt[:80] + "..."
	}
	return fmt.Sprintf("schema statement failed: %v\n  %s", e.Err, stmt)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// LoadTypeError reports a type mismatch between a columnar source column
// and the relational column it targets. Values are never coerced.
type LoadTypeError struct {
	Table    string
	Column   string
	Declared string
	Got      string
}

func (e *LoadTypeError) Error() string {
	return fmt.Sprintf("type mismatch in %s.%s: column is %s, source has %s",
		e.Table, e.Column, e.Declared, e.Got)
}

// IntegrityViolationError reports a row that violates a constraint,
// trigger or checksum invariant. The run aborts rather than skipping the
// bad row.
type IntegrityViolationError struct {
	Table string
	Row   int64 // 1-based row index within the source; 0 when not row-scoped
	Rule  string
	Err   error
}

func (e *IntegrityViolationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("integrity violation in %s row %d: %s", e.Table, e.Row, e.Rule)
	}
	return fmt.Sprintf("integrity violation in %s: %s", e.Table, e.Rule)
}

func (e *IntegrityViolationError) Unwrap() error { return e.Err }

// ValidationFailure aggregates failed validation suites. It is fatal to
// success but not to the run: every suite completes before it is raised.
type ValidationFailure struct {
	FailedSuites []string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("validation failed: %d suite(s) did not pass: %v",
		len(e.FailedSuites), e.FailedSuites)
}

// ExitCode maps an error to the CLI exit code class.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		manifestErr  *ManifestParseError
		notFoundErr  *SourceNotFoundError
		fetchErr     *RemoteFetchError
		schemaErr    *SchemaError
		typeErr      *LoadTypeError
		integrityErr *IntegrityViolationError
		valErr       *ValidationFailure
	)
	switch {
	case errors.As(err, &schemaErr):
		return ExitSchema
	case errors.As(err, &typeErr), errors.As(err, &integrityErr):
		return ExitLoad
	case errors.As(err, &manifestErr), errors.As(err, &notFoundErr), errors.As(err, &fetchErr):
		return ExitSource
	case errors.As(err, &valErr):
		return ExitValidation
	default:
		return ExitValidation
	}
}
