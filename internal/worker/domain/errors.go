package domain

import "errors"

var (
	// ErrInvalidPayload is returned when a job payload cannot be decoded
	// into the variant matching its type.
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrUnknownJobType is returned for job types no handler is registered
	// for. Such jobs fail rather than being silently completed.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrExportNotFound is returned when the export record referenced by a
	// job no longer exists. Handlers treat this as a benign no-op.
	ErrExportNotFound = errors.New("export record not found")

	// ErrBatchNotFound is returned when a batch referenced by a job or an
	// export record no longer exists. Handlers treat this as a benign no-op.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrJobNotFound is returned when a job id does not resolve to a row.
	ErrJobNotFound = errors.New("job not found")
)
