package domain

import (
	"encoding/json"
	"fmt"
)

// Payload is the typed content of a job row, one variant per job type.
// The executor switches exhaustively over the concrete types; an
// unrecognized job type is a decode error, not a silent success.
type Payload interface {
	jobPayload()
}

// BatchCheckPayload asks the worker to run consistency checks over the
// expenses and receipts selected by a saved batch filter.
type BatchCheckPayload struct {
	BatchID string `json:"batch_id"`
	UserID  string `json:"user_id"`
}

// ExportPayload asks the worker to build one export artifact. ProjectIDs is
// only consulted for ad hoc exports where the export record carries no batch.
type ExportPayload struct {
	ExportID   string   `json:"export_id"`
	UserID     string   `json:"user_id"`
	ProjectIDs []string `json:"project_ids,omitempty"`
}

func (BatchCheckPayload) jobPayload() {}
func (ExportPayload) jobPayload()     {}

// ParsePayload decodes a job's raw payload into its typed variant.
func ParsePayload(jobType JobType, raw json.RawMessage) (Payload, error) {
	switch jobType {
	case JobTypeBatchCheck:
		var p BatchCheckPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if p.BatchID == "" {
			return nil, fmt.Errorf("%w: batch_id is required", ErrInvalidPayload)
		}
		return p, nil

	case JobTypeExport:
		var p ExportPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if p.ExportID == "" {
			return nil, fmt.Errorf("%w: export_id is required", ErrInvalidPayload)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
}
