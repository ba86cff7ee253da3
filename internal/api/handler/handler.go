package handler

import (
	"context"
	"log/slog"

	"github.com/expensio/expensio-be/internal/api/storage"
)

// Notifier publishes job-ready notifications so the worker's poll loop wakes
// up before its next tick. May be nil; notifications are advisory and the
// job table remains the queue of record.
type Notifier interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Storage  *storage.Storage
	Notifier Notifier
}

// ExportHandler handles export-related HTTP requests
type ExportHandler struct {
	logger   *slog.Logger
	storage  *storage.Storage
	notifier Notifier
}

// NewExportHandler creates a new ExportHandler instance
func NewExportHandler(deps *Dependencies) *ExportHandler {
	return &ExportHandler{
		logger:   deps.Logger,
		storage:  deps.Storage,
		notifier: deps.Notifier,
	}
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger   *slog.Logger
	storage  *storage.Storage
	notifier Notifier
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:   deps.Logger,
		storage:  deps.Storage,
		notifier: deps.Notifier,
	}
}
