package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/expensio/expensio-be/internal/api/dto"
	"github.com/expensio/expensio-be/internal/api/storage"
	"github.com/expensio/expensio-be/internal/worker/domain"
)

// CreateExport handles POST /api/v1/exports
// Creates an export record plus its build job and wakes the worker.
func (h *ExportHandler) CreateExport(c *gin.Context) {
	var req dto.CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	exportType := domain.ExportType(req.Type)
	switch exportType {
	case domain.ExportTypeCSV, domain.ExportTypeZIP, domain.ExportTypePDF, domain.ExportTypeHTML:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "type must be one of csv, zip, pdf, html",
		})
		return
	}

	var batchID *string
	if req.BatchID != "" {
		if _, err := h.storage.GetBatch(c.Request.Context(), req.BatchID, req.UserID); err != nil {
			if errors.Is(err, domain.ErrBatchNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "batch not found",
				})
				return
			}
			h.logger.Error("Failed to resolve batch", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create export",
			})
			return
		}
		batchID = &req.BatchID
	}

	now := time.Now()
	record := domain.ExportRecord{
		ID:        uuid.New().String(),
		BatchID:   batchID,
		UserID:    req.UserID,
		Type:      exportType,
		Status:    domain.ExportStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	payload, err := json.Marshal(domain.ExportPayload{
		ExportID:   record.ID,
		UserID:     record.UserID,
		ProjectIDs: req.ProjectIDs,
	})
	if err != nil {
		h.logger.Error("Failed to encode export payload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create export",
		})
		return
	}

	job := domain.Job{
		ID:          uuid.New().String(),
		Type:        domain.JobTypeExport,
		Payload:     payload,
		Status:      domain.JobStatusPending,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.storage.CreateExportWithJob(c.Request.Context(), &record, &job); err != nil {
		h.logger.Error("Failed to create export", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create export",
		})
		return
	}

	h.notifyJobReady(c, job.ID)

	c.JSON(http.StatusAccepted, dto.CreateExportResponse{
		Export: toExportDTO(&record),
		JobID:  job.ID,
	})
}

// GetExport handles GET /api/v1/exports/:export_id
func (h *ExportHandler) GetExport(c *gin.Context) {
	exportID := c.Param("export_id")
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "user_id is required",
		})
		return
	}

	if _, err := uuid.Parse(exportID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "export_id must be a valid UUID",
		})
		return
	}

	record, err := h.storage.GetExport(c.Request.Context(), exportID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrExportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "export not found",
			})
			return
		}
		h.logger.Error("Failed to get export", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get export",
		})
		return
	}

	c.JSON(http.StatusOK, toExportDTO(record))
}

// ListExports handles GET /api/v1/exports
// Lists a user's exports with optional filtering and cursor pagination.
func (h *ExportHandler) ListExports(c *gin.Context) {
	var req dto.ListExportsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeExportCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.ExportFilter{
		UserID:   req.UserID,
		Status:   req.Status,
		Type:     req.Type,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	records, err := h.storage.ListExports(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list exports", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list exports",
		})
		return
	}

	hasMore := len(records) > req.PageSize
	if hasMore {
		records = records[:req.PageSize]
	}

	exports := make([]dto.ExportDTO, len(records))
	for i := range records {
		exports[i] = toExportDTO(&records[i])
	}

	var nextCursor string
	if hasMore {
		last := records[len(records)-1]
		nextCursor = EncodeExportCursor(&storage.ExportCursor{
			CreatedAt: last.CreatedAt,
			ExportID:  last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListExportsResponse{
		Exports:    exports,
		NextCursor: nextCursor,
	})
}

// notifyJobReady wakes the worker early. Failures are logged and swallowed:
// the poll loop picks the job up within one tick anyway.
func (h *ExportHandler) notifyJobReady(c *gin.Context, jobID string) {
	if h.notifier == nil {
		return
	}

	body, err := json.Marshal(domain.JobNotification{JobID: jobID})
	if err != nil {
		return
	}
	if err := h.notifier.Publish(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Warn("Failed to publish job notification",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

func toExportDTO(record *domain.ExportRecord) dto.ExportDTO {
	d := dto.ExportDTO{
		ExportID:  record.ID,
		UserID:    record.UserID,
		Type:      string(record.Type),
		Status:    record.Status,
		FileURL:   record.FileURL,
		FileSize:  record.FileSize,
		CreatedAt: record.CreatedAt.Format(time.RFC3339),
		UpdatedAt: record.UpdatedAt.Format(time.RFC3339),
	}
	if record.BatchID != nil {
		d.BatchID = *record.BatchID
	}
	if record.ExpiresAt != nil {
		d.ExpiresAt = record.ExpiresAt.Format(time.RFC3339)
	}
	return d
}
