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
	"github.com/expensio/expensio-be/internal/worker/domain"
)

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves detailed information about a specific job
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// TriggerBatchCheck handles POST /api/v1/batches/:batch_id/check
// Enqueues a consistency check job for one batch.
func (h *JobHandler) TriggerBatchCheck(c *gin.Context) {
	batchID := c.Param("batch_id")

	var req dto.TriggerBatchCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if _, err := h.storage.GetBatch(c.Request.Context(), batchID, req.UserID); err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "batch not found",
			})
			return
		}
		h.logger.Error("Failed to resolve batch", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to trigger batch check",
		})
		return
	}

	payload, err := json.Marshal(domain.BatchCheckPayload{
		BatchID: batchID,
		UserID:  req.UserID,
	})
	if err != nil {
		h.logger.Error("Failed to encode batch check payload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to trigger batch check",
		})
		return
	}

	now := time.Now()
	job := domain.Job{
		ID:          uuid.New().String(),
		Type:        domain.JobTypeBatchCheck,
		Payload:     payload,
		Status:      domain.JobStatusPending,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.storage.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create batch check job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to trigger batch check",
		})
		return
	}

	h.notifyJobReady(c, job.ID)

	c.JSON(http.StatusAccepted, dto.TriggerBatchCheckResponse{
		JobID:   job.ID,
		BatchID: batchID,
		Status:  job.Status,
	})
}

// notifyJobReady wakes the worker early; see ExportHandler.notifyJobReady.
func (h *JobHandler) notifyJobReady(c *gin.Context, jobID string) {
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

func toJobDTO(job *domain.Job) dto.JobDTO {
	d := dto.JobDTO{
		JobID:       job.ID,
		JobType:     string(job.Type),
		Status:      job.Status,
		Error:       job.Error,
		Attempts:    job.Attempts,
		ScheduledAt: job.ScheduledAt.Format(time.RFC3339),
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.Format(time.RFC3339),
	}
	if job.StartedAt != nil {
		d.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		d.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return d
}
