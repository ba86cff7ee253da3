// Package export turns a stored export request into a downloadable artifact:
// it aggregates the filtered expenses and their receipts, renders the
// requested format, uploads the result, and reflects the outcome back into
// the export record.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/expensio/expensio-be/internal/metrics"
	"github.com/expensio/expensio-be/internal/worker/domain"
	"github.com/expensio/expensio-be/shared/objectstore"
)

// Store is the slice of the database the builder needs.
type Store interface {
	GetExportRecord(ctx context.Context, exportID, userID string) (*domain.ExportRecord, error)
	UpdateExportStatus(ctx context.Context, exportID, status string) error
	MarkExportDone(ctx context.Context, exportID, storageKey, fileURL string, fileSize int64, expiresAt time.Time) error
	MarkExportFailed(ctx context.Context, exportID string) error
	GetBatch(ctx context.Context, batchID string) (*domain.Batch, error)
	ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error)
	ListReceipts(ctx context.Context, userID string, projectIDs []string) ([]domain.Receipt, error)
	GetExportTemplate(ctx context.Context, userID string) (*domain.ExportTemplate, error)
}

// Config holds the externally supplied export settings.
type Config struct {
	// LinkTTL is how long a finished artifact stays downloadable.
	LinkTTL time.Duration
	// MaxImageWidth is the pixel width above which embedded images are
	// recompressed for the HTML report.
	MaxImageWidth int
	// JPEGQuality is the encoder quality used when recompressing.
	JPEGQuality int
	// DefaultTemplate applies to users who never customized their template.
	DefaultTemplate domain.ExportTemplate
}

// Builder assembles export artifacts.
type Builder struct {
	store   Store
	objects objectstore.Store
	metrics metrics.Sink
	logger  *slog.Logger
	config  Config
	now     func() time.Time
}

// NewBuilder creates a Builder with all collaborators injected.
func NewBuilder(store Store, objects objectstore.Store, sink metrics.Sink, logger *slog.Logger, config Config) *Builder {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	if config.MaxImageWidth <= 0 {
		config.MaxImageWidth = 1280
	}
	if config.JPEGQuality <= 0 {
		config.JPEGQuality = 80
	}
	if config.LinkTTL <= 0 {
		config.LinkTTL = 7 * 24 * time.Hour
	}
	return &Builder{
		store:   store,
		objects: objects,
		metrics: sink,
		logger:  logger,
		config:  config,
		now:     time.Now,
	}
}

// row is one expense with its linked receipts and normalized filenames,
// already carrying its 1-based sequence number.
type row struct {
	Seq      int
	Expense  domain.Expense
	Receipts []receiptFile
}

type receiptFile struct {
	Receipt  domain.Receipt
	FileName string
}

// Build runs the export pipeline for the record named by the payload.
// A vanished export record is a benign no-op; any other failure marks the
// record failed and propagates so the job is retried.
func (b *Builder) Build(ctx context.Context, payload domain.ExportPayload) error {
	record, err := b.store.GetExportRecord(ctx, payload.ExportID, payload.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrExportNotFound) {
			b.logger.Warn("Export record vanished, skipping",
				slog.String("export_id", payload.ExportID),
			)
			return nil
		}
		return fmt.Errorf("failed to load export record: %w", err)
	}

	if err := b.store.UpdateExportStatus(ctx, record.ID, domain.ExportStatusRunning); err != nil {
		return fmt.Errorf("failed to transition export to running: %w", err)
	}

	if err := b.build(ctx, record, payload); err != nil {
		if markErr := b.store.MarkExportFailed(ctx, record.ID); markErr != nil {
			b.logger.Error("Failed to mark export failed",
				slog.String("export_id", record.ID),
				slog.Any("error", markErr),
			)
		}
		return err
	}

	return nil
}

func (b *Builder) build(ctx context.Context, record *domain.ExportRecord, payload domain.ExportPayload) error {
	start := time.Now()

	filter, err := b.resolveFilter(ctx, record, payload)
	if err != nil {
		return err
	}

	template, err := b.resolveTemplate(ctx, record.UserID)
	if err != nil {
		return err
	}

	expenses, err := b.store.ListExpenses(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to query expenses: %w", err)
	}

	receipts, err := b.store.ListReceipts(ctx, record.UserID, filter.ProjectIDs)
	if err != nil {
		return fmt.Errorf("failed to query receipts: %w", err)
	}

	rows := assembleRows(expenses, receipts, template.SortDescending)

	key := storageKey(record)
	var result objectstore.PutResult
	if record.Type == domain.ExportTypeZIP {
		// The archive is streamed straight to storage instead of being
		// rendered into memory first.
		result, err = b.uploadZIP(ctx, key, rows, template)
		if err != nil {
			return err
		}
	} else {
		data, contentType, err := b.render(ctx, record.Type, rows, template)
		if err != nil {
			return fmt.Errorf("failed to render %s export: %w", record.Type, err)
		}
		result, err = b.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
		if err != nil {
			return fmt.Errorf("failed to upload export artifact: %w", err)
		}
	}

	expiresAt := b.now().Add(b.config.LinkTTL)
	if err := b.store.MarkExportDone(ctx, record.ID, key, result.URL, result.Size, expiresAt); err != nil {
		return fmt.Errorf("failed to finalize export record: %w", err)
	}

	b.metrics.ExportBuilt(string(record.Type), result.Size, time.Since(start))
	b.logger.Info("Export built",
		slog.String("export_id", record.ID),
		slog.String("type", string(record.Type)),
		slog.Int("expenses", len(rows)),
		slog.Int64("bytes", result.Size),
	)

	return nil
}

// resolveFilter derives the expense filter from the record's batch when one
// is attached, otherwise from the ad hoc project list in the payload. A
// vanished batch degrades to an empty ad hoc filter instead of failing the
// export.
func (b *Builder) resolveFilter(ctx context.Context, record *domain.ExportRecord, payload domain.ExportPayload) (domain.ExpenseFilter, error) {
	filter := domain.ExpenseFilter{
		UserID:     record.UserID,
		ProjectIDs: payload.ProjectIDs,
	}

	if record.BatchID == nil {
		return filter, nil
	}

	batch, err := b.store.GetBatch(ctx, *record.BatchID)
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			b.logger.Warn("Batch behind export vanished, exporting without filter",
				slog.String("export_id", record.ID),
				slog.String("batch_id", *record.BatchID),
			)
			return filter, nil
		}
		return filter, fmt.Errorf("failed to load batch: %w", err)
	}

	filter.ProjectIDs = []string{batch.ProjectID}
	filter.Statuses = batch.Statuses
	filter.Categories = batch.Categories
	filter.DateFrom = batch.DateFrom
	filter.DateTo = batch.DateTo
	return filter, nil
}

func (b *Builder) resolveTemplate(ctx context.Context, userID string) (domain.ExportTemplate, error) {
	template, err := b.store.GetExportTemplate(ctx, userID)
	if err != nil {
		return domain.ExportTemplate{}, fmt.Errorf("failed to load export template: %w", err)
	}
	if template == nil {
		return b.config.DefaultTemplate, nil
	}
	return *template, nil
}

func (b *Builder) render(ctx context.Context, exportType domain.ExportType, rows []row, template domain.ExportTemplate) ([]byte, string, error) {
	switch exportType {
	case domain.ExportTypeCSV:
		data, err := renderCSV(rows, template)
		return data, "text/csv; charset=utf-8", err

	case domain.ExportTypePDF:
		data, err := renderPDF(rows)
		return data, "application/pdf", err

	case domain.ExportTypeHTML:
		data, err := b.renderHTML(ctx, rows)
		return data, "text/html; charset=utf-8", err

	default:
		return nil, "", fmt.Errorf("unsupported export type %q", exportType)
	}
}

// assembleRows sorts expenses by date (stable, so equal dates keep query
// order), assigns sequence numbers, and attaches each expense's receipts
// with their normalized filenames.
func assembleRows(expenses []domain.Expense, receipts []domain.Receipt, sortDescending bool) []row {
	sorted := make([]domain.Expense, len(expenses))
	copy(sorted, expenses)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sortDescending {
			return sorted[i].Date.After(sorted[j].Date)
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	byExpense := make(map[string][]domain.Receipt)
	for _, r := range receipts {
		if r.MatchedExpenseID == nil {
			continue
		}
		byExpense[*r.MatchedExpenseID] = append(byExpense[*r.MatchedExpenseID], r)
	}

	rows := make([]row, len(sorted))
	for i, expense := range sorted {
		seq := i + 1
		linked := byExpense[expense.ID]
		files := make([]receiptFile, len(linked))
		for j, r := range linked {
			files[j] = receiptFile{
				Receipt:  r,
				FileName: receiptFileName(seq, expense, r, j+1, len(linked)),
			}
		}
		rows[i] = row{Seq: seq, Expense: expense, Receipts: files}
	}
	return rows
}

// storageKey is deterministic per export so a retried job overwrites its own
// half-finished artifact instead of leaking orphans.
func storageKey(record *domain.ExportRecord) string {
	return fmt.Sprintf("exports/%s/%s.%s", record.UserID, record.ID, artifactExtension(record.Type))
}

func artifactExtension(exportType domain.ExportType) string {
	switch exportType {
	case domain.ExportTypeCSV:
		return "csv"
	case domain.ExportTypeZIP:
		return "zip"
	case domain.ExportTypePDF:
		return "pdf"
	case domain.ExportTypeHTML:
		return "html"
	default:
		return "bin"
	}
}

// fetchReceipt opens the receipt's bytes in object storage. Returns
// (nil, nil) when the receipt cannot be fetched for benign reasons: no
// storage key, or the object is gone.
func (b *Builder) fetchReceipt(ctx context.Context, r domain.Receipt) (io.ReadCloser, error) {
	if r.StorageKey == "" {
		b.logger.Warn("Receipt has no storage key, excluding from artifact",
			slog.String("receipt_id", r.ID),
		)
		return nil, nil
	}

	reader, err := b.objects.Get(ctx, r.StorageKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			b.logger.Warn("Receipt object missing, excluding from artifact",
				slog.String("receipt_id", r.ID),
				slog.String("storage_key", r.StorageKey),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch receipt %s: %w", r.ID, err)
	}
	return reader, nil
}
