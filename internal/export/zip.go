package export

import (
	"archive/zip"
	"context"
	"fmt"
	"io"

	"github.com/expensio/expensio-be/internal/worker/domain"
	"github.com/expensio/expensio-be/shared/objectstore"
)

// uploadZIP streams the archive straight into object storage through a pipe,
// so memory is bounded by one receipt at a time rather than the whole batch.
func (b *Builder) uploadZIP(ctx context.Context, key string, rows []row, template domain.ExportTemplate) (objectstore.PutResult, error) {
	csvData, err := renderCSV(rows, template)
	if err != nil {
		return objectstore.PutResult{}, err
	}

	var pdfData []byte
	if template.IncludePDFIndex {
		pdfData, err = renderPDF(rows)
		if err != nil {
			return objectstore.PutResult{}, err
		}
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(b.writeZIP(ctx, pw, csvData, pdfData, rows))
	}()

	result, err := b.objects.Put(ctx, key, pr, -1, "application/zip")
	if err != nil {
		pr.CloseWithError(err)
		return objectstore.PutResult{}, fmt.Errorf("failed to upload zip: %w", err)
	}
	return result, nil
}

func (b *Builder) writeZIP(ctx context.Context, w io.Writer, csvData, pdfData []byte, rows []row) error {
	zw := zip.NewWriter(w)

	f, err := zw.Create("expenses.csv")
	if err != nil {
		return fmt.Errorf("failed to create csv entry: %w", err)
	}
	if _, err := f.Write(csvData); err != nil {
		return fmt.Errorf("failed to write csv entry: %w", err)
	}

	if pdfData != nil {
		f, err := zw.Create("index.pdf")
		if err != nil {
			return fmt.Errorf("failed to create pdf entry: %w", err)
		}
		if _, err := f.Write(pdfData); err != nil {
			return fmt.Errorf("failed to write pdf entry: %w", err)
		}
	}

	for _, r := range rows {
		for _, rf := range r.Receipts {
			reader, err := b.fetchReceipt(ctx, rf.Receipt)
			if err != nil {
				return err
			}
			if reader == nil {
				continue
			}

			entry, err := zw.Create("receipts/" + rf.FileName)
			if err != nil {
				reader.Close()
				return fmt.Errorf("failed to create receipt entry %s: %w", rf.FileName, err)
			}
			_, err = io.Copy(entry, reader)
			reader.Close()
			if err != nil {
				return fmt.Errorf("failed to write receipt entry %s: %w", rf.FileName, err)
			}
		}
	}

	return zw.Close()
}
