package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/expensio/expensio-be/internal/worker/domain"
)

// renderHTML produces a single self-contained report: every receipt is
// embedded as inline data so the file works offline. Images wider than the
// configured threshold are recompressed before embedding; non-image receipts
// get a placeholder glyph with the original embedded for on-click viewing.
func (b *Builder) renderHTML(ctx context.Context, rows []row) ([]byte, error) {
	report := htmlReport{Rows: make([]htmlRow, 0, len(rows))}

	for _, r := range rows {
		hr := htmlRow{
			Seq:      r.Seq,
			Date:     r.Expense.Date.Format("2006-01-02"),
			Amount:   fmt.Sprintf("%.2f", r.Expense.Amount),
			Category: r.Expense.Category,
			Note:     r.Expense.Note,
		}
		for _, rf := range r.Receipts {
			embedded, err := b.embedReceipt(ctx, rf)
			if err != nil {
				return nil, err
			}
			if embedded != nil {
				hr.Receipts = append(hr.Receipts, *embedded)
			}
		}
		report.Rows = append(report.Rows, hr)
	}

	var buf bytes.Buffer
	if err := htmlReportTemplate.Execute(&buf, report); err != nil {
		return nil, fmt.Errorf("failed to execute html template: %w", err)
	}
	return buf.Bytes(), nil
}

type htmlReport struct {
	Rows []htmlRow
}

type htmlRow struct {
	Seq      int
	Date     string
	Amount   string
	Category string
	Note     string
	Receipts []htmlReceipt
}

type htmlReceipt struct {
	Name    string
	IsImage bool
	// DataURI is built from bytes we encoded ourselves, never from user
	// input, so marking it trusted is safe.
	DataURI template.URL
}

func (b *Builder) embedReceipt(ctx context.Context, rf receiptFile) (*htmlReceipt, error) {
	reader, err := b.fetchReceipt(ctx, rf.Receipt)
	if err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, nil
	}

	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt %s: %w", rf.Receipt.ID, err)
	}

	contentType := rf.Receipt.ContentType
	if isImageReceipt(rf.Receipt) {
		data, contentType = b.recompressIfWide(data, contentType)
		return &htmlReceipt{
			Name:    rf.FileName,
			IsImage: true,
			DataURI: dataURI(contentType, data),
		}, nil
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &htmlReceipt{
		Name:    rf.FileName,
		IsImage: false,
		DataURI: dataURI(contentType, data),
	}, nil
}

// recompressIfWide downsizes images above the configured pixel width and
// re-encodes them as JPEG. Bytes that do not decode are embedded untouched.
func (b *Builder) recompressIfWide(data []byte, contentType string) ([]byte, string) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return data, contentType
	}
	if img.Bounds().Dx() <= b.config.MaxImageWidth {
		return data, contentType
	}

	resized := imaging.Resize(img, b.config.MaxImageWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(b.config.JPEGQuality)); err != nil {
		return data, contentType
	}
	return buf.Bytes(), "image/jpeg"
}

func isImageReceipt(r domain.Receipt) bool {
	if strings.HasPrefix(r.ContentType, "image/") {
		return true
	}
	switch receiptExtension(r) {
	case ".jpg", ".jpeg", ".png", ".gif":
		return true
	}
	return false
}

func dataURI(contentType string, data []byte) template.URL {
	return template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data))
}

var htmlReportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Expense Report</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
.expense { border-bottom: 1px solid #ddd; padding: 1rem 0; }
.head { font-weight: bold; }
.note { color: #666; }
.receipts { display: flex; flex-wrap: wrap; gap: 0.5rem; margin-top: 0.5rem; }
.thumb { max-width: 240px; max-height: 240px; border: 1px solid #ccc; }
.file { display: inline-block; font-size: 3rem; text-decoration: none; }
.filename { font-size: 0.75rem; color: #888; display: block; }
.empty { color: #888; font-style: italic; }
</style>
</head>
<body>
<h1>Expense Report</h1>
{{if not .Rows}}<p class="empty">No expenses matched the export filter.</p>{{end}}
{{range .Rows}}
<div class="expense">
  <div class="head">#{{.Seq}} &mdash; {{.Date}} &mdash; {{.Amount}}{{if .Category}} &mdash; {{.Category}}{{end}}</div>
  {{if .Note}}<div class="note">{{.Note}}</div>{{end}}
  <div class="receipts">
  {{range .Receipts}}
    <div>
    {{if .IsImage}}
      <a href="{{.DataURI}}" target="_blank"><img class="thumb" src="{{.DataURI}}" alt="{{.Name}}"></a>
    {{else}}
      <a class="file" href="{{.DataURI}}" download="{{.Name}}" title="{{.Name}}">&#128196;</a>
    {{end}}
      <span class="filename">{{.Name}}</span>
    </div>
  {{end}}
  </div>
</div>
{{end}}
</body>
</html>
`))
