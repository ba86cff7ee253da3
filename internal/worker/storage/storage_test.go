package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The API service inserts export rows into the exports table; every worker
// query has to target the same table or enqueued export jobs are invisible
// to the export builder.
func TestExportQueriesTargetExportsTable(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "get export record reads exports",
			query: getExportRecordQuery,
			want:  "FROM exports",
		},
		{
			name:  "status transition writes exports",
			query: updateExportStatusQuery,
			want:  "UPDATE exports",
		},
		{
			name:  "done transition writes exports",
			query: markExportDoneQuery,
			want:  "UPDATE exports",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.query, tt.want)
			assert.NotContains(t, tt.query, "export_records")
		})
	}
}

// Columns the API never sets on insert stay NULL until the worker writes
// them; scanning them into non-pointer struct fields only works with a
// COALESCE in the query.
func TestQueriesCoalesceNullableColumns(t *testing.T) {
	assert.Contains(t, claimNextJobQuery, "COALESCE(error_message, '')")

	assert.Contains(t, getExportRecordQuery, "COALESCE(storage_key, '')")
	assert.Contains(t, getExportRecordQuery, "COALESCE(file_url, '')")
	assert.Contains(t, getExportRecordQuery, "COALESCE(file_size, 0)")
}
