package export

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensio/expensio-be/internal/worker/domain"
	"github.com/expensio/expensio-be/shared/objectstore"
)

func zipExport(id string) *domain.ExportRecord {
	return &domain.ExportRecord{
		ID:     id,
		UserID: "u1",
		Type:   domain.ExportTypeZIP,
		Status: domain.ExportStatusPending,
	}
}

func TestBuilder_ZIPContainsCSVAndReceipts(t *testing.T) {
	store := &fakeStore{
		record: zipExport("e1"),
		expenses: []domain.Expense{
			{ID: "exp1", Date: day(5), Amount: 10, Category: "travel"},
			{ID: "exp2", Date: day(6), Amount: 20, Category: "meals"},
		},
		receipts: []domain.Receipt{
			{ID: "r1", MatchedExpenseID: strPtr("exp1"), FileName: "taxi.jpg", StorageKey: "receipts/r1"},
			{ID: "r2", MatchedExpenseID: strPtr("exp2"), FileName: "lunch.pdf", StorageKey: "receipts/r2"},
		},
	}
	objects := objectstore.NewMemoryStore()
	objects.SetObject("receipts/r1", []byte("jpeg-bytes"))
	objects.SetObject("receipts/r2", []byte("pdf-bytes"))

	builder := NewBuilder(store, objects, nil, testLogger(), Config{})
	err := builder.Build(context.Background(), domain.ExportPayload{ExportID: "e1", UserID: "u1"})
	require.NoError(t, err)

	entries := readArchive(t, objects, "exports/u1/e1.zip")
	assert.Contains(t, entries, "expenses.csv")
	assert.Equal(t, []byte("jpeg-bytes"), entries["receipts/001_20240305_10.00_travel_r1.jpg"])
	assert.Equal(t, []byte("pdf-bytes"), entries["receipts/002_20240306_20.00_meals_r2.pdf"])
	assert.NotContains(t, entries, "index.pdf", "pdf index is off by default")
}

func TestBuilder_ZIPIncludesPDFIndexWhenEnabled(t *testing.T) {
	store := &fakeStore{
		record:   zipExport("e1"),
		template: &domain.ExportTemplate{UserID: "u1", IncludePDFIndex: true},
		expenses: []domain.Expense{
			{ID: "exp1", Date: day(5), Amount: 10},
		},
	}
	objects := objectstore.NewMemoryStore()

	builder := NewBuilder(store, objects, nil, testLogger(), Config{})
	err := builder.Build(context.Background(), domain.ExportPayload{ExportID: "e1", UserID: "u1"})
	require.NoError(t, err)

	entries := readArchive(t, objects, "exports/u1/e1.zip")
	require.Contains(t, entries, "index.pdf")
	assert.True(t, bytes.HasPrefix(entries["index.pdf"], []byte("%PDF")))
}

func TestBuilder_ZIPSkipsUnfetchableReceipts(t *testing.T) {
	store := &fakeStore{
		record: zipExport("e1"),
		expenses: []domain.Expense{
			{ID: "exp1", Date: day(5), Amount: 10},
		},
		receipts: []domain.Receipt{
			// Upload never finished: no storage key.
			{ID: "r1", MatchedExpenseID: strPtr("exp1"), FileName: "a.jpg"},
			// Key points at a deleted object.
			{ID: "r2", MatchedExpenseID: strPtr("exp1"), FileName: "b.jpg", StorageKey: "receipts/gone"},
			// This one is fine.
			{ID: "r3", MatchedExpenseID: strPtr("exp1"), FileName: "c.jpg", StorageKey: "receipts/r3"},
		},
	}
	objects := objectstore.NewMemoryStore()
	objects.SetObject("receipts/r3", []byte("ok"))

	builder := NewBuilder(store, objects, nil, testLogger(), Config{})
	err := builder.Build(context.Background(), domain.ExportPayload{ExportID: "e1", UserID: "u1"})
	require.NoError(t, err)

	entries := readArchive(t, objects, "exports/u1/e1.zip")
	var receiptEntries []string
	for name := range entries {
		if name != "expenses.csv" {
			receiptEntries = append(receiptEntries, name)
		}
	}
	require.Len(t, receiptEntries, 1, "only the fetchable receipt lands in the archive")
	assert.Equal(t, []byte("ok"), entries[receiptEntries[0]])
}

func TestBuilder_ZIPMultipleReceiptsGetDistinctNames(t *testing.T) {
	store := &fakeStore{
		record: zipExport("e1"),
		expenses: []domain.Expense{
			{ID: "exp1", Date: day(5), Amount: 10},
		},
		receipts: []domain.Receipt{
			{ID: "r1", MatchedExpenseID: strPtr("exp1"), FileName: "a.jpg", StorageKey: "receipts/r1"},
			{ID: "r2", MatchedExpenseID: strPtr("exp1"), FileName: "b.jpg", StorageKey: "receipts/r2"},
		},
	}
	objects := objectstore.NewMemoryStore()
	objects.SetObject("receipts/r1", []byte("one"))
	objects.SetObject("receipts/r2", []byte("two"))

	builder := NewBuilder(store, objects, nil, testLogger(), Config{})
	err := builder.Build(context.Background(), domain.ExportPayload{ExportID: "e1", UserID: "u1"})
	require.NoError(t, err)

	entries := readArchive(t, objects, "exports/u1/e1.zip")
	assert.Equal(t, []byte("one"), entries["receipts/001_20240305_10.00_r1-1.jpg"])
	assert.Equal(t, []byte("two"), entries["receipts/001_20240305_10.00_r2-2.jpg"])
}

func readArchive(t *testing.T, objects *objectstore.MemoryStore, key string) map[string][]byte {
	t.Helper()

	data, ok := objects.Object(key)
	require.True(t, ok, "archive %s not uploaded", key)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entries := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[f.Name] = content
	}
	return entries
}
