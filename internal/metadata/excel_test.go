package metadata

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "items.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestExcelSourceReadsRows(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Recording Path", "Call Direction", "Evaluation Date"},
		{`recordings\2025-10-12\call001.wav`, "inbound", "2025-10-12"},
		{"recordings/2025-10-12/call002.wav", "outbound", "2025-10-13"},
	})

	source := NewExcelSource(path, "https://blobs.example.com/c", "sig=abc")
	items, err := source.Items(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "recordings/2025-10-12/call001.wav", items[0].SourcePath, "backslashes normalize to forward slashes")
	assert.Equal(t, "inbound", items[0].Direction)
	assert.Equal(t, "2025-10-12", items[0].EvaluationDate)
	assert.Equal(t, "https://blobs.example.com/c/recordings/2025-10-12/call001.wav?sig=abc", items[0].AudioURL)

	assert.Equal(t, "outbound", items[1].Direction)
}

func TestExcelSourceDetectsURLColumn(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Audio URL", "Direction"},
		{"https://x.example.com/a.wav", "inbound"},
	})

	source := NewExcelSource(path, "", "")
	items, err := source.Items(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://x.example.com/a.wav", items[0].AudioURL)
	assert.Equal(t, "https://x.example.com/a.wav", items[0].SourcePath, "URL doubles as source path when no path column exists")
}

func TestExcelSourceSkipsEmptyRows(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Recording Path"},
		{"a.wav"},
		{""},
		{"   "},
		{"b.wav"},
	})

	source := NewExcelSource(path, "", "")
	items, err := source.Items(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a.wav", "b.wav"}, sourcePaths(items))
}

func TestExcelSourceRejectsHeaderWithoutAudioColumn(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Agent", "Score"},
		{"someone", "5"},
	})

	source := NewExcelSource(path, "", "")
	_, err := source.Items(context.Background())
	require.Error(t, err)
}

func TestExcelSourceMissingFile(t *testing.T) {
	source := NewExcelSource(filepath.Join(t.TempDir(), "missing.xlsx"), "", "")
	_, err := source.Items(context.Background())
	require.Error(t, err)
}

func TestExcelSourceHeaderOnly(t *testing.T) {
	path := writeWorkbook(t, [][]any{{"Recording Path"}})

	source := NewExcelSource(path, "", "")
	_, err := source.Items(context.Background())
	require.Error(t, err)
}
