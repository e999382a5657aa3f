package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/curaious/chrono/internal/services/task"
)

func TestWriteTasksHeaderAndRows(t *testing.T) {
	minutes := 90.0
	rows := []task.ExportRow{
		{
			Date:         "06-15-2025",
			User:         "Arun Pillai",
			Project:      "Billing Revamp",
			Title:        "Invoice reconciliation",
			Details:      "Matched ledger entries",
			StartTime:    "06-15-2025 10:00:00",
			EndTime:      "06-15-2025 11:30:00",
			TaskType:     "Development",
			Reviewer:     "Kiran Das",
			Status:       "Done",
			IsBackdated:  "FALSE",
			IsApproved:   "FALSE",
			TotalMinutes: &minutes,
		},
		{
			Date:        "06-14-2025",
			User:        "Divya Menon",
			Project:     "Billing Revamp",
			Title:       "Release notes",
			StartTime:   "06-14-2025 09:00:00",
			TaskType:    "Documentation",
			Status:      "To Be Approved",
			IsBackdated: "TRUE",
			IsApproved:  "FALSE",
		},
	}

	data, err := WriteTasks(rows)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{sheetName}, f.GetSheetList())

	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, columns, got[0])

	assert.Equal(t, "Arun Pillai", got[1][1])
	assert.Equal(t, "Kiran Das", got[1][8])
	assert.Equal(t, "90", got[1][12])

	assert.Equal(t, "TRUE", got[2][10])
}

func TestWriteTasksEmpty(t *testing.T) {
	data, err := WriteTasks(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, columns, got[0])
}
