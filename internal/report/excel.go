package report

import (
	"bytes"
	"fmt"

	"github.com/curaious/chrono/internal/services/task"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Task Report"

var columns = []string{
	"Date", "User", "Project", "Task Title", "Task Details", "Start Time",
	"End Time", "Task Type", "Reviewer", "Status", "Is Backdated",
	"Is Approved", "Total Minutes",
}

// WriteTasks renders export rows to an xlsx workbook with a single sheet and
// the fixed report column set.
func WriteTasks(rows []task.ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create report sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write report header: %w", err)
	}

	for i, row := range rows {
		values := []interface{}{
			row.Date, row.User, row.Project, row.Title, row.Details,
			row.StartTime, row.EndTime, row.TaskType, row.Reviewer,
			row.Status, row.IsBackdated, row.IsApproved,
		}
		if row.TotalMinutes != nil {
			values = append(values, *row.TotalMinutes)
		} else {
			values = append(values, "")
		}

		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write report row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize report: %w", err)
	}

	return buf.Bytes(), nil
}
