// Package report renders learning path progress as a spreadsheet.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-path/internal/learning"
)

const (
	SummarySheet = "Summary"
	TasksSheet   = "Tasks"
)

var taskHeader = []any{"Order", "Topic", "Task", "Status", "Difficulty", "Score", "Attempts Left", "Submissions", "Hint Used"}

// WriteXLSX writes a workbook with a Summary sheet and a Tasks sheet for snap.
func WriteXLSX(w io.Writer, snap learning.Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	if _, err := f.NewSheet(TasksSheet); err != nil {
		return fmt.Errorf("create tasks sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeSummary(f, snap, bold); err != nil {
		return err
	}
	if err := writeTasks(f, snap, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, snap learning.Snapshot, bold int) error {
	p := snap.Path
	rows := [][]any{
		{"Title", p.Title},
		{"Description", p.Description},
		{"Status", string(p.Status)},
		{"Completed Tasks", p.CompletedTasks},
		{"Total Tasks", p.TotalTasks},
		{"Progress (%)", round1(snap.Progress.Percent)},
		{"Average Score", round1(p.PerformanceAverage)},
		{"Current Difficulty", string(p.CurrentDifficulty)},
		{"Created", p.CreatedAt.Format("2006-01-02")},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(1, len(rows))
	if err := f.SetCellStyle(SummarySheet, "A1", last, bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	return f.SetColWidth(SummarySheet, "A", "B", 24)
}

func writeTasks(f *excelize.File, snap learning.Snapshot, bold int) error {
	if err := f.SetSheetRow(TasksSheet, "A1", &taskHeader); err != nil {
		return fmt.Errorf("write tasks header: %w", err)
	}
	if err := f.SetCellStyle(TasksSheet, "A1", "I1", bold); err != nil {
		return fmt.Errorf("style tasks header: %w", err)
	}

	byTask := make(map[string]learning.Assignment, len(snap.Assignments))
	for _, a := range snap.Assignments {
		byTask[a.TaskID] = a
	}

	row := 2
	for _, group := range snap.Topics {
		for _, t := range group.Tasks {
			values := []any{t.Order, group.Topic.Title, t.Title, string(t.Status), string(t.Difficulty), "", "", "", ""}
			if a, ok := byTask[t.ID]; ok {
				if a.Score != nil {
					values[5] = *a.Score
				}
				values[6] = a.AttemptsRemaining
				values[7] = a.SubmissionCount
				values[8] = yesNo(a.HintUsed)
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(TasksSheet, cell, &values); err != nil {
				return fmt.Errorf("write task row %d: %w", t.Order, err)
			}
			row++
		}
	}
	return f.SetColWidth(TasksSheet, "B", "C", 32)
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
