package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-path/internal/learning"
	"github.com/p-n-ai/pai-path/internal/report"
)

func sampleSnapshot() learning.Snapshot {
	score := 85
	tasks := []learning.Task{
		{ID: "t1", Order: 1, Title: "Variables", Status: learning.TaskCompleted, Difficulty: learning.DifficultyBeginner},
		{ID: "t2", Order: 2, Title: "Loops", Status: learning.TaskUnlocked, Difficulty: learning.DifficultyBeginner},
		{ID: "t3", Order: 3, Title: "Channels", Status: learning.TaskLocked, Difficulty: learning.DifficultyAdvanced},
	}
	path := learning.LearningPath{
		ID:                 "p1",
		Title:              "Learn Go",
		TotalTasks:         3,
		CompletedTasks:     1,
		Status:             learning.PathActive,
		PerformanceAverage: 85,
		CreatedAt:          time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	return learning.Snapshot{
		Path:     path,
		Progress: learning.DeriveProgress(path, tasks),
		Topics: learning.PartitionByTopic([]learning.Topic{
			{ID: "a", Title: "Basics", Order: 1},
			{ID: "b", Title: "Concurrency", Order: 2},
		}, tasks),
		Assignments: []learning.Assignment{
			{TaskID: "t1", Score: &score, AttemptsRemaining: 3, SubmissionCount: 1, HintUsed: true},
			{TaskID: "t2", AttemptsRemaining: 3},
		},
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, sampleSnapshot()); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != report.SummarySheet || sheets[1] != report.TasksSheet {
		t.Fatalf("sheets = %v", sheets)
	}

	summary := map[string]string{}
	rows, err := f.GetRows(report.SummarySheet)
	if err != nil {
		t.Fatalf("GetRows(summary) error = %v", err)
	}
	for _, r := range rows {
		if len(r) == 2 {
			summary[r[0]] = r[1]
		}
	}
	for key, want := range map[string]string{
		"Title":         "Learn Go",
		"Status":        "active",
		"Progress (%)":  "33.3",
		"Average Score": "85",
		"Total Tasks":   "3",
		"Created":       "2026-01-02",
	} {
		if summary[key] != want {
			t.Errorf("summary[%q] = %q, want %q", key, summary[key], want)
		}
	}

	rows, err = f.GetRows(report.TasksSheet)
	if err != nil {
		t.Fatalf("GetRows(tasks) error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("task rows = %d, want header + 3", len(rows))
	}
	if rows[0][0] != "Order" || rows[0][8] != "Hint Used" {
		t.Errorf("header = %v", rows[0])
	}
	first := rows[1]
	if first[1] != "Basics" || first[2] != "Variables" || first[3] != "completed" || first[5] != "85" || first[8] != "yes" {
		t.Errorf("first task row = %v", first)
	}
	if rows[3][1] != "Concurrency" || rows[3][3] != "locked" {
		t.Errorf("last task row = %v", rows[3])
	}
}

func TestWriteXLSX_EmptyPath(t *testing.T) {
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, learning.Snapshot{Path: learning.LearningPath{Title: "Empty"}}); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(report.TasksSheet)
	if len(rows) != 1 {
		t.Errorf("task rows = %d, want header only", len(rows))
	}
}
