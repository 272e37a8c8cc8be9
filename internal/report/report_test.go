package report

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teamboard/engine/internal/backup/manifest"
)

func sample() *manifest.Manifest {
	logs := []manifest.ActivityLog{
		{StudentID: "S001", Action: "task.created", CreatedAt: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)},
		{StudentID: "", Action: "project.archived", CreatedAt: time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)},
	}
	return &manifest.Manifest{
		Version:     manifest.Version,
		ProjectName: "Capstone",
		Group:       &manifest.Group{Name: "Capstone", Description: "Final year"},
		Members:     []manifest.Member{{StudentID: "S001", Name: "Ada", Role: "leader"}},
		Stages:      []manifest.Stage{{Name: "Sprint 1", Weight: 0.4}},
		Tasks: []manifest.Task{{
			StageRef:    manifest.StageRef{StageName: "Sprint 1", StageIndex: manifest.Index(0)},
			Title:       "Design doc",
			Status:      "done",
			Assignments: []manifest.Assignment{{StudentID: "S001"}},
		}},
		ActivityLogs: &logs,
		Files:        []manifest.FileEntry{{FileName: "brief.pdf", Bucket: "task-submissions", FileSize: 2048}},
	}
}

func TestRender_ContainsSections(t *testing.T) {
	out := string(Render(sample(), Options{}))

	assert.Contains(t, out, "Evidence report: Capstone")
	assert.Contains(t, out, "== Members ==")
	assert.Contains(t, out, "Design doc")
	assert.Contains(t, out, "Sprint 1")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "project.archived")
	assert.NotContains(t, out, "== Final scores ==")
	assert.NotContains(t, out, PageBreak)
}

func TestRender_ActivityLimit(t *testing.T) {
	out := string(Render(sample(), Options{ActivityLimit: 1}))
	assert.NotContains(t, out, "task.created")
	assert.Contains(t, out, "project.archived")
}

func TestRender_Paginates(t *testing.T) {
	m := sample()
	for i := 0; i < 40; i++ {
		m.Members = append(m.Members, manifest.Member{StudentID: fmt.Sprintf("S%03d", i+100), Role: "member"})
	}
	out := string(Render(m, Options{PageLines: 20}))
	pages := strings.Split(out, PageBreak)
	assert.Greater(t, len(pages), 2)
	assert.Contains(t, pages[0], fmt.Sprintf("page 1 of %d", len(pages)))
	for _, p := range pages {
		assert.LessOrEqual(t, strings.Count(p, "\n"), 20)
	}
}
