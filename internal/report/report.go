// Package report renders the human-readable evidence document embedded in
// export archives. It works only on an already resolved manifest.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"

	"github.com/teamboard/engine/internal/backup/manifest"
)

// PageBreak separates pages in the rendered document.
const PageBreak = "\f"

// Options control rendering.
type Options struct {
	// ActivityLimit caps the activity section to the most recent entries. Zero shows all.
	ActivityLimit int
	// PageLines is the maximum number of lines per page. Zero uses DefaultPageLines.
	PageLines int
}

const DefaultPageLines = 60

// Render produces a paginated plain-text summary of the project graph.
func Render(m *manifest.Manifest, opts Options) []byte {
	var sections []section
	sections = append(sections, summary(m), members(m), stages(m), tasks(m))
	if m.MemberFinalScores != nil {
		sections = append(sections, finalScores(m))
	}
	if m.Resources != nil {
		sections = append(sections, resources(m))
	}
	if len(m.Files) > 0 {
		sections = append(sections, files(m))
	}
	if m.ActivityLogs != nil {
		sections = append(sections, activity(m, opts.ActivityLimit))
	}
	pageLines := opts.PageLines
	if pageLines <= 0 {
		pageLines = DefaultPageLines
	}
	return paginate(m, sections, pageLines)
}

type section struct {
	title string
	body  string
}

func newTable() *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 40
	table.Wrap = true
	return table
}

func summary(m *manifest.Manifest) section {
	t := m.Tally()
	table := newTable()
	table.AddRow("Project:", m.ProjectName)
	if m.Group != nil && m.Group.Description != "" {
		table.AddRow("Description:", m.Group.Description)
	}
	table.AddRow("Exported:", formatTime(m.ExportedAt))
	table.AddRow("Format version:", m.Version)
	table.AddRow("Members:", humanize.Comma(int64(t.Members)))
	table.AddRow("Stages:", humanize.Comma(int64(t.Stages)))
	table.AddRow("Tasks:", humanize.Comma(int64(t.Tasks)))
	table.AddRow("Submissions:", humanize.Comma(int64(t.Submissions)))
	table.AddRow("Files:", fmt.Sprintf("%s (%s)", humanize.Comma(int64(t.Files)), humanize.IBytes(totalBytes(m))))
	return section{title: "Summary", body: table.String()}
}

func members(m *manifest.Manifest) section {
	table := newTable()
	table.AddRow("STUDENT ID", "NAME", "ROLE", "JOINED")
	for _, mem := range m.Members {
		table.AddRow(mem.StudentID, mem.Name, mem.Role, formatDate(mem.JoinedAt))
	}
	return section{title: "Members", body: table.String()}
}

func stages(m *manifest.Manifest) section {
	table := newTable()
	table.AddRow("#", "STAGE", "WEIGHT", "START", "END")
	table.RightAlign(2)
	for i, st := range m.Stages {
		table.AddRow(i+1, st.Name, humanize.Ftoa(st.Weight), formatDatePtr(st.StartDate), formatDatePtr(st.EndDate))
	}
	return section{title: "Stages", body: table.String()}
}

func tasks(m *manifest.Manifest) section {
	table := newTable()
	table.AddRow("TASK", "STAGE", "STATUS", "DEADLINE", "ASSIGNED", "SUBMISSIONS")
	table.RightAlign(5)
	for _, t := range m.Tasks {
		assigned := make([]string, 0, len(t.Assignments))
		for _, a := range t.Assignments {
			assigned = append(assigned, a.StudentID)
		}
		table.AddRow(t.Title, t.StageName, t.Status, formatDatePtr(t.Deadline), strings.Join(assigned, ", "), len(t.Submissions))
	}
	return section{title: "Tasks", body: table.String()}
}

func finalScores(m *manifest.Manifest) section {
	rows := append([]manifest.MemberFinalScore(nil), (*m.MemberFinalScores)...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].StudentID < rows[j].StudentID })
	table := newTable()
	table.AddRow("STUDENT ID", "SCORE", "ADJUSTMENT", "FINAL")
	for col := 1; col <= 3; col++ {
		table.RightAlign(col)
	}
	for _, s := range rows {
		table.AddRow(s.StudentID, humanize.Ftoa(s.Score), humanize.Ftoa(s.Adjustment), humanize.Ftoa(s.FinalScore))
	}
	return section{title: "Final scores", body: table.String()}
}

func resources(m *manifest.Manifest) section {
	table := newTable()
	table.AddRow("NAME", "FOLDER", "TYPE", "SIZE")
	table.RightAlign(3)
	for _, r := range *m.Resources {
		size := ""
		if r.FileSize > 0 {
			size = humanize.IBytes(uint64(r.FileSize))
		}
		table.AddRow(r.Name, r.FolderName, r.Type, size)
	}
	return section{title: "Resources", body: table.String()}
}

func files(m *manifest.Manifest) section {
	table := newTable()
	table.AddRow("FILE", "BUCKET", "SIZE")
	table.RightAlign(2)
	for _, f := range m.Files {
		table.AddRow(f.FileName, f.Bucket, humanize.IBytes(uint64(f.FileSize)))
	}
	return section{title: "Archived files", body: table.String()}
}

func activity(m *manifest.Manifest, limit int) section {
	logs := *m.ActivityLogs
	if limit > 0 && len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	table := newTable()
	table.AddRow("WHEN", "WHO", "ACTION")
	for _, l := range logs {
		who := l.StudentID
		if who == "" {
			who = "-"
		}
		table.AddRow(formatTime(l.CreatedAt), who, l.Action)
	}
	return section{title: "Recent activity", body: table.String()}
}

// paginate lays sections out line by line, breaking pages at pageLines and
// repeating the project header on every page.
func paginate(m *manifest.Manifest, sections []section, pageLines int) []byte {
	var pages [][]string
	var cur []string
	header := fmt.Sprintf("Evidence report: %s", m.ProjectName)

	flush := func() {
		if len(cur) > 0 {
			pages = append(pages, cur)
		}
		cur = nil
	}
	push := func(line string) {
		if len(cur) >= pageLines-2 {
			flush()
		}
		cur = append(cur, line)
	}

	for _, s := range sections {
		push("")
		push("== " + s.title + " ==")
		for _, line := range strings.Split(strings.TrimRight(s.body, "\n"), "\n") {
			push(line)
		}
	}
	flush()

	var buf bytes.Buffer
	for i, lines := range pages {
		if i > 0 {
			buf.WriteString(PageBreak)
		}
		fmt.Fprintf(&buf, "%s    page %d of %d\n", header, i+1, len(pages))
		for _, line := range lines {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

func totalBytes(m *manifest.Manifest) uint64 {
	var n uint64
	for _, f := range m.Files {
		if f.FileSize > 0 {
			n += uint64(f.FileSize)
		}
	}
	return n
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatDate(*t)
}
