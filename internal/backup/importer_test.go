package backup

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamboard/engine/internal/backup/archive"
	"github.com/teamboard/engine/internal/backup/manifest"
	"github.com/teamboard/engine/internal/models"
	"github.com/teamboard/engine/internal/storage"
	appErr "github.com/teamboard/engine/pkg/errors"
)

func exportSample(t *testing.T) (*fixture, *seed, []byte) {
	f := newFixture(t, "S001", "S002", "S003")
	s := f.seedProject()
	res, err := f.exporter(nil).Export(f.ctx, s.project.ID, AllOptions(), nil)
	require.NoError(t, err)
	return f, s, res.Archive
}

func TestImport_RoundTrip(t *testing.T) {
	f, s, blob := exportSample(t)

	res, err := f.importer().Import(f.ctx, blob, f.uid("S003"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, s.project.ID, res.ProjectID)
	assert.Empty(t, res.Dropped)
	assert.Zero(t, res.RowsFailed)
	assert.Zero(t, res.FilesFailed)

	var p models.Project
	require.NoError(t, f.db.First(&p, "id = ?", res.ProjectID).Error)
	assert.Equal(t, "Capstone Project!", p.Name)
	assert.Equal(t, models.VisibilityPrivate, p.Visibility)
	assert.Nil(t, p.ShareToken)
	assert.Equal(t, f.uid("S003"), p.CreatedBy)

	assert.EqualValues(t, 3, count[models.ProjectMember](t, f.db, "project_id = ?", res.ProjectID))
	var leader models.ProjectMember
	require.NoError(t, f.db.First(&leader, "project_id = ? AND user_id = ?", res.ProjectID, f.uid("S003")).Error)
	assert.Equal(t, models.RoleLeader, leader.Role)

	var stages []models.Stage
	require.NoError(t, f.db.Where("project_id = ?", res.ProjectID).Find(&stages).Error)
	require.Len(t, stages, 1)
	assert.Equal(t, "Sprint 1", stages[0].Name)

	var tasks []models.Task
	require.NoError(t, f.db.Where("project_id = ?", res.ProjectID).Find(&tasks).Error)
	require.Len(t, tasks, 1)
	task := tasks[0]
	assert.NotEqual(t, s.task.ID, task.ID)
	require.NotNil(t, task.StageID)
	assert.Equal(t, stages[0].ID, *task.StageID)

	assert.EqualValues(t, 1, count[models.TaskAssignment](t, f.db, "task_id = ? AND user_id = ?", task.ID, f.uid("S001")))
	assert.EqualValues(t, 1, count[models.TaskScore](t, f.db, "task_id = ?", task.ID))

	var sub models.SubmissionHistory
	require.NoError(t, f.db.First(&sub, "task_id = ?", task.ID).Error)
	assert.True(t, strings.HasPrefix(sub.FilePath, "restored/"+res.ProjectID.String()+"/"))
	data, err := f.store.Get(f.ctx, storage.BucketSubmissions, sub.FilePath)
	require.NoError(t, err)
	assert.Len(t, data, 2048)

	payload := manifest.ParseSubmission(task.SubmissionLink)
	require.Equal(t, manifest.FileList, payload.Kind)
	require.Len(t, payload.Files, 1)
	assert.Equal(t, sub.FilePath, payload.Files[0].FilePath)

	assert.Equal(t, 3, res.Restored.Files)
	assert.Equal(t, 1, res.Restored.Notes)
	assert.Equal(t, 1, res.Restored.Attachments)
	assert.Equal(t, 4, res.Restored.Comments)
	assert.Equal(t, 1, res.Restored.Folders)
	assert.Equal(t, 2, res.Restored.Resources)
	assert.Equal(t, 1, res.Restored.Messages)
	assert.Equal(t, 2, res.Restored.Activity)
	assert.Equal(t, 4, res.Restored.ScoreRows)

	var comments []models.TaskComment
	require.NoError(t, f.db.Where("task_id = ?", task.ID).Find(&comments).Error)
	byID := map[uuid.UUID]models.TaskComment{}
	for _, c := range comments {
		byID[c.ID] = c
	}
	parents := map[string]string{}
	for _, c := range comments {
		if c.ParentID != nil {
			parents[c.Content] = byID[*c.ParentID].Content
		}
	}
	assert.Equal(t, map[string]string{"re first": "first", "re second": "second"}, parents)

	var appeal models.ScoreAppeal
	require.NoError(t, f.db.First(&appeal, "project_id = ?", res.ProjectID).Error)
	require.NotNil(t, appeal.TaskScoreID)
	assert.EqualValues(t, 1, count[models.TaskScore](t, f.db, "id = ? AND task_id = ?", *appeal.TaskScoreID, task.ID))

	var logs []models.ActivityLog
	require.NoError(t, f.db.Where("project_id = ?", res.ProjectID).Order("created_at").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.NotNil(t, logs[0].UserID)
	assert.Nil(t, logs[1].UserID)

	var file models.Resource
	require.NoError(t, f.db.First(&file, "project_id = ? AND type = ?", res.ProjectID, models.ResourceTypeFile).Error)
	require.NotNil(t, file.FolderID)
	assert.True(t, strings.HasPrefix(file.FilePath, "restored/"))
}

func TestImport_TwiceCreatesIndependentProjects(t *testing.T) {
	f, _, blob := exportSample(t)

	first, err := f.importer().Import(f.ctx, blob, f.uid("S003"), nil)
	require.NoError(t, err)
	second, err := f.importer().Import(f.ctx, blob, f.uid("S003"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.ProjectID, second.ProjectID)
	for _, id := range []uuid.UUID{first.ProjectID, second.ProjectID} {
		assert.EqualValues(t, 1, count[models.Stage](t, f.db, "project_id = ?", id))
		assert.EqualValues(t, 1, count[models.Task](t, f.db, "project_id = ?", id))
	}
	assert.Equal(t, first.Restored, second.Restored)
}

func TestImport_IntoOtherDeployment(t *testing.T) {
	_, _, blob := exportSample(t)
	dest := newFixture(t, "S001", "S002", "ADMIN")

	res, err := dest.importer().Import(dest.ctx, blob, dest.uid("ADMIN"), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Restored.Files)
	assert.EqualValues(t, 1, count[models.TaskAssignment](dest.t, dest.db, "user_id = ?", dest.uid("S001")))
}

// commentManifest builds a manifest where S002 does not exist at the destination.
func commentManifest() *manifest.Manifest {
	comments := []manifest.Comment{
		{TaskRef: manifest.TaskRef{TaskTitle: "T", TaskIndex: manifest.Index(0)}, StudentID: "S002", Content: "c0"},
		{TaskRef: manifest.TaskRef{TaskTitle: "T", TaskIndex: manifest.Index(0)}, StudentID: "S001", Content: "c1", ParentIndex: manifest.Index(0)},
		{TaskRef: manifest.TaskRef{TaskTitle: "T", TaskIndex: manifest.Index(0)}, StudentID: "S001", Content: "c2"},
		{TaskRef: manifest.TaskRef{TaskTitle: "T", TaskIndex: manifest.Index(0)}, StudentID: "S001", Content: "c3", ParentIndex: manifest.Index(1)},
	}
	notes := []manifest.Note{
		{TaskRef: manifest.TaskRef{TaskTitle: "T"}, StudentID: "S002", VersionName: "theirs"},
		{TaskRef: manifest.TaskRef{TaskTitle: "T"}, StudentID: "S001", VersionName: "mine"},
	}
	return &manifest.Manifest{
		Version:     manifest.Version,
		ProjectName: "P",
		Group:       &manifest.Group{Name: "P"},
		Members:     []manifest.Member{{StudentID: "S001", Role: "member"}, {StudentID: "S002", Role: "admin"}},
		Stages:      []manifest.Stage{},
		Tasks: []manifest.Task{{
			Title:       "T",
			Assignments: []manifest.Assignment{{StudentID: "S001"}, {StudentID: "S002"}},
			Scores:      []manifest.Score{{StudentID: "S002", FinalScore: 1}},
			Submissions: []manifest.Submission{
				{StudentID: "S002", Content: "theirs"},
				{StudentID: "S001", FilePath: "gone.pdf", FileName: "gone.pdf", FileSize: 9},
			},
		}},
		TaskNotes:    &notes,
		TaskComments: &comments,
		Files: []manifest.FileEntry{{
			OriginalPath: "gone.pdf",
			FileName:     "gone.pdf",
			FileSize:     9,
			ZipPath:      "files/task-submissions_gone.pdf",
			Bucket:       storage.BucketSubmissions,
		}},
	}
}

func TestImport_UnresolvableMemberSkipped(t *testing.T) {
	f := newFixture(t, "S001", "ACTOR")
	blob, err := archive.Pack(commentManifest(), nil, nil)
	require.NoError(t, err)

	res, err := f.importer().Import(f.ctx, blob, f.uid("ACTOR"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"S002"}, res.Dropped)
	assert.Equal(t, 1, res.FilesFailed)

	assert.Equal(t, 2, res.Restored.Members)
	assert.Equal(t, 1, res.Restored.Assignments)
	assert.Zero(t, res.Restored.Scores)
	assert.Equal(t, 1, res.Restored.Submissions)
	assert.Equal(t, 1, res.Restored.Notes)
	assert.Equal(t, 3, res.Restored.Comments)

	var sub models.SubmissionHistory
	require.NoError(t, f.db.First(&sub).Error)
	assert.Equal(t, f.uid("S001"), sub.UserID)
	assert.Empty(t, sub.FilePath, "file that did not restore is not linked")

	var comments []models.TaskComment
	require.NoError(t, f.db.Find(&comments).Error)
	byContent := map[string]models.TaskComment{}
	for _, c := range comments {
		byContent[c.Content] = c
	}
	require.Len(t, byContent, 3)
	assert.NotContains(t, byContent, "c0")
	assert.Nil(t, byContent["c1"].ParentID, "reply to a skipped comment becomes top-level")
	assert.Nil(t, byContent["c2"].ParentID)
	require.NotNil(t, byContent["c3"].ParentID)
	assert.Equal(t, byContent["c1"].ID, *byContent["c3"].ParentID)
}

func TestImport_RowFailuresDoNotAbort(t *testing.T) {
	f := newFixture(t, "S001", "ACTOR")
	dest := &flakyDest{GraphRepository: f.repo, failRow: func(row any) bool {
		n, ok := row.(*models.TaskNote)
		return ok && n.VersionName == "theirs"
	}}
	m := commentManifest()
	(*m.TaskNotes)[0].StudentID = "S001"

	blob, err := archive.Pack(m, nil, nil)
	require.NoError(t, err)
	res, err := NewImporter(dest, f.store, f.settings()).Import(f.ctx, blob, f.uid("ACTOR"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsFailed)
	assert.Equal(t, 1, res.Restored.Notes)
	assert.Equal(t, 3, res.Restored.Comments)
}

func TestImport_FatalShapeCreatesNothing(t *testing.T) {
	f := newFixture(t, "S001")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("files/orphan.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = f.importer().Import(f.ctx, buf.Bytes(), f.uid("S001"), nil)
	assert.ErrorIs(t, err, archive.ErrManifestMissing)
	assert.True(t, appErr.IsCode(err, appErr.CodeArchiveInvalid))

	buf.Reset()
	zw = zip.NewWriter(&buf)
	w, err = zw.Create(manifest.EntryName)
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"group":{"name":"P"},"tasks":[]}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = f.importer().Import(f.ctx, buf.Bytes(), f.uid("S001"), nil)
	assert.ErrorIs(t, err, archive.ErrManifestInvalid)

	_, err = f.importer().Import(f.ctx, []byte("garbage"), f.uid("S001"), nil)
	assert.ErrorIs(t, err, archive.ErrArchiveUnreadable)

	assert.EqualValues(t, 0, count[models.Project](t, f.db, "1 = 1"))
}

func TestImport_InflatedManifestIsRejected(t *testing.T) {
	f := newFixture(t, "S001")
	m := commentManifest()
	m.Group.Description = strings.Repeat(" ", 64<<10)
	blob, err := archive.Pack(m, nil, nil)
	require.NoError(t, err)

	settings := f.settings()
	settings.MaxEntryBytes = 16 << 10
	_, err = NewImporter(f.repo, f.store, settings).Import(f.ctx, blob, f.uid("S001"), nil)
	assert.ErrorIs(t, err, archive.ErrArchiveUnreadable)
	assert.ErrorIs(t, err, archive.ErrEntryTooLarge)
	assert.EqualValues(t, 0, count[models.Project](t, f.db, "1 = 1"))
}

func TestImport_ProjectShellFailureIsFatal(t *testing.T) {
	f := newFixture(t, "S001")
	dest := &flakyDest{GraphRepository: f.repo, failProject: true}
	blob, err := archive.Pack(commentManifest(), nil, nil)
	require.NoError(t, err)

	_, err = NewImporter(dest, f.store, f.settings()).Import(f.ctx, blob, f.uid("S001"), nil)
	assert.ErrorIs(t, err, ErrProjectCreate)
	assert.Equal(t, 1, dest.projectsTried)
	assert.EqualValues(t, 0, count[models.Task](t, f.db, "1 = 1"))
}

func TestImport_RejectsUnknownBucket(t *testing.T) {
	f := newFixture(t, "S001")
	m := commentManifest()
	m.Files = []manifest.FileEntry{{OriginalPath: "x", FileName: "x", ZipPath: "files/x", Bucket: "project-backups"}}
	blob, err := archive.Pack(m, []archive.File{{Name: "files/x", Data: []byte("x")}}, nil)
	require.NoError(t, err)

	res, err := f.importer().Import(f.ctx, blob, f.uid("S001"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesFailed)
	assert.Zero(t, res.Restored.Files)
}

func TestImport_StageResolvesByPositionBeforeName(t *testing.T) {
	f := newFixture(t, "S001")
	m := &manifest.Manifest{
		Version: manifest.Version,
		Group:   &manifest.Group{Name: "Dup"},
		Stages:  []manifest.Stage{{Name: "Review"}, {Name: "Review", OrderIndex: 1}},
		Tasks: []manifest.Task{
			{StageRef: manifest.StageRef{StageName: "Review", StageIndex: manifest.Index(1)}, Title: "second"},
			{StageRef: manifest.StageRef{StageName: "Review"}, Title: "by name"},
		},
	}
	blob, err := archive.Pack(m, nil, nil)
	require.NoError(t, err)

	res, err := f.importer().Import(f.ctx, blob, f.uid("S001"), nil)
	require.NoError(t, err)

	var stages []models.Stage
	require.NoError(t, f.db.Where("project_id = ?", res.ProjectID).Order("order_index").Find(&stages).Error)
	require.Len(t, stages, 2)

	var second, byName models.Task
	require.NoError(t, f.db.First(&second, "title = ?", "second").Error)
	require.NoError(t, f.db.First(&byName, "title = ?", "by name").Error)
	require.NotNil(t, second.StageID)
	require.NotNil(t, byName.StageID)
	assert.Equal(t, stages[1].ID, *second.StageID)
	assert.Equal(t, stages[0].ID, *byName.StageID)
}

func TestImport_ReferencesByNameOnly(t *testing.T) {
	f := newFixture(t, "S001")
	notes := []manifest.Note{{TaskRef: manifest.TaskRef{TaskTitle: "Design doc"}, StudentID: "S001", VersionName: "v1"}}
	comments := []manifest.Comment{{TaskRef: manifest.TaskRef{TaskTitle: "Design doc"}, StudentID: "S001", Content: "looks good"}}
	weights := []manifest.StageWeight{{
		StageRef: manifest.StageRef{StageName: "Sprint 1"},
		TaskRef:  manifest.TaskRef{TaskTitle: "Design doc"},
		Weight:   30,
	}}
	m := &manifest.Manifest{
		Version:      manifest.Version,
		Group:        &manifest.Group{Name: "Names"},
		Members:      []manifest.Member{{StudentID: "S001", Role: "member"}},
		Stages:       []manifest.Stage{{Name: "Sprint 1"}},
		Tasks:        []manifest.Task{{StageRef: manifest.StageRef{StageName: "Sprint 1"}, Title: "Design doc"}},
		TaskNotes:    &notes,
		TaskComments: &comments,
		StageWeights: &weights,
	}
	blob, err := archive.Pack(m, nil, nil)
	require.NoError(t, err)

	res, err := f.importer().Import(f.ctx, blob, f.uid("S001"), nil)
	require.NoError(t, err)
	assert.Zero(t, res.RowsSkipped)
	assert.Equal(t, 1, res.Restored.Notes)
	assert.Equal(t, 1, res.Restored.Comments)
	assert.Equal(t, 1, res.Restored.ScoreRows)

	var stage models.Stage
	require.NoError(t, f.db.First(&stage, "project_id = ?", res.ProjectID).Error)
	var task models.Task
	require.NoError(t, f.db.First(&task, "project_id = ?", res.ProjectID).Error)
	require.NotNil(t, task.StageID)
	assert.Equal(t, stage.ID, *task.StageID)
}

func TestImport_StageNamedLikePosition(t *testing.T) {
	f := newFixture(t, "S001")
	m := &manifest.Manifest{
		Version: manifest.Version,
		Group:   &manifest.Group{Name: "Odd names"},
		Stages:  []manifest.Stage{{Name: "Intro"}, {Name: "#0", OrderIndex: 1}},
		Tasks: []manifest.Task{
			{StageRef: manifest.StageRef{StageName: "#0"}, Title: "literal"},
			{StageRef: manifest.StageRef{StageName: "Intro", StageIndex: manifest.Index(0)}, Title: "positional"},
		},
	}
	blob, err := archive.Pack(m, nil, nil)
	require.NoError(t, err)

	res, err := f.importer().Import(f.ctx, blob, f.uid("S001"), nil)
	require.NoError(t, err)

	var stages []models.Stage
	require.NoError(t, f.db.Where("project_id = ?", res.ProjectID).Order("order_index").Find(&stages).Error)
	require.Len(t, stages, 2)

	var literal, positional models.Task
	require.NoError(t, f.db.First(&literal, "title = ?", "literal").Error)
	require.NoError(t, f.db.First(&positional, "title = ?", "positional").Error)
	require.NotNil(t, literal.StageID)
	require.NotNil(t, positional.StageID)
	assert.Equal(t, stages[1].ID, *literal.StageID)
	assert.Equal(t, stages[0].ID, *positional.StageID)
}

func TestImport_PreservesTimestamps(t *testing.T) {
	f := newFixture(t, "S001")
	when := time.Date(2025, 11, 2, 8, 0, 0, 0, time.UTC)
	msgs := []manifest.Message{{StudentID: "S001", Content: "old", CreatedAt: when}}
	m := &manifest.Manifest{Version: manifest.Version, Group: &manifest.Group{Name: "P"}, Messages: &msgs}
	blob, err := archive.Pack(m, nil, nil)
	require.NoError(t, err)

	_, err = f.importer().Import(f.ctx, blob, f.uid("S001"), nil)
	require.NoError(t, err)
	var msg models.Message
	require.NoError(t, f.db.First(&msg).Error)
	assert.True(t, when.Equal(msg.CreatedAt))
}
