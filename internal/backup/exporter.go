package backup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teamboard/engine/internal/backup/archive"
	"github.com/teamboard/engine/internal/backup/manifest"
	"github.com/teamboard/engine/internal/backup/naturalkey"
	"github.com/teamboard/engine/internal/models"
	"github.com/teamboard/engine/internal/report"
	"github.com/teamboard/engine/internal/storage"
	"github.com/teamboard/engine/pkg/logger"
	"github.com/teamboard/engine/pkg/utils"
)

// ExportResult is the outcome of one export.
type ExportResult struct {
	ProjectID   uuid.UUID
	Filename    string
	Archive     []byte
	Checksum    string
	SizeBytes   int64
	Tally       manifest.Tally
	FilesFailed int
	Manifest    *manifest.Manifest
}

// Exporter turns one project graph into an archive.
type Exporter struct {
	src      SourceStore
	objects  storage.ObjectStore
	settings Settings
	now      func() time.Time
}

func NewExporter(src SourceStore, objects storage.ObjectStore, settings Settings) *Exporter {
	return &Exporter{src: src, objects: objects, settings: settings, now: time.Now}
}

// snapshot holds every row fetched for one export.
type snapshot struct {
	project  *models.Project
	members  []models.ProjectMember
	stages   []models.Stage
	tasks    []models.Task
	profiles map[uuid.UUID]models.User

	assignments []models.TaskAssignment
	scores      []models.TaskScore
	submissions []models.SubmissionHistory

	messages     []models.Message
	notes        []models.TaskNote
	attachments  []models.NoteAttachment
	comments     []models.TaskComment
	folders      []models.ResourceFolder
	resources    []models.Resource
	activity     []models.ActivityLog
	weights      []models.StageWeight
	stageScores  []models.MemberStageScore
	finalScores  []models.MemberFinalScore
	scoreAppeals []models.ScoreAppeal
}

// Export fetches the graph rooted at projectID and packs it. Only failures of
// the required fetches abort; optional sections and files degrade.
func (e *Exporter) Export(ctx context.Context, projectID uuid.UUID, opts Options, progress Progress) (*ExportResult, error) {
	tr := &tracker{fn: progress}
	log := logger.L().With(zap.String("project_id", projectID.String()))
	tr.step(0, "starting")

	snap := &snapshot{profiles: make(map[uuid.UUID]models.User)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { snap.project, err = e.src.GetProject(gctx, projectID); return })
	g.Go(func() (err error) { snap.members, err = e.src.ListMembers(gctx, projectID); return })
	g.Go(func() (err error) { snap.stages, err = e.src.ListStages(gctx, projectID); return })
	g.Go(func() (err error) { snap.tasks, err = e.src.ListTasks(gctx, projectID); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	tr.step(15, "project")

	userIDs := []uuid.UUID{snap.project.CreatedBy}
	for _, m := range snap.members {
		userIDs = append(userIDs, m.UserID)
	}
	profiles, err := e.src.ListUsers(ctx, dedupeIDs(userIDs))
	if err != nil {
		return nil, err
	}
	for _, u := range profiles {
		snap.profiles[u.ID] = u
	}
	tr.step(25, "members")

	taskIDs := make([]uuid.UUID, len(snap.tasks))
	for i, t := range snap.tasks {
		taskIDs[i] = t.ID
	}
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) { snap.assignments, err = e.src.ListAssignments(gctx, taskIDs); return })
	g.Go(func() (err error) { snap.scores, err = e.src.ListTaskScores(gctx, taskIDs); return })
	g.Go(func() (err error) { snap.submissions, err = e.src.ListSubmissions(gctx, taskIDs); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	tr.step(40, "tasks")

	collector := NewCollector(ctx, e.objects, e.settings.concurrency())
	for _, t := range snap.tasks {
		if payload := manifest.ParseSubmission(t.SubmissionLink); payload.Kind == manifest.FileList {
			for _, f := range payload.Files {
				collector.Add(storage.BucketSubmissions, f.FilePath, f.FileName, f.FileSize)
			}
		}
	}
	for _, s := range snap.submissions {
		collector.Add(storage.BucketSubmissions, s.FilePath, s.FileName, s.FileSize)
	}

	e.fetchOptional(ctx, projectID, taskIDs, opts, snap)
	tr.step(60, "optional sections")

	if opts.Notes {
		for _, a := range snap.attachments {
			collector.Add(storage.BucketNotes, a.FilePath, a.FileName, a.FileSize)
		}
	}
	if opts.Resources {
		for _, r := range snap.resources {
			if r.Type == models.ResourceTypeFile {
				collector.Add(storage.BucketResources, r.FilePath, r.FileName, r.FileSize)
			}
		}
	}

	e.fetchReferencedProfiles(ctx, snap)

	m := e.build(snap, opts)
	for _, kind := range []naturalkey.Kind{naturalkey.Stage, naturalkey.Task} {
		if dups := snap.ambiguous(kind); len(dups) > 0 {
			log.Warn("duplicate names exported, positions will be used to relink", zap.String("kind", string(kind)), zap.Strings("names", dups))
		}
	}

	entries, files, failed := collector.Wait()
	m.Files = entries
	tr.step(85, "files")

	var doc []byte
	if opts.IncludeReport {
		doc = report.Render(m, report.Options{ActivityLimit: e.settings.ReportActivityLimit})
	}
	blob, err := archive.Pack(m, files, doc)
	if err != nil {
		return nil, err
	}
	tr.step(100, "done")

	res := &ExportResult{
		ProjectID:   projectID,
		Filename:    SuggestedFilename(m.ProjectName, m.ExportedAt),
		Archive:     blob,
		Checksum:    utils.HexSHA256(blob),
		SizeBytes:   int64(len(blob)),
		Tally:       m.Tally(),
		FilesFailed: failed,
		Manifest:    m,
	}
	log.Info("project exported",
		zap.Int("tasks", res.Tally.Tasks),
		zap.Int("files", res.Tally.Files),
		zap.Int("files_failed", failed),
		zap.Int64("size_bytes", res.SizeBytes))
	return res, nil
}

// fetchOptional runs the requested optional fetches in parallel. A failed
// fetch leaves its section empty.
func (e *Exporter) fetchOptional(ctx context.Context, projectID uuid.UUID, taskIDs []uuid.UUID, opts Options, snap *snapshot) {
	var g errgroup.Group
	if opts.Messages {
		optional(&g, projectID, "messages", &snap.messages, func() ([]models.Message, error) {
			return e.src.ListMessages(ctx, projectID)
		})
	}
	if opts.Notes {
		g.Go(func() error {
			notes, err := e.src.ListNotes(ctx, taskIDs)
			if err != nil {
				warnSection(projectID, "task_notes", err)
				return nil
			}
			snap.notes = notes
			noteIDs := make([]uuid.UUID, len(notes))
			for i, n := range notes {
				noteIDs[i] = n.ID
			}
			atts, err := e.src.ListNoteAttachments(ctx, noteIDs)
			if err != nil {
				warnSection(projectID, "note_attachments", err)
				return nil
			}
			snap.attachments = atts
			return nil
		})
	}
	if opts.Comments {
		optional(&g, projectID, "task_comments", &snap.comments, func() ([]models.TaskComment, error) {
			return e.src.ListComments(ctx, taskIDs)
		})
	}
	if opts.Resources {
		optional(&g, projectID, "resource_folders", &snap.folders, func() ([]models.ResourceFolder, error) {
			return e.src.ListFolders(ctx, projectID)
		})
		optional(&g, projectID, "resources", &snap.resources, func() ([]models.Resource, error) {
			return e.src.ListResources(ctx, projectID)
		})
	}
	if opts.ActivityLogs {
		optional(&g, projectID, "activity_logs", &snap.activity, func() ([]models.ActivityLog, error) {
			return e.src.ListActivityLogs(ctx, projectID, e.settings.ActivityLogLimit)
		})
	}
	if opts.Scores {
		optional(&g, projectID, "stage_weights", &snap.weights, func() ([]models.StageWeight, error) {
			return e.src.ListStageWeights(ctx, projectID)
		})
		optional(&g, projectID, "member_stage_scores", &snap.stageScores, func() ([]models.MemberStageScore, error) {
			return e.src.ListMemberStageScores(ctx, projectID)
		})
		optional(&g, projectID, "member_final_scores", &snap.finalScores, func() ([]models.MemberFinalScore, error) {
			return e.src.ListMemberFinalScores(ctx, projectID)
		})
		optional(&g, projectID, "score_appeals", &snap.scoreAppeals, func() ([]models.ScoreAppeal, error) {
			return e.src.ListScoreAppeals(ctx, projectID)
		})
	}
	_ = g.Wait()
}

func optional[T any](g *errgroup.Group, projectID uuid.UUID, section string, dst *[]T, fetch func() ([]T, error)) {
	g.Go(func() error {
		rows, err := fetch()
		if err != nil {
			warnSection(projectID, section, err)
			return nil
		}
		*dst = rows
		return nil
	})
}

func warnSection(projectID uuid.UUID, section string, err error) {
	logger.L().Warn("optional section fetch failed, exporting it empty",
		zap.String("project_id", projectID.String()),
		zap.String("section", section),
		zap.Error(err))
}

// fetchReferencedProfiles loads accounts that authored rows without being
// current members, so their rows keep a natural key.
func (e *Exporter) fetchReferencedProfiles(ctx context.Context, snap *snapshot) {
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if _, ok := snap.profiles[id]; !ok && id != uuid.Nil {
			ids = append(ids, id)
		}
	}
	addPtr := func(id *uuid.UUID) {
		if id != nil {
			add(*id)
		}
	}
	for _, t := range snap.tasks {
		addPtr(t.CreatedBy)
	}
	for _, a := range snap.assignments {
		add(a.UserID)
	}
	for _, s := range snap.scores {
		add(s.UserID)
	}
	for _, s := range snap.submissions {
		add(s.UserID)
	}
	for _, m := range snap.messages {
		add(m.UserID)
	}
	for _, n := range snap.notes {
		add(n.UserID)
	}
	for _, c := range snap.comments {
		add(c.UserID)
	}
	for _, f := range snap.folders {
		addPtr(f.CreatedBy)
	}
	for _, r := range snap.resources {
		addPtr(r.CreatedBy)
	}
	for _, l := range snap.activity {
		addPtr(l.UserID)
	}
	for _, s := range snap.stageScores {
		add(s.UserID)
	}
	for _, s := range snap.finalScores {
		add(s.UserID)
	}
	for _, a := range snap.scoreAppeals {
		add(a.UserID)
		addPtr(a.ReviewedBy)
	}
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return
	}
	users, err := e.src.ListUsers(ctx, ids)
	if err != nil {
		logger.L().Warn("profile lookup for non-member authors failed",
			zap.String("project_id", snap.project.ID.String()),
			zap.Int("users", len(ids)),
			zap.Error(err))
		return
	}
	for _, u := range users {
		snap.profiles[u.ID] = u
	}
}

func (s *snapshot) ambiguous(kind naturalkey.Kind) []string {
	r := naturalkey.New()
	switch kind {
	case naturalkey.Stage:
		for _, st := range s.stages {
			r.Bind(kind, st.ID, st.Name)
		}
	case naturalkey.Task:
		for _, t := range s.tasks {
			r.Bind(kind, t.ID, t.Title)
		}
	}
	return r.Ambiguous(kind)
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return json.RawMessage(b)
}
