package backup

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/teamboard/engine/internal/backup/archive"
	"github.com/teamboard/engine/internal/backup/manifest"
	"github.com/teamboard/engine/internal/backup/naturalkey"
	"github.com/teamboard/engine/internal/models"
	"github.com/teamboard/engine/internal/storage"
	appErr "github.com/teamboard/engine/pkg/errors"
	"github.com/teamboard/engine/pkg/logger"
)

// ImportResult reports what one import restored.
type ImportResult struct {
	ProjectID   uuid.UUID      `json:"project_id"`
	ProjectName string         `json:"project_name"`
	Restored    manifest.Tally `json:"restored"`
	Dropped     []string       `json:"dropped_members"`
	RowsFailed  int            `json:"rows_failed"`
	RowsSkipped int            `json:"rows_skipped"`
	FilesFailed int            `json:"files_failed"`
}

// Importer recreates archived graphs as new projects.
type Importer struct {
	dst      DestStore
	objects  storage.ObjectStore
	settings Settings
}

func NewImporter(dst DestStore, objects storage.ObjectStore, settings Settings) *Importer {
	return &Importer{dst: dst, objects: objects, settings: settings}
}

// Import unpacks blob and restores it under actorID.
func (im *Importer) Import(ctx context.Context, blob []byte, actorID uuid.UUID, progress Progress) (*ImportResult, error) {
	a, err := archive.Unpack(blob, archive.WithMaxEntryBytes(im.settings.MaxEntryBytes))
	if err != nil {
		return nil, err
	}
	return im.Restore(ctx, a, actorID, progress)
}

// Restore replays an unpacked archive. It fails only when the project shell
// cannot be created; every later failure is counted and skipped.
func (im *Importer) Restore(ctx context.Context, a *archive.Archive, actorID uuid.UUID, progress Progress) (*ImportResult, error) {
	m := a.Manifest
	tr := &tracker{fn: progress}
	tr.step(0, "starting")

	project := &models.Project{
		Name:        m.Group.Name,
		Description: m.Group.Description,
		CreatedBy:   actorID,
		Visibility:  models.VisibilityPrivate,
		Settings:    datatypes.JSON(m.Group.Settings),
	}
	if err := im.dst.CreateProject(ctx, project); err != nil {
		return nil, appErr.Wrap(fmt.Errorf("%w: %v", ErrProjectCreate, err), appErr.CodeInternal, "failed to create project shell")
	}

	r := &restore{
		ctx:     ctx,
		im:      im,
		m:       m,
		a:       a,
		actorID: actorID,
		project: project,
		keys:    naturalkey.New(),
		rewrite: make(map[fileKey]string),
		res:     &ImportResult{ProjectID: project.ID, ProjectName: project.Name, Dropped: []string{}},
		log:     logger.L().With(zap.String("project_id", project.ID.String())),
	}
	tr.step(10, "project")

	r.resolveMembers()
	r.addMembers()
	tr.step(20, "members")
	r.uploadFiles()
	tr.step(45, "files")
	r.createStages()
	r.createTasks()
	tr.step(65, "tasks")
	r.createNotes()
	r.createComments()
	tr.step(75, "notes and comments")
	r.createResources()
	tr.step(85, "resources")
	r.createScoring()
	r.createMessages()
	r.createActivityLogs()
	tr.step(100, "done")

	r.log.Info("project restored",
		zap.Int("tasks", r.res.Restored.Tasks),
		zap.Int("files", r.res.Restored.Files),
		zap.Int("rows_failed", r.res.RowsFailed),
		zap.Int("rows_skipped", r.res.RowsSkipped),
		zap.Strings("dropped_members", r.res.Dropped))
	return r.res, nil
}

type restore struct {
	ctx     context.Context
	im      *Importer
	m       *manifest.Manifest
	a       *archive.Archive
	actorID uuid.UUID
	project *models.Project
	keys    *naturalkey.Resolver
	rewrite map[fileKey]string
	res     *ImportResult
	log     *zap.Logger
}

func (r *restore) insert(kind string, row any, counter *int) bool {
	if err := r.im.dst.Insert(r.ctx, row); err != nil {
		r.res.RowsFailed++
		r.log.Warn("row restore failed", zap.String("kind", kind), zap.Error(err))
		return false
	}
	if counter != nil {
		*counter++
	}
	return true
}

func (r *restore) skip(kind, reason string) {
	r.res.RowsSkipped++
	r.log.Debug("row skipped", zap.String("kind", kind), zap.String("reason", reason))
}

func (r *restore) member(studentID string) (uuid.UUID, bool) {
	return r.keys.Lookup(naturalkey.Member, studentID)
}

func (r *restore) memberPtr(studentID string) *uuid.UUID {
	if id, ok := r.member(studentID); ok {
		return &id
	}
	return nil
}

// stage resolves a reference by position, falling back to the name.
func (r *restore) stage(ref manifest.StageRef) (uuid.UUID, bool) {
	if ref.StageIndex != nil {
		if id, ok := r.keys.Lookup(naturalkey.StagePos, naturalkey.Position(*ref.StageIndex)); ok {
			return id, true
		}
	}
	return r.keys.Lookup(naturalkey.Stage, ref.StageName)
}

func (r *restore) task(ref manifest.TaskRef) (uuid.UUID, bool) {
	if ref.TaskIndex != nil {
		if id, ok := r.keys.Lookup(naturalkey.TaskPos, naturalkey.Position(*ref.TaskIndex)); ok {
			return id, true
		}
	}
	return r.keys.Lookup(naturalkey.Task, ref.TaskTitle)
}

func (r *restore) file(bucket, originalPath string) (string, bool) {
	if originalPath == "" {
		return "", false
	}
	p, ok := r.rewrite[fileKey{bucket, originalPath}]
	return p, ok
}

func hasStage(ref manifest.StageRef) bool { return ref.StageIndex != nil || ref.StageName != "" }
func hasTask(ref manifest.TaskRef) bool   { return ref.TaskIndex != nil || ref.TaskTitle != "" }

func scoreKey(taskID uuid.UUID, studentID string) string {
	return taskID.String() + "/" + studentID
}

// resolveMembers maps every student id referenced anywhere in the manifest
// onto existing accounts. Unknown ids are recorded as dropped.
func (r *restore) resolveMembers() {
	ids := referencedStudents(r.m)
	if len(ids) == 0 {
		return
	}
	users, err := r.im.dst.FindUsersByStudentIDs(r.ctx, ids)
	if err != nil {
		r.log.Warn("member directory lookup failed, restoring without members", zap.Error(err))
	}
	for _, u := range users {
		r.keys.Bind(naturalkey.Member, u.ID, u.StudentID)
	}
	for _, sid := range ids {
		if _, ok := r.member(sid); !ok {
			r.res.Dropped = append(r.res.Dropped, sid)
		}
	}
	sort.Strings(r.res.Dropped)
}

func referencedStudents(m *manifest.Manifest) []string {
	seen := make(map[string]struct{})
	add := func(s string) {
		if s != "" {
			seen[s] = struct{}{}
		}
	}
	add(m.Group.CreatedBy)
	for _, mem := range m.Members {
		add(mem.StudentID)
	}
	for _, t := range m.Tasks {
		add(t.CreatedBy)
		for _, a := range t.Assignments {
			add(a.StudentID)
		}
		for _, s := range t.Scores {
			add(s.StudentID)
		}
		for _, s := range t.Submissions {
			add(s.StudentID)
		}
	}
	each(m.Messages, func(x manifest.Message) { add(x.StudentID) })
	each(m.TaskNotes, func(x manifest.Note) { add(x.StudentID) })
	each(m.TaskComments, func(x manifest.Comment) { add(x.StudentID) })
	each(m.ResourceFolders, func(x manifest.ResourceFolder) { add(x.CreatedBy) })
	each(m.Resources, func(x manifest.Resource) { add(x.CreatedBy) })
	each(m.ActivityLogs, func(x manifest.ActivityLog) { add(x.StudentID) })
	each(m.MemberStageScores, func(x manifest.MemberStageScore) { add(x.StudentID) })
	each(m.MemberFinalScores, func(x manifest.MemberFinalScore) { add(x.StudentID) })
	each(m.ScoreAppeals, func(x manifest.ScoreAppeal) {
		add(x.StudentID)
		add(x.ReviewedBy)
	})
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func each[T any](rows *[]T, fn func(T)) {
	if rows == nil {
		return
	}
	for _, row := range *rows {
		fn(row)
	}
}

func (r *restore) addMembers() {
	now := time.Now().UTC()
	r.insert("project_member", &models.ProjectMember{
		ProjectID: r.project.ID,
		UserID:    r.actorID,
		Role:      models.RoleLeader,
		JoinedAt:  now,
	}, &r.res.Restored.Members)

	added := map[uuid.UUID]bool{r.actorID: true}
	for _, mem := range r.m.Members {
		uid, ok := r.member(mem.StudentID)
		if !ok {
			r.skip("project_member", "unresolved member")
			continue
		}
		if added[uid] {
			continue
		}
		added[uid] = true
		role := mem.Role
		if role != models.RoleAdmin && role != models.RoleLeader && role != models.RoleMember {
			role = models.RoleMember
		}
		joined := mem.JoinedAt
		if joined.IsZero() {
			joined = now
		}
		r.insert("project_member", &models.ProjectMember{
			ProjectID: r.project.ID,
			UserID:    uid,
			Role:      role,
			JoinedAt:  joined,
		}, &r.res.Restored.Members)
	}
}

// uploadFiles copies archived files to fresh paths in their original bucket
// and fills the rewrite table.
func (r *restore) uploadFiles() {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		pending = make(map[fileKey]bool, len(r.m.Files))
	)
	g.SetLimit(r.im.settings.concurrency())
	for _, entry := range r.m.Files {
		if !knownBucket(entry.Bucket) || entry.OriginalPath == "" {
			r.res.FilesFailed++
			r.log.Warn("file entry rejected", zap.String("bucket", entry.Bucket), zap.String("path", entry.OriginalPath))
			continue
		}
		if !r.a.Has(entry.ZipPath) {
			r.res.FilesFailed++
			r.log.Warn("file missing from archive", zap.String("zip_path", entry.ZipPath))
			continue
		}
		key := fileKey{entry.Bucket, entry.OriginalPath}
		if pending[key] {
			continue
		}
		pending[key] = true
		g.Go(func() error {
			newPath, err := r.uploadFile(entry)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.res.FilesFailed++
				r.log.Warn("file restore failed", zap.String("bucket", entry.Bucket), zap.String("path", entry.OriginalPath), zap.Error(err))
				return nil
			}
			r.rewrite[key] = newPath
			r.res.Restored.Files++
			return nil
		})
	}
	_ = g.Wait()
}

func (r *restore) uploadFile(entry manifest.FileEntry) (string, error) {
	data, err := r.a.Open(entry.ZipPath)
	if err != nil {
		return "", err
	}
	name := sanitize(entry.FileName)
	if name == "" {
		name = "file"
	}
	newPath := fmt.Sprintf("restored/%s/%s/%s", r.project.ID, uuid.New(), name)
	if err := r.im.objects.Put(r.ctx, entry.Bucket, newPath, data, storage.ContentType(entry.FileName)); err != nil {
		return "", err
	}
	return newPath, nil
}

func knownBucket(b string) bool {
	switch b {
	case storage.BucketSubmissions, storage.BucketNotes, storage.BucketResources:
		return true
	}
	return false
}

func (r *restore) createStages() {
	for i, st := range r.m.Stages {
		row := &models.Stage{
			ProjectID:   r.project.ID,
			Name:        st.Name,
			Description: st.Description,
			OrderIndex:  st.OrderIndex,
			StartDate:   st.StartDate,
			EndDate:     st.EndDate,
			Weight:      st.Weight,
			IsHidden:    st.IsHidden,
		}
		if !r.insert("stage", row, &r.res.Restored.Stages) {
			continue
		}
		r.keys.Bind(naturalkey.StagePos, row.ID, naturalkey.Position(i))
		r.keys.Bind(naturalkey.Stage, row.ID, st.Name)
	}
}

func (r *restore) createTasks() {
	for i, t := range r.m.Tasks {
		row := &models.Task{
			ProjectID:        r.project.ID,
			Title:            t.Title,
			Description:      t.Description,
			Status:           t.Status,
			Deadline:         t.Deadline,
			ExtendedDeadline: t.ExtendedDeadline,
			SubmissionLink:   r.rewriteSubmission(t.SubmissionLink),
			MaxUploadSizeMB:  t.MaxUploadSizeMB,
			IsHidden:         t.IsHidden,
			CreatedBy:        r.memberPtr(t.CreatedBy),
		}
		if hasStage(t.StageRef) {
			if sid, ok := r.stage(t.StageRef); ok {
				row.StageID = &sid
			} else {
				r.log.Warn("task stage did not resolve, restoring it unstaged", zap.String("task", t.Title), zap.String("stage", t.StageName))
			}
		}
		if !r.insert("task", row, &r.res.Restored.Tasks) {
			continue
		}
		r.keys.Bind(naturalkey.TaskPos, row.ID, naturalkey.Position(i))
		r.keys.Bind(naturalkey.Task, row.ID, t.Title)

		for _, a := range t.Assignments {
			uid, ok := r.member(a.StudentID)
			if !ok {
				r.skip("assignment", "unresolved member")
				continue
			}
			r.insert("assignment", &models.TaskAssignment{TaskID: row.ID, UserID: uid}, &r.res.Restored.Assignments)
		}
		for _, s := range t.Scores {
			uid, ok := r.member(s.StudentID)
			if !ok {
				r.skip("task_score", "unresolved member")
				continue
			}
			score := &models.TaskScore{
				TaskID:       row.ID,
				UserID:       uid,
				BaseScore:    s.BaseScore,
				BonusScore:   s.BonusScore,
				PenaltyScore: s.PenaltyScore,
				Adjustment:   s.Adjustment,
				FinalScore:   s.FinalScore,
			}
			if r.insert("task_score", score, &r.res.Restored.Scores) {
				r.keys.Bind(naturalkey.ScoreRow, score.ID, scoreKey(row.ID, s.StudentID))
			}
		}
		for _, s := range t.Submissions {
			uid, ok := r.member(s.StudentID)
			if !ok {
				r.skip("submission", "unresolved member")
				continue
			}
			sub := &models.SubmissionHistory{
				TaskID:      row.ID,
				UserID:      uid,
				Content:     s.Content,
				SubmittedAt: s.SubmittedAt,
			}
			if p, ok := r.file(storage.BucketSubmissions, s.FilePath); ok {
				sub.FilePath, sub.FileName, sub.FileSize = p, s.FileName, s.FileSize
			}
			r.insert("submission", sub, &r.res.Restored.Submissions)
		}
	}
}

// rewriteSubmission points file lists at restored copies and drops files that did not restore.
func (r *restore) rewriteSubmission(raw string) string {
	payload := manifest.ParseSubmission(raw)
	if payload.Kind != manifest.FileList {
		return raw
	}
	kept := payload.Files[:0]
	for _, f := range payload.Files {
		if p, ok := r.file(storage.BucketSubmissions, f.FilePath); ok {
			f.FilePath = p
			kept = append(kept, f)
		}
	}
	payload.Files = kept
	return payload.Encode()
}

func (r *restore) createNotes() {
	each(r.m.TaskNotes, func(n manifest.Note) {
		taskID, ok := r.task(n.TaskRef)
		if !ok {
			r.skip("note", "unresolved task")
			return
		}
		uid, ok := r.member(n.StudentID)
		if !ok {
			r.skip("note", "unresolved member")
			return
		}
		note := &models.TaskNote{
			TaskID:      taskID,
			UserID:      uid,
			VersionName: n.VersionName,
			Content:     n.Content,
			IsLocked:    n.IsLocked,
		}
		note.CreatedAt = n.CreatedAt
		if !r.insert("note", note, &r.res.Restored.Notes) {
			return
		}
		for _, att := range n.Attachments {
			p, ok := r.file(storage.BucketNotes, att.FilePath)
			if !ok {
				r.skip("note_attachment", "file not restored")
				continue
			}
			r.insert("note_attachment", &models.NoteAttachment{
				NoteID:   note.ID,
				FilePath: p,
				FileName: att.FileName,
				FileSize: att.FileSize,
			}, &r.res.Restored.Attachments)
		}
	})
}

// createComments replays comments in manifest order, mapping each position to
// its new id so replies can find their parent.
func (r *restore) createComments() {
	if r.m.TaskComments == nil {
		return
	}
	for i, c := range *r.m.TaskComments {
		taskID, ok := r.task(c.TaskRef)
		if !ok {
			r.skip("comment", "unresolved task")
			continue
		}
		uid, ok := r.member(c.StudentID)
		if !ok {
			r.skip("comment", "unresolved member")
			continue
		}
		row := &models.TaskComment{TaskID: taskID, UserID: uid, Content: c.Content}
		row.CreatedAt = c.CreatedAt
		if c.ParentIndex != nil && *c.ParentIndex < i {
			if pid, ok := r.keys.Lookup(naturalkey.Comment, naturalkey.Position(*c.ParentIndex)); ok {
				row.ParentID = &pid
			}
		}
		if r.insert("comment", row, &r.res.Restored.Comments) {
			r.keys.Bind(naturalkey.Comment, row.ID, naturalkey.Position(i))
		}
	}
}

func (r *restore) createResources() {
	each(r.m.ResourceFolders, func(f manifest.ResourceFolder) {
		row := &models.ResourceFolder{ProjectID: r.project.ID, Name: f.Name, CreatedBy: r.memberPtr(f.CreatedBy)}
		if r.insert("resource_folder", row, &r.res.Restored.Folders) {
			r.keys.Bind(naturalkey.Folder, row.ID, f.Name)
		}
	})
	each(r.m.Resources, func(res manifest.Resource) {
		row := &models.Resource{
			ProjectID:   r.project.ID,
			Type:        res.Type,
			Name:        res.Name,
			Description: res.Description,
			URL:         res.URL,
			CreatedBy:   r.memberPtr(res.CreatedBy),
		}
		row.CreatedAt = res.CreatedAt
		switch res.Type {
		case models.ResourceTypeFile:
			p, ok := r.file(storage.BucketResources, res.FilePath)
			if !ok {
				r.skip("resource", "file not restored")
				return
			}
			row.FilePath, row.FileName, row.FileSize = p, res.FileName, res.FileSize
		case models.ResourceTypeLink:
		default:
			r.skip("resource", "unknown type "+res.Type)
			return
		}
		if res.FolderName != "" {
			if fid, ok := r.keys.Lookup(naturalkey.Folder, res.FolderName); ok {
				row.FolderID = &fid
			}
		}
		r.insert("resource", row, &r.res.Restored.Resources)
	})
}

func (r *restore) createScoring() {
	n := &r.res.Restored.ScoreRows
	each(r.m.StageWeights, func(w manifest.StageWeight) {
		stageID, ok1 := r.stage(w.StageRef)
		taskID, ok2 := r.task(w.TaskRef)
		if !ok1 || !ok2 {
			r.skip("stage_weight", "unresolved stage or task")
			return
		}
		r.insert("stage_weight", &models.StageWeight{ProjectID: r.project.ID, StageID: stageID, TaskID: taskID, Weight: w.Weight}, n)
	})
	each(r.m.MemberStageScores, func(s manifest.MemberStageScore) {
		stageID, ok1 := r.stage(s.StageRef)
		uid, ok2 := r.member(s.StudentID)
		if !ok1 || !ok2 {
			r.skip("member_stage_score", "unresolved stage or member")
			return
		}
		r.insert("member_stage_score", &models.MemberStageScore{
			ProjectID:  r.project.ID,
			StageID:    stageID,
			UserID:     uid,
			Score:      s.Score,
			Adjustment: s.Adjustment,
			FinalScore: s.FinalScore,
		}, n)
	})
	each(r.m.MemberFinalScores, func(s manifest.MemberFinalScore) {
		uid, ok := r.member(s.StudentID)
		if !ok {
			r.skip("member_final_score", "unresolved member")
			return
		}
		r.insert("member_final_score", &models.MemberFinalScore{
			ProjectID:  r.project.ID,
			UserID:     uid,
			Score:      s.Score,
			Adjustment: s.Adjustment,
			FinalScore: s.FinalScore,
			Comment:    s.Comment,
		}, n)
	})
	each(r.m.ScoreAppeals, func(a manifest.ScoreAppeal) {
		uid, ok := r.member(a.StudentID)
		if !ok {
			r.skip("score_appeal", "unresolved member")
			return
		}
		row := &models.ScoreAppeal{
			ProjectID:  r.project.ID,
			UserID:     uid,
			Reason:     a.Reason,
			Status:     a.Status,
			Response:   a.Response,
			ReviewedBy: r.memberPtr(a.ReviewedBy),
			ReviewedAt: a.ReviewedAt,
		}
		if hasTask(a.TaskRef) {
			taskID, ok := r.task(a.TaskRef)
			if !ok {
				r.skip("score_appeal", "unresolved task")
				return
			}
			scoreID, ok := r.keys.Lookup(naturalkey.ScoreRow, scoreKey(taskID, a.ScoreStudentID))
			if !ok {
				r.skip("score_appeal", "unresolved score row")
				return
			}
			row.TaskScoreID = &scoreID
		}
		if hasStage(a.StageRef) {
			stageID, ok := r.stage(a.StageRef)
			if !ok {
				r.skip("score_appeal", "unresolved stage")
				return
			}
			row.StageID = &stageID
		}
		r.insert("score_appeal", row, n)
	})
}

func (r *restore) createMessages() {
	each(r.m.Messages, func(msg manifest.Message) {
		uid, ok := r.member(msg.StudentID)
		if !ok {
			r.skip("message", "unresolved member")
			return
		}
		row := &models.Message{ProjectID: r.project.ID, UserID: uid, Content: msg.Content}
		row.CreatedAt = msg.CreatedAt
		r.insert("message", row, &r.res.Restored.Messages)
	})
}

// createActivityLogs keeps entries whose actor did not resolve with a null actor.
func (r *restore) createActivityLogs() {
	each(r.m.ActivityLogs, func(l manifest.ActivityLog) {
		row := &models.ActivityLog{
			ProjectID: r.project.ID,
			UserID:    r.memberPtr(l.StudentID),
			Action:    l.Action,
			Metadata:  datatypes.JSON(l.Metadata),
		}
		row.CreatedAt = l.CreatedAt
		r.insert("activity_log", row, &r.res.Restored.Activity)
	})
}
