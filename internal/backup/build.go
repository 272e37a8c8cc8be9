package backup

import (
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamboard/engine/internal/backup/manifest"
	"github.com/teamboard/engine/internal/backup/naturalkey"
	"github.com/teamboard/engine/internal/models"
	"github.com/teamboard/engine/pkg/logger"
)

// folder converts internal references of one snapshot into natural keys.
type folder struct {
	keys     *naturalkey.Resolver
	stageIdx map[uuid.UUID]int
	taskIdx  map[uuid.UUID]int
	stages   []models.Stage
	tasks    []models.Task
}

func newFolder(snap *snapshot) *folder {
	f := &folder{
		keys:     naturalkey.New(),
		stageIdx: make(map[uuid.UUID]int, len(snap.stages)),
		taskIdx:  make(map[uuid.UUID]int, len(snap.tasks)),
		stages:   snap.stages,
		tasks:    snap.tasks,
	}
	for id, u := range snap.profiles {
		f.keys.Bind(naturalkey.Member, id, u.StudentID)
	}
	for i, st := range snap.stages {
		f.stageIdx[st.ID] = i
	}
	for i, t := range snap.tasks {
		f.taskIdx[t.ID] = i
	}
	return f
}

func (f *folder) member(id uuid.UUID) string {
	return f.keys.Resolve(naturalkey.Member, id)
}

func (f *folder) memberPtr(id *uuid.UUID) string {
	return f.keys.ResolvePtr(naturalkey.Member, id)
}

func (f *folder) stage(id *uuid.UUID) manifest.StageRef {
	if id == nil {
		return manifest.StageRef{}
	}
	i, ok := f.stageIdx[*id]
	if !ok {
		return manifest.StageRef{}
	}
	return manifest.StageRef{StageName: f.stages[i].Name, StageIndex: manifest.Index(i)}
}

func (f *folder) task(id uuid.UUID) manifest.TaskRef {
	i, ok := f.taskIdx[id]
	if !ok {
		return manifest.TaskRef{}
	}
	return manifest.TaskRef{TaskTitle: f.tasks[i].Title, TaskIndex: manifest.Index(i)}
}

// build assembles the manifest. Sections not requested by opts stay nil so
// they are absent from the document.
func (e *Exporter) build(snap *snapshot, opts Options) *manifest.Manifest {
	f := newFolder(snap)
	p := snap.project

	m := &manifest.Manifest{
		Version:     manifest.Version,
		ExportedAt:  e.now().UTC(),
		ProjectName: p.Name,
		Group: &manifest.Group{
			Name:        p.Name,
			Description: p.Description,
			CreatedBy:   f.member(p.CreatedBy),
			Settings:    rawJSON(p.Settings),
			Archived:    p.Archived,
			CreatedAt:   p.CreatedAt,
		},
		Members: make([]manifest.Member, 0, len(snap.members)),
		Stages:  make([]manifest.Stage, 0, len(snap.stages)),
		Tasks:   make([]manifest.Task, 0, len(snap.tasks)),
		Files:   []manifest.FileEntry{},
	}

	for _, pm := range snap.members {
		u, ok := snap.profiles[pm.UserID]
		if !ok || u.StudentID == "" {
			logger.L().Warn("member has no profile, leaving it out of the manifest",
				zap.String("project_id", p.ID.String()),
				zap.String("user_id", pm.UserID.String()))
			continue
		}
		m.Members = append(m.Members, manifest.Member{
			StudentID: u.StudentID,
			Name:      u.Name,
			Email:     u.Email,
			Role:      pm.Role,
			JoinedAt:  pm.JoinedAt,
		})
	}

	for _, st := range snap.stages {
		m.Stages = append(m.Stages, manifest.Stage{
			Name:        st.Name,
			Description: st.Description,
			OrderIndex:  st.OrderIndex,
			StartDate:   st.StartDate,
			EndDate:     st.EndDate,
			Weight:      st.Weight,
			IsHidden:    st.IsHidden,
		})
	}

	byTask := func(id uuid.UUID) int { return f.taskIdx[id] }
	assignments := make([][]manifest.Assignment, len(snap.tasks))
	for _, a := range snap.assignments {
		i := byTask(a.TaskID)
		assignments[i] = append(assignments[i], manifest.Assignment{StudentID: f.member(a.UserID)})
	}
	scores := make([][]manifest.Score, len(snap.tasks))
	for _, s := range snap.scores {
		i := byTask(s.TaskID)
		scores[i] = append(scores[i], manifest.Score{
			StudentID:    f.member(s.UserID),
			BaseScore:    s.BaseScore,
			BonusScore:   s.BonusScore,
			PenaltyScore: s.PenaltyScore,
			Adjustment:   s.Adjustment,
			FinalScore:   s.FinalScore,
		})
	}
	submissions := make([][]manifest.Submission, len(snap.tasks))
	for _, s := range snap.submissions {
		i := byTask(s.TaskID)
		submissions[i] = append(submissions[i], manifest.Submission{
			StudentID:   f.member(s.UserID),
			Content:     s.Content,
			FilePath:    s.FilePath,
			FileName:    s.FileName,
			FileSize:    s.FileSize,
			SubmittedAt: s.SubmittedAt,
		})
	}
	for i, t := range snap.tasks {
		m.Tasks = append(m.Tasks, manifest.Task{
			StageRef:         f.stage(t.StageID),
			Title:            t.Title,
			Description:      t.Description,
			Status:           t.Status,
			Deadline:         t.Deadline,
			ExtendedDeadline: t.ExtendedDeadline,
			SubmissionLink:   t.SubmissionLink,
			MaxUploadSizeMB:  t.MaxUploadSizeMB,
			IsHidden:         t.IsHidden,
			CreatedBy:        f.memberPtr(t.CreatedBy),
			Assignments:      nonNil(assignments[i]),
			Scores:           nonNil(scores[i]),
			Submissions:      nonNil(submissions[i]),
		})
	}

	if opts.Messages {
		rows := make([]manifest.Message, 0, len(snap.messages))
		for _, msg := range snap.messages {
			rows = append(rows, manifest.Message{StudentID: f.member(msg.UserID), Content: msg.Content, CreatedAt: msg.CreatedAt})
		}
		m.Messages = &rows
	}
	if opts.Notes {
		m.TaskNotes = buildNotes(f, snap)
	}
	if opts.Comments {
		m.TaskComments = buildComments(f, snap)
	}
	if opts.Resources {
		m.ResourceFolders, m.Resources = buildResources(f, snap)
	}
	if opts.ActivityLogs {
		rows := make([]manifest.ActivityLog, 0, len(snap.activity))
		for _, l := range snap.activity {
			rows = append(rows, manifest.ActivityLog{
				StudentID: f.memberPtr(l.UserID),
				Action:    l.Action,
				Metadata:  rawJSON(l.Metadata),
				CreatedAt: l.CreatedAt,
			})
		}
		m.ActivityLogs = &rows
	}
	if opts.Scores {
		buildScoring(f, snap, m)
	}
	return m
}

func buildNotes(f *folder, snap *snapshot) *[]manifest.Note {
	atts := make(map[uuid.UUID][]manifest.Attachment)
	for _, a := range snap.attachments {
		atts[a.NoteID] = append(atts[a.NoteID], manifest.Attachment{FilePath: a.FilePath, FileName: a.FileName, FileSize: a.FileSize})
	}
	rows := make([]manifest.Note, 0, len(snap.notes))
	for _, n := range snap.notes {
		rows = append(rows, manifest.Note{
			TaskRef:     f.task(n.TaskID),
			StudentID:   f.member(n.UserID),
			VersionName: n.VersionName,
			Content:     n.Content,
			IsLocked:    n.IsLocked,
			CreatedAt:   n.CreatedAt,
			Attachments: nonNil(atts[n.ID]),
		})
	}
	return &rows
}

// buildComments orders comments so every parent precedes its replies and
// replaces parent ids with positions in the emitted list.
func buildComments(f *folder, snap *snapshot) *[]manifest.Comment {
	present := make(map[uuid.UUID]bool, len(snap.comments))
	for _, c := range snap.comments {
		present[c.ID] = true
	}
	children := make(map[uuid.UUID][]models.TaskComment)
	var roots []models.TaskComment
	for _, c := range snap.comments {
		if c.ParentID != nil && present[*c.ParentID] && *c.ParentID != c.ID {
			children[*c.ParentID] = append(children[*c.ParentID], c)
			continue
		}
		roots = append(roots, c)
	}
	sort.SliceStable(roots, func(i, j int) bool {
		return f.taskIdx[roots[i].TaskID] < f.taskIdx[roots[j].TaskID]
	})

	rows := make([]manifest.Comment, 0, len(snap.comments))
	position := make(map[uuid.UUID]int, len(snap.comments))
	var visit func(c models.TaskComment, parent *int)
	visit = func(c models.TaskComment, parent *int) {
		if _, done := position[c.ID]; done {
			return
		}
		position[c.ID] = len(rows)
		rows = append(rows, manifest.Comment{
			TaskRef:     f.task(c.TaskID),
			StudentID:   f.member(c.UserID),
			Content:     c.Content,
			ParentIndex: parent,
			CreatedAt:   c.CreatedAt,
		})
		self := manifest.Index(position[c.ID])
		for _, child := range children[c.ID] {
			visit(child, self)
		}
	}
	for _, c := range roots {
		visit(c, nil)
	}
	// Parent cycles leave comments unreached; emit them top-level.
	for _, c := range snap.comments {
		visit(c, nil)
	}
	return &rows
}

func buildResources(f *folder, snap *snapshot) (*[]manifest.ResourceFolder, *[]manifest.Resource) {
	folderNames := make(map[uuid.UUID]string, len(snap.folders))
	folders := make([]manifest.ResourceFolder, 0, len(snap.folders))
	for _, fl := range snap.folders {
		folderNames[fl.ID] = fl.Name
		folders = append(folders, manifest.ResourceFolder{Name: fl.Name, CreatedBy: f.memberPtr(fl.CreatedBy)})
	}
	resources := make([]manifest.Resource, 0, len(snap.resources))
	for _, r := range snap.resources {
		name := ""
		if r.FolderID != nil {
			name = folderNames[*r.FolderID]
		}
		resources = append(resources, manifest.Resource{
			FolderName:  name,
			Type:        r.Type,
			Name:        r.Name,
			Description: r.Description,
			URL:         r.URL,
			FilePath:    r.FilePath,
			FileName:    r.FileName,
			FileSize:    r.FileSize,
			CreatedBy:   f.memberPtr(r.CreatedBy),
			CreatedAt:   r.CreatedAt,
		})
	}
	return &folders, &resources
}

func buildScoring(f *folder, snap *snapshot, m *manifest.Manifest) {
	weights := make([]manifest.StageWeight, 0, len(snap.weights))
	for _, w := range snap.weights {
		sid := w.StageID
		weights = append(weights, manifest.StageWeight{StageRef: f.stage(&sid), TaskRef: f.task(w.TaskID), Weight: w.Weight})
	}
	stageScores := make([]manifest.MemberStageScore, 0, len(snap.stageScores))
	for _, s := range snap.stageScores {
		sid := s.StageID
		stageScores = append(stageScores, manifest.MemberStageScore{
			StageRef:   f.stage(&sid),
			StudentID:  f.member(s.UserID),
			Score:      s.Score,
			Adjustment: s.Adjustment,
			FinalScore: s.FinalScore,
		})
	}
	finals := make([]manifest.MemberFinalScore, 0, len(snap.finalScores))
	for _, s := range snap.finalScores {
		finals = append(finals, manifest.MemberFinalScore{
			StudentID:  f.member(s.UserID),
			Score:      s.Score,
			Adjustment: s.Adjustment,
			FinalScore: s.FinalScore,
			Comment:    s.Comment,
		})
	}
	scoreRows := make(map[uuid.UUID]models.TaskScore, len(snap.scores))
	for _, s := range snap.scores {
		scoreRows[s.ID] = s
	}
	appeals := make([]manifest.ScoreAppeal, 0, len(snap.scoreAppeals))
	for _, a := range snap.scoreAppeals {
		row := manifest.ScoreAppeal{
			StageRef:   f.stage(a.StageID),
			StudentID:  f.member(a.UserID),
			Reason:     a.Reason,
			Status:     a.Status,
			Response:   a.Response,
			ReviewedBy: f.memberPtr(a.ReviewedBy),
			ReviewedAt: a.ReviewedAt,
		}
		if a.TaskScoreID != nil {
			if s, ok := scoreRows[*a.TaskScoreID]; ok {
				row.TaskRef = f.task(s.TaskID)
				row.ScoreStudentID = f.member(s.UserID)
			}
		}
		appeals = append(appeals, row)
	}
	m.StageWeights = &weights
	m.MemberStageScores = &stageScores
	m.MemberFinalScores = &finals
	m.ScoreAppeals = &appeals
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
