package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/teamboard/engine/internal/models"
	appErr "github.com/teamboard/engine/pkg/errors"
	"gorm.io/gorm"
)

const chronological = "created_at ASC, id ASC"

// GraphRepository reads and appends the rows making up one project graph.
// Writes are single-row inserts; nothing here updates or deletes.
type GraphRepository interface {
	GetProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error)
	ListMembers(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMember, error)
	ListStages(ctx context.Context, projectID uuid.UUID) ([]models.Stage, error)
	ListTasks(ctx context.Context, projectID uuid.UUID) ([]models.Task, error)
	ListUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.User, error)

	ListAssignments(ctx context.Context, taskIDs []uuid.UUID) ([]models.TaskAssignment, error)
	ListTaskScores(ctx context.Context, taskIDs []uuid.UUID) ([]models.TaskScore, error)
	ListSubmissions(ctx context.Context, taskIDs []uuid.UUID) ([]models.SubmissionHistory, error)
	ListNotes(ctx context.Context, taskIDs []uuid.UUID) ([]models.TaskNote, error)
	ListNoteAttachments(ctx context.Context, noteIDs []uuid.UUID) ([]models.NoteAttachment, error)
	ListComments(ctx context.Context, taskIDs []uuid.UUID) ([]models.TaskComment, error)

	ListMessages(ctx context.Context, projectID uuid.UUID) ([]models.Message, error)
	ListFolders(ctx context.Context, projectID uuid.UUID) ([]models.ResourceFolder, error)
	ListResources(ctx context.Context, projectID uuid.UUID) ([]models.Resource, error)
	ListActivityLogs(ctx context.Context, projectID uuid.UUID, limit int) ([]models.ActivityLog, error)
	ListStageWeights(ctx context.Context, projectID uuid.UUID) ([]models.StageWeight, error)
	ListMemberStageScores(ctx context.Context, projectID uuid.UUID) ([]models.MemberStageScore, error)
	ListMemberFinalScores(ctx context.Context, projectID uuid.UUID) ([]models.MemberFinalScore, error)
	ListScoreAppeals(ctx context.Context, projectID uuid.UUID) ([]models.ScoreAppeal, error)

	CreateProject(ctx context.Context, project *models.Project) error
	FindUsersByStudentIDs(ctx context.Context, studentIDs []string) ([]models.User, error)
	Insert(ctx context.Context, row any) error
}

type graphRepository struct {
	db *gorm.DB
}

var _ GraphRepository = (*graphRepository)(nil)

func NewGraphRepository(db *gorm.DB) GraphRepository {
	return &graphRepository{db: db}
}

func (r *graphRepository) GetProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := r.db.WithContext(ctx).First(&p, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "project not found")
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get project failed")
	}
	return &p, nil
}

func (r *graphRepository) ListMembers(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMember, error) {
	return listByProject[models.ProjectMember](ctx, r.db, "members", projectID, "joined_at ASC, id ASC")
}

func (r *graphRepository) ListStages(ctx context.Context, projectID uuid.UUID) ([]models.Stage, error) {
	return listByProject[models.Stage](ctx, r.db, "stages", projectID, "order_index ASC, "+chronological)
}

func (r *graphRepository) ListTasks(ctx context.Context, projectID uuid.UUID) ([]models.Task, error) {
	return listByProject[models.Task](ctx, r.db, "tasks", projectID, chronological)
}

func (r *graphRepository) ListUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.User, error) {
	return listIn[models.User](ctx, r.db, "users", "id", userIDs)
}

func (r *graphRepository) ListAssignments(ctx context.Context, taskIDs []uuid.UUID) ([]models.TaskAssignment, error) {
	return listIn[models.TaskAssignment](ctx, r.db, "assignments", "task_id", taskIDs)
}

func (r *graphRepository) ListTaskScores(ctx context.Context, taskIDs []uuid.UUID) ([]models.TaskScore, error) {
	return listIn[models.TaskScore](ctx, r.db, "task scores", "task_id", taskIDs)
}

func (r *graphRepository) ListSubmissions(ctx context.Context, taskIDs []uuid.UUID) ([]models.SubmissionHistory, error) {
	return listIn[models.SubmissionHistory](ctx, r.db, "submissions", "task_id", taskIDs)
}

func (r *graphRepository) ListNotes(ctx context.Context, taskIDs []uuid.UUID) ([]models.TaskNote, error) {
	return listIn[models.TaskNote](ctx, r.db, "notes", "task_id", taskIDs)
}

func (r *graphRepository) ListNoteAttachments(ctx context.Context, noteIDs []uuid.UUID) ([]models.NoteAttachment, error) {
	return listIn[models.NoteAttachment](ctx, r.db, "note attachments", "note_id", noteIDs)
}

func (r *graphRepository) ListComments(ctx context.Context, taskIDs []uuid.UUID) ([]models.TaskComment, error) {
	return listIn[models.TaskComment](ctx, r.db, "comments", "task_id", taskIDs)
}

func (r *graphRepository) ListMessages(ctx context.Context, projectID uuid.UUID) ([]models.Message, error) {
	return listByProject[models.Message](ctx, r.db, "messages", projectID, chronological)
}

func (r *graphRepository) ListFolders(ctx context.Context, projectID uuid.UUID) ([]models.ResourceFolder, error) {
	return listByProject[models.ResourceFolder](ctx, r.db, "folders", projectID, chronological)
}

func (r *graphRepository) ListResources(ctx context.Context, projectID uuid.UUID) ([]models.Resource, error) {
	return listByProject[models.Resource](ctx, r.db, "resources", projectID, chronological)
}

// ListActivityLogs returns the most recent limit entries in chronological order.
// A limit of 0 returns every entry.
func (r *graphRepository) ListActivityLogs(ctx context.Context, projectID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.ActivityLog
	if err := q.Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list activity logs failed")
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *graphRepository) ListStageWeights(ctx context.Context, projectID uuid.UUID) ([]models.StageWeight, error) {
	return listByProject[models.StageWeight](ctx, r.db, "stage weights", projectID, chronological)
}

func (r *graphRepository) ListMemberStageScores(ctx context.Context, projectID uuid.UUID) ([]models.MemberStageScore, error) {
	return listByProject[models.MemberStageScore](ctx, r.db, "member stage scores", projectID, chronological)
}

func (r *graphRepository) ListMemberFinalScores(ctx context.Context, projectID uuid.UUID) ([]models.MemberFinalScore, error) {
	return listByProject[models.MemberFinalScore](ctx, r.db, "member final scores", projectID, chronological)
}

func (r *graphRepository) ListScoreAppeals(ctx context.Context, projectID uuid.UUID) ([]models.ScoreAppeal, error) {
	return listByProject[models.ScoreAppeal](ctx, r.db, "score appeals", projectID, chronological)
}

func (r *graphRepository) CreateProject(ctx context.Context, project *models.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create project failed")
	}
	return nil
}

func (r *graphRepository) FindUsersByStudentIDs(ctx context.Context, studentIDs []string) ([]models.User, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	var out []models.User
	if err := r.db.WithContext(ctx).Where("student_id IN ?", studentIDs).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "find users by student id failed")
	}
	return out, nil
}

// Insert creates one row. row must be a pointer to a model.
func (r *graphRepository) Insert(ctx context.Context, row any) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "insert row failed")
	}
	return nil
}

func listByProject[T any](ctx context.Context, db *gorm.DB, what string, projectID uuid.UUID, order string) ([]T, error) {
	var out []T
	if err := db.WithContext(ctx).Where("project_id = ?", projectID).Order(order).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list "+what+" failed")
	}
	return out, nil
}

// listIn returns nil without a query when ids is empty.
func listIn[T any](ctx context.Context, db *gorm.DB, what, column string, ids []uuid.UUID) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []T
	if err := db.WithContext(ctx).Where(column+" IN ?", ids).Order(chronological).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list "+what+" failed")
	}
	return out, nil
}
