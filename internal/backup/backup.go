// Package backup exports a project graph into a portable archive and restores
// archives as brand-new projects.
package backup

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teamboard/engine/internal/models"
	"github.com/teamboard/engine/pkg/config"
)

// ErrProjectCreate is returned when the destination project shell could not be created.
var ErrProjectCreate = errors.New("project shell creation failed")

// Options selects the optional sections of an export.
type Options struct {
	Messages      bool `json:"include_messages"`
	Notes         bool `json:"include_notes"`
	Comments      bool `json:"include_comments"`
	Resources     bool `json:"include_resources"`
	ActivityLogs  bool `json:"include_activity_logs"`
	Scores        bool `json:"include_scores"`
	IncludeReport bool `json:"include_report"`
}

// AllOptions enables every optional section and the report.
func AllOptions() Options {
	return Options{
		Messages:      true,
		Notes:         true,
		Comments:      true,
		Resources:     true,
		ActivityLogs:  true,
		Scores:        true,
		IncludeReport: true,
	}
}

// Settings tune the engine.
type Settings struct {
	ActivityLogLimit    int
	ReportActivityLimit int
	FileConcurrency     int
	// MaxEntryBytes caps the inflated size of any single archive entry on import.
	MaxEntryBytes int64
}

// SettingsFromConfig reads the engine settings out of the application config.
func SettingsFromConfig(c *config.Config) Settings {
	return Settings{
		ActivityLogLimit:    c.ActivityLogLimit,
		ReportActivityLimit: c.ReportActivityLimit,
		FileConcurrency:     c.FileConcurrency,
		MaxEntryBytes:       c.MaxEntryBytes,
	}
}

func (s Settings) concurrency() int {
	if s.FileConcurrency <= 0 {
		return 8
	}
	return s.FileConcurrency
}

// SourceStore is the read side used by the exporter.
type SourceStore interface {
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
}

// DestStore is the append-only write side used by the importer.
type DestStore interface {
	CreateProject(ctx context.Context, project *models.Project) error
	FindUsersByStudentIDs(ctx context.Context, studentIDs []string) ([]models.User, error)
	Insert(ctx context.Context, row any) error
}

// Progress receives a monotonically increasing percentage at phase boundaries.
type Progress func(percent int, phase string)

type tracker struct {
	fn   Progress
	last int
}

func (t *tracker) step(percent int, phase string) {
	if t.fn == nil || percent < t.last {
		return
	}
	t.last = percent
	t.fn(percent, phase)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitize maps s onto a conservative file-name alphabet.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	return strings.Trim(unsafeChars.ReplaceAllString(s, "_"), "_.")
}

// SuggestedFilename is the download name for an export of projectName taken at t.
func SuggestedFilename(projectName string, t time.Time) string {
	name := sanitize(projectName)
	if name == "" {
		name = "project"
	}
	return name + "_backup_" + t.UTC().Format("20060102") + ".zip"
}
