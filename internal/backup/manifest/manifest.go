// Package manifest defines the portable document describing a project graph.
// Every cross reference in it is a natural key: student ids for members,
// names and list positions for stages and tasks, positions for comments.
package manifest

import (
	"encoding/json"
	"time"
)

// Version is written into every manifest produced by this build.
const Version = "4.0"

// Archive layout.
const (
	EntryName       = "manifest.json"
	FilesPrefix     = "files/"
	ReportEntryName = "report.txt"
)

// Manifest is the root document. Optional sections are pointers so that a
// section that was not requested is absent, while a requested but empty
// section encodes as [].
type Manifest struct {
	Version     string    `json:"version" validate:"required"`
	ExportedAt  time.Time `json:"exported_at"`
	ProjectName string    `json:"project_name"`
	Group       *Group    `json:"group" validate:"required"`
	Members     []Member  `json:"members"`
	Stages      []Stage   `json:"stages"`
	Tasks       []Task    `json:"tasks"`

	Messages          *[]Message          `json:"messages,omitempty"`
	TaskNotes         *[]Note             `json:"task_notes,omitempty"`
	TaskComments      *[]Comment          `json:"task_comments,omitempty"`
	Resources         *[]Resource         `json:"resources,omitempty"`
	ResourceFolders   *[]ResourceFolder   `json:"resource_folders,omitempty"`
	ActivityLogs      *[]ActivityLog      `json:"activity_logs,omitempty"`
	StageWeights      *[]StageWeight      `json:"stage_weights,omitempty"`
	MemberStageScores *[]MemberStageScore `json:"member_stage_scores,omitempty"`
	MemberFinalScores *[]MemberFinalScore `json:"member_final_scores,omitempty"`
	ScoreAppeals      *[]ScoreAppeal      `json:"score_appeals,omitempty"`

	Files []FileEntry `json:"files"`
}

// Group holds the project attributes. Visibility and share token are never exported.
type Group struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	CreatedBy   string          `json:"created_by"`
	Settings    json.RawMessage `json:"settings,omitempty"`
	Archived    bool            `json:"archived"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Member struct {
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

// StageRef points at a stage by position in Manifest.Stages, falling back to name.
type StageRef struct {
	StageName  string `json:"stage_name"`
	StageIndex *int   `json:"stage_index,omitempty"`
}

// TaskRef points at a task by position in Manifest.Tasks, falling back to title.
type TaskRef struct {
	TaskTitle string `json:"task_title"`
	TaskIndex *int   `json:"task_index,omitempty"`
}

type Stage struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	OrderIndex  int        `json:"order_index"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Weight      float64    `json:"weight"`
	IsHidden    bool       `json:"is_hidden"`
}

type Task struct {
	StageRef
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Status           string       `json:"status"`
	Deadline         *time.Time   `json:"deadline"`
	ExtendedDeadline *time.Time   `json:"extended_deadline"`
	SubmissionLink   string       `json:"submission_link"`
	MaxUploadSizeMB  int          `json:"max_upload_size_mb"`
	IsHidden         bool         `json:"is_hidden"`
	CreatedBy        string       `json:"created_by"`
	Assignments      []Assignment `json:"assignments"`
	Scores           []Score      `json:"scores"`
	Submissions      []Submission `json:"submissions"`
}

type Assignment struct {
	StudentID string `json:"student_id"`
}

type Score struct {
	StudentID    string  `json:"student_id"`
	BaseScore    float64 `json:"base_score"`
	BonusScore   float64 `json:"bonus_score"`
	PenaltyScore float64 `json:"penalty_score"`
	Adjustment   float64 `json:"adjustment"`
	FinalScore   float64 `json:"final_score"`
}

// Submission is one submission history row. FilePath is a key into Manifest.Files.
type Submission struct {
	StudentID   string    `json:"student_id"`
	Content     string    `json:"content"`
	FilePath    string    `json:"file_path"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Message struct {
	StudentID string    `json:"student_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Note struct {
	TaskRef
	StudentID   string       `json:"student_id"`
	VersionName string       `json:"version_name"`
	Content     string       `json:"content"`
	IsLocked    bool         `json:"is_locked"`
	CreatedAt   time.Time    `json:"created_at"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// Comment threads by ParentIndex, the 0-based position of the parent inside
// Manifest.TaskComments.
type Comment struct {
	TaskRef
	StudentID   string    `json:"student_id"`
	Content     string    `json:"content"`
	ParentIndex *int      `json:"parent_index"`
	CreatedAt   time.Time `json:"created_at"`
}

type ResourceFolder struct {
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}

type Resource struct {
	FolderName  string    `json:"folder_name"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	FilePath    string    `json:"file_path"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type ActivityLog struct {
	StudentID string          `json:"student_id"`
	Action    string          `json:"action"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type StageWeight struct {
	StageRef
	TaskRef
	Weight float64 `json:"weight"`
}

type MemberStageScore struct {
	StageRef
	StudentID  string  `json:"student_id"`
	Score      float64 `json:"score"`
	Adjustment float64 `json:"adjustment"`
	FinalScore float64 `json:"final_score"`
}

type MemberFinalScore struct {
	StudentID  string  `json:"student_id"`
	Score      float64 `json:"score"`
	Adjustment float64 `json:"adjustment"`
	FinalScore float64 `json:"final_score"`
	Comment    string  `json:"comment"`
}

// ScoreAppeal targets either a task score row (TaskRef + ScoreStudentID) or a stage (StageRef).
type ScoreAppeal struct {
	TaskRef
	StageRef
	ScoreStudentID string     `json:"score_student_id,omitempty"`
	StudentID      string     `json:"student_id"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status"`
	Response       string     `json:"response"`
	ReviewedBy     string     `json:"reviewed_by"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
}

// FileEntry maps a stored file to its entry inside the archive.
type FileEntry struct {
	OriginalPath string `json:"original_path"`
	FileName     string `json:"file_name"`
	FileSize     int64  `json:"file_size"`
	ZipPath      string `json:"zip_path"`
	Bucket       string `json:"bucket"`
}

// Index returns a pointer to i, for position references.
func Index(i int) *int {
	return &i
}
