package types

import "github.com/teamboard/engine/internal/backup"

type RegisterRequest struct {
	StudentID string `json:"student_id" validate:"required,max=64"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Name      string `json:"name" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProjectCreateRequest struct {
	Name        string                 `json:"name" validate:"required,max=200"`
	Description string                 `json:"description"`
	Settings    map[string]interface{} `json:"settings"`
}

type ProjectUpdateRequest struct {
	Name        *string                `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string                `json:"description"`
	Settings    map[string]interface{} `json:"settings"`
}

// ExportRequest selects optional sections. An empty body exports everything.
type ExportRequest struct {
	IncludeMessages     bool `json:"include_messages"`
	IncludeNotes        bool `json:"include_notes"`
	IncludeComments     bool `json:"include_comments"`
	IncludeResources    bool `json:"include_resources"`
	IncludeActivityLogs bool `json:"include_activity_logs"`
	IncludeScores       bool `json:"include_scores"`
	IncludeReport       bool `json:"include_report"`
}

func (r ExportRequest) Options() backup.Options {
	return backup.Options{
		Messages:      r.IncludeMessages,
		Notes:         r.IncludeNotes,
		Comments:      r.IncludeComments,
		Resources:     r.IncludeResources,
		ActivityLogs:  r.IncludeActivityLogs,
		Scores:        r.IncludeScores,
		IncludeReport: r.IncludeReport,
	}
}
