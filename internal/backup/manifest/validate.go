package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs the minimal shape check: a version and a project root with a name.
func Validate(m *Manifest) error {
	if m == nil {
		return fmt.Errorf("manifest is empty")
	}
	return validate.Struct(m)
}

// Decode parses and shape-checks a manifest document.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Tally counts the rows carried by each section of a manifest.
type Tally struct {
	Members     int `json:"members"`
	Stages      int `json:"stages"`
	Tasks       int `json:"tasks"`
	Assignments int `json:"assignments"`
	Scores      int `json:"scores"`
	Submissions int `json:"submissions"`
	Files       int `json:"files"`
	Messages    int `json:"messages"`
	Notes       int `json:"notes"`
	Attachments int `json:"attachments"`
	Comments    int `json:"comments"`
	Folders     int `json:"folders"`
	Resources   int `json:"resources"`
	Activity    int `json:"activity_logs"`
	ScoreRows   int `json:"score_rows"`
}

// Tally summarises the manifest for user-visible reporting.
func (m *Manifest) Tally() Tally {
	t := Tally{
		Members: len(m.Members),
		Stages:  len(m.Stages),
		Tasks:   len(m.Tasks),
		Files:   len(m.Files),
	}
	for _, task := range m.Tasks {
		t.Assignments += len(task.Assignments)
		t.Scores += len(task.Scores)
		t.Submissions += len(task.Submissions)
	}
	if m.Messages != nil {
		t.Messages = len(*m.Messages)
	}
	if m.TaskNotes != nil {
		t.Notes = len(*m.TaskNotes)
		for _, n := range *m.TaskNotes {
			t.Attachments += len(n.Attachments)
		}
	}
	if m.TaskComments != nil {
		t.Comments = len(*m.TaskComments)
	}
	if m.ResourceFolders != nil {
		t.Folders = len(*m.ResourceFolders)
	}
	if m.Resources != nil {
		t.Resources = len(*m.Resources)
	}
	if m.ActivityLogs != nil {
		t.Activity = len(*m.ActivityLogs)
	}
	for _, s := range []int{lenOf(m.StageWeights), lenOf(m.MemberStageScores), lenOf(m.MemberFinalScores), lenOf(m.ScoreAppeals)} {
		t.ScoreRows += s
	}
	return t
}

func lenOf[T any](s *[]T) int {
	if s == nil {
		return 0
	}
	return len(*s)
}
