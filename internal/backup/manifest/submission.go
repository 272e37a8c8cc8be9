package manifest

import (
	"encoding/json"
	"strings"
)

// SubmissionKind tags the two shapes a task submission payload can take.
type SubmissionKind int

const (
	// LinkOnly is free text, usually a URL.
	LinkOnly SubmissionKind = iota
	// FileList is a JSON encoded list of uploaded files.
	FileList
)

// SubmissionFile is one uploaded file in a FileList payload.
type SubmissionFile struct {
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// SubmissionPayload is the decoded form of Task.SubmissionLink.
type SubmissionPayload struct {
	Kind  SubmissionKind
	Link  string
	Files []SubmissionFile
}

// ParseSubmission never fails: anything that is not a JSON list of file
// descriptors is kept verbatim as a link. Malformed list elements are dropped.
func ParseSubmission(raw string) SubmissionPayload {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[") {
		return SubmissionPayload{Kind: LinkOnly, Link: raw}
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
		return SubmissionPayload{Kind: LinkOnly, Link: raw}
	}
	files := make([]SubmissionFile, 0, len(items))
	for _, item := range items {
		var f SubmissionFile
		if err := json.Unmarshal(item, &f); err != nil || f.FilePath == "" {
			continue
		}
		files = append(files, f)
	}
	return SubmissionPayload{Kind: FileList, Files: files}
}

// Encode turns the payload back into the stored string form.
func (p SubmissionPayload) Encode() string {
	if p.Kind != FileList {
		return p.Link
	}
	files := p.Files
	if files == nil {
		files = []SubmissionFile{}
	}
	b, err := json.Marshal(files)
	if err != nil {
		return "[]"
	}
	return string(b)
}
