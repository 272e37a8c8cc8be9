package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/teamboard/engine/internal/api/types"
	"github.com/teamboard/engine/internal/backup"
	"github.com/teamboard/engine/internal/services"
	appErr "github.com/teamboard/engine/pkg/errors"
	"github.com/teamboard/engine/pkg/logger"
)

// archiveField is the multipart form field carrying an uploaded archive.
const archiveField = "archive"

type BackupsHandler struct {
	backups         services.BackupService
	maxArchiveBytes int64
}

func NewBackupsHandler(backups services.BackupService, maxArchiveBytes int64) *BackupsHandler {
	return &BackupsHandler{backups: backups, maxArchiveBytes: maxArchiveBytes}
}

// Export streams the project archive back as a zip download.
func (h *BackupsHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	opts, err := exportOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.backups.Export(r.Context(), id, currentUser(r), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "application/zip")
	hdr.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	hdr.Set("Content-Length", strconv.FormatInt(res.SizeBytes, 10))
	hdr.Set("X-Archive-Checksum", res.Checksum)
	hdr.Set("X-Files-Failed", strconv.Itoa(res.FilesFailed))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Archive); err != nil {
		logger.L().Warn("write export response failed", zap.Error(err), zap.String("project_id", id.String()))
	}
}

// Import accepts a raw zip body or a multipart upload and restores it as a new project.
func (h *BackupsHandler) Import(w http.ResponseWriter, r *http.Request) {
	blob, err := h.readArchive(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, types.APIResponse{Success: false, Error: &types.APIError{
				Code:    string(appErr.CodeInvalid),
				Message: fmt.Sprintf("archive exceeds %d bytes", h.maxArchiveBytes),
			}})
			return
		}
		writeError(w, err)
		return
	}

	res, err := h.backups.Import(r.Context(), currentUser(r), blob)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (h *BackupsHandler) readArchive(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if h.maxArchiveBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxArchiveBytes)
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		blob, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		if len(blob) == 0 {
			return nil, appErr.New(appErr.CodeInvalid, "empty archive")
		}
		return blob, nil
	}

	f, _, err := r.FormFile(archiveField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "missing "+archiveField+" file field")
	}
	defer f.Close()
	blob, err := io.ReadAll(f)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "read uploaded archive failed")
	}
	return blob, nil
}

func (h *BackupsHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	opts, err := exportOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.backups.ScheduleBackup(r.Context(), id, currentUser(r), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusAccepted, b)
}

func (h *BackupsHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.backups.ListBackups(r.Context(), id, currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items, Meta: &types.Meta{Total: int64(len(items))}})
}

func (h *BackupsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.backups.GetBackup(r.Context(), id, currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, b)
}

func (h *BackupsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.backups.ScheduleRestore(r.Context(), id, currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusAccepted, b)
}

// exportOptions reads the option set from the body; no body means every section.
func exportOptions(r *http.Request) (backup.Options, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<10))
	if err != nil {
		return backup.Options{}, appErr.Wrap(err, appErr.CodeInvalid, "read body failed")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return backup.AllOptions(), nil
	}
	var req types.ExportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return backup.Options{}, appErr.Wrap(err, appErr.CodeInvalid, "invalid json")
	}
	return req.Options(), nil
}
