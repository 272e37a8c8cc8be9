package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamboard/engine/internal/backup/manifest"
	appErr "github.com/teamboard/engine/pkg/errors"
)

func sampleManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Version:     manifest.Version,
		ExportedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ProjectName: "Capstone",
		Group:       &manifest.Group{Name: "Capstone"},
		Members:     []manifest.Member{{StudentID: "S001", Role: "leader"}},
		Stages:      []manifest.Stage{{Name: "Sprint 1"}},
		Tasks:       []manifest.Task{},
		Files: []manifest.FileEntry{{
			OriginalPath: "u1/brief.pdf",
			FileName:     "brief.pdf",
			FileSize:     4,
			ZipPath:      "files/task-submissions_u1_brief.pdf",
			Bucket:       "task-submissions",
		}},
	}
}

func rawZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestPackUnpack(t *testing.T) {
	blob, err := Pack(sampleManifest(), []File{{Name: "files/task-submissions_u1_brief.pdf", Data: []byte("%PDF")}}, []byte("report"))
	require.NoError(t, err)

	a, err := Unpack(blob)
	require.NoError(t, err)
	assert.Equal(t, "Capstone", a.Manifest.Group.Name)
	assert.Equal(t, manifest.Version, a.Manifest.Version)
	assert.Equal(t, []string{"files/task-submissions_u1_brief.pdf"}, a.FileNames())

	data, err := a.Open("files/task-submissions_u1_brief.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)

	report, ok := a.Report()
	require.True(t, ok)
	assert.Equal(t, "report", string(report))

	_, err = a.Open("files/missing")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestPack_RejectsBadEntries(t *testing.T) {
	_, err := Pack(sampleManifest(), []File{{Name: "../escape", Data: []byte("x")}}, nil)
	require.Error(t, err)

	_, err = Pack(sampleManifest(), []File{{Name: "files/a", Data: nil}, {Name: "files/a", Data: nil}}, nil)
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))

	m := sampleManifest()
	m.Version = ""
	_, err = Pack(m, nil, nil)
	assert.ErrorIs(t, err, ErrManifestInvalid)
}

func TestUnpack_FatalErrorsAreDistinct(t *testing.T) {
	_, err := Unpack([]byte("not a zip"))
	assert.ErrorIs(t, err, ErrArchiveUnreadable)
	assert.True(t, appErr.IsCode(err, appErr.CodeArchiveInvalid))

	_, err = Unpack(rawZip(t, map[string][]byte{"files/x": []byte("x")}))
	assert.ErrorIs(t, err, ErrManifestMissing)
	assert.NotErrorIs(t, err, ErrManifestInvalid)

	noVersion, _ := json.Marshal(map[string]any{"group": map[string]any{"name": "P"}})
	_, err = Unpack(rawZip(t, map[string][]byte{manifest.EntryName: noVersion}))
	assert.ErrorIs(t, err, ErrManifestInvalid)
	assert.True(t, appErr.IsCode(err, appErr.CodeArchiveInvalid))

	noGroup, _ := json.Marshal(map[string]any{"version": "4.0"})
	_, err = Unpack(rawZip(t, map[string][]byte{manifest.EntryName: noGroup}))
	assert.ErrorIs(t, err, ErrManifestInvalid)

	_, err = Unpack(rawZip(t, map[string][]byte{manifest.EntryName: []byte("{")}))
	assert.ErrorIs(t, err, ErrManifestInvalid)
}

func TestUnpack_OversizedEntries(t *testing.T) {
	big := sampleManifest()
	big.Group.Description = strings.Repeat("a", 4096)
	doc, err := json.Marshal(big)
	require.NoError(t, err)

	_, err = Unpack(rawZip(t, map[string][]byte{manifest.EntryName: doc}), WithMaxEntryBytes(1024))
	assert.ErrorIs(t, err, ErrArchiveUnreadable)
	assert.ErrorIs(t, err, ErrEntryTooLarge)
	assert.True(t, appErr.IsCode(err, appErr.CodeArchiveInvalid))

	small, err := json.Marshal(sampleManifest())
	require.NoError(t, err)
	blob := rawZip(t, map[string][]byte{
		manifest.EntryName: small,
		"files/bomb.bin":    bytes.Repeat([]byte{0}, 1<<20),
	})
	require.Less(t, len(blob), 1<<16, "zeros deflate to a small upload")

	a, err := Unpack(blob, WithMaxEntryBytes(8<<10))
	require.NoError(t, err)
	_, err = a.Open("files/bomb.bin")
	assert.ErrorIs(t, err, ErrEntryTooLarge)

	a, err = Unpack(blob)
	require.NoError(t, err)
	data, err := a.Open("files/bomb.bin")
	require.NoError(t, err)
	assert.Len(t, data, 1<<20)
}

func TestUnpack_IgnoresUnknownEntries(t *testing.T) {
	doc, _ := json.Marshal(sampleManifest())
	a, err := Unpack(rawZip(t, map[string][]byte{manifest.EntryName: doc, "extra.bin": []byte("x")}))
	require.NoError(t, err)
	assert.Empty(t, a.FileNames())
	_, ok := a.Report()
	assert.False(t, ok)
}
