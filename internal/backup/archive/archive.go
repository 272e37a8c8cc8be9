// Package archive packs a manifest and its files into a single zip container.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/teamboard/engine/internal/backup/manifest"
	appErr "github.com/teamboard/engine/pkg/errors"
)

var (
	// ErrArchiveUnreadable means the blob is not a readable zip container.
	ErrArchiveUnreadable = errors.New("archive unreadable")
	// ErrManifestMissing means the container has no manifest entry.
	ErrManifestMissing = errors.New("manifest entry missing")
	// ErrManifestInvalid means the manifest did not decode or failed the shape check.
	ErrManifestInvalid = errors.New("manifest invalid")
	// ErrEntryNotFound is returned by Archive.Open for unknown entries.
	ErrEntryNotFound = errors.New("archive entry not found")
	// ErrEntryTooLarge means an entry inflates past the configured limit.
	ErrEntryTooLarge = errors.New("archive entry too large")
)

// DefaultMaxEntryBytes caps the inflated size of a single entry.
const DefaultMaxEntryBytes int64 = 256 << 20

// Option tunes Unpack.
type Option func(*Archive)

// WithMaxEntryBytes caps the inflated size of every entry. Non-positive
// values keep the default.
func WithMaxEntryBytes(n int64) Option {
	return func(a *Archive) {
		if n > 0 {
			a.maxEntry = n
		}
	}
}

// File is one payload entry. Name must live under manifest.FilesPrefix.
type File struct {
	Name string
	Data []byte
}

// Pack writes the manifest, the files and an optional report into a zip blob.
func Pack(m *manifest.Manifest, files []File, report []byte) ([]byte, error) {
	if err := manifest.Validate(m); err != nil {
		return nil, appErr.Wrap(fmt.Errorf("%w: %v", ErrManifestInvalid, err), appErr.CodeInvalid, "manifest failed shape check")
	}
	doc, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "failed to encode manifest")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := m.ExportedAt
	if modified.IsZero() {
		modified = time.Now().UTC()
	}
	if err := writeEntry(zw, manifest.EntryName, doc, modified); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if !strings.HasPrefix(f.Name, manifest.FilesPrefix) || len(f.Name) == len(manifest.FilesPrefix) {
			return nil, appErr.New(appErr.CodeInvalid, "file entry outside files prefix").WithMeta("name", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, appErr.New(appErr.CodeConflict, "duplicate file entry").WithMeta("name", f.Name)
		}
		seen[f.Name] = struct{}{}
		if err := writeEntry(zw, f.Name, f.Data, modified); err != nil {
			return nil, err
		}
	}
	if len(report) > 0 {
		if err := writeEntry(zw, manifest.ReportEntryName, report, modified); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "failed to finalize archive")
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "failed to create archive entry").WithMeta("name", name)
	}
	if _, err := w.Write(data); err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "failed to write archive entry").WithMeta("name", name)
	}
	return nil
}

// Archive is an unpacked container. File bytes are read lazily.
type Archive struct {
	Manifest *manifest.Manifest
	entries  map[string]*zip.File
	maxEntry int64
}

// Unpack reads blob and decodes its manifest. All failures are fatal and
// carry appErr.CodeArchiveInvalid plus one of the package sentinels.
func Unpack(blob []byte, opts ...Option) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, appErr.Wrap(fmt.Errorf("%w: %v", ErrArchiveUnreadable, err), appErr.CodeArchiveInvalid, "archive is not a readable zip")
	}
	a := &Archive{entries: make(map[string]*zip.File, len(zr.File)), maxEntry: DefaultMaxEntryBytes}
	for _, opt := range opts {
		opt(a)
	}
	for _, f := range zr.File {
		a.entries[f.Name] = f
	}

	mf, ok := a.entries[manifest.EntryName]
	if !ok {
		return nil, appErr.Wrap(ErrManifestMissing, appErr.CodeArchiveInvalid, "archive has no "+manifest.EntryName)
	}
	doc, err := a.read(mf)
	if err != nil {
		return nil, appErr.Wrap(fmt.Errorf("%w: %w", ErrArchiveUnreadable, err), appErr.CodeArchiveInvalid, "manifest entry is corrupt")
	}
	m, err := manifest.Decode(doc)
	if err != nil {
		return nil, appErr.Wrap(fmt.Errorf("%w: %v", ErrManifestInvalid, err), appErr.CodeArchiveInvalid, "manifest failed shape check")
	}
	a.Manifest = m
	return a, nil
}

// Open returns the bytes of a named entry.
func (a *Archive) Open(name string) ([]byte, error) {
	f, ok := a.entries[name]
	if !ok || f.FileInfo().IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	return a.read(f)
}

// Has reports whether the archive carries the named entry.
func (a *Archive) Has(name string) bool {
	_, ok := a.entries[name]
	return ok
}

// Report returns the embedded report, if any.
func (a *Archive) Report() ([]byte, bool) {
	if !a.Has(manifest.ReportEntryName) {
		return nil, false
	}
	b, err := a.Open(manifest.ReportEntryName)
	if err != nil {
		return nil, false
	}
	return b, true
}

// FileNames lists the payload entries in name order.
func (a *Archive) FileNames() []string {
	out := make([]string, 0, len(a.entries))
	for name := range a.entries {
		if strings.HasPrefix(name, manifest.FilesPrefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// read inflates one entry, refusing to go past maxEntry whatever the header claims.
func (a *Archive) read(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > uint64(a.maxEntry) {
		return nil, fmt.Errorf("%w: %s declares %d bytes", ErrEntryTooLarge, f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, a.maxEntry+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > a.maxEntry {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, f.Name)
	}
	return data, nil
}
