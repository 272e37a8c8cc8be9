package backup

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamboard/engine/internal/storage"
)

func TestCollector_DedupesAndNamesEntries(t *testing.T) {
	mem := newMemStore()
	mem.objects[storage.BucketSubmissions+"/a/b.txt"] = []byte("one")
	mem.objects[storage.BucketSubmissions+"/a_b.txt"] = []byte("two")
	mem.objects[storage.BucketNotes+"/a/b.txt"] = []byte("three")

	c := NewCollector(context.Background(), mem, 2)
	c.Add(storage.BucketSubmissions, "a/b.txt", "b.txt", 3)
	c.Add(storage.BucketSubmissions, "a/b.txt", "b.txt", 3)
	c.Add(storage.BucketSubmissions, "a_b.txt", "", 0)
	c.Add(storage.BucketNotes, "a/b.txt", "b.txt", 5)
	c.Add(storage.BucketNotes, "", "ignored", 0)

	entries, files, failed := c.Wait()
	require.Len(t, entries, 3)
	require.Len(t, files, 3)
	assert.Zero(t, failed)

	assert.Equal(t, "files/task-submissions_a_b.txt", entries[0].ZipPath)
	assert.NotEqual(t, entries[0].ZipPath, entries[1].ZipPath)
	assert.True(t, strings.HasPrefix(entries[1].ZipPath, "files/task-submissions_a_b_"))
	assert.True(t, strings.HasSuffix(entries[1].ZipPath, ".txt"))
	assert.Equal(t, "a_b.txt", entries[1].FileName)
	assert.Equal(t, "files/note-attachments_a_b.txt", entries[2].ZipPath)
	assert.Equal(t, int64(5), entries[2].FileSize)
	assert.Equal(t, []byte("three"), files[2].Data)
	assert.Equal(t, 1, mem.gets[storage.BucketSubmissions+"/a/b.txt"])
}

func TestCollector_FailedFetchOmitted(t *testing.T) {
	mem := newMemStore()
	mem.objects[storage.BucketResources+"/ok.pdf"] = []byte("ok")

	c := NewCollector(context.Background(), mem, 1)
	c.Add(storage.BucketResources, "ok.pdf", "ok.pdf", 2)
	c.Add(storage.BucketResources, "missing.pdf", "missing.pdf", 2)

	entries, files, failed := c.Wait()
	assert.Equal(t, 1, failed)
	require.Len(t, entries, 1)
	assert.Equal(t, "ok.pdf", entries[0].FileName)
	assert.Len(t, files, 1)
}
