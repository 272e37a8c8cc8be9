package backup

import (
	"context"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teamboard/engine/internal/backup/archive"
	"github.com/teamboard/engine/internal/backup/manifest"
	"github.com/teamboard/engine/internal/storage"
	"github.com/teamboard/engine/pkg/logger"
	"github.com/teamboard/engine/pkg/utils"
)

type fileKey struct {
	bucket string
	path   string
}

type collected struct {
	entry manifest.FileEntry
	data  []byte
	ok    bool
}

// Collector fetches every referenced attachment once. Fetches start as soon as
// a file is added and run with bounded concurrency; a failed fetch only drops
// that file.
type Collector struct {
	ctx     context.Context
	objects storage.ObjectStore
	g       errgroup.Group

	mu       sync.Mutex
	seen     map[fileKey]*collected
	order    []*collected
	zipNames map[string]struct{}
}

// NewCollector returns a collector reading from objects with at most limit fetches in flight.
func NewCollector(ctx context.Context, objects storage.ObjectStore, limit int) *Collector {
	c := &Collector{
		ctx:      ctx,
		objects:  objects,
		seen:     make(map[fileKey]*collected),
		zipNames: make(map[string]struct{}),
	}
	if limit > 0 {
		c.g.SetLimit(limit)
	}
	return c
}

// Add registers a file reference. Duplicate (bucket, path) pairs are ignored.
func (c *Collector) Add(bucket, objectPath, fileName string, size int64) {
	if objectPath == "" {
		return
	}
	key := fileKey{bucket, objectPath}

	c.mu.Lock()
	if _, dup := c.seen[key]; dup {
		c.mu.Unlock()
		return
	}
	if fileName == "" {
		fileName = path.Base(objectPath)
	}
	item := &collected{entry: manifest.FileEntry{
		OriginalPath: objectPath,
		FileName:     fileName,
		FileSize:     size,
		Bucket:       bucket,
		ZipPath:      c.zipName(bucket, objectPath),
	}}
	c.seen[key] = item
	c.order = append(c.order, item)
	c.mu.Unlock()

	c.g.Go(func() error {
		data, err := c.objects.Get(c.ctx, bucket, objectPath)
		if err != nil {
			logger.L().Warn("file fetch failed, omitting from archive",
				zap.String("bucket", bucket),
				zap.String("path", objectPath),
				zap.Error(err))
			return nil
		}
		c.mu.Lock()
		item.data = data
		item.entry.FileSize = int64(len(data))
		item.ok = true
		c.mu.Unlock()
		return nil
	})
}

// zipName derives files/<bucket>_<sanitized path>, suffixing a short hash on collision.
// Caller holds c.mu.
func (c *Collector) zipName(bucket, objectPath string) string {
	name := manifest.FilesPrefix + sanitize(bucket) + "_" + sanitize(objectPath)
	if _, taken := c.zipNames[name]; taken {
		ext := path.Ext(name)
		name = strings.TrimSuffix(name, ext) + "_" + utils.ShortHash(bucket+"/"+objectPath, 8) + ext
	}
	c.zipNames[name] = struct{}{}
	return name
}

// Wait blocks until every fetch finished and returns the file index and payload
// of the files that were fetched, in the order they were added, plus the number
// of files that failed.
func (c *Collector) Wait() ([]manifest.FileEntry, []archive.File, int) {
	_ = c.g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make([]manifest.FileEntry, 0, len(c.order))
	files := make([]archive.File, 0, len(c.order))
	failed := 0
	for _, item := range c.order {
		if !item.ok {
			failed++
			continue
		}
		entries = append(entries, item.entry)
		files = append(files, archive.File{Name: item.entry.ZipPath, Data: item.data})
	}
	return entries, files, failed
}
