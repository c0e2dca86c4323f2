package replica

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// resync rebuilds the peer's queue from scratch by walking the whole data
// directory and re-enqueuing every file found. It's triggered when a queued
// file can no longer be opened on our side (pushFile's errFileGone): the
// queue is stale, so rather than try to reconcile incrementally we just push
// everything and let the peer's own dedup-by-hash make the redundant pushes
// cheap.
func (r *Replicator) resync() error {
	r.drainQueue()

	var files []File

	err := filepath.WalkDir(r.dataRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".gz") {
			// A .gz file is only its own blob when no plain companion exists
			// (a gzip-only upload, the common case: linkLoop never writes
			// both). When a plain companion does exist, it's this blob's
			// canonical path and was (or will be) visited on its own,
			// picking up the .gz twin via pickFileEncoding - visiting it
			// again here would queue the same blob twice.
			plain := strings.TrimSuffix(path, ".gz")
			if _, err := os.Stat(plain); err == nil {
				return nil
			}
			rel, err := filepath.Rel(r.dataRoot, plain)
			if err != nil {
				return nil
			}
			files = append(files, File{
				Location: "/" + filepath.ToSlash(rel),
				Path:     path,
				Encoding: "gzip",
				QueuedAt: now(),
			})
			return nil
		}

		rel, err := filepath.Rel(r.dataRoot, path)
		if err != nil {
			return nil
		}
		location := "/" + filepath.ToSlash(rel)
		encoding, sourcePath := pickFileEncoding(path)
		files = append(files, File{
			Location: location,
			Path:     sourcePath,
			Encoding: encoding,
			QueuedAt: now(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.queue = append(r.queue, files...)
	r.mu.Unlock()
	r.notify()
	return nil
}

// pickFileEncoding prefers a path's compressed twin, if one exists on disk,
// so a resync replicates the same bytes a live store of a gzip upload would
// have queued.
func pickFileEncoding(path string) (encoding, sourcePath string) {
	gz := path + ".gz"
	if fi, err := os.Stat(gz); err == nil && fi.Mode().IsRegular() {
		return "gzip", gz
	}
	return "", path
}

// now is a thin wrapper so resync's timestamps are easy to stub in tests;
// production code always uses the real clock.
var now = time.Now
