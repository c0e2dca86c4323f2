package store

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/willbryant/verm/pkg/gzipstream"
	"github.com/willbryant/verm/pkg/respond"
)

// serveGet resolves a GET/HEAD path to a stored file or its compressed
// twin, and streams it with the standard cache headers.
func (s *Store) serveGet(w http.ResponseWriter, r *http.Request) {
	urlPath := r.URL.Path

	if urlPath == "/" {
		respond.WriteUploadForm(w)
		return
	}
	if !validServePath(urlPath) {
		s.recordGet(false)
		respond.WriteNotFound(w)
		return
	}

	diskPath := filepath.Join(s.Root, urlPath)
	fi, err := os.Stat(diskPath)
	servingGz := false
	if err != nil && !strings.HasSuffix(urlPath, ".gz") {
		gzPath := diskPath + ".gz"
		if gzFi, gzErr := os.Stat(gzPath); gzErr == nil {
			diskPath, fi, servingGz, err = gzPath, gzFi, true, nil
		}
	}
	if err != nil {
		s.recordGet(false)
		respond.WriteNotFound(w)
		return
	}
	if fi.IsDir() {
		s.recordGet(true)
		respond.WriteUploadForm(w)
		return
	}
	s.recordGet(true)

	etag := respond.ETagForPath(urlPath)
	if respond.NotModified(r, etag) {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	mimeType := s.MimeTypes.MimeTypeFor(strings.TrimPrefix(filepath.Ext(strings.TrimSuffix(urlPath, ".gz")), "."))

	f, err := os.Open(diskPath)
	if err != nil {
		respond.WriteNotFound(w)
		return
	}

	// Decompress-on-the-fly hands f's ownership to gzipstream.File; every
	// other path closes f itself.
	if servingGz && !respond.AcceptsGzip(r.Header.Get("Accept-Encoding")) {
		size, err := gzipstream.DecompressedSize(f, fi.Size())
		if err != nil {
			f.Close()
			s.logf("store: reading gzip trailer for %s: %v", diskPath, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		respond.SetCommonHeaders(w.Header(), int64(size), fi.ModTime(), mimeType, etag)
		if r.Method == http.MethodHead {
			f.Close()
			return
		}
		df, err := gzipstream.NewFile(f)
		if err != nil {
			s.logf("store: decompressing %s: %v", diskPath, err)
			return
		}
		defer df.Close()
		io.Copy(w, df)
		return
	}

	defer f.Close()

	respond.SetCommonHeaders(w.Header(), fi.Size(), fi.ModTime(), mimeType, etag)
	if servingGz {
		w.Header().Set("Content-Encoding", "gzip")
	}
	if r.Method == http.MethodHead {
		return
	}
	io.Copy(w, f)
}

// validServePath rejects anything that isn't a clean, rooted path without
// directory traversal.
func validServePath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	return !strings.Contains(p, "/..")
}
