package store

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"path"
	"strconv"
	"strings"
)

// hashEncoding is base64url without padding: 32 bytes in, 43 characters out
// (the trailing zero bits of the last sextet are simply dropped, matching
// the wire format's "43 chars, no padding" grammar).
var hashEncoding = base64.RawURLEncoding

// encodeHash renders a SHA-256 digest as Verm's 43-character URL-safe hash
// string.
func encodeHash(digest [sha256.Size]byte) string {
	return hashEncoding.EncodeToString(digest[:])
}

// ErrBadPath is returned by path validation when a client-supplied path is
// unsafe or malformed; callers translate it into a 403 wrong-path response.
var ErrBadPath = errors.New("store: invalid path")

const maxDirectoryLength = 256

// normalizeDirectory applies the POST-path normalization rules: collapse
// "//" to "/", strip a trailing slash (unless the whole thing is "/", which
// becomes "/default"), and reject anything too long or containing "..".
func normalizeDirectory(p string) (string, error) {
	if p == "" || p[0] != '/' {
		return "", ErrBadPath
	}
	if strings.Contains(p, "..") {
		return "", ErrBadPath
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if p == "/" {
		return "/default", nil
	}
	p = strings.TrimSuffix(p, "/")
	if len(p) > maxDirectoryLength {
		return "", ErrBadPath
	}
	return p, nil
}

// restName builds the filename component of a canonical path: the tail of
// the hash (everything after the 2-character fan-out prefix), with a "_N"
// collision suffix for attempt >= 2 and an optional extension. The ".gz"
// compressed-twin suffix is never part of the canonical URL grammar; it only
// ever applies to the on-disk filename, via diskName below.
func restName(hash string, attempt int, ext string) string {
	rest := hash[2:]
	if attempt >= 2 {
		rest += "_" + strconv.Itoa(attempt)
	}
	if ext != "" {
		rest += "." + ext
	}
	return rest
}

// canonicalLocation builds the URL path for a stored object at the given
// collision attempt: /<directory>/<hash[:2]>/<rest>[.ext]. This is always
// the value returned to clients as Location/redirect target and used as the
// ETag, whether or not the bytes are stored compressed on disk.
func canonicalLocation(directory, hash string, attempt int, ext string) string {
	return path.Join(directory, hash[:2], restName(hash, attempt, ext))
}

// diskName appends the ".gz" compressed-twin suffix to a canonical location
// when gz is true, giving the actual on-disk filename for a gzip-encoded
// upload. It is never shown to clients.
func diskName(location string, gz bool) string {
	if gz {
		return location + ".gz"
	}
	return location
}

// putPath describes the canonical PUT-target grammar:
// <directory>/<2 hash chars>/<41+ hash chars>[.ext], where the last
// component may itself carry a "_N" collision suffix and at most one "."
// (introducing the extension).
type putPath struct {
	directory string
	prefix    string // 2 chars
	rest      string // remainder including any _N suffix, before the extension
	ext       string // without the leading dot; empty if none
}

// parsePutPath splits a PUT request path into its canonical components. It
// does not validate the hash/prefix against any computed digest; that's the
// canonicality check performed once the upload completes.
func parsePutPath(p string) (putPath, error) {
	if p == "" || p[0] != '/' {
		return putPath{}, ErrBadPath
	}
	if strings.Contains(p, "..") {
		return putPath{}, ErrBadPath
	}
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if len(segments) < 3 {
		return putPath{}, ErrBadPath
	}
	last := segments[len(segments)-1]
	prefix := segments[len(segments)-2]
	directory := "/" + strings.Join(segments[:len(segments)-2], "/")

	if len(prefix) != 2 || last == "" {
		return putPath{}, ErrBadPath
	}

	rest := last
	ext := ""
	if idx := strings.IndexByte(last, '.'); idx >= 0 {
		rest = last[:idx]
		ext = last[idx+1:]
		if strings.ContainsRune(ext, '.') {
			return putPath{}, ErrBadPath
		}
	}

	return putPath{directory: directory, prefix: prefix, rest: rest, ext: ext}, nil
}
