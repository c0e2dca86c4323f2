// Package respond builds Verm's HTTP responses: the fixed HTML pages, the
// cache and content headers every successful response carries, and the
// Accept-Encoding negotiation that decides whether a client gets a gzip
// twin as-is or decompressed on the fly.
package respond

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// NeverExpires is sent as the Expires header on every served file: Verm's
// URLs are content-addressed, so a stored file can never change underneath
// its URL and is cacheable forever.
const NeverExpires = "Tue, 19 Jan 2038 00:00:00 GMT"

// SetCommonHeaders sets the headers common to every 200 response for a
// stored file: Content-Length, Last-Modified (from the file's mtime),
// Content-Type (from mimeType, which the caller derives from the URL's
// extension), ETag (the URL path without its leading slash, since the URL
// itself is the hash-derived strong validator), and Expires.
func SetCommonHeaders(h http.Header, size int64, modTime time.Time, mimeType, etag string) {
	h.Set("Content-Length", strconv.FormatInt(size, 10))
	h.Set("Last-Modified", modTime.UTC().Format(http.TimeFormat))
	if mimeType != "" {
		h.Set("Content-Type", mimeType)
	}
	h.Set("ETag", etag)
	h.Set("Expires", NeverExpires)
}

// ETagForPath returns the strong validator for a canonical URL path: the
// path with its leading slash stripped.
func ETagForPath(urlPath string) string {
	return strings.TrimPrefix(urlPath, "/")
}

// NotModified reports whether the request's If-None-Match matches etag
// exactly, per Verm's single supported conditional-request form.
func NotModified(r *http.Request, etag string) bool {
	inm := r.Header.Get("If-None-Match")
	return inm != "" && inm == etag
}

// AcceptsGzip decides whether a client accepts a gzip-encoded response,
// given the raw Accept-Encoding header value (empty string if absent).
//
// Rules: a missing header means yes. The header is a comma-separated list
// of tokens with optional ";q=..." parameters and optional whitespace. "*",
// "gzip", and "x-gzip" match. A token with no q parameter is acceptable. A
// q parameter is acceptable iff its value is non-zero; any syntax error in
// the parameter is treated as that token not matching, and negotiation
// continues on to the next comma-separated token rather than failing
// outright.
func AcceptsGzip(acceptEncoding string) bool {
	if acceptEncoding == "" {
		return true
	}
	for _, token := range strings.Split(acceptEncoding, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		parts := strings.Split(token, ";")
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		if name != "*" && name != "gzip" && name != "x-gzip" {
			continue
		}
		if len(parts) == 1 {
			return true
		}
		if qAcceptable(parts[1:]) {
			return true
		}
	}
	return false
}

// qAcceptable evaluates the parameters following a token (typically just
// "q=<float>") and reports whether they leave the token acceptable.
func qAcceptable(params []string) bool {
	for _, p := range params {
		p = strings.TrimSpace(p)
		name, value, found := strings.Cut(p, "=")
		if !found || strings.TrimSpace(name) != "q" {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return false
		}
		return q != 0
	}
	return true
}
