// Package mimetype implements Verm's bidirectional content-type/extension
// table: a built-in set of common types, optionally extended at startup by a
// classic "/etc/mime.types"-format file.
//
// Two independent directions are kept, per the protocol: extension lookup
// (used when serving a stored file, to set Content-Type from the URL's
// extension) and mime-type lookup (used at upload time, to pick the
// extension a new file is stored under from its declared Content-Type).
// Within a single source line, every extension feeds the extension->type
// map, but only the first extension on the line becomes that type's default
// extension; across the whole table (built-in then file, in load order)
// later lines win both directions. The built-in table itself relies on this:
// "csv" is listed twice (text/comma-separated-values, then text/csv) and
// "html"/"htm" both map to text/html, and the duplication is intentional,
// not a bug to be deduplicated away.
package mimetype

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Table is an immutable (after Load) bidirectional mapping. The zero value
// is an empty table; use Load to build a populated one.
type Table struct {
	byExtension map[string]string // extension -> mime type
	byMimeType  map[string]string // mime type -> default extension
}

// ignoredMimeType is never registered as a forward mapping: uploads that
// declare it get no extension, since it's a generic fallback type rather
// than a meaningful one.
const ignoredMimeType = "application/octet-stream"

// builtinTypes is Verm's built-in table, including some deliberate
// duplicate entries (several extensions map to the same MIME type, and csv
// is listed twice); each entry is its own line, so the later entry wins
// both directions.
var builtinTypes = []struct {
	mimeType, extension string
}{
	{"text/plain", "txt"},
	{"text/html", "htm"},
	{"text/html", "html"},
	{"text/xml", "xsl"},
	{"text/xml", "xsd"},
	{"text/xml", "xml"},
	{"text/css", "css"},
	{"text/comma-separated-values", "csv"},
	{"text/csv", "csv"}, // later entries overwrite earlier entries for the same extension
	{"text/tab-separated-values", "tsv"},
	{"image/jpeg", "jpeg"},
	{"image/jpeg", "jpg"}, // later entries overwrite earlier entries for the same mime type
	{"image/gif", "gif"},
	{"image/png", "png"},
	{"image/svg+xml", "svg"},
	{"application/pdf", "pdf"},
	{"application/javascript", "js"},
	{"application/json", "json"},
	{"application/tar", "tar"},
	{"application/xhtml+xml", "xhtml"},
	{"application/zip", "zip"},
	{"message/rfc822", "eml"},
}

// New returns a table containing just the built-in types.
func New() *Table {
	t := &Table{
		byExtension: make(map[string]string, len(builtinTypes)),
		byMimeType:  make(map[string]string, len(builtinTypes)),
	}
	for _, bt := range builtinTypes {
		t.addLine(bt.mimeType, []string{bt.extension})
	}
	return t
}

// Load returns a table containing the built-in types plus, if path can be
// opened, every type declared in it. A missing file is not an error (the
// default path is /etc/mime.types, which frequently doesn't exist in
// minimal containers); any other open error is returned.
func Load(path string) (*Table, error) {
	t := New()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := t.loadFrom(f); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) loadFrom(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		mimeType := fields[0]
		if strings.HasPrefix(mimeType, "#") {
			continue
		}
		t.addLine(mimeType, fields[1:])
	}
	return scanner.Err()
}

// addLine records every extension -> mime type mapping from a single source
// line (or, for the built-in table, a single built-in entry treated as its
// own one-extension line), and the mime type -> extension mapping for that
// line's first extension only. A later line always overrides an earlier one
// for both directions; only the "first extension wins" rule is scoped to a
// single line, not the whole table.
func (t *Table) addLine(mimeType string, extensions []string) {
	first := true
	for _, ext := range extensions {
		if ext == "" {
			continue
		}
		t.byExtension[ext] = mimeType
		if first && mimeType != ignoredMimeType {
			t.byMimeType[mimeType] = ext
		}
		first = false
	}
}

// ExtensionFor returns the extension (without a leading dot) that a new
// upload declaring mimeType should be stored under, or "" if mimeType is
// unknown or empty.
func (t *Table) ExtensionFor(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	return t.byMimeType[mimeType]
}

// MimeTypeFor returns the Content-Type to serve a file whose URL ends in
// extension (without a leading dot), or "" if extension is unknown or empty.
func (t *Table) MimeTypeFor(extension string) string {
	if extension == "" {
		return ""
	}
	return t.byExtension[extension]
}
