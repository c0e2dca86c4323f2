package mimetype

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinDuplicates(t *testing.T) {
	tbl := New()

	// csv is listed twice in the built-in table; the later entry
	// (text/csv) wins for extension lookup.
	if got := tbl.MimeTypeFor("csv"); got != "text/csv" {
		t.Errorf("MimeTypeFor(csv) = %q, want text/csv", got)
	}

	// html and htm both map to text/html; html appears later so it wins
	// as the default extension for that mime type.
	if got := tbl.ExtensionFor("text/html"); got != "html" {
		t.Errorf("ExtensionFor(text/html) = %q, want html", got)
	}
	if got := tbl.MimeTypeFor("htm"); got != "text/html" {
		t.Errorf("MimeTypeFor(htm) = %q, want text/html", got)
	}

	// jpeg then jpg: jpg is the later entry, so it wins as the default
	// extension for image/jpeg even though jpeg was listed first.
	if got := tbl.ExtensionFor("image/jpeg"); got != "jpg" {
		t.Errorf("ExtensionFor(image/jpeg) = %q, want jpg", got)
	}
}

func TestOctetStreamIgnored(t *testing.T) {
	tbl := New()
	if got := tbl.ExtensionFor("application/octet-stream"); got != "" {
		t.Errorf("ExtensionFor(application/octet-stream) = %q, want empty", got)
	}
}

func TestUnknown(t *testing.T) {
	tbl := New()
	if got := tbl.ExtensionFor("application/x-nonexistent"); got != "" {
		t.Errorf("ExtensionFor(unknown) = %q, want empty", got)
	}
	if got := tbl.MimeTypeFor("nonexistent"); got != "" {
		t.Errorf("MimeTypeFor(unknown) = %q, want empty", got)
	}
	if got := tbl.ExtensionFor(""); got != "" {
		t.Errorf("ExtensionFor(\"\") = %q, want empty", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mime.types")
	content := "# a comment\napplication/x-widget\twidget wdgt\ntext/html\tcustomhtml\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	tbl, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if got := tbl.MimeTypeFor("widget"); got != "application/x-widget" {
		t.Errorf("MimeTypeFor(widget) = %q, want application/x-widget", got)
	}
	if got := tbl.MimeTypeFor("wdgt"); got != "application/x-widget" {
		t.Errorf("MimeTypeFor(wdgt) = %q, want application/x-widget", got)
	}
	if got := tbl.ExtensionFor("application/x-widget"); got != "widget" {
		t.Errorf("ExtensionFor(application/x-widget) = %q, want widget (first on the line)", got)
	}

	// the file overrides the built-in text/html -> html default
	if got := tbl.ExtensionFor("text/html"); got != "customhtml" {
		t.Errorf("ExtensionFor(text/html) = %q, want customhtml", got)
	}
	// but the built-in extension mapping for html is untouched
	if got := tbl.MimeTypeFor("html"); got != "text/html" {
		t.Errorf("MimeTypeFor(html) = %q, want text/html", got)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	tbl, err := Load("/nonexistent/path/mime.types")
	if err != nil {
		t.Fatalf("Load of missing file returned error: %v", err)
	}
	if got := tbl.MimeTypeFor("txt"); got != "text/plain" {
		t.Errorf("built-in table lost after missing-file Load: %q", got)
	}
}
