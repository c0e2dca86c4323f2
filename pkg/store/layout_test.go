package store

import (
	"crypto/sha256"
	"testing"
)

func TestEncodeHash(t *testing.T) {
	digest := sha256.Sum256([]byte("hello"))
	got := encodeHash(digest)
	want := "LPJNul-wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ"
	if got != want {
		t.Fatalf("encodeHash(sha256(%q)) = %q, want %q", "hello", got, want)
	}
	if len(got) != 43 {
		t.Fatalf("hash length = %d, want 43", len(got))
	}
}

func TestNormalizeDirectory(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"/", "/default", false},
		{"/default", "/default", false},
		{"/default/", "/default", false},
		{"//default", "/default", false},
		{"/a//b/", "/a/b", false},
		{"", "", true},
		{"default", "", true},
		{"/../etc", "", true},
		{"/" + string(make([]byte, 260)), "", true},
	}
	for _, c := range cases {
		got, err := normalizeDirectory(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("normalizeDirectory(%q) = %q, nil; want error", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("normalizeDirectory(%q) unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("normalizeDirectory(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCanonicalLocation(t *testing.T) {
	hash := "LPJNul-wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ"
	got := canonicalLocation("/default", hash, 1, "txt")
	want := "/default/LP/JNul-wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ.txt"
	if got != want {
		t.Errorf("canonicalLocation = %q, want %q", got, want)
	}

	collision := canonicalLocation("/default", hash, 2, "txt")
	wantCollision := "/default/LP/JNul-wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ_2.txt"
	if collision != wantCollision {
		t.Errorf("canonicalLocation (attempt 2) = %q, want %q", collision, wantCollision)
	}

	// the compressed-twin suffix is never part of the canonical URL; it only
	// ever applies to the on-disk filename (diskName), so canonicalLocation
	// itself takes no gz argument.
	gz := diskName(got, true)
	wantGz := "/default/LP/JNul-wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ.txt.gz"
	if gz != wantGz {
		t.Errorf("diskName (gz) = %q, want %q", gz, wantGz)
	}
}

func TestParsePutPath(t *testing.T) {
	p, err := parsePutPath("/default/LP/JNul-wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ.txt")
	if err != nil {
		t.Fatalf("parsePutPath: %v", err)
	}
	if p.directory != "/default" || p.prefix != "LP" || p.ext != "txt" {
		t.Errorf("parsePutPath = %+v", p)
	}
	if p.rest != "JNul-wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ" {
		t.Errorf("rest = %q", p.rest)
	}

	if _, err := parsePutPath("/default/AA/garbage.a.b"); err == nil {
		t.Error("expected error for multiple dots")
	}
	if _, err := parsePutPath("/default/../AA/x"); err == nil {
		t.Error("expected error for ..")
	}
	if _, err := parsePutPath("/x"); err == nil {
		t.Error("expected error for too-short path")
	}
}
