package store

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/willbryant/verm/pkg/gzipstream"
	"github.com/willbryant/verm/pkg/replica"
	"github.com/willbryant/verm/pkg/respond"
)

// upload tracks the state of one POST or PUT request from first byte to
// response. It is owned by the request goroutine; nothing else reaches it.
type upload struct {
	s *Store

	directory string
	putTarget *putPath // nil for POST

	tempFile *os.File
	tempPath string

	hasher       hash.Hash
	decompressor *gzipstream.Mem

	size      int64
	extension string
	encoding  string

	redirectAfterwards bool
	newFileStored      bool
	location           string
	diskPath           string
}

// handleUpload drives the upload through initialization, field dispatch,
// and completion, then always tears down the tempfile and updates
// statistics before returning.
func (s *Store) handleUpload(w http.ResponseWriter, r *http.Request) {
	method := r.Method
	u := &upload{s: s, hasher: sha256.New()}

	failed := true
	defer func() {
		u.teardown()
		if s.Stats != nil {
			s.Stats.StoreRequest(method, u.newFileStored, failed)
		}
	}()

	var err error
	if method == http.MethodPut {
		err = u.initPut(r.URL.Path)
	} else {
		err = u.initPost(r.URL.Path)
	}
	if err != nil {
		if errors.Is(err, ErrBadPath) {
			respond.WriteWrongPath(w)
			return
		}
		s.logf("upload: initializing %s: %v", r.URL.Path, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := u.consumeBody(r); err != nil {
		s.logf("upload: reading body for %s: %v", r.URL.Path, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := u.finish(); err != nil {
		if errors.Is(err, ErrBadPath) {
			respond.WriteWrongPath(w)
			return
		}
		s.logf("upload: completing %s: %v", r.URL.Path, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	failed = false
	if s.Replicas != nil {
		s.Replicas.Enqueue(replica.File{
			Location: u.location,
			Path:     u.diskPath,
			Encoding: u.encoding,
		})
	}

	if u.redirectAfterwards {
		respond.WriteSeeOther(w, r, u.location)
	} else {
		respond.WriteCreated(w, u.location)
	}
}

func (u *upload) initPost(urlPath string) error {
	directory, err := normalizeDirectory(urlPath)
	if err != nil {
		return err
	}
	u.directory = directory
	return u.createTempFile()
}

func (u *upload) initPut(urlPath string) error {
	pp, err := parsePutPath(urlPath)
	if err != nil {
		return err
	}
	u.putTarget = &pp
	u.directory = pp.directory
	return u.createTempFile()
}

// createTempFile opens a temp file in the target directory, creating the
// directory tree (mode 0777, matching every other directory Verm creates)
// if it doesn't exist yet.
func (u *upload) createTempFile() error {
	dir := filepath.Join(u.s.Root, u.directory)
	f, err := os.CreateTemp(dir, "upload.*")
	if errors.Is(err, os.ErrNotExist) {
		if mkErr := os.MkdirAll(dir, 0777); mkErr != nil {
			return fmt.Errorf("store: creating %s: %w", dir, mkErr)
		}
		f, err = os.CreateTemp(dir, "upload.*")
	}
	if err != nil {
		return fmt.Errorf("store: creating tempfile in %s: %w", dir, err)
	}
	u.tempFile = f
	u.tempPath = f.Name()
	return nil
}

// consumeBody dispatches to the multipart or raw-body reader depending on
// the request's Content-Type, which is treated as authoritative.
func (u *upload) consumeBody(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	mediaType, params, _ := mime.ParseMediaType(contentType)

	switch {
	case mediaType == "multipart/form-data":
		return u.consumeMultipart(r.Body, params["boundary"])
	case mediaType == "application/x-www-form-urlencoded":
		return u.consumeURLEncoded(r.Body)
	default:
		return u.consumeField("uploaded_file", contentType, r.Header.Get("Content-Encoding"), r.Body)
	}
}

// consumeURLEncoded parses an application/x-www-form-urlencoded body and
// feeds its "uploaded_file" and "redirect" fields through the same
// consumeField path multipart fields use. Fields of this encoding carry no
// per-field Content-Type or Content-Encoding of their own.
func (u *upload) consumeURLEncoded(body io.Reader) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("store: reading urlencoded body: %w", err)
	}
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return fmt.Errorf("store: parsing urlencoded body: %w", err)
	}
	for _, name := range [...]string{"uploaded_file", "redirect"} {
		for _, v := range values[name] {
			if err := u.consumeField(name, "", "", strings.NewReader(v)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (u *upload) consumeMultipart(body io.Reader, boundary string) error {
	if boundary == "" {
		return fmt.Errorf("store: multipart request missing boundary")
	}
	mr := multipart.NewReader(body, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: reading multipart section: %w", err)
		}
		name := part.FormName()
		if name == "" {
			continue
		}
		if err := u.consumeField(name, part.Header.Get("Content-Type"), part.Header.Get("Content-Encoding"), part); err != nil {
			return err
		}
	}
}

// consumeField handles one field's worth of bytes, recognizing
// "uploaded_file" and "redirect" and ignoring anything else.
func (u *upload) consumeField(name, contentType, contentEncoding string, r io.Reader) error {
	switch name {
	case "uploaded_file":
		return u.consumeUploadedFile(contentType, contentEncoding, r)
	case "redirect":
		return u.consumeRedirectField(r)
	default:
		_, err := io.Copy(io.Discard, r)
		return err
	}
}

func (u *upload) consumeUploadedFile(contentType, contentEncoding string, r io.Reader) error {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	u.extension = u.s.MimeTypes.ExtensionFor(mediaType)

	if strings.EqualFold(contentEncoding, "gzip") {
		u.encoding = "gzip"
		u.decompressor = gzipstream.NewMem(u.hasher)
	}

	buf := make([]byte, gzipstream.ChunkSize)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, err := u.tempFile.Write(chunk); err != nil {
				return fmt.Errorf("store: writing tempfile: %w", err)
			}
			u.size += int64(n)

			if u.decompressor != nil {
				if _, err := u.decompressor.Write(chunk); err != nil {
					return fmt.Errorf("store: decompressing upload: %w", err)
				}
			} else if _, err := u.hasher.Write(chunk); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("store: reading upload: %w", readErr)
		}
	}
}

func (u *upload) consumeRedirectField(r io.Reader) error {
	b, err := io.ReadAll(io.LimitReader(r, 32))
	if err != nil {
		return err
	}
	u.redirectAfterwards = isTruthy(string(b))
	return nil
}

// isTruthy parses the "redirect" field's value: "0", "f", and "false"
// (case-insensitive) are false, everything else (including an empty value)
// is true.
func isTruthy(s string) bool {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "0", "f", "false":
		return false
	default:
		return true
	}
}
