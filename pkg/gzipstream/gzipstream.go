// Package gzipstream provides the two gzip decompression paths Verm needs:
// a lazy reader over an on-disk .gz file (used when serving a compressed
// twin to a client that doesn't accept gzip) and a streaming decompressor
// fed incrementally from an HTTP request body (used while hashing a
// gzip-encoded upload). Both decode the gzip wrapper, not raw zlib/deflate.
//
// We use klauspost/compress rather than the standard library's compress/gzip
// for both: it's a drop-in replacement with the same Reader shape, faster,
// and it's already a dependency pulled in elsewhere in the corpus this was
// built from.
package gzipstream

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	kgzip "github.com/klauspost/compress/gzip"
)

// ChunkSize is the 16 KiB read-buffer size Verm uses when streaming an
// upload body. File's Read does not use it; it fills whatever buffer its
// caller passes.
const ChunkSize = 16 << 10

// File lazily decompresses an open .gz file, filling each buffer passed to
// Read; it imposes no chunk size of its own. It adopts the handle passed to
// NewFile: Close closes it.
type File struct {
	f  *os.File
	gr *kgzip.Reader
}

// NewFile wraps f, which must be positioned at the start of a gzip stream.
func NewFile(f *os.File) (*File, error) {
	gr, err := kgzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gzipstream: not a gzip file: %w", err)
	}
	return &File{f: f, gr: gr}, nil
}

// Read fills buf with up to len(buf) decompressed bytes (callers should pass
// a buffer sized ChunkSize to match the intended streaming granularity). It
// returns io.EOF when the stream is exhausted.
func (d *File) Read(buf []byte) (int, error) {
	return d.gr.Read(buf)
}

// Close closes the underlying file. Safe to call once.
func (d *File) Close() error {
	return d.f.Close()
}

// DecompressedSize reads the gzip trailer's little-endian ISIZE field: the
// original size of the stream modulo 2^32. This is an acknowledged
// approximation, wrong for any original file whose length exceeds 4 GiB.
// Verm uses it to set Content-Length whenever it decompresses a file on the
// fly, whatever the file's size; it does not affect what's stored on disk.
func DecompressedSize(f *os.File, compressedSize int64) (uint32, error) {
	if compressedSize < 4 {
		return 0, fmt.Errorf("gzipstream: file too short (%d bytes) to contain a gzip trailer", compressedSize)
	}
	var trailer [4]byte
	if _, err := f.ReadAt(trailer[:], compressedSize-4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(trailer[:]), nil
}

// ErrCorrupt is returned by Mem when the fed bytes aren't a valid gzip
// stream.
var ErrCorrupt = fmt.Errorf("gzipstream: corrupt gzip stream")

// Mem is a streaming gzip inflater fed incrementally: each wire-format chunk
// arriving from an HTTP request body is handed to Write, and the
// decompressed bytes it yields are copied to dst (Verm's use is to feed an
// incremental SHA-256 hasher). Mem does not own dst.
//
// Internally this runs the actual inflate on a goroutine reading from a
// pipe, rather than exposing a manual input-cursor/output-buffer call
// contract: Go's io.Pipe already gives us exactly that producer/consumer
// handoff without hand-rolled buffer bookkeeping.
type Mem struct {
	pw   *io.PipeWriter
	done chan error
}

// NewMem starts the decompression goroutine. Every byte written via Write is
// decoded and copied to dst as it arrives; call Close once the input is
// exhausted and check its returned error.
func NewMem(dst io.Writer) *Mem {
	pr, pw := io.Pipe()
	m := &Mem{pw: pw, done: make(chan error, 1)}
	go func() {
		gr, err := kgzip.NewReader(pr)
		if err != nil {
			pr.CloseWithError(err)
			m.done <- fmt.Errorf("%w: %v", ErrCorrupt, err)
			return
		}
		_, err = io.Copy(dst, gr)
		if err != nil {
			pr.CloseWithError(err)
			m.done <- fmt.Errorf("%w: %v", ErrCorrupt, err)
			return
		}
		m.done <- nil
	}()
	return m
}

// Write feeds one more chunk of gzip wire bytes. A decode error surfaces
// from Close, and also from any Write made after the decoder has already
// failed.
func (m *Mem) Write(chunk []byte) (int, error) {
	return m.pw.Write(chunk)
}

// Close signals end of input and waits for the decompression goroutine to
// finish draining into dst, returning any decode error it hit.
func (m *Mem) Close() error {
	m.pw.Close()
	return <-m.done
}
