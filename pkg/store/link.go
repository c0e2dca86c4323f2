package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// maxLinkAttempts bounds the collision loop; in practice a collision chain
// this long would mean a hash-function break, not bad luck.
const maxLinkAttempts = 1000

// finish finalizes the hash, validates PUT canonicality, and runs the link
// loop to place the tempfile at its
// content-addressed destination (or discover it's a dedup hit).
func (u *upload) finish() error {
	if u.decompressor != nil {
		if err := u.decompressor.Close(); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	}

	var digest [32]byte
	copy(digest[:], u.hasher.Sum(nil))
	hash := encodeHash(digest)

	if u.putTarget != nil {
		if err := u.checkCanonical(hash); err != nil {
			return err
		}
	}

	return u.linkLoop(hash)
}

// checkCanonical verifies a PUT's target path matches the canonical form
// for the uploaded bytes: same directory, same hash prefix/rest, and an
// extension matching the one derived from the declared content-type.
func (u *upload) checkCanonical(hash string) error {
	pp := u.putTarget
	if pp.prefix != hash[:2] || pp.rest != hash[2:] || pp.ext != u.extension {
		return ErrBadPath
	}
	return nil
}

// linkLoop attempts to hard-link the tempfile into place, handling the
// three cases: success, EEXIST (stat-and-compare, or bump the collision
// counter), and ENOENT (create missing parent directories).
func (u *upload) linkLoop(hash string) error {
	for attempt := 1; attempt <= maxLinkAttempts; attempt++ {
		location := canonicalLocation(u.directory, hash, attempt, u.extension)
		target := filepath.Join(u.s.Root, diskName(location, u.encoding == "gzip"))

		err := os.Link(u.tempPath, target)
		switch {
		case err == nil:
			u.newFileStored = true
			u.location = location
			u.diskPath = target
			return nil

		case errors.Is(err, os.ErrExist):
			identical, statErr := filesIdentical(target, u.tempPath, u.size)
			if statErr != nil {
				return fmt.Errorf("store: comparing %s: %w", target, statErr)
			}
			if identical {
				u.newFileStored = false
				u.location = location
				u.diskPath = target
				return nil
			}
			// differing content at this path; try the next collision
			// suffix without creating any directories.
			continue

		case errors.Is(err, os.ErrNotExist):
			if mkErr := os.MkdirAll(filepath.Dir(target), 0777); mkErr != nil {
				return fmt.Errorf("store: creating %s: %w", filepath.Dir(target), mkErr)
			}
			attempt-- // retry the same attempt number, not the next one
			continue

		default:
			return fmt.Errorf("store: linking %s: %w", target, err)
		}
	}
	return fmt.Errorf("store: too many hash collisions at %s", u.directory)
}

// filesIdentical byte-compares two same-sized files in 16 KiB chunks.
func filesIdentical(a, b string, expectedSize int64) (bool, error) {
	fiA, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	if fiA.Size() != expectedSize {
		return false, nil
	}

	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	const chunkSize = 16 << 10
	bufA := make([]byte, chunkSize)
	bufB := make([]byte, chunkSize)
	for {
		nA, errA := io.ReadFull(fa, bufA)
		nB, errB := io.ReadFull(fb, bufB)
		if nA != nB || !bytes.Equal(bufA[:nA], bufB[:nB]) {
			return false, nil
		}
		if errA == io.EOF && errB == io.EOF {
			return true, nil
		}
		if errA != nil && errA != io.ErrUnexpectedEOF {
			return false, errA
		}
		if errB != nil && errB != io.ErrUnexpectedEOF {
			return false, errB
		}
		if (errA == io.EOF || errA == io.ErrUnexpectedEOF) != (errB == io.EOF || errB == io.ErrUnexpectedEOF) {
			return false, nil
		}
		if errA == io.ErrUnexpectedEOF {
			return true, nil
		}
	}
}

// teardown always closes and unlinks the tempfile, regardless of outcome:
// on success the file lives on as a hard link at its canonical location,
// so the original directory entry is no longer needed.
func (u *upload) teardown() {
	if u.tempFile != nil {
		u.tempFile.Close()
	}
	if u.tempPath != "" {
		os.Remove(u.tempPath)
	}
}
