package replica

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"time"
)

// errFileGone is returned by pushFile when the source file can no longer be
// read from disk: either it's disappeared since it was queued or it's
// become inaccessible. Either way the
// peer's queue entry is stale and the caller responds by setting
// need_resync, per the protocol's "ENOENT/EACCES" trigger.
var errFileGone = errors.New("replica: source file no longer accessible")

// dialTimeout bounds how long pushFile waits to establish a new connection
// to the peer before giving up and backing off.
const dialTimeout = 10 * time.Second

// pushFile sends f's contents to the peer with a PUT to its canonical
// location, reusing r.conn if one is already open. On any transport or
// protocol-level failure the connection is closed so the next attempt opens
// a fresh one.
func (r *Replicator) pushFile(f File) error {
	file, err := os.Open(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return errFileGone
		}
		return fmt.Errorf("replica: opening %s: %w", f.Path, err)
	}
	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return fmt.Errorf("replica: stat %s: %w", f.Path, err)
	}

	if r.conn == nil {
		conn, err := net.DialTimeout("tcp", r.peer.addr(), dialTimeout)
		if err != nil {
			return fmt.Errorf("replica: dialing %s: %w", r.peer.addr(), err)
		}
		r.conn = conn
	}

	if err := r.sendRequest(f, fi.Size(), file); err != nil {
		r.closeConn()
		return err
	}

	status, err := r.readResponse()
	if err != nil {
		r.closeConn()
		return err
	}

	switch status {
	case http.StatusCreated:
		return nil
	case http.StatusNotFound:
		// The peer doesn't recognize our data directory; nothing useful to
		// retry here without a resync.
		return fmt.Errorf("replica: peer %s returned 404 for %s", r.peer.addr(), f.Location)
	default:
		return fmt.Errorf("replica: peer %s returned status %d for %s", r.peer.addr(), status, f.Location)
	}
}

// sendRequest writes a minimal HTTP/1.0 PUT request for f directly to the
// connection: request line, Host, optional Content-Encoding, Content-Length,
// a blank line, then the body. HTTP/1.0 avoids chunked encoding, keeping the
// wire format identical to what the peer's own receiver expects, and the
// connection is kept open afterwards for reuse by a "Connection: keep-alive"
// hint (the peer is Verm itself, so it understands this).
func (r *Replicator) sendRequest(f File, size int64, body io.Reader) error {
	r.conn.SetDeadline(time.Now().Add(30 * time.Second))

	bw := bufio.NewWriter(r.conn)
	fmt.Fprintf(bw, "PUT %s HTTP/1.0\r\n", f.Location)
	fmt.Fprintf(bw, "Host: %s\r\n", r.peer.Hostname)
	fmt.Fprintf(bw, "Connection: keep-alive\r\n")
	if f.Encoding != "" {
		fmt.Fprintf(bw, "Content-Encoding: %s\r\n", f.Encoding)
	}
	fmt.Fprintf(bw, "Content-Length: %d\r\n", size)
	fmt.Fprint(bw, "\r\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("replica: writing request headers: %w", err)
	}

	if _, err := io.CopyN(r.conn, body, size); err != nil {
		return fmt.Errorf("replica: writing request body: %w", err)
	}
	return nil
}

// readResponse parses the status line and headers of the peer's response,
// drains any response body by Content-Length, and returns the status code.
func (r *Replicator) readResponse() (int, error) {
	tp := textproto.NewReader(bufio.NewReader(r.conn))

	statusLine, err := tp.ReadLine()
	if err != nil {
		return 0, fmt.Errorf("replica: reading status line: %w", err)
	}
	var httpVersion string
	var status int
	if _, err := fmt.Sscanf(statusLine, "%s %d", &httpVersion, &status); err != nil {
		return 0, fmt.Errorf("replica: malformed status line %q: %w", statusLine, err)
	}

	header, err := tp.ReadMIMEHeader()
	if err != nil && header == nil {
		return 0, fmt.Errorf("replica: reading response headers: %w", err)
	}

	if cl := header.Get("Content-Length"); cl != "" {
		contentLength, err := strconv.ParseInt(cl, 10, 64)
		if err == nil && contentLength > 0 {
			if _, err := io.CopyN(io.Discard, tp.R, contentLength); err != nil {
				return 0, fmt.Errorf("replica: draining response body: %w", err)
			}
		}
	}

	return status, nil
}
