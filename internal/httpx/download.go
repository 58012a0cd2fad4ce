package httpx

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/halcyon-audio/spindle/internal/errs"
)

// BufferedDownload grows an in-memory buffer from a streamed HTTP
// response body in the background, giving readers blocking random-access
// Read/Seek over whatever has arrived so far — the same growing-buffer,
// sync.Cond-gated design as the teacher's StreamReader, sized so the
// decrypt/decode pipeline behind it never starves on a slow link.
type BufferedDownload struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf       []byte
	totalSize int64 // -1 if unknown
	err       error
	done      bool
	pos       int64
}

// Get issues a GET for url through c and starts streaming the body into a
// BufferedDownload, returning as soon as headers arrive.
func (c *Client) Get(ctx context.Context, url string) (*BufferedDownload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.New(errs.InvalidArgument, "httpx: get", err)
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	d := &BufferedDownload{totalSize: -1}
	d.cond = sync.NewCond(&d.mu)
	if resp.ContentLength >= 0 {
		d.totalSize = resp.ContentLength
		d.buf = make([]byte, 0, resp.ContentLength)
	} else {
		d.buf = make([]byte, 0, 64*1024)
	}

	go d.fill(resp.Body)
	return d, nil
}

func (d *BufferedDownload) fill(body io.ReadCloser) {
	defer body.Close()
	chunk := make([]byte, 32*1024) // read-ahead chunk size
	for {
		n, err := body.Read(chunk)
		if n > 0 {
			d.mu.Lock()
			d.buf = append(d.buf, chunk[:n]...)
			d.cond.Broadcast()
			d.mu.Unlock()
		}
		if err != nil {
			d.mu.Lock()
			if err != io.EOF {
				d.err = err
			}
			d.done = true
			d.cond.Broadcast()
			d.mu.Unlock()
			return
		}
	}
}

// Len reports the total size if known from Content-Length.
func (d *BufferedDownload) Len() (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totalSize, d.totalSize >= 0
}

// Read blocks until at least one byte is available at the current
// position, EOF is reached, or the download errors.
func (d *BufferedDownload) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for int64(len(d.buf)) <= d.pos && !d.done {
		d.cond.Wait()
	}
	if d.err != nil {
		return 0, d.err
	}
	if int64(len(d.buf)) <= d.pos {
		return 0, io.EOF
	}

	n := copy(p, d.buf[d.pos:])
	d.pos += int64(n)
	return n, nil
}

// Seek repositions the cursor, blocking until the target offset has been
// downloaded when seeking forward past what's buffered so far.
func (d *BufferedDownload) Seek(offset int64, whence int) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = d.pos + offset
	case io.SeekEnd:
		if d.totalSize < 0 {
			return 0, errs.New(errs.Unimplemented, "httpx: seek", errSeekEndUnknownSize)
		}
		target = d.totalSize + offset
	}
	if target < 0 {
		return 0, errs.New(errs.InvalidArgument, "httpx: seek", errNegativeSeek)
	}

	for int64(len(d.buf)) < target && !d.done {
		d.cond.Wait()
	}
	if target > int64(len(d.buf)) {
		return 0, errs.New(errs.InvalidArgument, "httpx: seek", io.ErrUnexpectedEOF)
	}

	d.pos = target
	return target, nil
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

var (
	errSeekEndUnknownSize = simpleErr("httpx: seek from end requires a known Content-Length")
	errNegativeSeek       = simpleErr("httpx: seek target is negative")
)
