package inbox

import (
	"bufio"
	"io"
)

// oversizedEventType replaces the type of a frame that was cut short. The
// event parser keeps the last "event:" field it sees, so the marker wins over
// whatever the frame declared.
const oversizedEventType = "nf-oversized"

const frameReaderBuffer = 64 * 1024

// frameLimitReader passes an event stream through until one frame grows past
// limit bytes. The rest of that frame is discarded up to its blank line and the
// frame is retyped as oversizedEventType. Line endings come out as "\n"; a
// carriage return cannot appear inside a field value, so this loses nothing.
type frameLimitReader struct {
	src       *bufio.Reader
	limit     int
	frame     int
	skipping  bool
	lineStart bool
	afterCR   bool
	line      []byte
	pending   []byte
	err       error
}

func newFrameLimitReader(r io.Reader, limit int) *frameLimitReader {
	return &frameLimitReader{
		src:       bufio.NewReaderSize(r, frameReaderBuffer),
		limit:     limit,
		lineStart: true,
		line:      make([]byte, 0, frameReaderBuffer+1),
	}
}

func (r *frameLimitReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// fill loads the next line, or the next buffer-sized piece of a long line,
// into pending.
func (r *frameLimitReader) fill() error {
	if r.err != nil {
		return r.err
	}

	chunk, err := r.readPiece()
	if err != nil {
		r.err = err
	}
	if len(chunk) == 0 {
		return r.err
	}

	startsLine := r.lineStart
	r.lineStart = chunk[len(chunk)-1] == '\n'

	if startsLine && len(chunk) == 1 && chunk[0] == '\n' {
		r.frame = 0
		r.skipping = false
		r.pending = chunk
		return nil
	}
	if r.skipping {
		return nil
	}

	if r.frame+len(chunk) > r.limit {
		r.skipping = true
		marker := "event: " + oversizedEventType + "\n"
		if !startsLine {
			marker = "\n" + marker
		}
		r.pending = []byte(marker)
		return nil
	}

	r.frame += len(chunk)
	r.pending = chunk
	return nil
}

// readPiece reads up to one line terminator ("\n", "\r\n" or "\r"), stopping
// early once frameReaderBuffer bytes are collected.
func (r *frameLimitReader) readPiece() ([]byte, error) {
	r.line = r.line[:0]
	for len(r.line) < frameReaderBuffer {
		b, err := r.src.ReadByte()
		if err != nil {
			return r.line, err
		}
		if r.afterCR {
			r.afterCR = false
			if b == '\n' {
				continue
			}
		}

		switch b {
		case '\r':
			r.afterCR = true
			return append(r.line, '\n'), nil
		case '\n':
			return append(r.line, '\n'), nil
		}
		r.line = append(r.line, b)
	}
	return r.line, nil
}
