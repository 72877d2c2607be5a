package resp

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/yndnr/minikv/internal/core/domain"
)

// Protocol limits to prevent DoS attacks.
const (
	// MaxArrayLen limits the number of elements in a RESP array.
	MaxArrayLen = 4096

	// MaxBulkLen limits the size of a single bulk string (16MB).
	MaxBulkLen = 16 * 1024 * 1024

	// MaxLineLen limits simple strings, errors and length headers (64KB).
	MaxLineLen = 64 * 1024

	// MaxPayloadLen limits a snapshot transferred with ReadRawBulk (512MB).
	MaxPayloadLen = 512 * 1024 * 1024

	// maxDepth limits nesting of arrays inside a request.
	maxDepth = 8
)

var (
	ErrProtocol      = domain.ErrFraming
	ErrLimitExceeded = domain.ErrLimitExceeded
)

// Reader decodes RESP frames from a buffered stream.
//
// Count reports the number of bytes consumed since creation or the last
// ResetCount. The counter only ever advances by bytes actually taken from
// the stream, so it can be echoed in replication acknowledgements.
type Reader struct {
	br    *bufio.Reader
	count int64
	frame []byte
}

// NewReader returns a Reader with the default buffer size.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// NewReaderSize returns a Reader whose buffer has at least size bytes.
func NewReaderSize(r io.Reader, size int) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, size)}
}

// Count returns the number of bytes consumed.
func (r *Reader) Count() int64 {
	return r.count
}

// ResetCount sets the consumed-bytes counter back to zero.
func (r *Reader) ResetCount() {
	r.count = 0
}

// Peek returns the next n bytes without consuming or counting them.
func (r *Reader) Peek(n int) ([]byte, error) {
	return r.br.Peek(n)
}

// Buffered returns the number of bytes that can be read without blocking.
func (r *Reader) Buffered() int {
	return r.br.Buffered()
}

// ReadCommand reads one top-level request frame.
//
// The frame may be an array of bulk or simple strings, a single bulk
// string or a single simple string. Any other leading byte is a framing
// error. io.EOF is returned unwrapped only when the stream ends cleanly
// between frames.
//
// An empty array yields a command for which Empty reports true. Its bytes
// are still counted.
func (r *Reader) ReadCommand() (*domain.Command, error) {
	r.frame = r.frame[:0]

	b, err := r.readByte()
	if err != nil {
		return nil, err
	}

	var elems []string
	switch b {
	case '*':
		elems, err = r.readArrayBody(nil, 0)
	case '$':
		var s string
		s, err = r.readBulkBody()
		elems = []string{s}
	case '+':
		var s string
		s, err = r.readLine(MaxLineLen)
		elems = []string{s}
	default:
		return nil, fmt.Errorf("%w: unexpected type byte %q", ErrProtocol, b)
	}
	if err != nil {
		return nil, frameErr(err)
	}

	raw := make([]byte, len(r.frame))
	copy(raw, r.frame)
	return domain.NewCommand(elems, raw), nil
}

// readArrayBody reads "<n>\r\n" followed by n elements, flattening nested
// arrays into out.
func (r *Reader) readArrayBody(out []string, depth int) ([]string, error) {
	if depth >= maxDepth {
		return nil, fmt.Errorf("%w: array nesting exceeds limit %d", ErrLimitExceeded, maxDepth)
	}
	n, err := r.readLength()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return out, nil
	}
	if n > MaxArrayLen {
		return nil, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	for i := 0; i < n; i++ {
		b, err := r.readByte()
		if err != nil {
			return nil, err
		}
		switch b {
		case '$':
			s, err := r.readBulkBody()
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		case '+':
			s, err := r.readLine(MaxLineLen)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		case '*':
			out, err = r.readArrayBody(out, depth+1)
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: expected bulk string, got %q", ErrProtocol, b)
		}
	}
	return out, nil
}

// readBulkBody reads "<n>\r\n<n bytes>\r\n". A null bulk string decodes as
// an empty argument.
func (r *Reader) readBulkBody() (string, error) {
	n, err := r.readLength()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", nil
	}
	if n > MaxBulkLen {
		return "", fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	buf, err := r.readFull(n + 2)
	if err != nil {
		return "", err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return "", fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return string(buf[:n]), nil
}

// ReadRawBulk reads "$<n>\r\n" followed by exactly n bytes with no
// trailing CRLF. This is the framing of a snapshot sent after FULLRESYNC.
func (r *Reader) ReadRawBulk() ([]byte, error) {
	r.frame = r.frame[:0]

	b, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if b != '$' {
		return nil, fmt.Errorf("%w: expected snapshot payload, got %q", ErrProtocol, b)
	}
	n, err := r.readLength()
	if err != nil {
		return nil, frameErr(err)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: invalid payload length %d", ErrProtocol, n)
	}
	if n > MaxPayloadLen {
		return nil, fmt.Errorf("%w: payload length %d exceeds limit %d", ErrLimitExceeded, n, MaxPayloadLen)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, frameErr(err)
	}
	r.count += int64(n)
	return buf, nil
}

// readLength parses an optional '-' and decimal digits terminated by CRLF.
func (r *Reader) readLength() (int, error) {
	line, err := r.readLine(32)
	if err != nil {
		return 0, err
	}
	return parseLength(line)
}

func parseLength(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty length", ErrProtocol)
	}
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
		if s == "" {
			return 0, fmt.Errorf("%w: invalid length", ErrProtocol)
		}
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: invalid length byte %q", ErrProtocol, c)
		}
		n = n*10 + int(c-'0')
		if n > MaxPayloadLen {
			return 0, fmt.Errorf("%w: length exceeds limit %d", ErrLimitExceeded, MaxPayloadLen)
		}
	}
	if neg {
		n = -n
	}
	return n, nil
}

func (r *Reader) readByte() (byte, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		return 0, err
	}
	r.count++
	r.frame = append(r.frame, b)
	return b, nil
}

func (r *Reader) readFull(n int) ([]byte, error) {
	start := len(r.frame)
	r.frame = append(r.frame, make([]byte, n)...)
	read, err := io.ReadFull(r.br, r.frame[start:])
	r.count += int64(read)
	if err != nil {
		r.frame = r.frame[:start+read]
		return nil, err
	}
	return r.frame[start:], nil
}

// readLine reads up to and including CRLF and returns the line without it.
func (r *Reader) readLine(maxLen int) (string, error) {
	start := len(r.frame)
	for {
		frag, err := r.br.ReadSlice('\n')
		r.count += int64(len(frag))
		r.frame = append(r.frame, frag...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			if len(r.frame)-start > maxLen {
				return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
			}
			continue
		}
		return "", err
	}

	line := r.frame[start:]
	if len(line) > maxLen+2 {
		return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return string(line[:len(line)-2]), nil
}

// frameErr turns a stream end inside a frame into a framing error.
func frameErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrProtocol, io.ErrUnexpectedEOF)
	}
	return err
}
