package resp

import (
	"bufio"
	"io"
	"strconv"
	"sync"
)

// Writer serializes RESP replies onto a buffered stream.
//
// Each method writes one complete frame under the writer's lock, so frames
// written from different goroutines never interleave. Bytes reach the
// stream on Flush.
type Writer struct {
	mu  sync.Mutex
	bw  *bufio.Writer
	buf []byte
}

// NewWriter returns a Writer with the default buffer size.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// NewWriterSize returns a Writer whose buffer has at least size bytes.
func NewWriterSize(w io.Writer, size int) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, size)}
}

func (w *Writer) write(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.bw.Write(frame)
	return err
}

// encode builds a frame in the writer's scratch buffer and writes it.
func (w *Writer) encode(build func(b []byte) []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = build(w.buf[:0])
	_, err := w.bw.Write(w.buf)
	return err
}

func (w *Writer) WriteSimpleString(s string) error {
	return w.encode(func(b []byte) []byte { return AppendSimpleString(b, s) })
}

func (w *Writer) WriteError(s string) error {
	return w.encode(func(b []byte) []byte { return AppendError(b, s) })
}

func (w *Writer) WriteInteger(n int64) error {
	return w.encode(func(b []byte) []byte { return AppendInteger(b, n) })
}

func (w *Writer) WriteNullBulk() error {
	return w.write(nullBulk)
}

// WriteBulk writes b as a bulk string. A nil slice is the null bulk string.
func (w *Writer) WriteBulk(b []byte) error {
	return w.encode(func(dst []byte) []byte { return AppendBulk(dst, b) })
}

func (w *Writer) WriteBulkString(s string) error {
	return w.encode(func(b []byte) []byte { return AppendBulkString(b, s) })
}

// WriteArray writes an array of bulk strings. Nil items are null bulks.
func (w *Writer) WriteArray(items [][]byte) error {
	return w.encode(func(b []byte) []byte {
		b = AppendArrayHeader(b, len(items))
		for _, it := range items {
			b = AppendBulk(b, it)
		}
		return b
	})
}

// WriteStringArray writes an array of bulk strings.
func (w *Writer) WriteStringArray(items []string) error {
	return w.encode(func(b []byte) []byte {
		b = AppendArrayHeader(b, len(items))
		for _, it := range items {
			b = AppendBulkString(b, it)
		}
		return b
	})
}

func (w *Writer) WriteNullArray() error {
	return w.write(nullArray)
}

// WriteRaw writes pre-encoded bytes unchanged.
func (w *Writer) WriteRaw(b []byte) error {
	return w.write(b)
}

// Flush writes any buffered data to the underlying stream.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bw.Flush()
}

var (
	crlf      = []byte("\r\n")
	nullBulk  = []byte("$-1\r\n")
	nullArray = []byte("*-1\r\n")
)

func AppendSimpleString(b []byte, s string) []byte {
	b = append(b, '+')
	b = append(b, s...)
	return append(b, crlf...)
}

func AppendError(b []byte, s string) []byte {
	b = append(b, '-')
	b = append(b, s...)
	return append(b, crlf...)
}

func AppendInteger(b []byte, n int64) []byte {
	b = append(b, ':')
	b = strconv.AppendInt(b, n, 10)
	return append(b, crlf...)
}

func AppendBulk(b, v []byte) []byte {
	if v == nil {
		return append(b, nullBulk...)
	}
	b = append(b, '$')
	b = strconv.AppendInt(b, int64(len(v)), 10)
	b = append(b, crlf...)
	b = append(b, v...)
	return append(b, crlf...)
}

func AppendBulkString(b []byte, s string) []byte {
	b = append(b, '$')
	b = strconv.AppendInt(b, int64(len(s)), 10)
	b = append(b, crlf...)
	b = append(b, s...)
	return append(b, crlf...)
}

func AppendArrayHeader(b []byte, n int) []byte {
	b = append(b, '*')
	b = strconv.AppendInt(b, int64(n), 10)
	return append(b, crlf...)
}

// EncodeCommand returns the array-of-bulk-strings encoding of args.
func EncodeCommand(args ...string) []byte {
	n := 16
	for _, a := range args {
		n += len(a) + 16
	}
	b := AppendArrayHeader(make([]byte, 0, n), len(args))
	for _, a := range args {
		b = AppendBulkString(b, a)
	}
	return b
}

// EncodeRawBulk returns "$<n>\r\n" followed by payload, with no trailing
// CRLF.
func EncodeRawBulk(payload []byte) []byte {
	b := make([]byte, 0, len(payload)+16)
	b = append(b, '$')
	b = strconv.AppendInt(b, int64(len(payload)), 10)
	b = append(b, crlf...)
	return append(b, payload...)
}

// Discard accepts every reply and writes nothing. It is the reply sink for
// commands replayed from a master.
var Discard discard

type discard struct{}

func (discard) WriteSimpleString(string) error  { return nil }
func (discard) WriteError(string) error         { return nil }
func (discard) WriteInteger(int64) error        { return nil }
func (discard) WriteNullBulk() error            { return nil }
func (discard) WriteBulk([]byte) error          { return nil }
func (discard) WriteBulkString(string) error    { return nil }
func (discard) WriteArray([][]byte) error       { return nil }
func (discard) WriteStringArray([]string) error { return nil }
func (discard) WriteNullArray() error           { return nil }
func (discard) WriteRaw([]byte) error           { return nil }
func (discard) Flush() error                    { return nil }
