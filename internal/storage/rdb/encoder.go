package rdb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/yndnr/minikv/internal/core/domain"
)

// Encoder writes a snapshot in a single pass.
type Encoder struct {
	w   *bufio.Writer
	crc uint64
	buf []byte

	// Metadata is written as aux fields after the header, in order.
	Metadata [][2]string
}

// DefaultMetadata is the aux fields written by Encode.
var DefaultMetadata = [][2]string{
	{"redis-ver", "7.2.0"},
	{"redis-bits", "64"},
}

// NewEncoder returns an encoder writing to w with DefaultMetadata.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:        bufio.NewWriter(w),
		Metadata: DefaultMetadata,
	}
}

// Encode writes a snapshot of entries to w. Entries are written to a
// single database in the order given.
func Encode(w io.Writer, entries []domain.Entry) error {
	return NewEncoder(w).Encode(entries)
}

// WriteFile writes a snapshot of entries to path, replacing any existing
// file.
func WriteFile(path string, entries []domain.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rdb: create %s: %w", path, err)
	}
	if err := Encode(f, entries); err != nil {
		f.Close()
		return fmt.Errorf("rdb: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("rdb: close %s: %w", path, err)
	}
	return nil
}

// WriteRaw writes an already encoded snapshot to path, replacing any
// existing file.
func WriteRaw(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("rdb: write %s: %w", path, err)
	}
	return nil
}

// Encode writes the header, metadata, entries and trailer, then flushes.
func (e *Encoder) Encode(entries []domain.Entry) error {
	e.buf = append(e.buf[:0], magic...)
	e.buf = append(e.buf, Version...)
	for _, kv := range e.Metadata {
		e.buf = append(e.buf, opAux)
		e.buf = appendString(e.buf, []byte(kv[0]))
		e.buf = appendString(e.buf, []byte(kv[1]))
	}
	if err := e.flushBuf(); err != nil {
		return err
	}

	if len(entries) > 0 {
		expires := 0
		for _, en := range entries {
			if en.HasExpiry() {
				expires++
			}
		}
		e.buf = append(e.buf[:0], opSelectDB, 0, opResizeDB)
		e.buf = appendLength(e.buf, uint64(len(entries)))
		e.buf = appendLength(e.buf, uint64(expires))
		if err := e.flushBuf(); err != nil {
			return err
		}

		for _, en := range entries {
			e.buf = e.buf[:0]
			if en.HasExpiry() {
				e.buf = append(e.buf, opExpireTimeMs)
				e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(en.ExpireAt))
			}
			e.buf = append(e.buf, typeString)
			e.buf = appendString(e.buf, []byte(en.Key))
			e.buf = appendString(e.buf, en.Value)
			if err := e.flushBuf(); err != nil {
				return err
			}
		}
	}

	e.buf = append(e.buf[:0], opEOF)
	e.crc = updateChecksum(e.crc, e.buf)
	e.buf = binary.LittleEndian.AppendUint64(e.buf, e.crc)
	if _, err := e.w.Write(e.buf); err != nil {
		return err
	}
	return e.w.Flush()
}

func (e *Encoder) flushBuf() error {
	e.crc = updateChecksum(e.crc, e.buf)
	_, err := e.w.Write(e.buf)
	return err
}

func appendLength(b []byte, n uint64) []byte {
	switch {
	case n < 1<<6:
		return append(b, byte(n))
	case n < 1<<14:
		return append(b, len14Bit|byte(n>>8), byte(n))
	case n <= math.MaxUint32:
		b = append(b, len32Bit)
		return binary.BigEndian.AppendUint32(b, uint32(n))
	default:
		b = append(b, len64Bit)
		return binary.BigEndian.AppendUint64(b, n)
	}
}

// appendString writes s as a compact integer when it is the canonical
// decimal form of a 32-bit value, and length-prefixed otherwise.
func appendString(b, s []byte) []byte {
	if len(s) > 0 && len(s) <= 11 {
		if v, err := strconv.ParseInt(string(s), 10, 32); err == nil && strconv.FormatInt(v, 10) == string(s) {
			switch {
			case v >= math.MinInt8 && v <= math.MaxInt8:
				return append(b, lenEnc|encInt8, byte(int8(v)))
			case v >= math.MinInt16 && v <= math.MaxInt16:
				b = append(b, lenEnc|encInt16)
				return binary.LittleEndian.AppendUint16(b, uint16(int16(v)))
			default:
				b = append(b, lenEnc|encInt32)
				return binary.LittleEndian.AppendUint32(b, uint32(int32(v)))
			}
		}
	}
	b = appendLength(b, uint64(len(s)))
	return append(b, s...)
}
