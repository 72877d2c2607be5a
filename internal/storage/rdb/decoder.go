package rdb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/yndnr/minikv/internal/core/domain"
)

// Header is the part of a snapshot that precedes the database sections.
type Header struct {
	Version  string
	Metadata map[string]string
}

type decoder struct {
	r *bufio.Reader
}

// Scan decodes a snapshot from r, calling fn for every record in file
// order. Returning false from fn stops the scan early, leaving the rest of
// the stream unread. Expired records are passed to fn like any other.
func Scan(r io.Reader, fn func(domain.Entry) bool) (*Header, error) {
	d := &decoder{r: bufio.NewReader(r)}

	hdr, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	if err := d.readMetadata(hdr); err != nil {
		return hdr, err
	}
	if err := d.readDatabases(fn); err != nil {
		return hdr, err
	}
	return hdr, nil
}

// Decode returns every record in the snapshot, including expired ones.
func Decode(r io.Reader) ([]domain.Entry, error) {
	var entries []domain.Entry
	_, err := Scan(r, func(e domain.Entry) bool {
		entries = append(entries, e)
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadEntries decodes the snapshot file at path. Expired records are
// returned; the caller decides what to do with them.
func LoadEntries(path string) ([]domain.Entry, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("rdb: load %s: %w", path, err)
	}
	return entries, nil
}

// LookupKey scans the snapshot at path for key without materializing the
// other records. An expired record is treated as absent.
func LookupKey(path, key string) ([]byte, bool, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	now := time.Now()
	var (
		value []byte
		found bool
	)
	_, err = Scan(f, func(e domain.Entry) bool {
		if e.Key != key || e.ExpiredAt(now) {
			return true
		}
		value, found = e.Value, true
		return false
	})
	if err != nil {
		return nil, false, fmt.Errorf("rdb: lookup %s: %w", path, err)
	}
	return value, found, nil
}

// Keys returns the unexpired keys of the snapshot at path in file order.
func Keys(path string) ([]string, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	now := time.Now()
	var keys []string
	_, err = Scan(f, func(e domain.Entry) bool {
		if !e.ExpiredAt(now) {
			keys = append(keys, e.Key)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("rdb: keys %s: %w", path, err)
	}
	return keys, nil
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rdb: open: %w", domain.ErrSnapshotIO.WithCause(err))
	}
	return f, nil
}

func (d *decoder) readHeader() (*Header, error) {
	var buf [9]byte
	if err := d.readFull(buf[:]); err != nil {
		return nil, err
	}
	if string(buf[:5]) != magic {
		return nil, malformed("missing magic string")
	}
	for _, c := range buf[5:] {
		if c < '0' || c > '9' {
			return nil, malformed("invalid version %q", buf[5:])
		}
	}
	return &Header{Version: string(buf[5:]), Metadata: make(map[string]string)}, nil
}

func (d *decoder) readMetadata(hdr *Header) error {
	for {
		op, err := d.peekByte()
		if err != nil {
			return err
		}
		if op == opSelectDB || op == opEOF {
			return nil
		}
		if op != opAux {
			return malformed("unexpected metadata marker 0x%02x", op)
		}
		_, _ = d.r.ReadByte()

		name, err := d.readString()
		if err != nil {
			return err
		}
		value, err := d.readString()
		if err != nil {
			return err
		}
		hdr.Metadata[string(name)] = string(value)
	}
}

func (d *decoder) readDatabases(fn func(domain.Entry) bool) error {
	for {
		op, err := d.readByte()
		if err != nil {
			return err
		}
		switch op {
		case opEOF:
			var sum [8]byte
			return d.readFull(sum[:])
		case opSelectDB:
			if _, err := d.readByte(); err != nil {
				return err
			}
			more, err := d.readDatabase(fn)
			if err != nil || !more {
				return err
			}
		default:
			return malformed("unexpected database marker 0x%02x", op)
		}
	}
}

// readDatabase reads the resize header and exactly as many records as it
// declares. It returns false if fn asked to stop.
func (d *decoder) readDatabase(fn func(domain.Entry) bool) (bool, error) {
	op, err := d.readByte()
	if err != nil {
		return false, err
	}
	if op != opResizeDB {
		return false, malformed("expected hash table size marker, got 0x%02x", op)
	}
	size, err := d.readSize()
	if err != nil {
		return false, err
	}
	if _, err := d.readSize(); err != nil { // keys with expiry, informational
		return false, err
	}

	for i := uint64(0); i < size; i++ {
		e, err := d.readRecord()
		if err != nil {
			return false, err
		}
		if !fn(e) {
			return false, nil
		}
	}
	return true, nil
}

func (d *decoder) readRecord() (domain.Entry, error) {
	var e domain.Entry

	typ, err := d.readByte()
	if err != nil {
		return e, err
	}
	switch typ {
	case opExpireTimeMs:
		var buf [8]byte
		if err := d.readFull(buf[:]); err != nil {
			return e, err
		}
		e.ExpireAt = int64(binary.LittleEndian.Uint64(buf[:]))
		if typ, err = d.readByte(); err != nil {
			return e, err
		}
	case opExpireTime:
		var buf [4]byte
		if err := d.readFull(buf[:]); err != nil {
			return e, err
		}
		e.ExpireAt = int64(binary.LittleEndian.Uint32(buf[:])) * 1000
		if typ, err = d.readByte(); err != nil {
			return e, err
		}
	}
	if typ != typeString {
		return e, fmt.Errorf("value type 0x%02x: %w", typ, domain.ErrUnsupportedEncoding)
	}

	key, err := d.readString()
	if err != nil {
		return e, err
	}
	value, err := d.readString()
	if err != nil {
		return e, err
	}
	e.Key = string(key)
	e.Value = value
	return e, nil
}

// readSize decodes a length. Special integer encodings are not sizes.
func (d *decoder) readSize() (uint64, error) {
	n, special, err := d.readLength()
	if err != nil {
		return 0, err
	}
	if special {
		return 0, malformed("unexpected string encoding in size")
	}
	return n, nil
}

// readLength decodes the size encoding. If special is true, n holds the
// low six bits selecting a string encoding.
func (d *decoder) readLength() (n uint64, special bool, err error) {
	b, err := d.readByte()
	if err != nil {
		return 0, false, err
	}

	switch b & 0xC0 {
	case len6Bit:
		return uint64(b & 0x3F), false, nil
	case len14Bit:
		next, err := d.readByte()
		if err != nil {
			return 0, false, err
		}
		return uint64(b&0x3F)<<8 | uint64(next), false, nil
	case lenEnc:
		return uint64(b & 0x3F), true, nil
	}

	switch b {
	case len32Bit:
		var buf [4]byte
		if err := d.readFull(buf[:]); err != nil {
			return 0, false, err
		}
		return uint64(binary.BigEndian.Uint32(buf[:])), false, nil
	case len64Bit:
		var buf [8]byte
		if err := d.readFull(buf[:]); err != nil {
			return 0, false, err
		}
		return binary.BigEndian.Uint64(buf[:]), false, nil
	default:
		return 0, false, malformed("invalid length byte 0x%02x", b)
	}
}

// maxStringLen bounds a single decoded string.
const maxStringLen = 512 * 1024 * 1024

func (d *decoder) readString() ([]byte, error) {
	n, special, err := d.readLength()
	if err != nil {
		return nil, err
	}

	if special {
		switch n {
		case encInt8:
			b, err := d.readByte()
			if err != nil {
				return nil, err
			}
			return strconv.AppendInt(nil, int64(int8(b)), 10), nil
		case encInt16:
			var buf [2]byte
			if err := d.readFull(buf[:]); err != nil {
				return nil, err
			}
			return strconv.AppendInt(nil, int64(int16(binary.LittleEndian.Uint16(buf[:]))), 10), nil
		case encInt32:
			var buf [4]byte
			if err := d.readFull(buf[:]); err != nil {
				return nil, err
			}
			return strconv.AppendInt(nil, int64(int32(binary.LittleEndian.Uint32(buf[:]))), 10), nil
		case encLZF:
			return nil, fmt.Errorf("lzf string: %w", domain.ErrUnsupportedEncoding)
		default:
			return nil, fmt.Errorf("string encoding %d: %w", n, domain.ErrUnsupportedEncoding)
		}
	}

	if n > maxStringLen {
		return nil, malformed("string length %d exceeds limit", n)
	}
	buf := make([]byte, n)
	if err := d.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, truncated(err)
	}
	return b, nil
}

func (d *decoder) peekByte() (byte, error) {
	b, err := d.r.Peek(1)
	if err != nil {
		return 0, truncated(err)
	}
	return b[0], nil
}

func (d *decoder) readFull(buf []byte) error {
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return truncated(err)
	}
	return nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrSnapshotMalformed)
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.ErrSnapshotMalformed.WithCause(io.ErrUnexpectedEOF)
	}
	return domain.ErrSnapshotIO.WithCause(err)
}
