package resp

// Buffer collects replies in memory. It has the same methods as Writer
// and never fails; Bytes returns everything written so far.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	b []byte
}

// Bytes returns the encoded replies. The slice is valid until the next
// write or Reset.
func (b *Buffer) Bytes() []byte { return b.b }

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int { return len(b.b) }

// Reset empties the buffer, keeping its capacity.
func (b *Buffer) Reset() { b.b = b.b[:0] }

func (b *Buffer) WriteSimpleString(s string) error {
	b.b = AppendSimpleString(b.b, s)
	return nil
}

func (b *Buffer) WriteError(s string) error {
	b.b = AppendError(b.b, s)
	return nil
}

func (b *Buffer) WriteInteger(n int64) error {
	b.b = AppendInteger(b.b, n)
	return nil
}

func (b *Buffer) WriteNullBulk() error {
	b.b = append(b.b, nullBulk...)
	return nil
}

// WriteBulk appends v as a bulk string. A nil slice is the null bulk.
func (b *Buffer) WriteBulk(v []byte) error {
	b.b = AppendBulk(b.b, v)
	return nil
}

func (b *Buffer) WriteBulkString(s string) error {
	b.b = AppendBulkString(b.b, s)
	return nil
}

func (b *Buffer) WriteArray(items [][]byte) error {
	b.b = AppendArrayHeader(b.b, len(items))
	for _, it := range items {
		b.b = AppendBulk(b.b, it)
	}
	return nil
}

func (b *Buffer) WriteStringArray(items []string) error {
	b.b = AppendArrayHeader(b.b, len(items))
	for _, it := range items {
		b.b = AppendBulkString(b.b, it)
	}
	return nil
}

func (b *Buffer) WriteNullArray() error {
	b.b = append(b.b, nullArray...)
	return nil
}

func (b *Buffer) WriteRaw(p []byte) error {
	b.b = append(b.b, p...)
	return nil
}

// Flush is a no-op.
func (b *Buffer) Flush() error { return nil }
