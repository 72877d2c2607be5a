package resp

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/yndnr/minikv/internal/core/domain"
)

// ============================================================
// ReadCommand Tests - Array Format
// ============================================================

func TestReadCommand_Array(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "simple PING command",
			input: "*1\r\n$4\r\nPING\r\n",
			want:  []string{"PING"},
		},
		{
			name:  "GET command",
			input: "*2\r\n$3\r\nGET\r\n$6\r\nmykey1\r\n",
			want:  []string{"GET", "mykey1"},
		},
		{
			name:  "SET command with expiry",
			input: "*5\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n$2\r\npx\r\n$3\r\n100\r\n",
			want:  []string{"SET", "foo", "bar", "px", "100"},
		},
		{
			name:  "simple string elements",
			input: "*2\r\n+ECHO\r\n+hey\r\n",
			want:  []string{"ECHO", "hey"},
		},
		{
			name:  "nested array is flattened",
			input: "*2\r\n$4\r\nECHO\r\n*1\r\n$2\r\nhi\r\n",
			want:  []string{"ECHO", "hi"},
		},
		{
			name:  "binary-safe payload",
			input: "*2\r\n$4\r\nECHO\r\n$4\r\na\r\nb\r\n",
			want:  []string{"ECHO", "a\r\nb"},
		},
		{
			name:  "top-level bulk string",
			input: "$4\r\nPING\r\n",
			want:  []string{"PING"},
		},
		{
			name:  "top-level simple string",
			input: "+PING\r\n",
			want:  []string{"PING"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input))
			cmd, err := r.ReadCommand()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := cmd.Elems()
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, want := range tt.want {
				if got[i] != want {
					t.Errorf("arg[%d] = %q, want %q", i, got[i], want)
				}
			}

			if cmd.WireLen() != len(tt.input) {
				t.Errorf("WireLen() = %d, want %d", cmd.WireLen(), len(tt.input))
			}
			if string(cmd.Raw) != tt.input {
				t.Errorf("Raw = %q, want %q", cmd.Raw, tt.input)
			}
			if r.Count() != int64(len(tt.input)) {
				t.Errorf("Count() = %d, want %d", r.Count(), len(tt.input))
			}
		})
	}
}

func TestReadCommand_EmptyArray(t *testing.T) {
	for _, input := range []string{"*0\r\n", "*-1\r\n"} {
		r := NewReader(strings.NewReader(input))
		cmd, err := r.ReadCommand()
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", input, err)
		}
		if !cmd.Empty() {
			t.Errorf("%q: Empty() = false, want true", input)
		}
		if r.Count() != int64(len(input)) {
			t.Errorf("%q: Count() = %d, want %d", input, r.Count(), len(input))
		}
	}
}

func TestReadCommand_ResolvesName(t *testing.T) {
	r := NewReader(strings.NewReader("*1\r\n$4\r\nping\r\n*1\r\n$5\r\nHELLO\r\n"))

	cmd, err := r.ReadCommand()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Name != domain.CommandPing {
		t.Errorf("Name = %v, want PING", cmd.Name)
	}

	cmd, err = r.ReadCommand()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Name != domain.CommandUnknown || cmd.Token != "HELLO" {
		t.Errorf("Name = %v Token = %q, want UNKNOWN HELLO", cmd.Name, cmd.Token)
	}
}

// ============================================================
// ReadCommand Tests - Pipelining and Byte Counting
// ============================================================

func TestReadCommand_Pipeline(t *testing.T) {
	frames := []string{
		"*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$1\r\n1\r\n",
		"*3\r\n$3\r\nSET\r\n$3\r\nbar\r\n$1\r\n2\r\n",
		"*3\r\n$8\r\nREPLCONF\r\n$6\r\nGETACK\r\n$1\r\n*\r\n",
	}
	r := NewReader(strings.NewReader(strings.Join(frames, "")))

	var total int64
	for i, frame := range frames {
		cmd, err := r.ReadCommand()
		if err != nil {
			t.Fatalf("command %d: unexpected error: %v", i, err)
		}
		total += int64(len(frame))
		if string(cmd.Raw) != frame {
			t.Errorf("command %d: Raw = %q, want %q", i, cmd.Raw, frame)
		}
		if r.Count() != total {
			t.Errorf("command %d: Count() = %d, want %d", i, r.Count(), total)
		}
	}

	if _, err := r.ReadCommand(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after last frame, got %v", err)
	}

	r.ResetCount()
	if r.Count() != 0 {
		t.Errorf("Count() after reset = %d, want 0", r.Count())
	}
}

func TestReadCommand_RawIsNotAliased(t *testing.T) {
	r := NewReader(strings.NewReader("*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nECHO\r\n"))
	first, _ := r.ReadCommand()
	if _, err := r.ReadCommand(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(first.Raw) != "*1\r\n$4\r\nPING\r\n" {
		t.Errorf("first Raw changed to %q", first.Raw)
	}
}

// ============================================================
// ReadCommand Tests - Errors and Limits
// ============================================================

func TestReadCommand_InvalidProtocol(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"inline command", "PING\r\n"},
		{"integer frame", ":1\r\n"},
		{"invalid array length", "*abc\r\n"},
		{"invalid bulk length", "*1\r\n$x\r\n"},
		{"bare minus length", "*1\r\n$-\r\n"},
		{"integer element", "*1\r\n:1\r\n"},
		{"missing bulk terminator", "*1\r\n$4\r\nPINGXX"},
		{"missing CRLF on header", "*1\n$4\r\nPING\r\n"},
		{"truncated payload", "*2\r\n$3\r\nGET\r\n$5\r\nab"},
		{"truncated array", "*2\r\n$4\r\nPING\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input))
			_, err := r.ReadCommand()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !domain.IsKind(err, domain.KindFraming) {
				t.Errorf("expected framing error, got %v", err)
			}
			if !domain.IsFatal(err) {
				t.Errorf("IsFatal(%v) = false, want true", err)
			}
		})
	}
}

func TestReadCommand_ArrayLenLimit(t *testing.T) {
	r := NewReader(strings.NewReader("*5000\r\n"))
	_, err := r.ReadCommand()
	if !errors.Is(err, ErrLimitExceeded) {
		t.Errorf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestReadCommand_BulkLenLimit(t *testing.T) {
	r := NewReader(strings.NewReader("*1\r\n$99999999\r\n"))
	_, err := r.ReadCommand()
	if !errors.Is(err, ErrLimitExceeded) {
		t.Errorf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestReadCommand_NullBulkString(t *testing.T) {
	r := NewReader(strings.NewReader("*2\r\n$4\r\nECHO\r\n$-1\r\n"))
	cmd, err := r.ReadCommand()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cmd.Args) != 1 || cmd.Args[0] != "" {
		t.Errorf("Args = %q, want one empty argument", cmd.Args)
	}
}

// ============================================================
// ReadRawBulk Tests
// ============================================================

func TestReadRawBulk(t *testing.T) {
	payload := "REDIS0011\xff\x00\x00\x00\x00\x00\x00\x00\x00"
	input := "$" + "18" + "\r\n" + payload + "*1\r\n$4\r\nPING\r\n"
	r := NewReader(strings.NewReader(input))

	got, err := r.ReadRawBulk()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != payload {
		t.Errorf("payload = %q, want %q", got, payload)
	}
	if r.Count() != int64(5+len(payload)) {
		t.Errorf("Count() = %d, want %d", r.Count(), 5+len(payload))
	}

	// The next frame starts right after the payload, with no CRLF between.
	cmd, err := r.ReadCommand()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Name != domain.CommandPing {
		t.Errorf("Name = %v, want PING", cmd.Name)
	}
}

func TestReadRawBulk_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"wrong type byte", "+OK\r\n"},
		{"negative length", "$-1\r\n"},
		{"truncated", "$10\r\nabc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input))
			if _, err := r.ReadRawBulk(); !domain.IsKind(err, domain.KindFraming) {
				t.Errorf("expected framing error, got %v", err)
			}
		})
	}
}

// ============================================================
// ReadReply Tests
// ============================================================

func TestReadReply(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Value
	}{
		{"simple string", "+PONG\r\n", Value{Type: SimpleString, Str: "PONG"}},
		{"error", "-ERR nope\r\n", Value{Type: Error, Str: "ERR nope"}},
		{"integer", ":42\r\n", Value{Type: Integer, Int: 42}},
		{"negative integer", ":-3\r\n", Value{Type: Integer, Int: -3}},
		{"bulk", "$3\r\nbar\r\n", Value{Type: BulkString, Str: "bar"}},
		{"null bulk", "$-1\r\n", Value{Type: BulkString, Null: true}},
		{"null array", "*-1\r\n", Value{Type: Array, Null: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input))
			got, err := r.ReadReply()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Type != tt.want.Type || got.Str != tt.want.Str || got.Int != tt.want.Int || got.Null != tt.want.Null {
				t.Errorf("ReadReply() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadReply_Array(t *testing.T) {
	r := NewReader(strings.NewReader("*3\r\n$3\r\ndir\r\n$-1\r\n:7\r\n"))
	got, err := r.ReadReply()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != Array || len(got.Array) != 3 {
		t.Fatalf("ReadReply() = %+v, want 3-element array", got)
	}
	if got.Array[0].Str != "dir" || !got.Array[1].Null || got.Array[2].Int != 7 {
		t.Errorf("elements = %+v", got.Array)
	}
	if got.Text() != "dir\n\n7" {
		t.Errorf("Text() = %q, want %q", got.Text(), "dir\n\n7")
	}
}

func TestValue_Err(t *testing.T) {
	if err := (Value{Type: Error, Str: "ERR x"}).Err(); err == nil || err.Error() != "ERR x" {
		t.Errorf("Err() = %v, want ERR x", err)
	}
	if err := (Value{Type: SimpleString, Str: "OK"}).Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}
