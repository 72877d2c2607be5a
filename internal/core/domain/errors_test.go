package domain

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without cause",
			err:      NewError(KindCommand, "syntax error"),
			expected: "ERR syntax error",
		},
		{
			name:     "error with cause",
			err:      ErrSnapshotIO.WithCause(io.ErrUnexpectedEOF),
			expected: "ERR snapshot file unreadable: unexpected EOF",
		},
		{
			name:     "arity error",
			err:      ErrWrongArgs("get"),
			expected: "ERR wrong number of arguments for 'get' command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	wrapped := fmt.Errorf("decode: %w", ErrUnsupportedEncoding.WithCause(errors.New("lzf")))

	if !errors.Is(wrapped, ErrUnsupportedEncoding) {
		t.Error("errors.Is should see through wrapping and cause")
	}
	if errors.Is(wrapped, ErrSnapshotMalformed) {
		t.Error("errors.Is should not match a different sentinel")
	}
	if errors.Is(ErrSyntax, fmt.Errorf("syntax error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := ErrFraming.WithCause(cause)

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
	if errors.Unwrap(ErrFraming) != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestDomainError_WithCause(t *testing.T) {
	cause := fmt.Errorf("root cause")
	withCause := ErrHandshake.WithCause(cause)

	if ErrHandshake.Cause != nil {
		t.Error("WithCause should not modify original error")
	}
	if withCause.Kind != KindProtocol {
		t.Errorf("Kind = %v, want %v", withCause.Kind, KindProtocol)
	}
	if withCause.Reply() != ErrHandshake.Reply() {
		t.Errorf("Reply() = %q, want %q", withCause.Reply(), ErrHandshake.Reply())
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"unknown command", ErrUnknownCommand("FOO"), false},
		{"arity", ErrWrongArgs("set"), false},
		{"framing", ErrFraming, true},
		{"wrapped framing", fmt.Errorf("read: %w", ErrLimitExceeded), true},
		{"handshake", ErrHandshake, true},
		{"persistence", ErrSnapshotMalformed, false},
		{"unsupported", ErrUnsupportedEncoding, false},
		{"plain io", io.EOF, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.fatal {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.fatal)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(fmt.Errorf("x: %w", ErrSnapshotIO)); got != KindPersistence {
		t.Errorf("KindOf() = %v, want %v", got, KindPersistence)
	}
	if got := KindOf(io.EOF); got != 0 {
		t.Errorf("KindOf(io.EOF) = %v, want 0", got)
	}
	if !IsKind(ErrRateLimited, KindCommand) {
		t.Error("IsKind(ErrRateLimited, KindCommand) = false, want true")
	}
	if got := KindUnsupported.String(); got != "unsupported" {
		t.Errorf("String() = %q, want %q", got, "unsupported")
	}
}

func TestReplyText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrUnknownCommand("FOO"), "ERR unknown command 'FOO'"},
		{fmt.Errorf("lookup: %w", ErrSnapshotMalformed), "ERR malformed snapshot file"},
		{errors.New("boom"), "ERR boom"},
	}

	for _, tt := range tests {
		if got := ReplyText(tt.err); got != tt.want {
			t.Errorf("ReplyText(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
