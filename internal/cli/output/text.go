package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yndnr/minikv/pkg/resp"
)

// TextFormatter formats replies the way redis-cli does on a terminal.
type TextFormatter struct{}

// Format writes v followed by a newline.
func (f *TextFormatter) Format(w io.Writer, v resp.Value) error {
	var b strings.Builder
	writeText(&b, v, "")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeText(b *strings.Builder, v resp.Value, indent string) {
	switch {
	case v.Null:
		b.WriteString("(nil)\n")
	case v.Type == resp.SimpleString:
		b.WriteString(v.Str + "\n")
	case v.Type == resp.Error:
		b.WriteString("(error) " + v.Str + "\n")
	case v.Type == resp.Integer:
		fmt.Fprintf(b, "(integer) %d\n", v.Int)
	case v.Type == resp.BulkString:
		b.WriteString(strconv.Quote(v.Str) + "\n")
	case v.Type == resp.Array:
		if len(v.Array) == 0 {
			b.WriteString("(empty array)\n")
			return
		}
		width := len(strconv.Itoa(len(v.Array)))
		for i, el := range v.Array {
			if i > 0 {
				b.WriteString(indent)
			}
			prefix := fmt.Sprintf("%*d) ", width, i+1)
			b.WriteString(prefix)
			writeText(b, el, indent+strings.Repeat(" ", len(prefix)))
		}
	default:
		b.WriteString(v.Str + "\n")
	}
}
