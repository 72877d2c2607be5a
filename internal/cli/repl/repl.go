package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yndnr/minikv/internal/cli/connection"
	"github.com/yndnr/minikv/internal/cli/output"
)

// ErrUnbalancedQuotes is returned by SplitArgs for an unterminated quote.
var ErrUnbalancedQuotes = errors.New("invalid argument(s): unbalanced quotes")

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	mgr       *connection.Manager
	formatter output.Formatter
	completer *Completer
	history   *History
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO sets the input and output streams.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.input = in
		r.output = out
	}
}

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) {
		r.history = h
	}
}

// New creates a new REPL sending commands through mgr.
func New(mgr *connection.Manager, formatter output.Formatter, opts ...Option) *REPL {
	r := &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		mgr:       mgr,
		formatter: formatter,
		completer: NewCompleter(),
		history:   NewHistory(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the REPL loop. It returns nil on EOF or exit.
func (r *REPL) Run(ctx context.Context) error {
	_ = r.history.Load()
	defer r.history.Save()

	reader := bufio.NewReader(r.input)

	for {
		fmt.Fprint(r.output, r.prompt())

		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) && line == "" {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		args, perr := SplitArgs(line)
		if perr != nil {
			fmt.Fprintf(r.output, "Error: %v\n", perr)
			continue
		}

		done, xerr := r.execute(ctx, args)
		if xerr != nil {
			fmt.Fprintf(r.output, "Error: %v\n", xerr)
		}
		if done || ctx.Err() != nil {
			return nil
		}
	}
}

func (r *REPL) prompt() string {
	if c := r.mgr.Current(); c != nil {
		return c.Addr() + "> "
	}
	return "not connected> "
}

// execute runs one line. done reports that the loop should end.
func (r *REPL) execute(ctx context.Context, args []string) (done bool, err error) {
	switch strings.ToLower(args[0]) {
	case "exit", "quit":
		return true, nil
	case "help":
		fmt.Fprintln(r.output, "Commands: "+strings.Join(r.completer.Complete(""), ", "))
		return false, nil
	case "history":
		for i, e := range r.history.Entries() {
			fmt.Fprintf(r.output, "%4d  %s\n", i+1, e)
		}
		return false, nil
	case "connect":
		if len(args) != 2 {
			return false, errors.New("usage: connect HOST:PORT")
		}
		if err := r.mgr.Connect(ctx, args[1]); err != nil {
			return false, err
		}
		fmt.Fprintf(r.output, "Connected to %s\n", args[1])
		return false, nil
	case "disconnect":
		r.mgr.Disconnect()
		return false, nil
	}

	v, err := r.mgr.Do(ctx, args...)
	if err != nil {
		return false, err
	}
	return false, r.formatter.Format(r.output, v)
}

// SplitArgs splits a line into arguments.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)

	for _, ch := range line {
		switch {
		case escaped:
			cur.WriteRune(unescape(ch))
			escaped = false
		case quote == '"' && ch == '\\':
			escaped = true
		case quote != 0 && ch == quote:
			quote = 0
		case quote != 0:
			cur.WriteRune(ch)
		case ch == '"' || ch == '\'':
			quote = ch
			inArg = true
		case ch == ' ' || ch == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(ch)
			inArg = true
		}
	}

	if quote != 0 || escaped {
		return nil, ErrUnbalancedQuotes
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}

func unescape(ch rune) rune {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return ch
	}
}
