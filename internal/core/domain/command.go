package domain

import "strings"

// CommandName is the resolved tag of a command.
type CommandName uint8

const (
	// CommandUnknown is the tag for tokens that resolve to no supported
	// command. The original token is kept in Command.Token.
	CommandUnknown CommandName = iota
	CommandPing
	CommandEcho
	CommandSet
	CommandGet
	CommandDel
	CommandExists
	CommandType
	CommandKeys
	CommandConfig
	CommandInfo
	CommandReplconf
	CommandPsync
	CommandWait
	CommandCommand
	CommandQuit
)

var commandNames = map[string]CommandName{
	"PING":     CommandPing,
	"ECHO":     CommandEcho,
	"SET":      CommandSet,
	"GET":      CommandGet,
	"DEL":      CommandDel,
	"EXISTS":   CommandExists,
	"TYPE":     CommandType,
	"KEYS":     CommandKeys,
	"CONFIG":   CommandConfig,
	"INFO":     CommandInfo,
	"REPLCONF": CommandReplconf,
	"PSYNC":    CommandPsync,
	"WAIT":     CommandWait,
	"COMMAND":  CommandCommand,
	"QUIT":     CommandQuit,
}

var canonicalNames = [...]string{
	CommandUnknown:  "UNKNOWN",
	CommandPing:     "PING",
	CommandEcho:     "ECHO",
	CommandSet:      "SET",
	CommandGet:      "GET",
	CommandDel:      "DEL",
	CommandExists:   "EXISTS",
	CommandType:     "TYPE",
	CommandKeys:     "KEYS",
	CommandConfig:   "CONFIG",
	CommandInfo:     "INFO",
	CommandReplconf: "REPLCONF",
	CommandPsync:    "PSYNC",
	CommandWait:     "WAIT",
	CommandCommand:  "COMMAND",
	CommandQuit:     "QUIT",
}

// String returns the canonical upper-case name, or "UNKNOWN".
func (n CommandName) String() string {
	if int(n) < len(canonicalNames) {
		return canonicalNames[n]
	}
	return "UNKNOWN"
}

// IsWrite reports whether commands with this tag may mutate the store.
// Whether a particular invocation did is decided by the engine.
func (n CommandName) IsWrite() bool {
	return n == CommandSet || n == CommandDel
}

// ResolveCommandName maps a command token to its tag, case-insensitively.
func ResolveCommandName(token string) CommandName {
	if tag, ok := commandNames[token]; ok {
		return tag
	}
	if tag, ok := commandNames[strings.ToUpper(token)]; ok {
		return tag
	}
	return CommandUnknown
}

// Command is a parsed request: a resolved tag plus its arguments.
type Command struct {
	// Name is resolved from Token at parse time. Unresolved tokens yield
	// CommandUnknown.
	Name CommandName

	// Token is the first array element exactly as received.
	Token string

	// Args are the elements after the command name.
	Args []string

	// Raw holds the exact bytes consumed from the stream for this command.
	// It is what gets propagated to replicas.
	Raw []byte
}

// NewCommand builds a command from its decoded elements.
func NewCommand(elems []string, raw []byte) *Command {
	if len(elems) == 0 {
		return &Command{Name: CommandUnknown, Raw: raw}
	}
	return &Command{
		Name:  ResolveCommandName(elems[0]),
		Token: elems[0],
		Args:  elems[1:],
		Raw:   raw,
	}
}

// Empty reports whether the command carried no elements at all, as with
// an empty array frame.
func (c *Command) Empty() bool {
	return c.Name == CommandUnknown && c.Token == "" && len(c.Args) == 0
}

// WireLen is the number of bytes this command occupied on the wire.
func (c *Command) WireLen() int {
	return len(c.Raw)
}

// Elems returns the command token followed by its arguments.
func (c *Command) Elems() []string {
	out := make([]string, 0, len(c.Args)+1)
	out = append(out, c.Token)
	return append(out, c.Args...)
}

// Arg returns the i-th argument upper-cased, or "" if absent.
func (c *Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return strings.ToUpper(c.Args[i])
}
