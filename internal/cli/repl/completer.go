package repl

import (
	"sort"
	"strings"
)

// serverCommands are the commands minikv-server understands.
var serverCommands = []string{
	"PING", "ECHO", "SET", "GET", "DEL", "EXISTS", "TYPE", "KEYS",
	"CONFIG GET", "INFO", "WAIT", "COMMAND",
}

// builtinCommands are handled by the REPL itself.
var builtinCommands = []string{"connect", "disconnect", "history", "help", "exit", "quit"}

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a new Completer.
func NewCompleter() *Completer {
	cmds := make([]string, 0, len(serverCommands)+len(builtinCommands))
	cmds = append(cmds, serverCommands...)
	cmds = append(cmds, builtinCommands...)
	sort.Strings(cmds)
	return &Completer{commands: cmds}
}

// Complete returns completion suggestions for the given prefix, ignoring
// case.
func (c *Completer) Complete(prefix string) []string {
	p := strings.ToUpper(prefix)
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(strings.ToUpper(cmd), p) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
