package register

import (
	"fmt"
	"strconv"
)

// tokenize splits a CLI line on runs of whitespace using a gcode-parser
// style character-class scan: no regexp, no allocation-heavy
// strings.Fields in the hot path.
func tokenize(line string) []string {
	var tokens []string
	i := 0
	for i < len(line) {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		if i >= len(line) {
			break
		}
		start := i
		for i < len(line) && !isSpace(line[i]) {
			i++
		}
		tokens = append(tokens, line[start:i])
	}
	return tokens
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// VerbHandler answers one CLI verb's arguments with a plain-text reply
// body (without the trailing OK/ERR framing, which CLI adds).
type VerbHandler func(args []string) (string, error)

// CLI is the token-based line protocol described for the bench/serial
// console: `d position ...`, `tel get ...`, `conf set ...`. Motor-mode
// verbs (`d ...`) are registered at boot by regmap.RegisterModeVerb
// rather than imported here, so register does not depend on modes.
type CLI struct {
	file  *File
	verbs map[string]VerbHandler
}

// NewCLI returns a CLI wired to file's "tel get"/"conf set"/"conf get"
// verbs. Callers add further verbs (e.g. "d") with RegisterVerb.
func NewCLI(file *File) *CLI {
	c := &CLI{file: file, verbs: make(map[string]VerbHandler)}
	c.verbs["tel"] = c.handleTel
	c.verbs["conf"] = c.handleConf
	return c
}

// RegisterVerb adds a handler for a top-level CLI verb.
func (c *CLI) RegisterVerb(verb string, handler VerbHandler) {
	c.verbs[verb] = handler
}

// HandleLine tokenizes and dispatches one CLI line, returning the full
// reply including its OK/ERR terminator.
func (c *CLI) HandleLine(line string) string {
	tokens := tokenize(line)
	if len(tokens) == 0 {
		return "ERR empty command\r\n"
	}
	handler, ok := c.verbs[tokens[0]]
	if !ok {
		return fmt.Sprintf("ERR unknown verb %q\r\n", tokens[0])
	}
	reply, err := handler(tokens[1:])
	if err != nil {
		return fmt.Sprintf("ERR %v\r\n", err)
	}
	if reply == "" {
		return "OK\r\n"
	}
	return fmt.Sprintf("OK %s\r\n", reply)
}

func (c *CLI) handleTel(args []string) (string, error) {
	if len(args) < 2 || args[0] != "get" {
		return "", fmt.Errorf("usage: tel get <name>")
	}
	d, ok := c.file.LookupName(args[1])
	if !ok {
		return "", fmt.Errorf("no register named %q", args[1])
	}
	v, err := c.file.Get(d.Address)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

func (c *CLI) handleConf(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("usage: conf get|set <name> [value]")
	}
	switch args[0] {
	case "get":
		if len(args) < 2 {
			return "", fmt.Errorf("usage: conf get <name>")
		}
		d, ok := c.file.LookupName(args[1])
		if !ok {
			return "", fmt.Errorf("no register named %q", args[1])
		}
		v, err := c.file.Get(d.Address)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case "set":
		if len(args) < 3 {
			return "", fmt.Errorf("usage: conf set <name> <value>")
		}
		d, ok := c.file.LookupName(args[1])
		if !ok {
			return "", fmt.Errorf("no register named %q", args[1])
		}
		v, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return "", fmt.Errorf("bad value %q: %w", args[2], err)
		}
		if err := c.file.Set(d.Address, v); err != nil {
			return "", err
		}
		return "", nil
	default:
		return "", fmt.Errorf("usage: conf get|set <name> [value]")
	}
}
