// Package filtergraph models ffmpeg filter graphs as structured chains of
// typed operations. Business logic assembles chains with labeled pads; the
// quoting-sensitive textual syntax is produced in one place by String.
package filtergraph

import (
	"fmt"
	"strings"
)

// Arg is a single filter argument. A quoted arg is wrapped in single quotes
// with commas and colons escaped, which ffmpeg requires for expressions like
// between(t,2,4). Positional args leave Key empty.
type Arg struct {
	Key    string
	Value  string
	Quoted bool
}

// KV returns a plain key=value argument.
func KV(key, value string) Arg { return Arg{Key: key, Value: value} }

// KVf is KV with fmt.Sprintf semantics for the value.
func KVf(key, format string, a ...any) Arg {
	return Arg{Key: key, Value: fmt.Sprintf(format, a...)}
}

// Expr returns a quoted key='value' argument for expression values.
func Expr(key, value string) Arg { return Arg{Key: key, Value: value, Quoted: true} }

// Filter is one named operation with its arguments.
type Filter struct {
	Name string
	Args []Arg
}

// NewFilter builds a filter record.
func NewFilter(name string, args ...Arg) Filter {
	return Filter{Name: name, Args: args}
}

// Chain is a sequence of filters connecting labeled input pads to labeled
// output pads.
type Chain struct {
	Inputs  []string
	Filters []Filter
	Outputs []string
}

// Graph is an ordered list of chains.
type Graph struct {
	chains []Chain
}

// Add appends a chain to the graph.
func (g *Graph) Add(chain Chain) {
	g.chains = append(g.chains, chain)
}

// Len reports the number of chains.
func (g *Graph) Len() int { return len(g.chains) }

// String serializes the graph to ffmpeg's textual filter syntax.
func (g *Graph) String() string {
	parts := make([]string, 0, len(g.chains))
	for _, chain := range g.chains {
		parts = append(parts, chain.serialize())
	}
	return strings.Join(parts, ";")
}

func (c Chain) serialize() string {
	var b strings.Builder
	for _, in := range c.Inputs {
		b.WriteString("[" + in + "]")
	}
	filters := make([]string, 0, len(c.Filters))
	for _, f := range c.Filters {
		filters = append(filters, f.serialize())
	}
	b.WriteString(strings.Join(filters, ","))
	for _, out := range c.Outputs {
		b.WriteString("[" + out + "]")
	}
	return b.String()
}

func (f Filter) serialize() string {
	if len(f.Args) == 0 {
		return f.Name
	}
	args := make([]string, 0, len(f.Args))
	for _, arg := range f.Args {
		value := arg.Value
		if arg.Quoted {
			value = "'" + escapeExpr(value) + "'"
		}
		if arg.Key == "" {
			args = append(args, value)
			continue
		}
		args = append(args, arg.Key+"="+value)
	}
	return f.Name + "=" + strings.Join(args, ":")
}

// escapeExpr escapes separators inside a quoted expression value.
func escapeExpr(value string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		",", `\,`,
		":", `\:`,
	)
	return r.Replace(value)
}

// EscapePath escapes a filesystem path for use as a filter argument value.
// Colons, commas, brackets, and quotes all collide with filter syntax.
func EscapePath(path string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		":", `\:`,
		",", `\,`,
		"[", `\[`,
		"]", `\]`,
		"'", `\'`,
	)
	return r.Replace(path)
}
