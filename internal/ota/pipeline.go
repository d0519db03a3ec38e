package ota

import "strings"

// CommandSpec is a single external command: a program and its arguments.
type CommandSpec struct {
	Program string
	Args    []string
}

// NewCommand builds a CommandSpec, appending args in order.
func NewCommand(program string, args ...string) CommandSpec {
	return CommandSpec{Program: program, Args: append([]string(nil), args...)}
}

// WithArgs returns a copy of c with more arguments appended.
func (c CommandSpec) WithArgs(args ...string) CommandSpec {
	c.Args = append(append([]string(nil), c.Args...), args...)
	return c
}

// Pipeline is an ordered list of commands joined by OS pipes, formatted to
// a single shell command line by the executor.
type Pipeline struct {
	Stages []CommandSpec
}

// NewPipeline starts a Pipeline with a single stage.
func NewPipeline(first CommandSpec) Pipeline {
	return Pipeline{Stages: []CommandSpec{first}}
}

// Pipe appends next as a further stage, piped from the previous one's
// stdout.
func (p Pipeline) Pipe(next CommandSpec) Pipeline {
	p.Stages = append(append([]CommandSpec(nil), p.Stages...), next)
	return p
}

// IsEmpty reports whether the pipeline has no stages.
func (p Pipeline) IsEmpty() bool { return len(p.Stages) == 0 }

// shellSafe is the set of characters that never need quoting in a POSIX
// shell command line, per the executor's quoting rule.
func shellSafe(r byte) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.' || r == '/' || r == '=':
		return true
	default:
		return false
	}
}

// shellQuote quotes s with single quotes if it contains any character
// outside [A-Za-z0-9-_./=], escaping embedded single quotes the POSIX way.
func shellQuote(s string) string {
	safe := true
	for i := 0; i < len(s); i++ {
		if !shellSafe(s[i]) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// FormatShell renders the pipeline as a single "/bin/sh -c" command line,
// stages joined by " | ".
func (p Pipeline) FormatShell() string {
	parts := make([]string, len(p.Stages))
	for i, stage := range p.Stages {
		var b strings.Builder
		b.WriteString(stage.Program)
		for _, arg := range stage.Args {
			b.WriteByte(' ')
			b.WriteString(shellQuote(arg))
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, " | ")
}
