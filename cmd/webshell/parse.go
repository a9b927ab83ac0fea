package main

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// command is one simple command and the operator that follows it.
type command struct {
	op   string // "&&", "||" or "" for the last command
	args []string
}

var (
	errSyntax      = errors.New("syntax error")
	errUnsupported = errors.New("unsupported")
)

// parseLine splits line into commands joined by && and ||. Words follow
// POSIX quoting; expansions, pipes, redirections and lists are refused.
func parseLine(line string) ([]command, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	f, err := parser.Parse(strings.NewReader(line), "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errSyntax, err)
	}

	switch len(f.Stmts) {
	case 0:
		return nil, nil
	case 1:
		return flatten(f.Stmts[0])
	}
	return nil, unsupported(f.Stmts[1].Pos(), "command list")
}

func unsupported(pos syntax.Pos, what string) error {
	return fmt.Errorf("%w: %s at %s", errUnsupported, what, pos)
}

// flatten turns an and-or tree into its commands in source order. The
// operator joins the last command of the left side to the right side.
func flatten(st *syntax.Stmt) ([]command, error) {
	switch {
	case st.Background || st.Coprocess:
		return nil, unsupported(st.Pos(), "background job")
	case st.Negated:
		return nil, unsupported(st.Pos(), "negation")
	case len(st.Redirs) > 0:
		return nil, unsupported(st.Redirs[0].OpPos, "redirection")
	}

	switch cmd := st.Cmd.(type) {
	case *syntax.CallExpr:
		if len(cmd.Assigns) > 0 {
			return nil, unsupported(cmd.Assigns[0].Pos(), "assignment")
		}
		args := make([]string, 0, len(cmd.Args))
		for _, w := range cmd.Args {
			arg, err := literal(w)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return []command{{args: args}}, nil

	case *syntax.BinaryCmd:
		var op string
		switch cmd.Op {
		case syntax.AndStmt:
			op = "&&"
		case syntax.OrStmt:
			op = "||"
		default:
			return nil, unsupported(cmd.OpPos, cmd.Op.String())
		}
		left, err := flatten(cmd.X)
		if err != nil {
			return nil, err
		}
		right, err := flatten(cmd.Y)
		if err != nil {
			return nil, err
		}
		left[len(left)-1].op = op
		return append(left, right...), nil
	}
	return nil, unsupported(st.Pos(), "compound command")
}

// literal removes the quoting from a word made only of plain text and
// quoted strings.
func literal(w *syntax.Word) (string, error) {
	var b strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			unescape(&b, p.Value, "")
		case *syntax.SglQuoted:
			if p.Dollar {
				return "", unsupported(p.Pos(), "$'' string")
			}
			b.WriteString(p.Value)
		case *syntax.DblQuoted:
			if p.Dollar {
				return "", unsupported(p.Pos(), `$"" string`)
			}
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return "", unsupported(inner.Pos(), "expansion")
				}
				unescape(&b, lit.Value, "\\\"$`\n")
			}
		default:
			return "", unsupported(part.Pos(), "expansion")
		}
	}
	return b.String(), nil
}

// unescape writes s without its backslash escapes. Outside quotes every
// character can be escaped; inside double quotes only those in special.
// An escaped newline is a line continuation and disappears.
func unescape(b *strings.Builder, s, special string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		next := s[i+1]
		switch {
		case next == '\n':
			i++
		case special == "" || strings.IndexByte(special, next) >= 0:
			b.WriteByte(next)
			i++
		default:
			b.WriteByte(c)
		}
	}
}
