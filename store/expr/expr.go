// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package expr parses a computed/observer method signature such as
// "_computeFullName(firstName, lastName.*, 'lit', 3)" into a Signature that
// the batch pipeline uses to marshal call arguments from live store data.
package expr

import (
	"errors"
	"strconv"
	"strings"

	"github.com/AleutianAI/reactivestore/store/path"
)

// ErrMalformedExpression is returned when an expression does not match the
// "name(arg, arg, ...)" grammar.
var ErrMalformedExpression = errors.New("store/expr: malformed expression")

// ArgKind distinguishes how an argument's value is produced at call time.
type ArgKind int

const (
	// ArgProperty is a plain (non-deep, non-wildcard) property reference.
	ArgProperty ArgKind = iota
	// ArgStructured is a dotted path reference (e.g. "a.b.c").
	ArgStructured
	// ArgWildcard is a path ending in ".*"; delivers {path, value, base}.
	ArgWildcard
	// ArgLiteralString is a quoted string literal.
	ArgLiteralString
	// ArgLiteralNumber is a numeric literal.
	ArgLiteralNumber
)

// Arg describes one argument of a parsed method signature.
type Arg struct {
	// Name is the argument's source text: the literal value's rendering
	// for literals, or the property/path expression (wildcard suffix
	// stripped) for property references.
	Name string

	Kind ArgKind

	// LiteralValue holds the parsed literal for ArgLiteralString/Number.
	LiteralValue any

	// RootProperty is Name's root property for non-literal arguments.
	RootProperty string
}

// IsLiteral reports whether a is a string or number literal.
func (a Arg) IsLiteral() bool {
	return a.Kind == ArgLiteralString || a.Kind == ArgLiteralNumber
}

// Wildcard reports whether a binds to a subtree rather than a single leaf.
func (a Arg) Wildcard() bool {
	return a.Kind == ArgWildcard
}

// Structured reports whether a addresses a nested path rather than a bare
// property.
func (a Arg) Structured() bool {
	return a.Kind == ArgStructured || a.Kind == ArgWildcard
}

// Signature is the parsed form of a computed/observer method expression.
type Signature struct {
	MethodName string
	Args       []Arg
	// Static is true iff every argument is a literal, meaning the method
	// result never changes across flushes and can be computed once.
	Static bool
}

// Parse parses expression into a Signature, or returns
// ErrMalformedExpression if it does not match the "name(arg, ...)" grammar.
func Parse(expression string) (*Signature, error) {
	expression = strings.TrimSpace(expression)
	open := strings.IndexByte(expression, '(')
	if open <= 0 || !strings.HasSuffix(expression, ")") {
		return nil, ErrMalformedExpression
	}
	name := strings.TrimSpace(expression[:open])
	if name == "" || !isIdentifier(name) {
		return nil, ErrMalformedExpression
	}

	body := expression[open+1 : len(expression)-1]
	rawArgs := splitArgs(body)

	sig := &Signature{MethodName: name, Static: true}
	for _, raw := range rawArgs {
		arg, err := parseArg(raw)
		if err != nil {
			return nil, err
		}
		sig.Args = append(sig.Args, arg)
		if !arg.IsLiteral() {
			sig.Static = false
		}
	}
	return sig, nil
}

func isIdentifier(s string) bool {
	for i, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r == '$'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isAlpha {
			return false
		}
		if i > 0 && !isAlpha && !isDigit {
			return false
		}
	}
	return true
}

// splitArgs splits a comma-separated argument list, honoring "\," as an
// escaped literal comma rather than a separator. An empty body yields no
// arguments.
func splitArgs(body string) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}

	var args []string
	var cur strings.Builder
	escaped := false
	for _, r := range body {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			cur.WriteRune(r)
			escaped = true
		case r == ',':
			args = append(args, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	args = append(args, cur.String())
	return args
}

func parseArg(raw string) (Arg, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, `\,`, ",")
	s = unescapeBackslashes(s)

	if s == "" {
		return Arg{}, ErrMalformedExpression
	}

	leadIdx := 0
	if s[0] == '-' && len(s) > 1 {
		leadIdx = 1
	}
	lead := s[leadIdx]

	switch {
	case lead >= '0' && lead <= '9':
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Arg{}, ErrMalformedExpression
		}
		return Arg{Name: s, Kind: ArgLiteralNumber, LiteralValue: n}, nil

	case lead == '\'' || lead == '"':
		if len(s) < 2 || s[len(s)-1] != lead {
			return Arg{}, ErrMalformedExpression
		}
		return Arg{Name: s[1 : len(s)-1], Kind: ArgLiteralString, LiteralValue: s[1 : len(s)-1]}, nil

	default:
		name := s
		wildcard := path.IsWildcard(name)
		if wildcard {
			name = path.WildcardBase(name)
		}
		kind := ArgProperty
		if wildcard {
			kind = ArgWildcard
		} else if path.IsDeep(name) {
			kind = ArgStructured
		}
		return Arg{
			Name:         name,
			Kind:         kind,
			RootProperty: path.Root(name),
		}, nil
	}
}

// unescapeBackslashes drops one level of backslash escaping from s, letting
// callers write e.g. "\'" inside a literal.
func unescapeBackslashes(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			b.WriteByte(s[i])
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
