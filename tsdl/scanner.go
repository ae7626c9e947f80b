// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package tsdl implements the default ctf.MetadataCompiler: a
// hand-written scanner, a recursive-descent parser producing a small
// AST, and a semantic visitor that populates a ctf.Declarations arena.
// There is no external lexer generator, matching the pack's own
// hand-rolled line/token parsers for self-describing text formats.
package tsdl

import (
	"fmt"
	"strings"
)

// tokenKind tags one lexical token.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokString
	tokPunct   // single-rune punctuation: { } ( ) [ ] ; : = , . < >
	tokEllipsis // "..."
)

type token struct {
	kind tokenKind
	text string
	line int
}

// scanner turns TSDL source text into a token stream, one token at a
// time, skipping whitespace and both comment styles.
type scanner struct {
	src  string
	pos  int
	line int
}

func newScanner(src string) *scanner {
	return &scanner{src: src, line: 1}
}

func (s *scanner) peekByte() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) advance() byte {
	b := s.src[s.pos]
	s.pos++
	if b == '\n' {
		s.line++
	}
	return b
}

func (s *scanner) skipSpaceAndComments() {
	for s.pos < len(s.src) {
		b := s.peekByte()
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			s.advance()
		case b == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/':
			for s.pos < len(s.src) && s.peekByte() != '\n' {
				s.advance()
			}
		case b == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '*':
			s.advance()
			s.advance()
			for s.pos < len(s.src) {
				if s.peekByte() == '*' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/' {
					s.advance()
					s.advance()
					break
				}
				s.advance()
			}
		default:
			return
		}
	}
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// next returns the next token, or a tokEOF token once the source is
// exhausted.
func (s *scanner) next() (token, error) {
	s.skipSpaceAndComments()
	if s.pos >= len(s.src) {
		return token{kind: tokEOF, line: s.line}, nil
	}

	line := s.line
	b := s.peekByte()

	switch {
	case isIdentStart(b):
		start := s.pos
		for s.pos < len(s.src) && isIdentPart(s.peekByte()) {
			s.advance()
		}
		return token{kind: tokIdent, text: s.src[start:s.pos], line: line}, nil

	case isDigit(b) || (b == '-' && s.pos+1 < len(s.src) && isDigit(s.src[s.pos+1])):
		start := s.pos
		s.advance()
		for s.pos < len(s.src) && isDigit(s.peekByte()) {
			s.advance()
		}
		return token{kind: tokInt, text: s.src[start:s.pos], line: line}, nil

	case b == '"':
		s.advance()
		start := s.pos
		for s.pos < len(s.src) && s.peekByte() != '"' {
			s.advance()
		}
		if s.pos >= len(s.src) {
			return token{}, fmt.Errorf("tsdl: unterminated string literal at line %d", line)
		}
		text := s.src[start:s.pos]
		s.advance()
		return token{kind: tokString, text: text, line: line}, nil

	case b == '.' && strings.HasPrefix(s.src[s.pos:], "..."):
		s.pos += 3
		return token{kind: tokEllipsis, text: "...", line: line}, nil

	case strings.ContainsRune("{}()[];:=,.<>", rune(b)):
		s.advance()
		return token{kind: tokPunct, text: string(b), line: line}, nil

	default:
		return token{}, fmt.Errorf("tsdl: unexpected byte %q at line %d", b, line)
	}
}
