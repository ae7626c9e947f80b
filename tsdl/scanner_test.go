// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package tsdl

import "testing"

func scanAll(t *testing.T, src string) []token {
	t.Helper()
	s := newScanner(src)
	var toks []token
	for {
		tok, err := s.next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks
		}
	}
}

func TestScannerIdentsAndPunct(t *testing.T) {
	toks := scanAll(t, "struct { uint32_t magic; };")
	want := []struct {
		kind tokenKind
		text string
	}{
		{tokIdent, "struct"},
		{tokPunct, "{"},
		{tokIdent, "uint32_t"},
		{tokIdent, "magic"},
		{tokPunct, ";"},
		{tokPunct, "}"},
		{tokPunct, ";"},
		{tokEOF, ""},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].kind != w.kind || toks[i].text != w.text {
			t.Fatalf("token %d = %+v, want kind=%v text=%q", i, toks[i], w.kind, w.text)
		}
	}
}

func TestScannerSkipsLineAndBlockComments(t *testing.T) {
	toks := scanAll(t, "a // line comment\nb /* block\ncomment */ c")
	var texts []string
	for _, tok := range toks {
		if tok.kind == tokIdent {
			texts = append(texts, tok.text)
		}
	}
	if len(texts) != 3 || texts[0] != "a" || texts[1] != "b" || texts[2] != "c" {
		t.Fatalf("got idents %v, want [a b c]", texts)
	}
}

func TestScannerNegativeInteger(t *testing.T) {
	toks := scanAll(t, "-12 34")
	if toks[0].kind != tokInt || toks[0].text != "-12" {
		t.Fatalf("got %+v, want tokInt -12", toks[0])
	}
	if toks[1].kind != tokInt || toks[1].text != "34" {
		t.Fatalf("got %+v, want tokInt 34", toks[1])
	}
}

func TestScannerStringLiteral(t *testing.T) {
	toks := scanAll(t, `"hello world"`)
	if toks[0].kind != tokString || toks[0].text != "hello world" {
		t.Fatalf("got %+v, want tokString %q", toks[0], "hello world")
	}
}

func TestScannerUnterminatedString(t *testing.T) {
	s := newScanner(`"oops`)
	if _, err := s.next(); err == nil {
		t.Fatal("next() on an unterminated string literal returned no error")
	}
}

func TestScannerEllipsis(t *testing.T) {
	toks := scanAll(t, "...")
	if toks[0].kind != tokEllipsis || toks[0].text != "..." {
		t.Fatalf("got %+v, want tokEllipsis", toks[0])
	}
}

func TestScannerLineTracking(t *testing.T) {
	toks := scanAll(t, "a\nb\n\nc")
	lines := map[string]int{}
	for _, tok := range toks {
		if tok.kind == tokIdent {
			lines[tok.text] = tok.line
		}
	}
	if lines["a"] != 1 || lines["b"] != 2 || lines["c"] != 4 {
		t.Fatalf("got lines %v, want a=1 b=2 c=4", lines)
	}
}

func TestScannerUnexpectedByte(t *testing.T) {
	s := newScanner("$")
	if _, err := s.next(); err == nil {
		t.Fatal("next() on an unexpected byte returned no error")
	}
}
