// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package tsdl

import (
	"fmt"
	"strconv"
)

// parser is a recursive-descent parser with one token of lookahead.
type parser struct {
	sc  *scanner
	tok token
}

func newParser(src string) (*parser, error) {
	p := &parser{sc: newScanner(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	t, err := p.sc.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) isPunct(s string) bool {
	return p.tok.kind == tokPunct && p.tok.text == s
}

func (p *parser) expectPunct(s string) error {
	if !p.isPunct(s) {
		return fmt.Errorf("tsdl: expected %q, got %q at line %d", s, p.tok.text, p.tok.line)
	}
	return p.advance()
}

func (p *parser) expectIdent() (string, error) {
	if p.tok.kind != tokIdent {
		return "", fmt.Errorf("tsdl: expected identifier, got %q at line %d", p.tok.text, p.tok.line)
	}
	name := p.tok.text
	return name, p.advance()
}

// parseFile parses a complete metadata text into the top-level block
// list.
func parseFile(src string) (*File, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	var blocks []*Block
	for p.tok.kind != tokEOF {
		b, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return &File{Blocks: blocks}, nil
}

func (p *parser) parseBlock() (*Block, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var kind blockKind
	switch name {
	case "trace":
		kind = blockTrace
	case "stream":
		kind = blockStream
	case "event":
		kind = blockEvent
	default:
		return nil, fmt.Errorf("tsdl: unknown top-level block %q at line %d", name, p.tok.line)
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	block := &Block{Kind: kind, Assigns: map[string]string{}, Named: map[string][]*Field{}}
	for !p.isPunct("}") {
		if err := p.parseBlockMember(block); err != nil {
			return nil, err
		}
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	if p.isPunct(";") {
		p.advance()
	}
	return block, nil
}

func (p *parser) parseDottedName() (string, error) {
	name, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	for p.isPunct(".") {
		if err := p.advance(); err != nil {
			return "", err
		}
		part, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		name += "." + part
	}
	return name, nil
}

// parseBlockMember parses one `key = value;` assignment or one
// `dotted.name { ... };` nested struct body.
func (p *parser) parseBlockMember(block *Block) error {
	dotted, err := p.parseDottedName()
	if err != nil {
		return err
	}
	switch {
	case p.isPunct("="):
		p.advance()
		val, err := p.parseScalarValue()
		if err != nil {
			return err
		}
		block.Assigns[dotted] = val
		return p.expectPunct(";")
	case p.isPunct("{"):
		fields, err := p.parseFieldList()
		if err != nil {
			return err
		}
		block.Named[dotted] = fields
		if p.isPunct(";") {
			p.advance()
		}
		return nil
	default:
		return fmt.Errorf("tsdl: expected '=' or '{' after %q at line %d", dotted, p.tok.line)
	}
}

func (p *parser) parseScalarValue() (string, error) {
	switch p.tok.kind {
	case tokString, tokIdent, tokInt:
		v := p.tok.text
		return v, p.advance()
	default:
		return "", fmt.Errorf("tsdl: expected a value at line %d", p.tok.line)
	}
}

// parseFieldList parses a brace-delimited list of struct fields,
// consuming both braces.
func (p *parser) parseFieldList() ([]*Field, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var fields []*Field
	for !p.isPunct("}") {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, p.expectPunct("}")
}

func (p *parser) parseField() (*Field, error) {
	typ, err := p.parseTypeExpr()
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	for p.isPunct("[") {
		p.advance()
		switch p.tok.kind {
		case tokInt:
			n, err := strconv.ParseInt(p.tok.text, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("tsdl: bad array length %q at line %d", p.tok.text, p.tok.line)
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			typ = ArrayType{Elem: typ, Length: n}
		case tokIdent:
			lengthPath := p.tok.text
			if err := p.advance(); err != nil {
				return nil, err
			}
			typ = SequenceType{Elem: typ, LengthPath: lengthPath}
		default:
			return nil, fmt.Errorf("tsdl: expected array length or field name at line %d", p.tok.line)
		}
		if err := p.expectPunct("]"); err != nil {
			return nil, err
		}
	}
	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return &Field{Name: name, Type: typ}, nil
}

func (p *parser) parseTypeExpr() (TypeExpr, error) {
	if p.tok.kind != tokIdent {
		return nil, fmt.Errorf("tsdl: expected a type at line %d", p.tok.line)
	}
	switch p.tok.text {
	case "integer":
		p.advance()
		return p.parseIntegerType()
	case "floating_point":
		p.advance()
		return p.parseFloatType()
	case "enum":
		p.advance()
		return p.parseEnumType()
	case "struct":
		p.advance()
		fields, err := p.parseFieldList()
		if err != nil {
			return nil, err
		}
		return StructType{Fields: fields}, nil
	case "variant":
		p.advance()
		return p.parseVariantType()
	case "string":
		p.advance()
		if p.isPunct("{") {
			if err := p.skipBracedAssigns(); err != nil {
				return nil, err
			}
		}
		return StringTypeExpr{}, nil
	default:
		name := p.tok.text
		return NamedType{Name: name}, p.advance()
	}
}

func (p *parser) skipBracedAssigns() error {
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	for !p.isPunct("}") {
		if _, err := p.expectIdent(); err != nil {
			return err
		}
		if err := p.expectPunct("="); err != nil {
			return err
		}
		if _, err := p.parseScalarValue(); err != nil {
			return err
		}
		if err := p.expectPunct(";"); err != nil {
			return err
		}
	}
	return p.expectPunct("}")
}

func (p *parser) parseIntegerType() (TypeExpr, error) {
	it := IntegerType{Base: 10}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	for !p.isPunct("}") {
		key, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		val, err := p.parseScalarValue()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		switch key {
		case "size":
			it.Size, _ = strconv.Atoi(val)
		case "signed":
			it.Signed = val == "true" || val == "1"
		case "byte_order":
			it.ByteOrder = val
		case "align":
			it.Align, _ = strconv.Atoi(val)
		case "base":
			it.Base, _ = strconv.Atoi(val)
		}
	}
	return it, p.expectPunct("}")
}

func (p *parser) parseFloatType() (TypeExpr, error) {
	ft := FloatType{}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	for !p.isPunct("}") {
		key, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		val, err := p.parseScalarValue()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		switch key {
		case "exp_dig":
			ft.ExpDig, _ = strconv.Atoi(val)
		case "mant_dig":
			ft.MantDig, _ = strconv.Atoi(val)
		case "byte_order":
			ft.ByteOrder = val
		case "align":
			ft.Align, _ = strconv.Atoi(val)
		}
	}
	return ft, p.expectPunct("}")
}

func (p *parser) parseEnumType() (TypeExpr, error) {
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	backing, err := p.parseTypeExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var ranges []EnumRange
	for {
		label, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		low, err := p.expectInt()
		if err != nil {
			return nil, err
		}
		high := low
		if p.tok.kind == tokEllipsis {
			p.advance()
			high, err = p.expectInt()
			if err != nil {
				return nil, err
			}
		}
		ranges = append(ranges, EnumRange{Label: label, Low: low, High: high})
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return EnumType{Backing: backing, Ranges: ranges}, p.expectPunct("}")
}

func (p *parser) expectInt() (int64, error) {
	if p.tok.kind != tokInt {
		return 0, fmt.Errorf("tsdl: expected an integer, got %q at line %d", p.tok.text, p.tok.line)
	}
	n, err := strconv.ParseInt(p.tok.text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("tsdl: bad integer literal %q at line %d", p.tok.text, p.tok.line)
	}
	return n, p.advance()
}

func (p *parser) parseVariantType() (TypeExpr, error) {
	if err := p.expectPunct("<"); err != nil {
		return nil, err
	}
	tag, err := p.parseDottedName()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(">"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var branches []VariantBranch
	for !p.isPunct("}") {
		typ, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		branches = append(branches, VariantBranch{Name: name, Type: typ})
	}
	return VariantType{Tag: tag, Branches: branches}, p.expectPunct("}")
}
