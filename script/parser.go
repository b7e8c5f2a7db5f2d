package script

// Parse checks and compiles a script body. Each non-empty line is an
// assignment of an expression to a name; there is no control flow.
func Parse(src string) (*Program, error) {
	toks, err := lexAll(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.program()
}

func lexAll(src string) ([]token, error) {
	lx := newLexer(src)
	var toks []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) acceptOp(text string) bool {
	if tok := p.peek(); tok.kind == tokOp && tok.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectOp(text string) (token, error) {
	tok := p.peek()
	if tok.kind != tokOp || tok.text != text {
		return token{}, syntaxf(tok.line, "expected %q, found %s", text, describe(tok))
	}
	p.pos++
	return tok, nil
}

func (p *parser) program() (*Program, error) {
	prog := &Program{}
	for {
		for p.peek().kind == tokNewline {
			p.advance()
		}
		if p.peek().kind == tokEOF {
			return prog, nil
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
		switch tok := p.peek(); tok.kind {
		case tokNewline:
			p.advance()
		case tokEOF:
		default:
			return nil, syntaxf(tok.line, "unexpected %s after statement", describe(tok))
		}
	}
}

func (p *parser) statement() (Stmt, error) {
	tok := p.peek()
	if tok.kind != tokIdent {
		return Stmt{}, syntaxf(tok.line, "expected assignment, found %s", describe(tok))
	}
	if isKeyword(tok.text) {
		return Stmt{}, syntaxf(tok.line, "cannot assign to keyword %q", tok.text)
	}
	p.advance()
	if _, err := p.expectOp("="); err != nil {
		return Stmt{}, err
	}
	expr, err := p.expression()
	if err != nil {
		return Stmt{}, err
	}
	return Stmt{Name: tok.text, Expr: expr, Line: tok.line}, nil
}

func (p *parser) expression() (Expr, error) { return p.orExpr() }

func (p *parser) orExpr() (Expr, error) {
	x, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword("or") {
		tok := p.advance()
		y, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		x = &Binary{Op: "or", X: x, Y: y, Line: tok.line}
	}
	return x, nil
}

func (p *parser) andExpr() (Expr, error) {
	x, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword("and") {
		tok := p.advance()
		y, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		x = &Binary{Op: "and", X: x, Y: y, Line: tok.line}
	}
	return x, nil
}

func (p *parser) notExpr() (Expr, error) {
	if p.peekKeyword("not") {
		tok := p.advance()
		x, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "not", X: x, Line: tok.line}, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (Expr, error) {
	x, err := p.addExpr()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.kind == tokOp {
		switch tok.text {
		case "==", "!=", "<", ">", "<=", ">=":
			p.advance()
			y, err := p.addExpr()
			if err != nil {
				return nil, err
			}
			return &Binary{Op: tok.text, X: x, Y: y, Line: tok.line}, nil
		}
	}
	return x, nil
}

func (p *parser) addExpr() (Expr, error) {
	x, err := p.mulExpr()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || tok.text != "+" && tok.text != "-" {
			return x, nil
		}
		p.advance()
		y, err := p.mulExpr()
		if err != nil {
			return nil, err
		}
		x = &Binary{Op: tok.text, X: x, Y: y, Line: tok.line}
	}
}

func (p *parser) mulExpr() (Expr, error) {
	x, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || tok.text != "*" && tok.text != "/" {
			return x, nil
		}
		p.advance()
		y, err := p.unary()
		if err != nil {
			return nil, err
		}
		x = &Binary{Op: tok.text, X: x, Y: y, Line: tok.line}
	}
}

func (p *parser) unary() (Expr, error) {
	if tok := p.peek(); tok.kind == tokOp && tok.text == "-" {
		p.advance()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "-", X: x, Line: tok.line}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || tok.text != "[" {
			return x, nil
		}
		p.advance()
		idx, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp("]"); err != nil {
			return nil, err
		}
		x = &Index{X: x, Idx: idx, Line: tok.line}
	}
}

func (p *parser) primary() (Expr, error) {
	tok := p.peek()
	switch tok.kind {
	case tokNumber:
		p.advance()
		return &NumberLit{Value: tok.num, Line: tok.line}, nil
	case tokString:
		p.advance()
		return &StringLit{Value: tok.text, Line: tok.line}, nil
	case tokIdent:
		switch tok.text {
		case "true", "True":
			p.advance()
			return &BoolLit{Value: true, Line: tok.line}, nil
		case "false", "False":
			p.advance()
			return &BoolLit{Value: false, Line: tok.line}, nil
		case "and", "or", "not":
			return nil, syntaxf(tok.line, "unexpected keyword %q", tok.text)
		}
		p.advance()
		if p.acceptOp("(") {
			return p.callArgs(tok)
		}
		return &Ident{Name: tok.text, Line: tok.line}, nil
	case tokOp:
		if tok.text == "(" {
			p.advance()
			x, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return x, nil
		}
	}
	return nil, syntaxf(tok.line, "expected expression, found %s", describe(tok))
}

func (p *parser) callArgs(name token) (Expr, error) {
	call := &Call{Name: name.text, Line: name.line}
	if p.acceptOp(")") {
		return call, nil
	}
	for {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.acceptOp(",") {
			continue
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return call, nil
	}
}

func (p *parser) peekKeyword(kw string) bool {
	tok := p.peek()
	return tok.kind == tokIdent && tok.text == kw
}

func isKeyword(s string) bool {
	switch s {
	case "and", "or", "not", "true", "false", "True", "False":
		return true
	}
	return false
}

func describe(tok token) string {
	switch tok.kind {
	case tokEOF:
		return "end of script"
	case tokNewline:
		return "end of line"
	case tokString:
		return "string"
	case tokNumber:
		return tok.text
	default:
		return "\"" + tok.text + "\""
	}
}
