package chasm

import "strconv"

// The grammar, in rough EBNF:
//
//	script      = { definition } mainBlock ;
//	definition  = "DEF" word "=" value ";"
//	            | "DEF" word "(" [ word { word } ] ")" block ;
//	mainBlock   = "MAIN" block ;
//	block       = "{" { statement } "}" ;
//	statement   = instruction | macroCall | forLoop ;
//	instruction = ("P"|"S") OPCODE "(" [ value { value } ] ")" ";" ;
//	macroCall   = word "(" [ value { value } ] ")" ";" ;
//	forLoop     = "FOR" "(" value ")" block ;
//	value       = NUMBER | word ;
//
// Commas between values are consumed by the lexer as whitespace.

type argExpr struct {
	num    float64
	word   string // non-empty for identifier references
	isWord bool
	line   int
}

type statement interface{ stmtLine() int }

type instrStmt struct {
	mode Mode
	op   Opcode
	args []argExpr
	line int
}

type callStmt struct {
	name string
	args []argExpr
	line int
}

type forStmt struct {
	count argExpr
	body  []statement
	line  int
}

func (s *instrStmt) stmtLine() int { return s.line }
func (s *callStmt) stmtLine() int  { return s.line }
func (s *forStmt) stmtLine() int   { return s.line }

type macroDef struct {
	name   string
	params []string
	body   []statement
	line   int
}

type script struct {
	vars   map[string]argExpr
	macros map[string]*macroDef
	main   []statement
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(typ tokenType) (token, error) {
	t := p.next()
	if t.typ != typ {
		return t, errorf(t.line, "expected %s, got %s %q", typ, t.typ, t.text)
	}
	return t, nil
}

func (p *parser) parseScript() (*script, error) {
	s := &script{
		vars:   make(map[string]argExpr),
		macros: make(map[string]*macroDef),
	}

	for {
		switch t := p.peek(); t.typ {
		case tokDef:
			if err := p.parseDef(s); err != nil {
				return nil, err
			}
		case tokMain:
			p.next()
			body, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			if s.main != nil {
				return nil, errorf(t.line, "duplicate main block")
			}
			s.main = body
		case tokEOF:
			if s.main == nil {
				return nil, errorf(t.line, "script has no main block")
			}
			return s, nil
		default:
			return nil, errorf(t.line, "expected DEF or MAIN at top level, got %s %q", t.typ, t.text)
		}
	}
}

func (p *parser) parseDef(s *script) error {
	p.next() // DEF
	name, err := p.expect(tokWord)
	if err != nil {
		return err
	}

	switch t := p.next(); t.typ {
	case tokEquals:
		val, err := p.parseValue()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokSemicolon); err != nil {
			return err
		}
		// A later definition overwrites the mapping used by subsequent
		// references. The value is resolved now, so a definition naming a
		// variable that does not exist yet stays symbolic even if the name
		// gets defined later.
		if val.isWord {
			if def, ok := s.vars[val.word]; ok {
				val = def
			}
		}
		s.vars[name.text] = val
		return nil

	case tokLParen:
		var params []string
		for p.peek().typ != tokRParen {
			param, err := p.expect(tokWord)
			if err != nil {
				return err
			}
			params = append(params, param.text)
		}
		p.next() // ')'
		body, err := p.parseBlock()
		if err != nil {
			return err
		}
		if _, dup := s.macros[name.text]; dup {
			return errorf(name.line, "macro %q already defined", name.text)
		}
		s.macros[name.text] = &macroDef{name: name.text, params: params, body: body, line: name.line}
		return nil

	default:
		return errorf(t.line, "expected '=' or '(' after DEF %s", name.text)
	}
}

func (p *parser) parseBlock() ([]statement, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	var body []statement
	for {
		switch t := p.peek(); t.typ {
		case tokRBrace:
			p.next()
			return body, nil
		case tokEOF:
			return nil, errorf(t.line, "unterminated block")
		default:
			stmt, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			body = append(body, stmt)
		}
	}
}

func (p *parser) parseStatement() (statement, error) {
	switch t := p.peek(); t.typ {
	case tokPS:
		return p.parseInstruction()
	case tokFor:
		return p.parseFor()
	case tokWord:
		return p.parseCall()
	default:
		return nil, errorf(t.line, "expected instruction, macro call or FOR loop, got %s %q", t.typ, t.text)
	}
}

func (p *parser) parseInstruction() (statement, error) {
	modeTok := p.next()
	mode := Sequential
	if modeTok.text == "P" {
		mode = Parallel
	}

	opTok, err := p.expect(tokOpcode)
	if err != nil {
		return nil, err
	}
	op, ok := ParseOpcode(opTok.text)
	if !ok {
		return nil, errorf(opTok.line, "unknown opcode %q", opTok.text)
	}

	args, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemicolon); err != nil {
		return nil, err
	}
	return &instrStmt{mode: mode, op: op, args: args, line: modeTok.line}, nil
}

func (p *parser) parseCall() (statement, error) {
	name := p.next()
	args, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemicolon); err != nil {
		return nil, err
	}
	return &callStmt{name: name.text, args: args, line: name.line}, nil
}

func (p *parser) parseFor() (statement, error) {
	forTok := p.next()
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	count, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &forStmt{count: count, body: body, line: forTok.line}, nil
}

func (p *parser) parseArgList() ([]argExpr, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var args []argExpr
	for p.peek().typ != tokRParen {
		arg, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	p.next() // ')'
	return args, nil
}

func (p *parser) parseValue() (argExpr, error) {
	switch t := p.next(); t.typ {
	case tokNumber:
		num, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return argExpr{}, errorf(t.line, "malformed number %q", t.text)
		}
		return argExpr{num: num, line: t.line}, nil
	case tokWord, tokOpcode:
		// All-caps identifiers in value position are plain words.
		return argExpr{word: t.text, isWord: true, line: t.line}, nil
	default:
		return argExpr{}, errorf(t.line, "expected number or identifier, got %s %q", t.typ, t.text)
	}
}
