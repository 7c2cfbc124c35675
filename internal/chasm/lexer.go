package chasm

import (
	"strings"
	"unicode"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokPS            // P or S execution mode prefix
	tokOpcode
	tokWord
	tokNumber
	tokDef
	tokMain
	tokFor
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokEquals
	tokSemicolon
)

func (t tokenType) String() string {
	switch t {
	case tokEOF:
		return "end of script"
	case tokPS:
		return "execution mode"
	case tokOpcode:
		return "opcode"
	case tokWord:
		return "identifier"
	case tokNumber:
		return "number"
	case tokDef:
		return "DEF"
	case tokMain:
		return "MAIN"
	case tokFor:
		return "FOR"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokEquals:
		return "'='"
	case tokSemicolon:
		return "';'"
	}
	return "unknown token"
}

type token struct {
	typ  tokenType
	text string
	line int
}

// lex splits a script into tokens. Whitespace and commas separate tokens
// and are otherwise ignored; '#' starts a comment running to end of line.
func lex(src string) ([]token, error) {
	var tokens []token
	line := 1
	runes := []rune(src)
	i := 0

	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '\n':
			line++
			i++
		case r == ',' || unicode.IsSpace(r):
			i++
		case r == '#':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '(':
			tokens = append(tokens, token{tokLParen, "(", line})
			i++
		case r == ')':
			tokens = append(tokens, token{tokRParen, ")", line})
			i++
		case r == '{':
			tokens = append(tokens, token{tokLBrace, "{", line})
			i++
		case r == '}':
			tokens = append(tokens, token{tokRBrace, "}", line})
			i++
		case r == '=':
			tokens = append(tokens, token{tokEquals, "=", line})
			i++
		case r == ';':
			tokens = append(tokens, token{tokSemicolon, ";", line})
			i++
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			i++
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, token{tokNumber, string(runes[start:i]), line})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, classifyWord(string(runes[start:i]), line))
		default:
			return nil, errorf(line, "unexpected character %q", string(r))
		}
	}

	tokens = append(tokens, token{tokEOF, "", line})
	return tokens, nil
}

// classifyWord sorts a bare word into keyword, mode prefix, opcode or
// identifier. Keywords are recognized in any case; opcodes must be fully
// upper case.
func classifyWord(text string, line int) token {
	switch strings.ToUpper(text) {
	case "DEF":
		return token{tokDef, text, line}
	case "MAIN":
		return token{tokMain, text, line}
	case "FOR":
		return token{tokFor, text, line}
	case "P", "S":
		return token{tokPS, strings.ToUpper(text), line}
	}
	if isAllUpper(text) {
		return token{tokOpcode, text, line}
	}
	return token{tokWord, text, line}
}

func isAllUpper(s string) bool {
	for _, r := range s {
		if !(r == '_' || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}
