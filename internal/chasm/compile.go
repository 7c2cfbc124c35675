// Package chasm compiles rig control scripts into a flat stream of typed
// instructions. Variables, macros and loops are resolved entirely at
// compile time; the dispatcher only ever sees literal arguments.
package chasm

import (
	"math"
	"os"
)

// Mode says whether an instruction joins all running parallel work before
// executing (Sequential) or runs concurrently with whatever follows
// (Parallel).
type Mode int

const (
	Sequential Mode = iota
	Parallel
)

func (m Mode) String() string {
	if m == Parallel {
		return "P"
	}
	return "S"
}

// Arg is one fully resolved instruction argument: either a Number or a Str.
type Arg interface{ isArg() }

// Number is a numeric argument (volumes, speeds, temperatures, ports).
type Number float64

// Str is a symbolic argument, typically a rig node name.
type Str string

func (Number) isArg() {}
func (Str) isArg()    {}

// Instruction is one executable operation with literal arguments.
type Instruction struct {
	Mode Mode
	Op   Opcode
	Args []Arg
	Line int
}

// Compile turns a script source into the flat instruction stream. All
// errors are *CompileError with 1-based line numbers.
func Compile(src string) ([]Instruction, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	s, err := p.parseScript()
	if err != nil {
		return nil, err
	}
	return expand(s.main, s, nil)
}

// CompileFile reads and compiles the script at path.
func CompileFile(path string) ([]Instruction, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(string(src))
}

// expand flattens a statement list. bindings maps macro parameter names to
// the caller's arguments and is nil outside macro bodies; global variables
// are visible everywhere.
func expand(body []statement, s *script, bindings map[string]Arg) ([]Instruction, error) {
	var out []Instruction
	for _, stmt := range body {
		switch st := stmt.(type) {
		case *instrStmt:
			args := make([]Arg, len(st.args))
			for i, expr := range st.args {
				arg, err := resolve(expr, s, bindings)
				if err != nil {
					return nil, err
				}
				args[i] = arg
			}
			out = append(out, Instruction{Mode: st.mode, Op: st.op, Args: args, Line: st.line})

		case *callStmt:
			macro, ok := s.macros[st.name]
			if !ok {
				return nil, errorf(st.line, "call to undefined macro %q", st.name)
			}
			if len(st.args) != len(macro.params) {
				return nil, errorf(st.line, "macro %q takes %d argument(s), got %d",
					st.name, len(macro.params), len(st.args))
			}
			callBindings := make(map[string]Arg, len(macro.params))
			for i, param := range macro.params {
				arg, err := resolve(st.args[i], s, bindings)
				if err != nil {
					return nil, err
				}
				callBindings[param] = arg
			}
			expanded, err := expand(macro.body, s, callBindings)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)

		case *forStmt:
			count, err := loopCount(st.count, s, bindings)
			if err != nil {
				return nil, err
			}
			expanded, err := expand(st.body, s, bindings)
			if err != nil {
				return nil, err
			}
			for range count {
				out = append(out, expanded...)
			}
		}
	}
	return out, nil
}

// resolve turns a parsed value into a literal Arg. Words resolve against
// macro bindings first, then global variables, and otherwise stay symbolic.
func resolve(expr argExpr, s *script, bindings map[string]Arg) (Arg, error) {
	if !expr.isWord {
		return Number(expr.num), nil
	}
	if bound, ok := bindings[expr.word]; ok {
		return bound, nil
	}
	if def, ok := s.vars[expr.word]; ok {
		// Stored values were already resolved at definition time, so one
		// lookup suffices.
		if def.isWord {
			return Str(def.word), nil
		}
		return Number(def.num), nil
	}
	return Str(expr.word), nil
}

func loopCount(expr argExpr, s *script, bindings map[string]Arg) (int, error) {
	arg, err := resolve(expr, s, bindings)
	if err != nil {
		return 0, err
	}
	num, ok := arg.(Number)
	if !ok {
		return 0, errorf(expr.line, "loop count %q is not a number", expr.word)
	}
	n := float64(num)
	if n < 0 || n != math.Trunc(n) {
		return 0, errorf(expr.line, "loop count must be a non-negative integer, got %v", n)
	}
	return int(n), nil
}
