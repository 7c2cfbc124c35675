package chasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSimpleScript(t *testing.T) {
	src := `
		# move ten millilitres
		DEF volume = 10;
		MAIN {
			S MOVE(flask_water, reactor, volume);
			P START_STIR(stirrer_1);
		}
	`
	instrs, err := Compile(src)
	require.NoError(t, err)
	require.Len(t, instrs, 2)

	assert.Equal(t, Sequential, instrs[0].Mode)
	assert.Equal(t, OpMove, instrs[0].Op)
	assert.Equal(t, []Arg{Str("flask_water"), Str("reactor"), Number(10)}, instrs[0].Args)

	assert.Equal(t, Parallel, instrs[1].Mode)
	assert.Equal(t, OpStartStir, instrs[1].Op)
}

func TestCompileCommasAreOptional(t *testing.T) {
	withCommas, err := Compile(`MAIN { S MOVE(a, b, 5); }`)
	require.NoError(t, err)
	withoutCommas, err := Compile(`MAIN { S MOVE(a b 5); }`)
	require.NoError(t, err)
	assert.Equal(t, withCommas, withoutCommas)
}

func TestCompileRedefinitionOverwrites(t *testing.T) {
	src := `
		DEF vol = 5;
		DEF vol = 7;
		MAIN {
			S WAIT(vol);
		}
	`
	instrs, err := Compile(src)
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, []Arg{Number(7)}, instrs[0].Args)
}

func TestCompileDefinitionResolvesAtDefinitionTime(t *testing.T) {
	src := `
		DEF a = b;
		DEF b = 5;
		MAIN {
			S MOVE(a, flask_water, b);
		}
	`
	instrs, err := Compile(src)
	require.NoError(t, err)
	require.Len(t, instrs, 1)

	// b did not exist when a was defined, so a stays the symbolic word
	// even though b gained a value later.
	assert.Equal(t, []Arg{Str("b"), Str("flask_water"), Number(5)}, instrs[0].Args)
}

func TestCompileDefinitionCopiesCurrentValue(t *testing.T) {
	src := `
		DEF small = 2;
		DEF alias = small;
		DEF small = 9;
		MAIN {
			S WAIT(alias);
			S WAIT(small);
		}
	`
	instrs, err := Compile(src)
	require.NoError(t, err)
	require.Len(t, instrs, 2)
	assert.Equal(t, []Arg{Number(2)}, instrs[0].Args)
	assert.Equal(t, []Arg{Number(9)}, instrs[1].Args)
}

func TestCompileMacroExpansion(t *testing.T) {
	src := `
		DEF transfer(src dst vol) {
			S MOVE(src, dst, vol);
			S HOME(dst);
		}
		MAIN {
			transfer(flask_a, reactor, 5);
			transfer(flask_b, reactor, 7);
		}
	`
	instrs, err := Compile(src)
	require.NoError(t, err)
	require.Len(t, instrs, 4)

	// Each call gets its own copy; the second call must not see the
	// first call's bindings.
	assert.Equal(t, []Arg{Str("flask_a"), Str("reactor"), Number(5)}, instrs[0].Args)
	assert.Equal(t, []Arg{Str("flask_b"), Str("reactor"), Number(7)}, instrs[2].Args)
}

func TestCompileForLoop(t *testing.T) {
	src := `
		MAIN {
			FOR(3) {
				S CLEAN(flask_water, 10);
			}
		}
	`
	instrs, err := Compile(src)
	require.NoError(t, err)
	require.Len(t, instrs, 3)
	for _, instr := range instrs {
		assert.Equal(t, OpClean, instr.Op)
	}
}

func TestCompileForLoopVariableBound(t *testing.T) {
	src := `
		DEF cycles = 2;
		MAIN {
			FOR(cycles) { S HOME(pump_1); }
		}
	`
	instrs, err := Compile(src)
	require.NoError(t, err)
	assert.Len(t, instrs, 2)
}

func TestCompileErrors(t *testing.T) {
	testCases := []struct {
		name     string
		src      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "unknown opcode",
			src:      "MAIN {\nS TELEPORT(a, b);\n}",
			wantLine: 2,
			wantMsg:  "unknown opcode",
		},
		{
			name:     "macro argument count mismatch",
			src:      "DEF m(a b) { S MOVE(a, b, 1); }\nMAIN {\nm(onlyone);\n}",
			wantLine: 3,
			wantMsg:  "takes 2 argument(s), got 1",
		},
		{
			name:     "undefined macro",
			src:      "MAIN {\nnope(1);\n}",
			wantLine: 2,
			wantMsg:  "undefined macro",
		},
		{
			name:     "missing main",
			src:      "DEF x = 1;",
			wantMsg:  "no main block",
			wantLine: 1,
		},
		{
			name:     "negative loop count",
			src:      "MAIN {\nFOR(-1) { S HOME(p); }\n}",
			wantLine: 2,
			wantMsg:  "non-negative integer",
		},
		{
			name:     "fractional loop count",
			src:      "MAIN {\nFOR(1.5) { S HOME(p); }\n}",
			wantLine: 2,
			wantMsg:  "non-negative integer",
		},
		{
			name:     "unterminated block",
			src:      "MAIN {\nS HOME(p);",
			wantLine: 2,
			wantMsg:  "unterminated block",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.src)
			require.Error(t, err)
			var cerr *CompileError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tc.wantLine, cerr.Line)
			assert.Contains(t, cerr.Msg, tc.wantMsg)
		})
	}
}

func TestCompileMacroWithLoopInside(t *testing.T) {
	src := `
		DEF rinse(vessel n) {
			FOR(n) {
				S CLEAN(vessel, 5);
			}
		}
		MAIN {
			rinse(reactor, 2);
		}
	`
	instrs, err := Compile(src)
	require.NoError(t, err)
	require.Len(t, instrs, 2)
	assert.Equal(t, []Arg{Str("reactor"), Number(5)}, instrs[0].Args)
}

func TestCompileLineNumbersSurviveExpansion(t *testing.T) {
	src := "MAIN {\n\nS HOME(pump_1);\n}"
	instrs, err := Compile(src)
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, 3, instrs[0].Line)
}
