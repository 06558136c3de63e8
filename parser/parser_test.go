// Tests for the rawk parser.

package parser_test

import (
	"strings"
	"testing"

	"github.com/pegasusheavy/rawk/parser"
)

func parse(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.ParseProgram([]byte(src), nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return prog.String()
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		src    string
		output string
	}{
		{`BEGIN { print "x" }`, "BEGIN {\n    print \"x\"\n}"},
		{`BEGIN { x = 1 + 2 * 3 }`, "BEGIN {\n    x = 1 + 2 * 3\n}"},
		{`BEGIN { x = (1 + 2) * 3 }`, "BEGIN {\n    x = (1 + 2) * 3\n}"},
		{`BEGIN { x = "a" "b" }`, "BEGIN {\n    x = \"a\" \"b\"\n}"},
		{`BEGIN { x = a ? b : c }`, "BEGIN {\n    x = a ? b : c\n}"},
		{`BEGIN { x = -2 ^ 2 }`, "BEGIN {\n    x = -2 ^ 2\n}"},
		{`BEGIN { x += 5 }`, "BEGIN {\n    x += 5\n}"},
		{`NR == 1, NR == 2 { print $1 }`, "NR == 1, NR == 2 {\n    print $1\n}"},
		{`$1 == "x" { f = 1 }`, "$1 == \"x\" {\n    f = 1\n}"},
		{`/foo/ { n++ }`, "/foo/ {\n    n++\n}"},
		{`END { for (k in a) print k }`,
			"END {\n    for (k in a) {\n        print k\n    }\n}"},
		{`function add(a, b) { return a + b }`,
			"function add(a, b) {\n    return a + b\n}"},
		{`BEGIN { delete a[1, 2] }`, "BEGIN {\n    delete a[1, 2]\n}"},
		{`BEGIN { if ((1, 2) in a) x = 1 }`,
			"BEGIN {\n    if ((1, 2) in a) {\n        x = 1\n    }\n}"},
		{`BEGIN { print "a" > "file" }`, "BEGIN {\n    print \"a\" >\"file\"\n}"},
		{`BEGIN { print "a" >> "file" }`, "BEGIN {\n    print \"a\" >>\"file\"\n}"},
		{`BEGIN { print "a" | "sort" }`, "BEGIN {\n    print \"a\" |\"sort\"\n}"},
		{`{ x = $1 ~ /re/ }`, "{\n    x = $1 ~ \"re\"\n}"},
		{`BEGIN { getline }`, "BEGIN {\n    getline\n}"},
		{`BEGIN { getline x }`, "BEGIN {\n    getline x\n}"},
		{`BEGIN { getline x <"f" }`, "BEGIN {\n    getline x <\"f\"\n}"},
		{`BEGIN { "cmd" | getline }`, "BEGIN {\n    \"cmd\" |getline\n}"},
		{`BEGIN { "cmd" | getline x }`, "BEGIN {\n    \"cmd\" |getline x\n}"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			output := parse(t, test.src)
			if output != test.output {
				t.Errorf("expected %q, got %q", test.output, output)
			}
		})
	}
}

// Parsing the pretty-printed form of a program must give back the
// same pretty-printed form.
func TestStringRoundTrip(t *testing.T) {
	progs := []string{
		`BEGIN { while (("ls" | getline line) > 0) print line }`,
		`{ sum += $1 } END { print sum }`,
		`BEGIN { do x++; while (x < 10) }`,
		`$0 ~ /x/ { print; next }`,
		"function f(a, b,\tc) { if (a) return b; else return c }",
		`BEGIN { for (i = 0; i < 3; i++) printf "%d\n", i }`,
		`BEGINFILE { n = 0 } ENDFILE { print FILENAME, n } { n++ }`,
		`BEGIN { a["x"] = 1; if ("x" in a) delete a["x"] }`,
		`{ gsub(/foo/, "bar"); print $0 }`,
		`BEGIN { x = substr("hello", 2, 3) tolower("ABC") }`,
	}
	for _, src := range progs {
		t.Run(src, func(t *testing.T) {
			first := parse(t, src)
			second := parse(t, first)
			if first != second {
				t.Errorf("round trip mismatch:\nfirst:  %q\nsecond: %q", first, second)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		src string
		err string
	}{
		{`{ print`, "expected } instead of EOF"},
		{`BEGIN x`, "expected { after BEGIN"},
		{`function f(a, a) {}`, `duplicate parameter name "a"`},
		{`function f() {} function f() {}`, `function "f" already defined`},
		{`BEGIN { f() }`, `undefined function "f"`},
		{`function f(x) { return x } BEGIN { f(1, 2) }`,
			`"f" called with more arguments than declared`},
		{`BEGIN { return }`, "return must be inside a function"},
		{`BEGIN { next }`, "next can't be inside BEGIN"},
		{`END { next }`, "next can't be inside END"},
		{`BEGIN { nextfile }`, "nextfile can't be inside BEGIN"},
		{`BEGIN { delete FS }`, `can't use special variable "FS" as an array`},
		{`BEGIN { FS[1] = "x" }`, `can't use special variable "FS" as an array`},
		{`BEGIN { x = >3 }`, "expected expression instead of >"},
		{`BEGIN { x = 1 print 2 }`, "expected ; or newline between statements"},
		{`BEGIN { printf }`, "expected printf args, got none"},
		{`BEGIN { "foo }`, "didn't find end quote in string"},
		{`function length() {}`, "expected name instead of length"},
		{`BEGIN { sub(/x/, "y", "notlvalue") }`, "target must be a variable"},
		{`BEGIN { 1 = 2 }`, "expected lvalue before ="},
		{`BEGIN { break }`, "break must be inside a loop body"},
		{`{ continue }`, "continue must be inside a loop body"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			_, err := parser.ParseProgram([]byte(test.src), nil)
			if err == nil {
				t.Fatalf("expected error containing %q, got none", test.err)
			}
			if !strings.Contains(err.Error(), test.err) {
				t.Errorf("expected error containing %q, got %q", test.err, err.Error())
			}
		})
	}
}

func TestPosixMode(t *testing.T) {
	posix := &parser.ParserConfig{PosixMode: true}

	_, err := parser.ParseProgram([]byte(`BEGIN { x = 2 ** 3 }`), posix)
	if err == nil || !strings.Contains(err.Error(), `doesn't allow "**"`) {
		t.Errorf(`expected ** rejection in POSIX mode, got %v`, err)
	}

	// Outside POSIX mode ** is a synonym for ^
	prog, err := parser.ParseProgram([]byte(`BEGIN { x = 2 ** 3 }`), nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !strings.Contains(prog.String(), "2 ^ 3") {
		t.Errorf("expected ** to parse as ^, got %q", prog.String())
	}

	// With extensions disabled, gensub is an ordinary (undefined)
	// function name
	_, err = parser.ParseProgram([]byte(`BEGIN { gensub(/x/, "y", "g") }`), posix)
	if err == nil || !strings.Contains(err.Error(), `undefined function "gensub"`) {
		t.Errorf("expected undefined function error, got %v", err)
	}

	// And BEGINFILE is not a special pattern
	_, err = parser.ParseProgram([]byte(`BEGINFILE { print }`), posix)
	if err != nil {
		t.Errorf("expected BEGINFILE to parse as a plain pattern, got %v", err)
	}
}

func TestArrayParams(t *testing.T) {
	src := `
function fill(arr) { arr[1] = "x" }
function wrap(passthrough) { fill(passthrough) }
function scalar(v) { return v * 2 }
BEGIN { wrap(data); print data[1], scalar(2) }
`
	prog, err := parser.ParseProgram([]byte(src), nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	arrays := map[string][]bool{}
	for _, f := range prog.Functions {
		arrays[f.Name] = f.Arrays
	}
	if !arrays["fill"][0] {
		t.Errorf("fill's parameter should be an array")
	}
	if !arrays["wrap"][0] {
		t.Errorf("wrap's pass-through parameter should resolve to array")
	}
	if arrays["scalar"][0] {
		t.Errorf("scalar's parameter should not be an array")
	}
}

func TestFuncVsConcat(t *testing.T) {
	// "name(" is a call; "name (" is concatenation with a grouping
	_, err := parser.ParseProgram([]byte(`BEGIN { x = f(1) }`), nil)
	if err == nil || !strings.Contains(err.Error(), `undefined function "f"`) {
		t.Errorf("expected undefined function error, got %v", err)
	}
	prog, err := parser.ParseProgram([]byte(`BEGIN { x = f (1) }`), nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !strings.Contains(prog.String(), "f (1)") {
		t.Errorf("expected concatenation, got %q", prog.String())
	}
}
