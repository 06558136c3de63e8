// Unit tests for the value model (in-package so they can exercise
// the unexported helpers directly).

package interp

import (
	"math"
	"testing"
)

func TestParseFloatPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"", 0},
		{"0", 0},
		{"42", 42},
		{"  42", 42},
		{"3.5x", 3.5},
		{"-3.5", -3.5},
		{"+7", 7},
		{".5", 0.5},
		{"5.", 5},
		{"1e3", 1000},
		{"1e+2", 100},
		{"1e-2", 0.01},
		{"1e", 1},      // exponent needs digits; "e" isn't consumed
		{"1e+", 1},     // likewise with a dangling sign
		{"0x10", 0},    // hex is not recognized in string coercion
		{"foo", 0},
		{"-", 0},
		{".", 0},
		{"12abc34", 12},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			got := parseFloatPrefix(test.input)
			if got != test.want {
				t.Errorf("parseFloatPrefix(%q) = %v, want %v", test.input, got, test.want)
			}
		})
	}
}

func TestNumStrTagging(t *testing.T) {
	tests := []struct {
		input   string
		numeric bool
	}{
		{"42", true},
		{" 3.5 ", true},
		{"-1e3", true},
		{"0", true},
		{"", false},
		{"x", false},
		{"3foo", false}, // the whole string must look numeric
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			v := numStr(test.input)
			if v.isTrueStr() == test.numeric {
				t.Errorf("numStr(%q).isTrueStr() = %v, want %v",
					test.input, v.isTrueStr(), !test.numeric)
			}
			if v.str("%.6g") != test.input {
				t.Errorf("numStr(%q) must preserve the original string", test.input)
			}
		})
	}
}

func TestTruthiness(t *testing.T) {
	tests := []struct {
		v    value
		want bool
	}{
		{null(), false},
		{num(0), false},
		{num(0.5), true},
		{str(""), false},
		{str("x"), true},
		{str("0"), true},     // an explicit string "0" is true...
		{numStr("0"), false}, // ...but a numeric string "0" is false
		{numStr("1"), true},
	}
	for _, test := range tests {
		if got := test.v.boolean(); got != test.want {
			t.Errorf("boolean of %+v = %v, want %v", test.v, got, test.want)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		n    float64
		want string
	}{
		{15, "15"},
		{-3, "-3"},
		{0, "0"},
		{0.5, "0.5"},
		{1e15, "1000000000000000"},
		{1e16, "1e+16"},
		{1.0 / 3, "0.333333"},
		{math.NaN(), "nan"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
	}
	for _, test := range tests {
		if got := formatFloat(test.n, "%.6g"); got != test.want {
			t.Errorf("formatFloat(%v) = %q, want %q", test.n, got, test.want)
		}
	}
}

func TestFieldWidthsParsing(t *testing.T) {
	widths, err := parseFieldWidths("2 3 *")
	if err != nil {
		t.Fatal(err)
	}
	if len(widths) != 3 || widths[0] != 2 || widths[1] != 3 || widths[2] != -1 {
		t.Errorf("got %v", widths)
	}

	if _, err := parseFieldWidths("* 2"); err == nil {
		t.Error(`expected error for "*" before the end`)
	}
	if _, err := parseFieldWidths("x"); err == nil {
		t.Error("expected error for non-numeric width")
	}
	widths, err = parseFieldWidths("")
	if err != nil || widths != nil {
		t.Errorf("empty FIELDWIDTHS should disable: %v, %v", widths, err)
	}
}
