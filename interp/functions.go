// Builtin function implementations and helpers for the rawk
// interpreter. The builtins whose arguments are plain values are
// dispatched through call(); the ones that need access to the AST
// (split, sub, and friends) have helpers here that eval() calls with
// the pieces already picked apart.

package interp

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	. "github.com/pegasusheavy/rawk/lexer"
)

// call executes a builtin whose arguments are ordinary values.
func (p *Interp) call(op Token, args []value) value {
	switch op {
	case F_ATAN2:
		return num(math.Atan2(args[0].num(), args[1].num()))
	case F_CLOSE:
		return num(p.callClose(p.toString(args[0])))
	case F_COS:
		return num(math.Cos(args[0].num()))
	case F_EXP:
		return num(math.Exp(args[0].num()))
	case F_FFLUSH:
		var ok bool
		if len(args) == 0 || p.toString(args[0]) == "" {
			// fflush() or fflush("") flushes all output streams
			ok = p.flushAll()
		} else {
			ok = p.flushStream(p.toString(args[0]))
		}
		if !ok {
			return num(-1)
		}
		return num(0)
	case F_INDEX:
		s := p.toString(args[0])
		substr := p.toString(args[1])
		return num(float64(strings.Index(s, substr) + 1))
	case F_INT:
		return num(math.Trunc(args[0].num()))
	case F_LENGTH:
		switch len(args) {
		case 0:
			return num(float64(len(p.line)))
		default:
			return num(float64(len(p.toString(args[0]))))
		}
	case F_LOG:
		return num(math.Log(args[0].num()))
	case F_MATCH:
		re := p.mustCompile(p.toString(args[1]))
		loc := re.FindStringIndex(p.toString(args[0]))
		if loc == nil {
			p.matchStart = 0
			p.matchLength = -1
			return num(0)
		}
		p.matchStart = loc[0] + 1
		p.matchLength = loc[1] - loc[0]
		return num(float64(p.matchStart))
	case F_RAND:
		return num(p.random.Float64())
	case F_SIN:
		return num(math.Sin(args[0].num()))
	case F_SPRINTF:
		return str(p.sprintf(p.toString(args[0]), args[1:]))
	case F_SQRT:
		return num(math.Sqrt(args[0].num()))
	case F_SRAND:
		prevSeed := p.randSeed
		switch len(args) {
		case 0:
			p.random.Seed(time.Now().UnixNano())
		case 1:
			p.randSeed = args[0].num()
			p.random.Seed(int64(math.Float64bits(p.randSeed)))
		}
		return num(prevSeed)
	case F_SUBSTR:
		s := p.toString(args[0])
		pos := int(args[1].num())
		if pos > len(s) {
			pos = len(s) + 1
		}
		if pos < 1 {
			pos = 1
		}
		maxLength := len(s) - pos + 1
		length := maxLength
		if len(args) == 3 {
			length = int(args[2].num())
			if length < 0 {
				length = 0
			}
			if length > maxLength {
				length = maxLength
			}
		}
		return str(s[pos-1 : pos-1+length])
	case F_SYSTEM:
		return num(p.callSystem(p.toString(args[0])))
	case F_TOLOWER:
		return str(strings.ToLower(p.toString(args[0])))
	case F_TOUPPER:
		return str(strings.ToUpper(p.toString(args[0])))
	case F_GENSUB:
		in := p.line
		if len(args) == 4 {
			in = p.toString(args[3])
		}
		return str(p.gensub(p.toString(args[0]), p.toString(args[1]),
			p.toString(args[2]), in))
	case F_SYSTIME:
		return num(float64(time.Now().Unix()))
	case F_MKTIME:
		return num(p.mktime(p.toString(args[0])))
	case F_STRFTIME:
		format := "%a %b %e %H:%M:%S %Z %Y"
		if len(args) >= 1 {
			format = p.toString(args[0])
		}
		t := time.Now()
		if len(args) >= 2 {
			t = time.Unix(int64(args[1].num()), 0)
		}
		if len(args) >= 3 && args[2].boolean() {
			t = t.UTC()
		} else {
			t = t.Local()
		}
		return str(strftimeFormat(format, t))
	default:
		panic(fmt.Sprintf("unexpected function: %s", op))
	}
}

// Guts of the close() function: close (and forget) the named stream,
// returning its exit code, or -1 if the name isn't an open stream.
// The name may be open for both reading and writing (those are
// distinct registry entries); both are closed, and the write side's
// status wins.
func (p *Interp) callClose(name string) float64 {
	code := -1.0
	found := false
	if ws, ok := p.outputStreams[name]; ok {
		code = ws.closeStatus()
		found = true
		delete(p.outputStreams, name)
	}
	if rs, ok := p.inputStreams[name]; ok {
		status := rs.closeStatus()
		if !found {
			code = status
		}
		found = true
		delete(p.inputStreams, name)
		delete(p.scanners, name)
	}
	if !found {
		return -1
	}
	return code
}

// Guts of the system() function: run the command through the shell
// with our stdin/stdout/stderr and return the child's exit status.
func (p *Interp) callSystem(cmdline string) float64 {
	p.flushOutputAndError() // ensure synchronization
	cmd := p.execShell(cmdline)
	cmd.Stdin = p.stdin
	cmd.Stdout = p.output
	cmd.Stderr = p.errorOutput
	if err := cmd.Start(); err != nil {
		p.printErrorf("%s\n", err)
		return -1
	}
	return childStatus(cmd)
}

// Guts of the split() function. The separator follows the FS rules:
// " " means runs of whitespace, a single character is literal, and
// anything longer is a regex.
func (p *Interp) split(s, arrayName, fs string) int {
	var parts []string
	switch {
	case fs == " ":
		parts = strings.Fields(s)
	case s == "":
		// Leave parts empty on empty string
	case len(fs) == 1:
		parts = strings.Split(s, fs)
	default:
		re := p.mustCompile(fs)
		parts = re.Split(s, -1)
	}
	array := make(map[string]value, len(parts))
	for i, part := range parts {
		array[strconv.Itoa(i+1)] = numStr(part)
	}
	p.arrays[p.getArrayName(arrayName)] = array
	return len(parts)
}

// Guts of the patsplit() function: fields are the non-overlapping
// matches of the pattern; the separator texts between them go into
// the optional seps array (seps[0] is the text before field 1).
func (p *Interp) patsplit(s, arrayName, pattern, sepsName string) int {
	re := p.mustCompile(pattern)
	array := make(map[string]value)
	seps := make(map[string]value)
	count := 0
	prev := 0
	for _, m := range re.FindAllStringIndex(s, -1) {
		if m[0] == m[1] {
			continue
		}
		seps[strconv.Itoa(count)] = str(s[prev:m[0]])
		count++
		array[strconv.Itoa(count)] = numStr(s[m[0]:m[1]])
		prev = m[1]
	}
	seps[strconv.Itoa(count)] = str(s[prev:])
	p.arrays[p.getArrayName(arrayName)] = array
	if sepsName != "" {
		p.arrays[p.getArrayName(sepsName)] = seps
	}
	return count
}

// Guts of the sub() and gsub() functions, built the same way as
// gensub below: walk the match list and expand the replacement into
// a builder. In the replacement "&" stands for the matched text,
// "\&" is a literal ampersand, and "\\" a literal backslash.
func (p *Interp) sub(regex, repl, in string, global bool) (string, int) {
	re := p.mustCompile(regex)
	matches := re.FindAllStringIndex(in, -1)
	if len(matches) == 0 {
		return in, 0
	}
	if !global {
		matches = matches[:1]
	}
	var out strings.Builder
	prev := 0
	for _, m := range matches {
		out.WriteString(in[prev:m[0]])
		expandSubRepl(&out, repl, in[m[0]:m[1]])
		prev = m[1]
	}
	out.WriteString(in[prev:])
	return out.String(), len(matches)
}

func expandSubRepl(out *strings.Builder, repl, match string) {
	for i := 0; i < len(repl); i++ {
		switch c := repl[i]; c {
		case '&':
			out.WriteString(match)
		case '\\':
			i++
			if i >= len(repl) {
				out.WriteByte('\\')
				return
			}
			switch repl[i] {
			case '&', '\\':
				out.WriteByte(repl[i])
			default:
				out.WriteByte('\\')
				out.WriteByte(repl[i])
			}
		default:
			out.WriteByte(c)
		}
	}
}

// Guts of the gensub() function: like gsub but non-destructive, with
// \1..\9 capture references and an explicit "which match" argument
// ("g"/"G" for all, or the n'th match only).
func (p *Interp) gensub(regex, repl, how, in string) string {
	re := p.mustCompile(regex)
	matches := re.FindAllStringSubmatchIndex(in, -1)
	if len(matches) == 0 {
		return in
	}
	global := how == "g" || how == "G"
	nth := 0
	if !global {
		nth = int(parseFloatPrefix(how))
		if nth < 1 {
			nth = 1
		}
	}
	var out strings.Builder
	prev := 0
	for i, m := range matches {
		if !global && i+1 != nth {
			continue
		}
		out.WriteString(in[prev:m[0]])
		expandGensubRepl(&out, repl, in, m)
		prev = m[1]
	}
	out.WriteString(in[prev:])
	return out.String()
}

func expandGensubRepl(out *strings.Builder, repl, in string, m []int) {
	for i := 0; i < len(repl); i++ {
		switch c := repl[i]; c {
		case '&':
			out.WriteString(in[m[0]:m[1]])
		case '\\':
			i++
			if i >= len(repl) {
				out.WriteByte('\\')
				return
			}
			switch r := repl[i]; {
			case r >= '0' && r <= '9':
				group := int(r - '0')
				if 2*group+1 < len(m) && m[2*group] >= 0 {
					out.WriteString(in[m[2*group]:m[2*group+1]])
				}
			case r == '&':
				out.WriteByte('&')
			case r == '\\':
				out.WriteByte('\\')
			default:
				out.WriteByte('\\')
				out.WriteByte(r)
			}
		default:
			out.WriteByte(c)
		}
	}
}

// Guts of asort() and asorti(): sort the source array's values (or
// keys for asorti) and renumber them from 1 in the destination
// (which is the source itself if destName is "").
func (p *Interp) asort(srcName, destName string, byKey bool) int {
	src := p.array(srcName)
	items := make([]value, 0, len(src))
	if byKey {
		for k := range src {
			items = append(items, numStr(k))
		}
	} else {
		for _, v := range src {
			items = append(items, v)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return p.valueLess(items[i], items[j])
	})
	result := make(map[string]value, len(items))
	for i, v := range items {
		result[strconv.Itoa(i+1)] = v
	}
	if destName == "" {
		destName = srcName
	}
	p.arrays[p.getArrayName(destName)] = result
	return len(items)
}

// valueLess compares two values with the usual AWK rules: numeric
// when both sides are numeric, string otherwise.
func (p *Interp) valueLess(l, r value) bool {
	if l.isTrueStr() || r.isTrueStr() {
		return p.toString(l) < p.toString(r)
	}
	return l.num() < r.num()
}

// Guts of the mktime() function: parse a "YYYY MM DD HH MM SS [DST]"
// spec in local time and return Unix seconds. A malformed spec is a
// fatal error.
func (p *Interp) mktime(spec string) float64 {
	var year, month, day, hour, min, sec, dst int
	n, err := fmt.Sscanf(strings.TrimSpace(spec), "%d %d %d %d %d %d %d",
		&year, &month, &day, &hour, &min, &sec, &dst)
	if n < 6 && err != nil {
		panic(newError("mktime: invalid date specification %q", spec))
	}
	t := time.Date(year, time.Month(month), day, hour, min, sec, 0, time.Local)
	return float64(t.Unix())
}

// strftimeFormat formats t per the C strftime directives that AWK
// programs commonly use. Unknown directives are copied through
// unchanged.
func strftimeFormat(format string, t time.Time) string {
	var out strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			out.WriteByte(format[i])
			continue
		}
		i++
		switch format[i] {
		case 'a':
			out.WriteString(t.Format("Mon"))
		case 'A':
			out.WriteString(t.Format("Monday"))
		case 'b', 'h':
			out.WriteString(t.Format("Jan"))
		case 'B':
			out.WriteString(t.Format("January"))
		case 'c':
			out.WriteString(t.Format("Mon Jan  2 15:04:05 2006"))
		case 'C':
			fmt.Fprintf(&out, "%02d", t.Year()/100)
		case 'd':
			out.WriteString(t.Format("02"))
		case 'D':
			out.WriteString(t.Format("01/02/06"))
		case 'e':
			out.WriteString(t.Format("_2"))
		case 'F':
			out.WriteString(t.Format("2006-01-02"))
		case 'H':
			out.WriteString(t.Format("15"))
		case 'I':
			out.WriteString(t.Format("03"))
		case 'j':
			fmt.Fprintf(&out, "%03d", t.YearDay())
		case 'm':
			out.WriteString(t.Format("01"))
		case 'M':
			out.WriteString(t.Format("04"))
		case 'n':
			out.WriteByte('\n')
		case 'p':
			out.WriteString(t.Format("PM"))
		case 'r':
			out.WriteString(t.Format("03:04:05 PM"))
		case 'R':
			out.WriteString(t.Format("15:04"))
		case 's':
			fmt.Fprintf(&out, "%d", t.Unix())
		case 'S':
			out.WriteString(t.Format("05"))
		case 't':
			out.WriteByte('\t')
		case 'T', 'X':
			out.WriteString(t.Format("15:04:05"))
		case 'u':
			wday := int(t.Weekday())
			if wday == 0 {
				wday = 7
			}
			fmt.Fprintf(&out, "%d", wday)
		case 'U':
			fmt.Fprintf(&out, "%02d", (t.YearDay()-1+7-int(t.Weekday()))/7)
		case 'w':
			fmt.Fprintf(&out, "%d", int(t.Weekday()))
		case 'W':
			fmt.Fprintf(&out, "%02d", (t.YearDay()-1+7-(int(t.Weekday())+6)%7)/7)
		case 'x':
			out.WriteString(t.Format("01/02/06"))
		case 'y':
			out.WriteString(t.Format("06"))
		case 'Y':
			out.WriteString(t.Format("2006"))
		case 'z':
			out.WriteString(t.Format("-0700"))
		case 'Z':
			out.WriteString(t.Format("MST"))
		case '%':
			out.WriteByte('%')
		default:
			out.WriteByte('%')
			out.WriteByte(format[i])
		}
	}
	return out.String()
}

// A formatSpec is a pre-scanned printf format: the text rewritten for
// fmt.Sprintf plus one conversion letter per argument the verbs
// consume ("*" widths count as arguments too).
type formatSpec struct {
	text  string
	convs []byte
}

// scanFormat translates an AWK printf format into the form
// fmt.Sprintf understands (%c becomes %s, built by hand in
// convertFmtArg, and %i and %u become %d). Results are memoized per
// interpreter.
func (p *Interp) scanFormat(format string) (*formatSpec, error) {
	if spec, ok := p.formatCache[format]; ok {
		return spec, nil
	}
	spec := &formatSpec{}
	text := []byte(format)
	for i := 0; i < len(text); i++ {
		if text[i] != '%' {
			continue
		}
		i++
		if i >= len(text) {
			return nil, errors.New("expected type specifier after %")
		}
		if text[i] == '%' {
			continue
		}
		for i < len(text) && isFmtFlag(text[i]) {
			if text[i] == '*' {
				spec.convs = append(spec.convs, 'd')
			}
			i++
		}
		if i >= len(text) {
			return nil, errors.New("expected type specifier after %")
		}
		switch text[i] {
		case 'd', 'o', 'x', 'X':
			spec.convs = append(spec.convs, 'd')
		case 'i':
			text[i] = 'd'
			spec.convs = append(spec.convs, 'd')
		case 'u':
			text[i] = 'd'
			spec.convs = append(spec.convs, 'u')
		case 'e', 'E', 'f', 'g', 'G':
			spec.convs = append(spec.convs, 'f')
		case 's':
			spec.convs = append(spec.convs, 's')
		case 'c':
			text[i] = 's'
			spec.convs = append(spec.convs, 'c')
		default:
			return nil, fmt.Errorf("invalid format type %q", text[i])
		}
	}
	spec.text = string(text)
	if len(p.formatCache) < maxCachedFormats {
		p.formatCache[format] = spec
	}
	return spec, nil
}

func isFmtFlag(c byte) bool {
	switch c {
	case '-', '+', ' ', '#', '.', '*':
		return true
	}
	return c >= '0' && c <= '9'
}

// Guts of the sprintf() function (also used by the printf statement).
func (p *Interp) sprintf(format string, args []value) string {
	spec, err := p.scanFormat(format)
	if err != nil {
		panic(newError("format error: %s", err))
	}
	if len(spec.convs) > len(args) {
		panic(newError("format error: got %d args, expected %d", len(args), len(spec.convs)))
	}
	converted := make([]interface{}, len(spec.convs))
	for i, conv := range spec.convs {
		converted[i] = p.convertFmtArg(conv, args[i])
	}
	return fmt.Sprintf(spec.text, converted...)
}

// convertFmtArg coerces an AWK value to the Go value its conversion
// needs. %c prints the byte value of a number argument (0-255, the
// awk and mawk behavior, rather than treating it as a codepoint) and
// the first character of a string argument.
func (p *Interp) convertFmtArg(conv byte, v value) interface{} {
	switch conv {
	case 'd':
		return int(v.num())
	case 'u':
		return uint(v.num())
	case 'f':
		return v.num()
	case 'c':
		if v.isTrueStr() {
			s := p.toString(v)
			if s == "" {
				return "\x00"
			}
			return s[:1]
		}
		return string([]byte{byte(int(v.num()))})
	default: // 's'
		return p.toString(v)
	}
}
