// Package interp is the rawk interpreter (a tree-walker).
//
// Use New to create an interpreter, configure it, and then call
// Interp.Exec to execute a parsed program against input.
package interp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/coregx/coregex"
	. "github.com/pegasusheavy/rawk/internal/ast"
	. "github.com/pegasusheavy/rawk/lexer"
)

// Control flow is implemented by passing around these sentinel
// errors, which are distinct from real failures.
var (
	errExit     = errors.New("exit")
	errBreak    = errors.New("break")
	errContinue = errors.New("continue")
	errNext     = errors.New("next")
	errNextfile = errors.New("nextfile")

	crlfNewline = runtime.GOOS == "windows"
)

const (
	maxCachedFormats = 100
	maxCallDepth     = 1000
)

// Error (actually *Error) is returned by Exec on an interpreter
// error, for example a division by zero.
type Error struct {
	message string
}

func (e *Error) Error() string {
	return e.message
}

func newError(format string, args ...interface{}) error {
	return &Error{fmt.Sprintf(format, args...)}
}

// returnValue carries a function's return value up through executes.
type returnValue struct {
	Value value
}

func (r returnValue) Error() string {
	return "<return>"
}

// Interp holds the state of the rawk interpreter. Call New to
// actually create an Interp.
type Interp struct {
	program *Program
	funcs   map[string]*Function

	output      io.Writer
	errorOutput io.Writer

	vars       map[string]value
	arrays     map[string]map[string]value
	argc       int
	random     *rand.Rand
	randSeed   float64
	exitStatus int
	posixMode  bool

	inputStreams  map[string]*readStream
	outputStreams map[string]*writeStream
	scanners      map[string]*bufio.Scanner

	scanner       *bufio.Scanner
	stdin         io.Reader
	filenameIndex int
	hadFiles      bool
	input         io.Reader
	inputBuffer   []byte

	locals        []map[string]value
	localArrays   []map[string]string
	nilLocalArray int
	callDepth     int

	line            string
	lineIsTrueStr   bool
	fields          []string
	fieldsIsTrueStr []bool
	haveFields      bool
	numFields       int
	lineNum         int
	filename        value
	fileLineNum     int

	convertFormat    string
	outputFormat     string
	fieldSep         string
	fieldPat         string
	fieldWidthsStr   string
	fieldWidths      []int
	recordSep        string
	recordTerminator string
	outputFieldSep   string
	outputRecordSep  string
	subscriptSep     string
	matchLength      int
	matchStart       int

	regexCache    map[string]*coregex.Regexp
	dynRegexCache map[string]*coregex.Regexp
	formatCache   map[string]*formatSpec
}

// New creates and sets up a new interpreter and sets the output and
// error output writers to the given values (if nil, they're set to
// buffered versions of os.Stdout and os.Stderr, respectively).
func New(output, errorOutput io.Writer) *Interp {
	p := &Interp{}

	if output == nil {
		output = bufio.NewWriterSize(os.Stdout, outputBufSize)
	}
	p.output = output
	if errorOutput == nil {
		errorOutput = bufio.NewWriterSize(os.Stderr, 4096)
	}
	p.errorOutput = errorOutput

	p.vars = make(map[string]value)
	p.arrays = make(map[string]map[string]value)
	p.regexCache = make(map[string]*coregex.Regexp, 10)
	p.dynRegexCache = make(map[string]*coregex.Regexp, 10)
	p.formatCache = make(map[string]*formatSpec, 10)
	p.randSeed = 1.0
	seed := math.Float64bits(p.randSeed)
	p.random = rand.New(rand.NewSource(int64(seed)))
	p.convertFormat = "%.6g"
	p.outputFormat = "%.6g"
	p.fieldSep = " "
	p.recordSep = "\n"
	p.outputFieldSep = " "
	p.outputRecordSep = "\n"
	p.subscriptSep = "\x1c"
	p.matchLength = -1
	p.filename = str("")
	return p
}

// SetPosixMode disables the runtime extensions (FIELDWIDTHS and FPAT
// splitting, and the RT variable); the parser handles the
// syntax-level ones.
func (p *Interp) SetPosixMode(on bool) {
	p.posixMode = on
}

// SetVar sets the named variable to the given string value (useful
// for -v assignments and setting FS before calling Exec). The value
// gets the numeric-string treatment, like other externally provided
// values.
func (p *Interp) SetVar(name, value string) error {
	return p.setVarError(name, numStr(value))
}

// SetArgv0 sets ARGV[0] (the program name; "rawk" by default).
func (p *Interp) SetArgv0(argv0 string) {
	p.setArrayValue("ARGV", "0", str(argv0))
}

// ExitStatus returns the exit status code of the program (call after
// calling Exec).
func (p *Interp) ExitStatus() int {
	return p.exitStatus
}

// Exec executes the given program using the given input reader (nil
// means os.Stdin) and input arguments (usually filenames: an empty
// slice means read only from stdin; a filename of "-" means stdin;
// "name=value" arguments are assignments made when the input sequence
// reaches them).
func (p *Interp) Exec(program *Program, stdin io.Reader, args []string) (execErr error) {
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *Error:
				execErr = e
			case error:
				if e == errExit {
					return
				}
				panic(r)
			default:
				panic(r)
			}
		}
	}()

	p.program = program
	p.funcs = make(map[string]*Function, len(program.Functions))
	for _, f := range program.Functions {
		p.funcs[f.Name] = f
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	p.stdin = stdin
	p.argc = len(args) + 1
	if _, ok := p.arrays["ARGV"]; !ok {
		p.setArrayValue("ARGV", "0", str("rawk"))
	}
	for i, arg := range args {
		p.setArrayValue("ARGV", strconv.Itoa(i+1), numStr(arg))
	}
	for _, kv := range os.Environ() {
		if eq := strings.IndexByte(kv, '='); eq > 0 {
			p.setArrayValue("ENVIRON", kv[:eq], numStr(kv[eq+1:]))
		}
	}
	p.filenameIndex = 1
	p.hadFiles = false
	p.inputStreams = make(map[string]*readStream)
	p.outputStreams = make(map[string]*writeStream)
	p.scanners = make(map[string]*bufio.Scanner)
	defer p.closeAll()

	err := p.execBegin(program.Begin)
	if err != nil && err != errExit {
		return err
	}
	if program.Actions == nil && program.End == nil &&
		program.BeginFile == nil && program.EndFile == nil {
		return nil
	}
	if err != errExit {
		err = p.execActions(program.Actions)
		if err != nil && err != errExit {
			return err
		}
	}
	err = p.execEnd(program.End)
	if err != nil && err != errExit {
		return err
	}
	return nil
}

func (p *Interp) execBegin(begin []Stmts) error {
	for _, statements := range begin {
		err := p.executes(statements)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Interp) execBeginFile() error {
	for _, statements := range p.program.BeginFile {
		err := p.executes(statements)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Interp) execEndFile() error {
	for _, statements := range p.program.EndFile {
		err := p.executes(statements)
		if err != nil {
			return err
		}
	}
	return nil
}

// execActions is the main driver loop: read records, match each rule
// in source order, and execute matching actions. Range patterns keep
// a per-rule flag, which survives "next" but resets when "nextfile"
// moves to another file.
func (p *Interp) execActions(actions []*Action) error {
	inRange := make([]bool, len(actions))
lineLoop:
	for {
		line, err := p.nextRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		p.setLine(line, false)
		for i, action := range actions {
			matched := false
			switch len(action.Pattern) {
			case 0:
				// No pattern is equivalent to pattern evaluating to true
				matched = true
			case 1:
				// Single boolean pattern
				v, err := p.evalSafe(action.Pattern[0])
				if err != nil {
					return err
				}
				matched = v.boolean()
			case 2:
				// Range pattern (matches between start and stop lines)
				if !inRange[i] {
					v, err := p.evalSafe(action.Pattern[0])
					if err != nil {
						return err
					}
					inRange[i] = v.boolean()
				}
				matched = inRange[i]
				if inRange[i] {
					v, err := p.evalSafe(action.Pattern[1])
					if err != nil {
						return err
					}
					inRange[i] = !v.boolean()
				}
			}
			if !matched {
				continue
			}
			// No action is equivalent to { print $0 }
			if action.Stmts == nil {
				err := p.printLine(p.output, p.line)
				if err != nil {
					return err
				}
				continue
			}
			err := p.executes(action.Stmts)
			if err == errNext {
				continue lineLoop
			}
			if err == errNextfile {
				if err := p.endCurrentFile(); err != nil {
					return err
				}
				for j := range inRange {
					inRange[j] = false
				}
				continue lineLoop
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Interp) execEnd(end []Stmts) error {
	for _, statements := range end {
		err := p.executes(statements)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Interp) executes(stmts Stmts) error {
	for _, s := range stmts {
		err := p.execute(s)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Interp) execute(stmt Stmt) (execErr error) {
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *Error:
				execErr = e
			case error:
				// Control flow signals escaping an eval (getline
				// hitting BEGINFILE exit, next inside a function)
				if e == errExit || e == errNext || e == errNextfile {
					execErr = e
					return
				}
				panic(r)
			default:
				panic(r)
			}
		}
	}()

	switch s := stmt.(type) {
	case *PrintStmt:
		output := p.output
		if s.Redirect != ILLEGAL {
			output = p.getOutputStream(s.Redirect, p.eval(s.Dest))
		}
		if len(s.Args) == 0 {
			return p.printLine(output, p.line)
		}
		args := make([]value, len(s.Args))
		for i, a := range s.Args {
			args[i] = p.eval(a)
		}
		return p.printArgs(output, args)
	case *PrintfStmt:
		format := p.toString(p.eval(s.Args[0]))
		args := make([]value, len(s.Args)-1)
		for i, a := range s.Args[1:] {
			args[i] = p.eval(a)
		}
		output := p.output
		if s.Redirect != ILLEGAL {
			output = p.getOutputStream(s.Redirect, p.eval(s.Dest))
		}
		return writeOutput(output, p.sprintf(format, args))
	case *IfStmt:
		if p.eval(s.Cond).boolean() {
			return p.executes(s.Body)
		}
		return p.executes(s.Else)
	case *ForStmt:
		if s.Pre != nil {
			err := p.execute(s.Pre)
			if err != nil {
				return err
			}
		}
		for s.Cond == nil || p.eval(s.Cond).boolean() {
			err := p.executes(s.Body)
			if err == errBreak {
				break
			}
			if err != nil && err != errContinue {
				return err
			}
			if s.Post != nil {
				err := p.execute(s.Post)
				if err != nil {
					return err
				}
			}
		}
	case *ForInStmt:
		for index := range p.arrays[p.getArrayName(s.Array)] {
			p.setVar(s.Var, numStr(index))
			err := p.executes(s.Body)
			if err == errBreak {
				break
			}
			if err == errContinue {
				continue
			}
			if err != nil {
				return err
			}
		}
	case *WhileStmt:
		for p.eval(s.Cond).boolean() {
			err := p.executes(s.Body)
			if err == errBreak {
				break
			}
			if err == errContinue {
				continue
			}
			if err != nil {
				return err
			}
		}
	case *DoWhileStmt:
		for {
			err := p.executes(s.Body)
			if err == errBreak {
				break
			}
			if err != nil && err != errContinue {
				return err
			}
			if !p.eval(s.Cond).boolean() {
				break
			}
		}
	case *BreakStmt:
		return errBreak
	case *ContinueStmt:
		return errContinue
	case *NextStmt:
		return errNext
	case *NextfileStmt:
		return errNextfile
	case *ExitStmt:
		if s.Status != nil {
			p.exitStatus = int(p.eval(s.Status).num())
		}
		return errExit
	case *ReturnStmt:
		var v value
		if s.Value != nil {
			v = p.eval(s.Value)
		}
		return returnValue{v}
	case *DeleteStmt:
		if len(s.Index) == 0 {
			// delete a: clear the array observed by every alias
			array := p.arrays[p.getArrayName(s.Array)]
			for k := range array {
				delete(array, k)
			}
			return nil
		}
		index := p.evalIndex(s.Index)
		delete(p.arrays[p.getArrayName(s.Array)], index)
	case *BlockStmt:
		return p.executes(s.Body)
	case *ExprStmt:
		p.eval(s.Expr)
	default:
		panic(fmt.Sprintf("unexpected stmt type: %T", stmt))
	}
	return nil
}

func (p *Interp) evalSafe(expr Expr) (v value, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *Error:
				err = e
			case error:
				if e == errExit || e == errNext || e == errNextfile {
					err = e
					return
				}
				panic(r)
			default:
				panic(r)
			}
		}
	}()
	return p.eval(expr), nil
}

func (p *Interp) eval(expr Expr) value {
	switch e := expr.(type) {
	case *UnaryExpr:
		v := p.eval(e.Value)
		return unaryFuncs[e.Op](p, v)
	case *BinaryExpr:
		left := p.eval(e.Left)
		switch e.Op {
		case AND:
			if !left.boolean() {
				return num(0)
			}
			right := p.eval(e.Right)
			return boolean(right.boolean())
		case OR:
			if left.boolean() {
				return num(1)
			}
			right := p.eval(e.Right)
			return boolean(right.boolean())
		default:
			right := p.eval(e.Right)
			return binaryFuncs[e.Op](p, left, right)
		}
	case *InExpr:
		index := p.evalIndex(e.Index)
		_, ok := p.arrays[p.getArrayName(e.Array)][index]
		return boolean(ok)
	case *CondExpr:
		cond := p.eval(e.Cond)
		if cond.boolean() {
			return p.eval(e.True)
		}
		return p.eval(e.False)
	case *NumExpr:
		return num(e.Value)
	case *StrExpr:
		return str(e.Value)
	case *RegExpr:
		// Stand-alone /regex/ is equivalent to: $0 ~ /regex/
		re := p.literalCompile(e.Regex)
		return boolean(re.MatchString(p.line))
	case *FieldExpr:
		index := p.eval(e.Index)
		return p.getField(int(index.num()))
	case *VarExpr:
		return p.getVar(e.Name)
	case *IndexExpr:
		index := p.evalIndex(e.Index)
		array := p.array(e.Array)
		v, ok := array[index]
		if !ok {
			// Referencing an element creates it, per POSIX
			array[index] = null()
		}
		return v
	case *AssignExpr:
		right := p.eval(e.Right)
		p.assign(e.Left, right)
		return right
	case *AugAssignExpr:
		right := p.eval(e.Right)
		left := p.eval(e.Left)
		v := binaryFuncs[e.Op](p, left, right)
		p.assign(e.Left, v)
		return v
	case *IncrExpr:
		leftValue := p.eval(e.Expr)
		left := leftValue.num()
		var right float64
		switch e.Op {
		case INCR:
			right = left + 1
		case DECR:
			right = left - 1
		}
		rightValue := num(right)
		p.assign(e.Expr, rightValue)
		if e.Pre {
			return rightValue
		}
		return num(left)
	case *CallExpr:
		return p.callExpr(e)
	case *UserCallExpr:
		return p.userCall(e.Name, e.Args)
	case *MultiExpr:
		// A parenthesized list is only valid in a few grammatical
		// positions, all handled by the parser
		panic(newError("unexpected comma-separated expression: %s", expr))
	case *GroupingExpr:
		return p.eval(e.Expr)
	case *GetlineExpr:
		return p.getline(e)
	default:
		panic(fmt.Sprintf("unexpected expr type: %T", expr))
	}
}

// callExpr evaluates a builtin call, special-casing the builtins
// whose arguments aren't plain values (array names, lvalue targets,
// regexes that default to the current record).
func (p *Interp) callExpr(e *CallExpr) value {
	switch e.Func {
	case F_SPLIT:
		s := p.toString(p.eval(e.Args[0]))
		fieldSep := p.fieldSep
		if len(e.Args) == 3 {
			fieldSep = p.toString(p.eval(e.Args[2]))
		}
		array := e.Args[1].(*VarExpr).Name
		return num(float64(p.split(s, array, fieldSep)))
	case F_PATSPLIT:
		s := p.toString(p.eval(e.Args[0]))
		pattern := p.fieldPat
		if len(e.Args) >= 3 {
			pattern = p.toString(p.eval(e.Args[2]))
		}
		array := e.Args[1].(*VarExpr).Name
		seps := ""
		if len(e.Args) == 4 {
			seps = e.Args[3].(*VarExpr).Name
		}
		return num(float64(p.patsplit(s, array, pattern, seps)))
	case F_SUB, F_GSUB:
		regex := p.toString(p.eval(e.Args[0]))
		repl := p.toString(p.eval(e.Args[1]))
		in := p.line
		if len(e.Args) == 3 {
			in = p.toString(p.eval(e.Args[2]))
		}
		out, n := p.sub(regex, repl, in, e.Func == F_GSUB)
		if n > 0 {
			if len(e.Args) == 3 {
				p.assign(e.Args[2], str(out))
			} else {
				p.setLine(out, true)
			}
		}
		return num(float64(n))
	case F_ASORT, F_ASORTI:
		src := e.Args[0].(*VarExpr).Name
		dest := ""
		if len(e.Args) == 2 {
			dest = e.Args[1].(*VarExpr).Name
		}
		return num(float64(p.asort(src, dest, e.Func == F_ASORTI)))
	default:
		args := make([]value, len(e.Args))
		for i, a := range e.Args {
			args[i] = p.eval(a)
		}
		return p.call(e.Func, args)
	}
}

// getline evaluates the six getline forms, returning 1 on success, 0
// at end of input, and -1 on error (an unopenable source is an error
// value, not a fatal error). NR, FNR, NF, and $0 update per POSIX:
// only the main-input form updates them all.
func (p *Interp) getline(e *GetlineExpr) value {
	var line string
	switch {
	case e.Command != nil:
		name := p.toString(p.eval(e.Command))
		scanner, err := p.getInputScannerPipe(name)
		if err != nil {
			return num(-1)
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return num(-1)
			}
			return num(0)
		}
		line = scanner.Text()
		p.lineNum++
	case e.File != nil:
		name := p.toString(p.eval(e.File))
		scanner, err := p.getInputScannerFile(name)
		if err != nil {
			return num(-1)
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return num(-1)
			}
			return num(0)
		}
		line = scanner.Text()
	default:
		var err error
		line, err = p.nextRecord()
		if err == io.EOF {
			return num(0)
		}
		if err == errExit {
			panic(err)
		}
		if err != nil {
			return num(-1)
		}
	}
	if e.Target != nil {
		p.assign(e.Target, numStr(line))
	} else {
		p.setLine(line, false)
	}
	return num(1)
}

func (p *Interp) getVar(name string) value {
	if len(p.locals) > 0 {
		v, ok := p.locals[len(p.locals)-1][name]
		if ok {
			return v
		}
		if _, ok := p.localArrays[len(p.localArrays)-1][name]; ok {
			panic(newError("can't use array %q as a scalar", name))
		}
	}
	switch name {
	case "ARGC":
		return num(float64(p.argc))
	case "CONVFMT":
		return str(p.convertFormat)
	case "FIELDWIDTHS":
		if !p.posixMode {
			return str(p.fieldWidthsStr)
		}
	case "FILENAME":
		return p.filename
	case "FNR":
		return num(float64(p.fileLineNum))
	case "FPAT":
		if !p.posixMode {
			return str(p.fieldPat)
		}
	case "FS":
		return str(p.fieldSep)
	case "NF":
		p.ensureFields()
		return num(float64(p.numFields))
	case "NR":
		return num(float64(p.lineNum))
	case "OFMT":
		return str(p.outputFormat)
	case "OFS":
		return str(p.outputFieldSep)
	case "ORS":
		return str(p.outputRecordSep)
	case "RLENGTH":
		return num(float64(p.matchLength))
	case "RS":
		return str(p.recordSep)
	case "RSTART":
		return num(float64(p.matchStart))
	case "RT":
		if !p.posixMode {
			return str(p.recordTerminator)
		}
	case "SUBSEP":
		return str(p.subscriptSep)
	}
	if _, ok := p.arrays[name]; ok {
		panic(newError("can't use array %q as a scalar", name))
	}
	return p.vars[name]
}

func (p *Interp) setVarError(name string, v value) error {
	if len(p.locals) > 0 {
		_, ok := p.locals[len(p.locals)-1][name]
		if ok {
			p.locals[len(p.locals)-1][name] = v
			return nil
		}
		if _, ok := p.localArrays[len(p.localArrays)-1][name]; ok {
			return newError("can't assign scalar to array %q", name)
		}
	}

	switch name {
	case "ARGC":
		p.argc = int(v.num())
		return nil
	case "CONVFMT":
		p.convertFormat = p.toString(v)
		return nil
	case "FIELDWIDTHS":
		if !p.posixMode {
			widths, err := parseFieldWidths(p.toString(v))
			if err != nil {
				return err
			}
			p.fieldWidthsStr = p.toString(v)
			p.fieldWidths = widths
			return nil
		}
	case "FILENAME":
		p.filename = v
		return nil
	case "FNR":
		p.fileLineNum = int(v.num())
		return nil
	case "FPAT":
		if !p.posixMode {
			p.fieldPat = p.toString(v)
			return nil
		}
	case "FS":
		p.fieldSep = p.toString(v)
		return nil
	case "NF":
		p.setNumFields(int(v.num()))
		return nil
	case "NR":
		p.lineNum = int(v.num())
		return nil
	case "OFMT":
		p.outputFormat = p.toString(v)
		return nil
	case "OFS":
		p.outputFieldSep = p.toString(v)
		return nil
	case "ORS":
		p.outputRecordSep = p.toString(v)
		return nil
	case "RLENGTH":
		p.matchLength = int(v.num())
		return nil
	case "RS":
		p.recordSep = p.toString(v)
		return nil
	case "RSTART":
		p.matchStart = int(v.num())
		return nil
	case "RT":
		if !p.posixMode {
			p.recordTerminator = p.toString(v)
			return nil
		}
	case "SUBSEP":
		p.subscriptSep = p.toString(v)
		return nil
	}
	if _, ok := p.arrays[name]; ok {
		return newError("can't assign scalar to array %q", name)
	}
	p.vars[name] = v
	return nil
}

func (p *Interp) setVar(name string, v value) {
	err := p.setVarError(name, v)
	if err != nil {
		panic(err)
	}
}

// getArrayName returns the name to look up in the arrays map,
// resolving function parameters that alias a caller's array.
func (p *Interp) getArrayName(name string) string {
	if len(p.localArrays) > 0 {
		n, ok := p.localArrays[len(p.localArrays)-1][name]
		if ok {
			return n
		}
		if _, ok := p.locals[len(p.locals)-1][name]; ok {
			panic(newError("can't use scalar %q as an array", name))
		}
	}
	return name
}

// array returns the named array's map, creating it on first use.
func (p *Interp) array(name string) map[string]value {
	name = p.getArrayName(name)
	arr, ok := p.arrays[name]
	if !ok {
		if _, isScalar := p.vars[name]; isScalar {
			panic(newError("can't use scalar %q as an array", name))
		}
		arr = make(map[string]value)
		p.arrays[name] = arr
	}
	return arr
}

// setArrayValue sets array[index] = v, creating the array as needed
// (used for setting up ARGV and ENVIRON).
func (p *Interp) setArrayValue(name, index string, v value) {
	p.array(name)[index] = v
}

func (p *Interp) toString(v value) string {
	return v.str(p.convertFormat)
}

// mustCompile compiles a dynamic regex pattern (one built from a
// string at runtime), memoizing the result. An invalid dynamic
// pattern is a fatal error.
func (p *Interp) mustCompile(pattern string) *coregex.Regexp {
	if re, ok := p.dynRegexCache[pattern]; ok {
		return re
	}
	re := p.compile(pattern)
	p.dynRegexCache[pattern] = re
	return re
}

// literalCompile compiles a regex literal; these are cached
// separately from dynamic patterns so the two can't interfere.
func (p *Interp) literalCompile(pattern string) *coregex.Regexp {
	if re, ok := p.regexCache[pattern]; ok {
		return re
	}
	re := p.compile(pattern)
	p.regexCache[pattern] = re
	return re
}

func (p *Interp) compile(pattern string) *coregex.Regexp {
	// AWK regex semantics: "." matches any character including
	// newline, and matching is POSIX leftmost-longest
	re, err := coregex.Compile("(?s)" + pattern)
	if err != nil {
		panic(newError("invalid regex %q: %s", pattern, err))
	}
	re.Longest()
	return re
}

type binaryFunc func(p *Interp, l, r value) value

var binaryFuncs = map[Token]binaryFunc{
	EQUALS: (*Interp).equal,
	NOT_EQUALS: func(p *Interp, l, r value) value {
		return p.not(p.equal(l, r))
	},
	LESS: (*Interp).lessThan,
	LTE: func(p *Interp, l, r value) value {
		return p.not(p.lessThan(r, l))
	},
	GREATER: func(p *Interp, l, r value) value {
		return p.lessThan(r, l)
	},
	GTE: func(p *Interp, l, r value) value {
		return p.not(p.lessThan(l, r))
	},
	ADD: func(p *Interp, l, r value) value {
		return num(l.num() + r.num())
	},
	SUB: func(p *Interp, l, r value) value {
		return num(l.num() - r.num())
	},
	MUL: func(p *Interp, l, r value) value {
		return num(l.num() * r.num())
	},
	POW: func(p *Interp, l, r value) value {
		return num(math.Pow(l.num(), r.num()))
	},
	DIV: func(p *Interp, l, r value) value {
		rf := r.num()
		if rf == 0.0 {
			panic(newError("division by zero"))
		}
		return num(l.num() / rf)
	},
	MOD: func(p *Interp, l, r value) value {
		rf := r.num()
		if rf == 0.0 {
			panic(newError("division by zero in mod"))
		}
		return num(math.Mod(l.num(), rf))
	},
	CONCAT: func(p *Interp, l, r value) value {
		return str(p.toString(l) + p.toString(r))
	},
	MATCH: (*Interp).regexMatch,
	NOT_MATCH: func(p *Interp, l, r value) value {
		return p.not(p.regexMatch(l, r))
	},
}

func (p *Interp) equal(l, r value) value {
	if l.isTrueStr() || r.isTrueStr() {
		return boolean(p.toString(l) == p.toString(r))
	}
	return boolean(l.num() == r.num())
}

func (p *Interp) lessThan(l, r value) value {
	return boolean(p.valueLess(l, r))
}

func (p *Interp) regexMatch(l, r value) value {
	re := p.mustCompile(p.toString(r))
	return boolean(re.MatchString(p.toString(l)))
}

type unaryFunc func(p *Interp, v value) value

var unaryFuncs = map[Token]unaryFunc{
	NOT: (*Interp).not,
	ADD: func(p *Interp, v value) value {
		return num(v.num())
	},
	SUB: func(p *Interp, v value) value {
		return num(-v.num())
	},
}

func (p *Interp) not(v value) value {
	return boolean(!v.boolean())
}

// userCall calls a user-defined function: scalar arguments are passed
// by value into a fresh local frame; array arguments alias the
// caller's array. Extra parameters beyond the call's arguments are
// locals, uninitialized scalars or empty local arrays.
func (p *Interp) userCall(name string, args []Expr) value {
	f, ok := p.funcs[name]
	if !ok {
		panic(newError("undefined function %q", name))
	}
	if len(args) > len(f.Params) {
		panic(newError("%q called with more arguments than declared", name))
	}
	if p.callDepth >= maxCallDepth {
		panic(newError("calling %q exceeded maximum call depth", name))
	}

	locals := make(map[string]value)
	arrays := make(map[string]string)
	for i, arg := range args {
		if f.Arrays[i] {
			a, ok := arg.(*VarExpr)
			if !ok {
				panic(newError("%s() argument %q must be an array", name, f.Params[i]))
			}
			arrays[f.Params[i]] = p.getArrayName(a.Name)
		} else {
			locals[f.Params[i]] = p.eval(arg)
		}
	}
	for i := len(args); i < len(f.Params); i++ {
		if f.Arrays[i] {
			arrays[f.Params[i]] = "__nla" + strconv.Itoa(p.nilLocalArray)
			p.nilLocalArray++
		} else {
			locals[f.Params[i]] = null()
		}
	}
	p.locals = append(p.locals, locals)
	p.localArrays = append(p.localArrays, arrays)
	p.callDepth++

	err := p.executes(f.Body)

	p.callDepth--
	p.locals = p.locals[:len(p.locals)-1]
	for i := len(args); i < len(f.Params); i++ {
		if f.Arrays[i] {
			p.nilLocalArray--
			delete(p.arrays, "__nla"+strconv.Itoa(p.nilLocalArray))
		}
	}
	p.localArrays = p.localArrays[:len(p.localArrays)-1]

	if r, ok := err.(returnValue); ok {
		return r.Value
	}
	if err != nil {
		panic(err)
	}
	return null()
}

func (p *Interp) assign(left Expr, right value) {
	switch left := left.(type) {
	case *VarExpr:
		p.setVar(left.Name, right)
	case *IndexExpr:
		index := p.evalIndex(left.Index)
		p.array(left.Array)[index] = right
	case *FieldExpr:
		index := p.eval(left.Index)
		p.setField(int(index.num()), right)
	default:
		panic(fmt.Sprintf("unexpected lvalue type: %T", left))
	}
}

// evalIndex joins multi-dimensional subscripts with SUBSEP.
func (p *Interp) evalIndex(indexExprs []Expr) string {
	if len(indexExprs) == 1 {
		return p.toString(p.eval(indexExprs[0]))
	}
	indices := make([]string, len(indexExprs))
	for i, expr := range indexExprs {
		indices[i] = p.toString(p.eval(expr))
	}
	return strings.Join(indices, p.subscriptSep)
}
