// rawk is a POSIX AWK implementation with selected gawk extensions.
//
// Usage:
//
//	rawk [options] 'program' [file ...]
//	rawk [options] -f progfile [-f progfile ...] [file ...]
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pegasusheavy/rawk/interp"
	"github.com/pegasusheavy/rawk/lexer"
	"github.com/pegasusheavy/rawk/parser"
)

const version = "v1.0.0"

func main() {
	// Parse command-line arguments by hand: the awk option syntax is
	// simple and position-dependent (options stop at the program text
	// or the first operand), so flag-style parsing doesn't fit.
	var progFiles []string
	var assigns []string
	fieldSep := ""
	posixMode := false
	traditionalMode := false

	args := os.Args[1:]
	i := 0
argsLoop:
	for ; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			i++
			break argsLoop
		case arg == "-" || arg == "" || !strings.HasPrefix(arg, "-"):
			break argsLoop
		case arg == "-F":
			i++
			fieldSep = nextArg(args, i, "-F")
		case strings.HasPrefix(arg, "-F"):
			fieldSep = arg[2:]
		case arg == "-v":
			i++
			assigns = append(assigns, nextArg(args, i, "-v"))
		case strings.HasPrefix(arg, "-v"):
			assigns = append(assigns, arg[2:])
		case arg == "-f":
			i++
			progFiles = append(progFiles, nextArg(args, i, "-f"))
		case strings.HasPrefix(arg, "-f"):
			progFiles = append(progFiles, arg[2:])
		case arg == "-P" || arg == "--posix":
			posixMode = true
			traditionalMode = false
		case arg == "-c" || arg == "--traditional" || arg == "--compat":
			traditionalMode = true
			posixMode = false
		case arg == "--version":
			fmt.Println("rawk " + version)
			os.Exit(0)
		case arg == "-h" || arg == "--help":
			printUsage(os.Stdout)
			os.Exit(0)
		default:
			errorExitf("unknown option: %s", arg)
		}
	}

	// The program comes from the -f files (concatenated in order with
	// newlines between them) or from the first operand.
	var src []byte
	if len(progFiles) > 0 {
		buf := &bytes.Buffer{}
		for _, progFile := range progFiles {
			var text []byte
			var err error
			if progFile == "-" {
				text, err = io.ReadAll(os.Stdin)
			} else {
				text, err = os.ReadFile(progFile)
			}
			if err != nil {
				errorExitf("%s", err)
			}
			buf.Write(text)
			buf.WriteByte('\n')
		}
		src = buf.Bytes()
	} else {
		if i >= len(args) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		src = []byte(args[i])
		i++
	}
	inputArgs := args[i:]

	config := &parser.ParserConfig{
		PosixMode:       posixMode,
		TraditionalMode: traditionalMode,
	}
	prog, err := parser.ParseProgram(src, config)
	if err != nil {
		errorExitf("%s", err)
	}

	p := interp.New(nil, nil)
	p.SetPosixMode(posixMode || traditionalMode)
	if fieldSep != "" {
		err := p.SetVar("FS", fieldSep)
		if err != nil {
			errorExitf("%s", err)
		}
	}
	for _, assign := range assigns {
		name, val, ok := strings.Cut(assign, "=")
		if !ok {
			errorExitf("invalid variable assignment %q", assign)
		}
		unescaped, err := lexer.Unescape(val)
		if err == nil {
			val = unescaped
		}
		err = p.SetVar(name, val)
		if err != nil {
			errorExitf("%s", err)
		}
	}

	err = p.Exec(prog, os.Stdin, inputArgs)
	if err != nil {
		errorExitf("%s", err)
	}
	os.Exit(p.ExitStatus() & 0xff)
}

func nextArg(args []string, i int, option string) string {
	if i >= len(args) {
		errorExitf("option %s requires an argument", option)
	}
	return args[i]
}

func errorExitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "rawk: "+format+"\n", args...)
	os.Exit(2)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `usage: rawk [options] 'program' [file ...]
       rawk [options] -f progfile [-f progfile ...] [file ...]

A POSIX AWK implementation with selected gawk extensions.

Options:
  -F fs             set the field separator (may be a regex)
  -v name=value     assign to a global variable before BEGIN
  -f progfile       read the program from a file (repeatable)
  -P, --posix       strict POSIX mode (disable the extensions)
  -c, --traditional traditional AWK mode (disable the extensions)
  --version         print version and exit
  --help            print this help and exit

Extensions disabled by --posix and --traditional:
  BEGINFILE/ENDFILE rules, FIELDWIDTHS and FPAT splitting, and the
  gensub(), patsplit(), asort(), asorti(), systime(), mktime(), and
  strftime() functions.
`)
}
