// Input/output handling for the rawk interpreter: the record reader
// over the main input sources, the registry of redirection streams,
// and the record splitters for the different RS modes.

package interp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/coregx/coregex"
	. "github.com/pegasusheavy/rawk/lexer"
)

const (
	inputBufSize    = 64 * 1024
	outputBufSize   = 64 * 1024
	maxRecordLength = 1 << 31
)

// Print a line of output followed by ORS.
func (p *Interp) printLine(writer io.Writer, line string) error {
	err := writeOutput(writer, line)
	if err != nil {
		return err
	}
	return writeOutput(writer, p.outputRecordSep)
}

// Print given arguments separated by OFS and followed by ORS (for the
// "print" statement).
func (p *Interp) printArgs(writer io.Writer, args []value) error {
	for i, arg := range args {
		if i > 0 {
			err := writeOutput(writer, p.outputFieldSep)
			if err != nil {
				return err
			}
		}
		err := writeOutput(writer, arg.str(p.outputFormat))
		if err != nil {
			return err
		}
	}
	return writeOutput(writer, p.outputRecordSep)
}

// Determine the output stream for the given redirect token and
// destination (file or pipe name). File and pipe targets are
// separate registry entries from any read streams of the same name.
func (p *Interp) getOutputStream(redirect Token, destValue value) io.Writer {
	name := p.toString(destValue)
	if w, ok := p.outputStreams[name]; ok {
		return w
	}

	switch redirect {
	case GREATER, APPEND:
		if name == "-" {
			// filename of "-" means write to stdout, eg: print "x" >"-"
			return p.output
		}
		p.flushOutputAndError() // ensure synchronization
		flags := os.O_CREATE | os.O_WRONLY
		if redirect == GREATER {
			flags |= os.O_TRUNC
		} else {
			flags |= os.O_APPEND
		}
		f, err := os.OpenFile(name, flags, 0644)
		if err != nil {
			panic(newError("output redirection error: %s", err))
		}
		out := newWriteStream(f, nil)
		p.outputStreams[name] = out
		return out

	case PIPE:
		p.flushOutputAndError() // ensure synchronization
		out, err := p.startWritePipe(name)
		if err != nil {
			p.printErrorf("%s\n", err)
			out = discardStream()
		}
		p.outputStreams[name] = out
		return out

	default:
		// Should never happen
		panic(fmt.Sprintf("unexpected redirect type %s", redirect))
	}
}

// Executes code using the system shell.
func (p *Interp) execShell(code string) *exec.Cmd {
	return exec.Command("sh", "-c", code)
}

// Get the input scanner to use for "getline" from the named file.
func (p *Interp) getInputScannerFile(name string) (*bufio.Scanner, error) {
	if _, ok := p.inputStreams[name]; ok {
		return p.scanners[name], nil
	}
	if name == "-" {
		// filename of "-" means read from stdin, eg: getline <"-"
		if scanner, ok := p.scanners["-"]; ok {
			return scanner, nil
		}
		scanner := p.newScanner(p.stdin, make([]byte, inputBufSize))
		p.scanners[name] = scanner
		return scanner, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err // handled by caller (getline returns -1)
	}
	in := &readStream{reader: f}
	scanner := p.newScanner(in, make([]byte, inputBufSize))
	p.scanners[name] = scanner
	p.inputStreams[name] = in
	return scanner, nil
}

// Get the input scanner to use for "cmd | getline".
func (p *Interp) getInputScannerPipe(name string) (*bufio.Scanner, error) {
	if _, ok := p.inputStreams[name]; ok {
		return p.scanners[name], nil
	}
	p.flushOutputAndError() // ensure synchronization
	in, err := p.startReadPipe(name)
	if err != nil {
		p.printErrorf("%s\n", err)
		return bufio.NewScanner(strings.NewReader("")), nil
	}
	scanner := p.newScanner(in, make([]byte, inputBufSize))
	p.inputStreams[name] = in
	p.scanners[name] = scanner
	return scanner, nil
}

// Create a new buffered Scanner for reading input records, honoring
// the current RS mode.
func (p *Interp) newScanner(input io.Reader, buffer []byte) *bufio.Scanner {
	scanner := bufio.NewScanner(input)
	switch {
	case p.recordSep == "\n":
		// Scanner default is to split on newlines
	case p.recordSep == "":
		// Empty RS means paragraph mode: records separated by one or
		// more blank lines
		splitter := blankLineSplitter{terminator: &p.recordTerminator}
		scanner.Split(splitter.scan)
	case len(p.recordSep) == 1:
		splitter := byteSplitter{sep: p.recordSep[0]}
		scanner.Split(splitter.scan)
	default:
		// RS longer than one character is a regex
		splitter := regexSplitter{re: p.mustCompile(p.recordSep), terminator: &p.recordTerminator}
		scanner.Split(splitter.scan)
	}
	scanner.Buffer(buffer, maxRecordLength)
	return scanner
}

// Copied from bufio/scan.go in the stdlib: I guess it's a bit more
// efficient than bytes.TrimSuffix(data, []byte("\r"))
func dropCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		return data[:len(data)-1]
	}
	return data
}

func dropLF(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\n' {
		return data[:len(data)-1]
	}
	return data
}

type blankLineSplitter struct {
	terminator *string
}

func (s blankLineSplitter) scan(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// Skip newlines at beginning of data
	i := 0
	for i < len(data) && (data[i] == '\n' || data[i] == '\r') {
		i++
	}
	if i >= len(data) {
		// At end of data after newlines, skip entire data block
		return i, nil, nil
	}
	start := i

	// Try to find two consecutive newlines (or \n\r\n for Windows)
	for ; i < len(data); i++ {
		if data[i] != '\n' {
			continue
		}
		end := i
		if i+1 < len(data) && data[i+1] == '\n' {
			i += 2
			for i < len(data) && (data[i] == '\n' || data[i] == '\r') {
				i++ // Skip newlines at end of record
			}
			*s.terminator = string(data[end:i])
			return i, dropCR(data[start:end]), nil
		}
		if i+2 < len(data) && data[i+1] == '\r' && data[i+2] == '\n' {
			i += 3
			for i < len(data) && (data[i] == '\n' || data[i] == '\r') {
				i++ // Skip newlines at end of record
			}
			*s.terminator = string(data[end:i])
			return i, dropCR(data[start:end]), nil
		}
	}

	// If we're at EOF, we have one final record; return it
	if atEOF {
		token = dropCR(dropLF(data[start:]))
		*s.terminator = string(data[start+len(token):])
		return len(data), token, nil
	}

	// Request more data
	return 0, nil, nil
}

// Splitter that splits records on the given separator byte.
type byteSplitter struct {
	sep byte
}

func (s byteSplitter) scan(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, s.sep); i >= 0 {
		// We have a full sep-terminated record
		return i + 1, data[:i], nil
	}
	// If at EOF, we have a final, non-terminated record; return it
	if atEOF {
		return len(data), data, nil
	}
	// Request more data
	return 0, nil, nil
}

// Splitter that splits records on the given regular expression.
type regexSplitter struct {
	re         *coregex.Regexp
	terminator *string
}

func (s regexSplitter) scan(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	loc := s.re.FindStringIndex(string(data))
	// Note: for a regex such as "()", loc[0]==loc[1]. Gawk behavior
	// for this case is to match the entire input.
	if loc != nil && loc[0] != loc[1] {
		if !atEOF && loc[1] == len(data) {
			// Separator hits the end of the buffer: it might match
			// longer with more data, so ask for more
			return 0, nil, nil
		}
		*s.terminator = string(data[loc[0]:loc[1]]) // set RT special variable
		return loc[1], data[:loc[0]], nil
	}
	// If at EOF, we have a final, non-terminated record; return it
	if atEOF {
		*s.terminator = ""
		return len(data), data, nil
	}
	// Request more data
	return 0, nil, nil
}

// Set up for a new input file with the given name ("" or "-" when
// reading stdin): FILENAME updates and FNR resets.
func (p *Interp) setFile(filename string) {
	p.filename = numStr(filename)
	p.fileLineNum = 0
	p.hadFiles = true
}

// splitVarAssign splits a command-line style "name=value" assignment,
// reporting whether s has that form.
func splitVarAssign(s string) (name, val string, ok bool) {
	eq := strings.IndexByte(s, '=')
	if eq <= 0 {
		return "", "", false
	}
	name = s[:eq]
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(i > 0 && c >= '0' && c <= '9') {
			continue
		}
		return "", "", false
	}
	return name, s[eq+1:], true
}

// Fetch the next record of input from the current input source,
// opening the next one (and firing BEGINFILE/ENDFILE rules) as
// sources are exhausted. Returns io.EOF after the last record of the
// last source.
func (p *Interp) nextRecord() (string, error) {
	for {
		if p.scanner == nil {
			if prevInput, ok := p.input.(io.Closer); ok && p.input != p.stdin {
				// Previous input is a file, close it
				_ = prevInput.Close()
			}
			if p.filenameIndex >= p.argc && !p.hadFiles {
				// Moved past the ARGV args without seeing a file:
				// read standard input
				p.input = p.stdin
				p.setFile("")
			} else {
				if p.filenameIndex >= p.argc {
					// Done with ARGV args, all done with input
					return "", io.EOF
				}
				index := strconv.Itoa(p.filenameIndex)
				filename := p.toString(p.arrays["ARGV"][index])
				p.filenameIndex++

				if name, val, ok := splitVarAssign(filename); ok {
					// A "name=value" argument is a late variable
					// assignment, processed at this point in the input
					// sequence (escapes interpreted, like -v)
					unescaped, err := Unescape(val)
					if err == nil {
						val = unescaped
					}
					err = p.setVarError(name, numStr(val))
					if err != nil {
						return "", err
					}
					continue
				} else if filename == "" {
					// ARGV arg is empty string, skip
					p.input = nil
					continue
				} else if filename == "-" {
					p.input = p.stdin
					p.setFile("-")
				} else {
					input, err := os.Open(filename)
					if err != nil {
						return "", err
					}
					p.input = input
					p.setFile(filename)
				}
			}
			if p.inputBuffer == nil { // reuse buffer from last input file
				p.inputBuffer = make([]byte, inputBufSize)
			}
			p.scanner = p.newScanner(p.input, p.inputBuffer)

			err := p.execBeginFile()
			if err == errNextfile {
				// nextfile in BEGINFILE skips the file entirely
				p.scanner = nil
				continue
			}
			if err != nil {
				return "", err
			}
		}
		p.recordTerminator = p.recordSep // overridden by RS "" or regex
		if p.scanner.Scan() {
			// We scanned some input, break and return it
			break
		}
		if err := p.scanner.Err(); err != nil {
			return "", fmt.Errorf("error reading from input: %s", err)
		}
		// Current source is done: fire ENDFILE rules and move on
		if err := p.execEndFile(); err != nil {
			return "", err
		}
		p.scanner = nil
	}

	// Got a record of input, return it
	p.lineNum++
	p.fileLineNum++
	return p.scanner.Text(), nil
}

// endCurrentFile abandons the rest of the current input source (for
// the nextfile statement), firing ENDFILE rules.
func (p *Interp) endCurrentFile() error {
	if p.scanner == nil {
		return nil
	}
	err := p.execEndFile()
	p.scanner = nil
	return err
}

// Write an output string to the given writer, producing correct line
// endings on Windows (CR LF).
func writeOutput(w io.Writer, s string) error {
	if crlfNewline {
		// First normalize to \n, then convert all newlines to \r\n
		// (on Windows)
		s = strings.Replace(s, "\r\n", "\n", -1)
		s = strings.Replace(s, "\n", "\r\n", -1)
	}
	_, err := io.WriteString(w, s)
	return err
}

// Close all streams and flush output (after program execution).
func (p *Interp) closeAll() {
	if prevInput, ok := p.input.(io.Closer); ok && p.input != p.stdin {
		_ = prevInput.Close()
	}
	for _, r := range p.inputStreams {
		r.closeStatus()
	}
	for _, w := range p.outputStreams {
		w.closeStatus()
	}
	if f, ok := p.output.(flusher); ok {
		_ = f.Flush()
	}
	if f, ok := p.errorOutput.(flusher); ok {
		_ = f.Flush()
	}
}

// Flush all output streams as well as standard output. Report whether
// all streams were flushed successfully (logging error(s) if not).
func (p *Interp) flushAll() bool {
	allGood := true
	for name, writer := range p.outputStreams {
		if !p.flushWriter(name, writer) {
			allGood = false
		}
	}
	if !p.flushWriter("stdout", p.output) {
		allGood = false
	}
	return allGood
}

// Flush a single, named output stream, and report whether it was
// flushed successfully (logging an error if not).
func (p *Interp) flushStream(name string) bool {
	writer := p.outputStreams[name]
	if writer == nil {
		p.printErrorf("error flushing %q: not an output file or pipe\n", name)
		return false
	}
	return p.flushWriter(name, writer)
}

type flusher interface {
	Flush() error
}

// Flush given output writer, and report whether it was flushed
// successfully (logging an error if not).
func (p *Interp) flushWriter(name string, writer io.Writer) bool {
	flusher, ok := writer.(flusher)
	if !ok {
		return true // not a flusher, don't error
	}
	err := flusher.Flush()
	if err != nil {
		p.printErrorf("error flushing %q: %v\n", name, err)
		return false
	}
	return true
}

// Flush output and error streams.
func (p *Interp) flushOutputAndError() {
	if flusher, ok := p.output.(flusher); ok {
		_ = flusher.Flush()
	}
	if flusher, ok := p.errorOutput.(flusher); ok {
		_ = flusher.Flush()
	}
}

// Print a message to the error output stream, flushing as necessary.
func (p *Interp) printErrorf(format string, args ...interface{}) {
	if flusher, ok := p.output.(flusher); ok {
		_ = flusher.Flush() // ensure synchronization
	}
	fmt.Fprintf(p.errorOutput, format, args...)
	if flusher, ok := p.errorOutput.(flusher); ok {
		_ = flusher.Flush()
	}
}
