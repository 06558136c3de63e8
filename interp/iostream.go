package interp

// Redirection streams. A file target and a command target behave the
// same from the program's point of view, so both directions are one
// type with an optional child process attached; close() reads its
// result off closeStatus.

import (
	"bufio"
	"errors"
	"io"
	"os/exec"
	"syscall"
)

// A writeStream is one output redirection target: a file opened with
// ">" or ">>", or the stdin of a "| cmd" pipeline.
type writeStream struct {
	buf    *bufio.Writer
	closer io.Closer // nil when output is discarded
	cmd    *exec.Cmd // non-nil for pipelines
	done   bool
}

func newWriteStream(w io.WriteCloser, cmd *exec.Cmd) *writeStream {
	return &writeStream{buf: bufio.NewWriterSize(w, outputBufSize), closer: w, cmd: cmd}
}

// discardStream swallows writes; it stands in for a pipeline whose
// command failed to start.
func discardStream() *writeStream {
	return &writeStream{buf: bufio.NewWriterSize(io.Discard, 64)}
}

func (ws *writeStream) Write(data []byte) (int, error) {
	return ws.buf.Write(data)
}

func (ws *writeStream) Flush() error {
	return ws.buf.Flush()
}

// closeStatus closes the stream and returns what close() reports for
// it: the child's exit status for a pipeline, 0 for a file, and -1 on
// error or when the stream was already closed. The write end must be
// closed before waiting so a pipeline child sees EOF.
func (ws *writeStream) closeStatus() float64 {
	if ws.done {
		return -1
	}
	ws.done = true
	flushErr := ws.buf.Flush()
	var closeErr error
	if ws.closer != nil {
		closeErr = ws.closer.Close()
	}
	if ws.cmd != nil {
		return childStatus(ws.cmd)
	}
	if flushErr != nil || closeErr != nil {
		return -1
	}
	return 0
}

// A readStream is one input redirection source: a file read with
// "getline <file", or the stdout of a "cmd | getline" pipeline.
type readStream struct {
	reader io.ReadCloser
	cmd    *exec.Cmd
	done   bool
}

func (rs *readStream) Read(data []byte) (int, error) {
	return rs.reader.Read(data)
}

func (rs *readStream) closeStatus() float64 {
	if rs.done {
		return -1
	}
	rs.done = true
	closeErr := rs.reader.Close()
	if rs.cmd != nil {
		return childStatus(rs.cmd)
	}
	if closeErr != nil {
		return -1
	}
	return 0
}

// startWritePipe launches name through the shell with the write end
// connected to the command's stdin.
func (p *Interp) startWritePipe(name string) (*writeStream, error) {
	cmd := p.execShell(name)
	cmd.Stdout = p.output
	cmd.Stderr = p.errorOutput
	w, err := cmd.StdinPipe()
	if err != nil {
		return nil, newError("error connecting to stdin pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		w.Close()
		return nil, err
	}
	return newWriteStream(w, cmd), nil
}

// startReadPipe launches name through the shell with its stdout as
// the read end.
func (p *Interp) startReadPipe(name string) (*readStream, error) {
	cmd := p.execShell(name)
	cmd.Stdin = p.stdin
	cmd.Stderr = p.errorOutput
	r, err := cmd.StdoutPipe()
	if err != nil {
		return nil, newError("error connecting to stdout pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		r.Close()
		return nil, err
	}
	return &readStream{reader: r, cmd: cmd}, nil
}

// childStatus waits for the command and folds the result into the
// number AWK reports: the exit status on a normal exit, or the signal
// number plus 256 when the child was killed (plus 512 if it dumped
// core), mirroring gawk.
func childStatus(cmd *exec.Cmd) float64 {
	err := cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		// Wait itself failed (an I/O error, not a child status)
		return -1
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
		switch {
		case status.CoreDump():
			return float64(512 + int(status.Signal()))
		case status.Signaled():
			return float64(256 + int(status.Signal()))
		case status.Exited():
			return float64(status.ExitStatus())
		}
	}
	return float64(exitErr.ExitCode())
}
