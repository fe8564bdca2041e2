// Package process runs external commands to completion while streaming
// their output line by line to a caller-supplied sink.
package process

// Stream identifies one of the three standard streams of a child process.
type Stream string

const (
	StreamStdin  Stream = "stdin"
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Sink receives output lines as they are read from a child process.
// Implementations must be safe for concurrent use: the stdout and stderr
// drains deliver lines from separate goroutines.
type Sink interface {
	Line(stream Stream, line string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(stream Stream, line string)

// Line calls f.
func (f SinkFunc) Line(stream Stream, line string) { f(stream, line) }

// Invocation describes one external command: the program, its ordered
// arguments, environment overrides merged over the inherited environment,
// and an optional stdin payload. A nil Stdin closes the child's input
// immediately after start. Invocations are constructed fresh per call and
// never reused.
type Invocation struct {
	Program string
	Args    []string
	Env     map[string]string
	Stdin   []byte
}

// Outcome is the normalized exit verdict of a finished child. Signaled
// means the child was killed by a signal; Code is -1 in that case.
type Outcome struct {
	Code     int
	Signaled bool
}

// Success reports whether the child exited with code zero.
func (o Outcome) Success() bool { return !o.Signaled && o.Code == 0 }

// Err returns an ExitError when the outcome is a failure, nil otherwise.
func (o Outcome) Err() error {
	if o.Success() {
		return nil
	}
	return &ExitError{Code: o.Code, Signaled: o.Signaled}
}
