package process

import "fmt"

// SpawnError reports a command that could not be started at all.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("command failed to spawn; program=%s", e.Program)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// StreamCaptureError reports a standard stream that could not be attached
// as a pipe.
type StreamCaptureError struct {
	Stream Stream
	Err    error
}

func (e *StreamCaptureError) Error() string {
	return fmt.Sprintf("failed to capture %s stream", e.Stream)
}

func (e *StreamCaptureError) Unwrap() error { return e.Err }

// StdinWriteError reports a failed write of the stdin payload.
type StdinWriteError struct {
	Err error
}

func (e *StdinWriteError) Error() string { return "failed to write command stdin" }

func (e *StdinWriteError) Unwrap() error { return e.Err }

// DrainError reports a stream drain that stopped before end-of-stream.
type DrainError struct {
	Stream Stream
	Err    error
}

func (e *DrainError) Error() string {
	return fmt.Sprintf("failed to read %s stream", e.Stream)
}

func (e *DrainError) Unwrap() error { return e.Err }

// WaitError reports a wait on the child that failed for a reason other
// than an unsuccessful exit status.
type WaitError struct {
	Err error
}

func (e *WaitError) Error() string { return "failed to wait for command" }

func (e *WaitError) Unwrap() error { return e.Err }

// ExitError reports a child that finished unsuccessfully. Callers build it
// from an Outcome when a zero exit code is required.
type ExitError struct {
	Code     int
	Signaled bool
}

func (e *ExitError) Error() string {
	if e.Signaled {
		return "command was killed by a signal"
	}
	return fmt.Sprintf("command exited with non-zero code; code=%d", e.Code)
}
