package process

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
)

const (
	initialScanBuffer = 64 * 1024
	maxScanBuffer     = 1024 * 1024
)

// Runner executes invocations as real OS processes.
type Runner struct{}

// NewRunner returns a Runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Run starts the invocation, writes its stdin payload, drains stdout and
// stderr concurrently into the sink, and blocks until the child has exited
// and both streams are consumed to end-of-stream. The Outcome carries the
// exit verdict; a nonzero exit is not an error here, only spawn, stdin,
// capture, drain, and wait failures are.
func (r *Runner) Run(ctx context.Context, inv Invocation, sink Sink) (Outcome, error) {
	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Env = mergedEnv(inv.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Outcome{}, &StreamCaptureError{Stream: StreamStdin, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{}, &StreamCaptureError{Stream: StreamStdout, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Outcome{}, &StreamCaptureError{Stream: StreamStderr, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return Outcome{}, &SpawnError{Program: inv.Program, Err: err}
	}

	if len(inv.Stdin) > 0 {
		if _, err := stdin.Write(inv.Stdin); err != nil {
			_ = stdin.Close()
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return Outcome{}, &StdinWriteError{Err: err}
		}
	}
	_ = stdin.Close()

	drained := make(chan error, 2)
	go drain(stdout, StreamStdout, sink, drained)
	go drain(stderr, StreamStderr, sink, drained)

	var drainErr error
	for i := 0; i < 2; i++ {
		if err := <-drained; err != nil && drainErr == nil {
			drainErr = err
		}
	}

	// Wait must come after both drains have finished: it closes the pipes.
	waitErr := cmd.Wait()
	if drainErr != nil {
		return Outcome{}, drainErr
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return outcomeOf(exitErr.ProcessState), nil
		}
		return Outcome{}, &WaitError{Err: waitErr}
	}
	return outcomeOf(cmd.ProcessState), nil
}

func outcomeOf(state *os.ProcessState) Outcome {
	if state.Exited() {
		return Outcome{Code: state.ExitCode()}
	}
	return Outcome{Code: -1, Signaled: true}
}

// drain reads one stream line by line into the sink until end-of-stream,
// reporting a scanner failure, if any, on done. On failure the pipe is
// closed so a child still writing to it is not left blocked.
func drain(rc io.ReadCloser, stream Stream, sink Sink, done chan<- error) {
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, initialScanBuffer), maxScanBuffer)
	for scanner.Scan() {
		sink.Line(stream, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		_ = rc.Close()
		done <- &DrainError{Stream: stream, Err: err}
		return
	}
	done <- nil
}

// mergedEnv layers the overrides onto the inherited environment. Later
// entries win when a variable repeats, so overrides are appended, in sorted
// order for a deterministic child environment.
func mergedEnv(overrides map[string]string) []string {
	env := os.Environ()
	if len(overrides) == 0 {
		return env
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
