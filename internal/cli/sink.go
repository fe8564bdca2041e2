package cli

import (
	"fmt"
	"io"
	"sync"

	"jailprov/internal/jailprov/process"
	"jailprov/pkg/logger"
)

// consoleSink renders child process output indented beneath the current
// progress line, stdout lines to out and stderr lines to errOut. The
// mutex keeps concurrent writes from the two stream drains whole.
type consoleSink struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

func newConsoleSink(out, errOut io.Writer) *consoleSink {
	return &consoleSink{out: out, errOut: errOut}
}

func (s *consoleSink) Line(stream process.Stream, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.out
	if stream == process.StreamStderr {
		w = s.errOut
	}
	_, _ = fmt.Fprintf(w, "        %s\n", line)
}

// loggerSink relays child process output through the structured logger,
// tagging every record with the stream it came from.
type loggerSink struct {
	out *logger.Logger
	err *logger.Logger
}

func newLoggerSink(log *logger.Logger) *loggerSink {
	return &loggerSink{
		out: log.WithField("stream", string(process.StreamStdout)),
		err: log.WithField("stream", string(process.StreamStderr)),
	}
}

func (s *loggerSink) Line(stream process.Stream, line string) {
	if stream == process.StreamStderr {
		s.err.Warn(line)
		return
	}
	s.out.Info(line)
}
