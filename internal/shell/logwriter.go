package shell

import (
	"io"
	"sync"
)

// LogWriter is the log destination of the binary. It can be muted at
// runtime and redirected to the readline writer while the shell runs.
type LogWriter struct {
	mu       sync.Mutex
	out      io.Writer
	fallback io.Writer
	enabled  bool
}

// NewLogWriter returns an enabled writer that writes to fallback until
// SetOutput is called.
func NewLogWriter(fallback io.Writer) *LogWriter {
	return &LogWriter{fallback: fallback, enabled: true}
}

func (l *LogWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return len(p), nil
	}
	w := l.out
	if w == nil {
		w = l.fallback
	}
	if w == nil {
		return len(p), nil
	}
	return w.Write(p)
}

// SetOutput redirects output; nil restores the fallback.
func (l *LogWriter) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// SetEnabled mutes or unmutes the writer.
func (l *LogWriter) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// Enabled reports whether output is written.
func (l *LogWriter) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}
