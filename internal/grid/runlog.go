package grid

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// RunLog collects the human-readable progress and warning lines of a single
// analysis run. It is owned by the caller for the duration of that run.
type RunLog struct {
	mu      sync.Mutex
	entries []string
	logger  *zap.Logger
}

func NewRunLog(logger *zap.Logger) *RunLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunLog{logger: logger}
}

func (l *RunLog) Add(msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, msg)
	l.mu.Unlock()

	l.logger.Info(msg)
}

func (l *RunLog) Addf(format string, args ...any) {
	l.Add(fmt.Sprintf(format, args...))
}

func (l *RunLog) Warnf(format string, args ...any) {
	msg := "warning: " + fmt.Sprintf(format, args...)

	l.mu.Lock()
	l.entries = append(l.entries, msg)
	l.mu.Unlock()

	l.logger.Warn(msg)
}

// Entries returns a copy of the lines recorded so far.
func (l *RunLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *RunLog) Logger() *zap.Logger {
	return l.logger
}
