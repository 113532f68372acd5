package wsfeed

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// testLogger implements the Logger interface on top of an io.Writer. Every derived logger shares the
// writer lock, so lines written from different goroutines never interleave.
type testLogger struct {
	mu     *sync.Mutex
	writer io.Writer
	fields map[string]any
}

func newTestLogger(writer io.Writer) Logger {
	return &testLogger{
		mu:     &sync.Mutex{},
		writer: writer,
		fields: make(map[string]any),
	}
}

func (l *testLogger) WithField(key string, value any) Logger {
	next := &testLogger{
		mu:     l.mu,
		writer: l.writer,
		fields: make(map[string]any, len(l.fields)+1),
	}
	for k, v := range l.fields {
		next.fields[k] = v
	}
	next.fields[key] = value
	return next
}

func (l *testLogger) formatFields() string {
	if len(l.fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, l.fields[k]))
	}
	return " [" + strings.Join(parts, ", ") + "]"
}

func (l *testLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.writer, "[%s] %s%s: %s\n", timestamp, level, l.formatFields(), strings.TrimRight(msg, "\n"))
}

func (l *testLogger) Debug(args ...any)                 { l.log("DEBUG", fmt.Sprint(args...)) }
func (l *testLogger) Debugf(format string, args ...any) { l.log("DEBUG", fmt.Sprintf(format, args...)) }
func (l *testLogger) Debugln(args ...any)               { l.log("DEBUG", fmt.Sprintln(args...)) }
func (l *testLogger) Info(args ...any)                  { l.log("INFO", fmt.Sprint(args...)) }
func (l *testLogger) Infof(format string, args ...any)  { l.log("INFO", fmt.Sprintf(format, args...)) }
func (l *testLogger) Infoln(args ...any)                { l.log("INFO", fmt.Sprintln(args...)) }
func (l *testLogger) Warn(args ...any)                  { l.log("WARN", fmt.Sprint(args...)) }
func (l *testLogger) Warnf(format string, args ...any)  { l.log("WARN", fmt.Sprintf(format, args...)) }
func (l *testLogger) Warnln(args ...any)                { l.log("WARN", fmt.Sprintln(args...)) }
func (l *testLogger) Error(args ...any)                 { l.log("ERROR", fmt.Sprint(args...)) }
func (l *testLogger) Errorf(format string, args ...any) { l.log("ERROR", fmt.Sprintf(format, args...)) }
func (l *testLogger) Errorln(args ...any)               { l.log("ERROR", fmt.Sprintln(args...)) }

// syncBuffer is a goroutine safe bytes sink for newTestLogger.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}
