package wsfeed

import (
	"go.uber.org/zap"
)

// zapLogger adapts a zap SugaredLogger to the Logger interface.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps l. A nil l yields a logger that discards everything.
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLogger{s: l.Sugar()}
}

func newNopLogger() Logger {
	return NewZapLogger(nil)
}

func (l *zapLogger) WithField(key string, value any) Logger {
	return &zapLogger{s: l.s.With(key, value)}
}

func (l *zapLogger) Debug(args ...any)                 { l.s.Debug(args...) }
func (l *zapLogger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l *zapLogger) Debugln(args ...any)               { l.s.Debugln(args...) }
func (l *zapLogger) Info(args ...any)                  { l.s.Info(args...) }
func (l *zapLogger) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l *zapLogger) Infoln(args ...any)                { l.s.Infoln(args...) }
func (l *zapLogger) Warn(args ...any)                  { l.s.Warn(args...) }
func (l *zapLogger) Warnf(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l *zapLogger) Warnln(args ...any)                { l.s.Warnln(args...) }
func (l *zapLogger) Error(args ...any)                 { l.s.Error(args...) }
func (l *zapLogger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
func (l *zapLogger) Errorln(args ...any)               { l.s.Errorln(args...) }
