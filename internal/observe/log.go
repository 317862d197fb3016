// Package observe holds the engine's logging and metrics seams. The
// Logger interface keeps the same pluggable shape as the teacher's
// internal/memex/logger package (a tiny interface with a settable
// default), but the default implementation is backed by zap's
// structured, leveled logger instead of a no-op — every component logs
// through fields, never fmt.Printf.
package observe

import "go.uber.org/zap"

// Logger is the structured logging capability every component depends
// on. args are alternating key/value pairs, the same calling convention
// zap.SugaredLogger uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// zapLogger adapts a *zap.SugaredLogger to Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger builds a production zap.Logger and wraps it as a Logger.
func NewZapLogger() (Logger, func(), error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, func() {}, err
	}
	return &zapLogger{s: l.Sugar()}, func() { _ = l.Sync() }, nil
}

func (z *zapLogger) Debug(msg string, args ...any) { z.s.Debugw(msg, args...) }
func (z *zapLogger) Info(msg string, args ...any)  { z.s.Infow(msg, args...) }
func (z *zapLogger) Warn(msg string, args ...any)  { z.s.Warnw(msg, args...) }
func (z *zapLogger) Error(msg string, args ...any) { z.s.Errorw(msg, args...) }

// NoopLogger discards everything, mirroring the teacher's own
// logger.NoopLogger default.
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...any) {}
func (NoopLogger) Info(string, ...any)  {}
func (NoopLogger) Warn(string, ...any)  {}
func (NoopLogger) Error(string, ...any) {}
