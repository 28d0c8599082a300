package logging

import "github.com/rs/zerolog"

// InternalLogger is used by background tasks, so their output can be stored
// next to the regular zerolog output.
type InternalLogger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

var _ InternalLogger = (*ZLogger)(nil)

type ZLogger struct {
	ZLog zerolog.Logger
}

func NewZLogger(zlog zerolog.Logger) ZLogger {
	return ZLogger{ZLog: zlog}
}

func (l ZLogger) Debug(format string, args ...any) {
	l.ZLog.Debug().Msgf(format, args...)
}

func (l ZLogger) Info(format string, args ...any) {
	l.ZLog.Info().Msgf(format, args...)
}

func (l ZLogger) Warn(format string, args ...any) {
	l.ZLog.Warn().Msgf(format, args...)
}

func (l ZLogger) Error(format string, args ...any) {
	l.ZLog.Error().Msgf(format, args...)
}

var _ InternalLogger = (*MultiLogger)(nil)

// MultiLogger fans every message out to all Loggers, in order.
type MultiLogger []InternalLogger

func NewMultiLogger(loggers ...InternalLogger) MultiLogger {
	return loggers
}

func (l MultiLogger) Debug(format string, args ...any) {
	for _, logger := range l {
		logger.Debug(format, args...)
	}
}

func (l MultiLogger) Info(format string, args ...any) {
	for _, logger := range l {
		logger.Info(format, args...)
	}
}

func (l MultiLogger) Warn(format string, args ...any) {
	for _, logger := range l {
		logger.Warn(format, args...)
	}
}

func (l MultiLogger) Error(format string, args ...any) {
	for _, logger := range l {
		logger.Error(format, args...)
	}
}
