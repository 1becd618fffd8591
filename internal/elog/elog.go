// Package elog is the engine's logging facade. It exists so the rest of the
// engine never imports zap directly, the same way FlashLog's segmentmanager
// and memtable packages never reach outside their own narrow interfaces.
package elog

import "go.uber.org/zap"

// Logger is the engine-internal logging surface. The zero value is not
// usable; construct one with New or Nop.
type Logger struct {
	z *zap.Logger
}

// New wraps an existing zap logger. A nil z is treated the same as Nop().
func New(z *zap.Logger) Logger {
	if z == nil {
		return Nop()
	}
	return Logger{z: z}
}

// Nop returns a Logger that discards everything, the default when the
// caller does not configure one — a constrained device should never be
// forced to pay for logging it didn't ask for.
func Nop() Logger {
	return Logger{z: zap.NewNop()}
}

func (l Logger) With(fields ...zap.Field) Logger {
	return Logger{z: l.z.With(fields...)}
}

func (l Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l Logger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l Logger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

// Field re-exports are unnecessary; callers use zap.* directly since this
// package's whole purpose is to contain the zap import, not hide its types
// from call sites that already need to build zap.Field values.
