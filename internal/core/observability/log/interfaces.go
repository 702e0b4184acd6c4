package log

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Log interface {
	Log(level Level, msg string, fields ...Field)

	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	With(fields ...Field) Log
	WithContext(ctx context.Context) Log

	SetLevel(level Level)
	GetLevel() Level
}

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// Field is a zap field; the constructors below keep call sites free of zap
// imports.
type Field = zapcore.Field

func Any(key string, val any) Field                { return zap.Any(key, val) }
func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func ByteString(key string, val []byte) Field      { return zap.ByteString(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Float64(key string, val float64) Field        { return zap.Float64(key, val) }
func Float32(key string, val float32) Field        { return zap.Float32(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Int64(key string, val int64) Field            { return zap.Int64(key, val) }
func Int32(key string, val int32) Field            { return zap.Int32(key, val) }
func String(key string, val string) Field          { return zap.String(key, val) }
func Time(key string, val time.Time) Field         { return zap.Time(key, val) }
func Uint64(key string, val uint64) Field          { return zap.Uint64(key, val) }
func Uint32(key string, val uint32) Field          { return zap.Uint32(key, val) }
func Uint16(key string, val uint16) Field          { return zap.Uint16(key, val) }
func Uint8(key string, val uint8) Field            { return zap.Uint8(key, val) }
func Stringer(key string, val fmt.Stringer) Field  { return zap.Stringer(key, val) }
func ErrorWithKey(key string, val error) Field     { return zap.NamedError(key, val) }

// Error is keyed "error". A nil error adds nothing.
func Error(val error) Field {
	return zap.Error(val)
}
