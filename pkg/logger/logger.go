package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogInfo service logger; loggers derived with With share the debug switch
type LogInfo struct {
	log   *zap.Logger
	debug *zap.AtomicLevel
}

var (
	// Log 全域 logger, replaced by Initialize in main
	Log = newNop()
)

func newNop() *LogInfo {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	return &LogInfo{log: zap.NewNop(), debug: &level}
}

// SetNewNop 測試時關閉 log 輸出
func SetNewNop() {
	Log = newNop()
}

// Initialize 按日期分文件: info~error JSON 寫 stdout + 檔案, warn/debug 只到 console
func Initialize(serviceName, logDir string) *LogInfo {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		panic(fmt.Sprintf("Failed to create log directory: %v", err))
	}
	logFile := filepath.Join(logDir, fmt.Sprintf("%s_%s.log", serviceName, time.Now().Format("2006-01-02")))

	// InfoLevel = debug 關閉
	debug := zap.NewAtomicLevelAt(zap.InfoLevel)

	jsonCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), getFileWriter(logFile)),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level >= zap.InfoLevel && level != zap.WarnLevel
		}),
	)
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level == zap.WarnLevel || (level == zap.DebugLevel && debug.Enabled(zap.DebugLevel))
		}),
	)

	return &LogInfo{
		log: zap.New(zapcore.NewTee(jsonCore, consoleCore),
			zap.AddCaller(), zap.AddCallerSkip(1), zap.Fields(zap.String("service", serviceName))),
		debug: &debug,
	}
}

func getFileWriter(logFile string) zapcore.WriteSyncer {
	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		panic(fmt.Sprintf("Failed to open or create log file: %v", err))
	}
	return zapcore.AddSync(file)
}

// With child logger carrying fields, e.g. one per websocket connection
func (l *LogInfo) With(fields ...zap.Field) *LogInfo {
	return &LogInfo{log: l.log.With(fields...), debug: l.debug}
}

// SetDebugMode toggle debug output at runtime
func (l *LogInfo) SetDebugMode(status bool) {
	if status {
		l.debug.SetLevel(zap.DebugLevel)
		return
	}
	l.debug.SetLevel(zap.InfoLevel)
}

// DebugMode current debug flag
func (l *LogInfo) DebugMode() bool {
	return l.debug.Enabled(zap.DebugLevel)
}

// Info INFO level
func (l *LogInfo) Info(msg string, fields ...zap.Field) {
	l.log.Info(msg, fields...)
}

// Error ERROR level
func (l *LogInfo) Error(msg string, fields ...zap.Field) {
	l.log.Error(msg, fields...)
}

// Debug DEBUG level
func (l *LogInfo) Debug(msg string, fields ...zap.Field) {
	l.log.Debug(msg, fields...)
}

// Warn WARN level
func (l *LogInfo) Warn(msg string, fields ...zap.Field) {
	l.log.Warn(msg, fields...)
}

// Sync flush buffered entries
func (l *LogInfo) Sync() {
	if err := l.log.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
	}
}

// Fatal log, flush and exit
func (l *LogInfo) Fatal(msg string, fields ...zap.Field) {
	l.log.Error(msg, fields...)
	l.Sync()
	os.Exit(1)
}
