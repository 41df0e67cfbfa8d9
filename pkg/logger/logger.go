// Package logger provides the process-wide diagnostic log for qa-pilot.
//
// The API is printf-style and package-level so every component can log
// decision points without carrying a logger around. Output goes to a
// rotating file; nothing is written until Init is called.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *zap.SugaredLogger
	logFile      *lumberjack.Logger
	mu           sync.Mutex
)

// Options tunes the rotating log file.
type Options struct {
	MaxSizeMB  int    // Rotate after this many megabytes (default 20)
	MaxBackups int    // Rotated files to keep (default 3)
	Level      string // debug, info, warn, error (default debug)
}

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	return InitWithOptions(logPath, Options{})
}

// InitWithOptions initializes the global logger with rotation settings.
func InitWithOptions(logPath string, opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return err
	}

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
	}

	if opts.MaxSizeMB == 0 {
		opts.MaxSizeMB = 20
	}
	if opts.MaxBackups == 0 {
		opts.MaxBackups = 3
	}

	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			level.SetLevel(zapcore.DebugLevel)
		}
	}

	logFile = &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.CallerKey = ""

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(logFile), level)
	globalLogger = zap.New(core).Sugar()

	return nil
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		_ = globalLogger.Sync()
		globalLogger = nil
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Infof(format, v...)
	}
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Debugf(format, v...)
	}
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Errorf(format, v...)
	}
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Warnf(format, v...)
	}
}

// GetWriter returns the underlying writer for use by collaborators.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}
