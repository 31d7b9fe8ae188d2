// Package observability configures the process-wide structured logger.
package observability

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// CLILogger is the package-level logger every command and component logs
// through. Init populates it; until then it is a safe no-op logger so
// packages that log during early init don't crash.
var CLILogger = zap.NewNop()

const (
	defaultLogDir  = "/var/log/gorunner"
	logFileName    = "app.log"
	rotateMaxSizeMB = 10
	rotateMaxFiles  = 5
)

// Init builds CLILogger from LOG_LEVEL, LOG_SILENT and LOG_DIR. It always
// writes to a rotating file; when LOG_SILENT is unset or "false" it also
// writes to stderr.
func Init() error {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	silent := strings.EqualFold(os.Getenv("LOG_SILENT"), "true")

	dir := os.Getenv("LOG_DIR")
	if dir == "" {
		dir = resolveLogDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		dir = fallbackLogDir()
		_ = os.MkdirAll(dir, 0o755)
	}

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    rotateMaxSizeMB,
		MaxBackups: rotateMaxFiles,
		Compress:   false,
	})

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileEncoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{zapcore.NewCore(fileEncoder, fileWriter, level)}
	if !silent {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg)
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), level))
	}

	CLILogger = zap.New(zapcore.NewTee(cores...))
	return nil
}

// resolveLogDir returns /var/log/gorunner when writable, else a per-user
// state-directory fallback.
func resolveLogDir() string {
	if err := os.MkdirAll(defaultLogDir, 0o755); err == nil {
		if probeWritable(defaultLogDir) {
			return defaultLogDir
		}
	}
	return fallbackLogDir()
}

func fallbackLogDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "gorunner")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "gorunner")
	}
	return filepath.Join(home, ".local", "state", "gorunner")
}

func probeWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
