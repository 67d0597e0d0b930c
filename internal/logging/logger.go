// Package logging builds the daemon logger: JSON to the session's log file
// for tooling, console format to stderr for whoever is watching the daemon.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// levelEnv overrides the stderr log level; the file always gets info and up.
const levelEnv = "WAGW_LOG_LEVEL"

// New creates the session logger. Every entry carries the session name and
// the daemon PID so interleaved logs from multiple sessions stay separable.
func New(logPath, sessionName string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), zapcore.InfoLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(os.Stderr), consoleLevel()),
	)

	return zap.New(core,
		zap.Fields(
			zap.String("session", sessionName),
			zap.Int("pid", os.Getpid()),
		),
	), nil
}

func consoleLevel() zapcore.Level {
	if raw := os.Getenv(levelEnv); raw != "" {
		var level zapcore.Level
		if err := level.Set(raw); err == nil {
			return level
		}
	}
	return zapcore.InfoLevel
}
