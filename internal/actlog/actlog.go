// Package actlog provides the append-only activity log. The gateway only
// ever writes it; humans and external tooling read it.
package actlog

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log records message activity to a dedicated JSON file, one entry per line.
type Log struct {
	logger *zap.Logger
}

// New opens (or creates) the activity log at path.
func New(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), zapcore.InfoLevel)

	return &Log{logger: zap.New(core)}, nil
}

// Record appends one activity entry. Failures are swallowed by zap's
// sync machinery; activity logging must never block or fail the pipeline.
func (l *Log) Record(kind, address, content string) {
	l.logger.Info("activity",
		zap.String("kind", kind),
		zap.String("address", address),
		zap.String("content", content),
	)
}

// Close flushes buffered entries.
func (l *Log) Close() {
	_ = l.logger.Sync()
}
