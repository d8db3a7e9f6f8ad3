// Package logx 构造全局唯一的 zap logger：日志只写 stderr，stdout 留给 JSON report。
package logx

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level string // debug/info/warn/error
	// JSON 为 true 时输出 JSON；否则输出便于人读的 console 格式。
	JSON bool
	// Color 只在 console 格式下生效（stderr 是 TTY 时由调用方打开）。
	Color bool
}

// New 基于 zap 的 production 配置构建 logger，输出到 stderr。
func New(opts Options) (*zap.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.DisableStacktrace = level != zapcore.DebugLevel
	if !opts.JSON {
		config.Encoding = "console"
		config.EncoderConfig = consoleEncoderConfig(opts.Color)
		config.Sampling = nil
	}
	return config.Build()
}

// NewWriter 与 New 相同，但写到任意 io.Writer（测试与进度界面使用）。
func NewWriter(w io.Writer, opts Options) (*zap.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		enc = zapcore.NewConsoleEncoder(consoleEncoderConfig(opts.Color))
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return zap.New(core), nil
}

func consoleEncoderConfig(color bool) zapcore.EncoderConfig {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	ec.CallerKey = zapcore.OmitKey
	if color {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return ec
}

func parseLevel(s string) (zapcore.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("无效日志级别 %q: %w", s, err)
	}
	return l, nil
}
