// Package log 封装一个全局的 zap SugaredLogger。
package log

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logFileName = "studymind.log"

// Init 之前是 no-op logger，测试里可以直接调用。
var sugar = zap.NewNop().Sugar()

// Init 按配置构建 logger。format 为 "console" 时输出彩色开发格式，其余情况输出 JSON。
// outputPath 非空时额外写入 outputPath/studymind.log。
func Init(level, format, outputPath string) {
	atomic := zap.NewAtomicLevelAt(zap.InfoLevel)
	_ = atomic.UnmarshalText([]byte(level))

	cfg := newConfig(format)
	cfg.Level = atomic
	cfg.OutputPaths = []string{"stdout"}
	if outputPath != "" {
		_ = os.MkdirAll(outputPath, os.ModePerm)
		cfg.OutputPaths = append(cfg.OutputPaths, filepath.Join(outputPath, logFileName))
	}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	sugar = logger.Sugar().With("service", "studymind")
}

func newConfig(format string) zap.Config {
	if format != "console" {
		return zap.NewProductionConfig()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}

func Info(msg string) { sugar.Info(msg) }

func Infof(template string, args ...interface{}) { sugar.Infof(template, args...) }

// Infow 记录带键值对的结构化日志，供请求日志中间件使用。
func Infow(msg string, keysAndValues ...interface{}) { sugar.Infow(msg, keysAndValues...) }

func Debugf(template string, args ...interface{}) { sugar.Debugf(template, args...) }

func Warnf(template string, args ...interface{}) { sugar.Warnf(template, args...) }

// Error 把 err 作为 "error" 字段附加在日志上。
func Error(msg string, err error) { sugar.Errorw(msg, "error", err) }

func Errorf(template string, args ...interface{}) { sugar.Errorf(template, args...) }

// Fatal 记录日志后退出进程，只在启动阶段使用。
func Fatal(msg string, err error) { sugar.Fatalw(msg, "error", err) }

func Fatalf(template string, args ...interface{}) { sugar.Fatalf(template, args...) }

// Sync 刷新缓冲的日志，程序退出前调用。
func Sync() { _ = sugar.Sync() }
