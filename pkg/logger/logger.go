package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log *zap.Logger
)

func init() {
	// 未 Init 之前 (测试、CLI) 所有日志丢弃
	Log = zap.NewNop()
}

// Init production 输出 JSON，其它环境输出彩色控制台格式。
// level 为空时使用环境默认级别 (production: info, 其它: debug)。
func Init(env string, level string) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			panic(fmt.Sprintf("invalid log level %q: %v", level, err))
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	var err error
	Log, err = cfg.Build(zap.AddCallerSkip(1), zap.Fields(zap.String("service", "marketplace-core")))
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(Log)
}

func Sync() {
	_ = Log.Sync()
}

// With 返回带固定字段的子 logger (例如 request_id)，调用方直接使用 zap API
func With(fields ...zap.Field) *zap.Logger {
	return Log.WithOptions(zap.AddCallerSkip(-1)).With(fields...)
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

// AsynqLogger 把 asynq 的日志接到 zap 上
type AsynqLogger struct {
	l *zap.Logger
}

func NewAsynqLogger() *AsynqLogger {
	return &AsynqLogger{l: Log.Named("asynq")}
}

func (a *AsynqLogger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a *AsynqLogger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a *AsynqLogger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a *AsynqLogger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
func (a *AsynqLogger) Fatal(args ...interface{}) { a.l.Fatal(fmt.Sprint(args...)) }
