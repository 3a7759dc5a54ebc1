package logger

import (
	"fmt"
	"os"

	"xinyuan_tech/booking-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// zapLogger 适配 zap 到 kratos log.Logger 接口
type zapLogger struct {
	zl *zap.Logger
}

// NewLogger 根据配置创建 kratos log.Logger (zap 后端, 支持文件滚动)
func NewLogger(c *conf.Log) log.Logger {
	level := zapcore.InfoLevel
	if c != nil && c.Level != "" {
		if l, err := zapcore.ParseLevel(c.Level); err == nil {
			level = l
		}
	}

	var encoder zapcore.Encoder
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if c != nil && c.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	var writer zapcore.WriteSyncer
	if c != nil && c.Output == "file" && c.FilePath != "" {
		writer = zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.MaxSize,
			MaxAge:     c.MaxAge,
			MaxBackups: c.MaxBackups,
			Compress:   c.Compress,
		})
	} else {
		writer = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, writer, level)
	return &zapLogger{zl: zap.New(core)}
}

// Log 实现 kratos log.Logger
func (l *zapLogger) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 || len(keyvals)%2 != 0 {
		l.zl.Warn(fmt.Sprint("keyvals must appear in pairs: ", keyvals))
		return nil
	}

	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(keyvals[i]), keyvals[i+1]))
	}

	switch level {
	case log.LevelDebug:
		l.zl.Debug("", fields...)
	case log.LevelInfo:
		l.zl.Info("", fields...)
	case log.LevelWarn:
		l.zl.Warn("", fields...)
	case log.LevelError:
		l.zl.Error("", fields...)
	case log.LevelFatal:
		l.zl.Fatal("", fields...)
	}
	return nil
}
