package logging

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 包装 zap，带动态级别和上下文追踪字段。
type Logger struct {
	l     *zap.Logger
	s     *zap.SugaredLogger
	level zap.AtomicLevel
}

// New 根据配置构建 Logger。cfg 为 nil 时取默认配置。
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	writers := buildWriters(cfg)
	var out io.Writer
	if len(writers) == 1 {
		out = writers[0]
	} else {
		out = io.MultiWriter(writers...)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.MessageKey = "msg"
	encCfg.LevelKey = "lvl"
	encCfg.TimeKey = "ts"
	encCfg.CallerKey = "caller"
	encCfg.StacktraceKey = "stack"
	if cfg.TimeFormat != "" {
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(cfg.TimeFormat)
	} else {
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var enc zapcore.Encoder
	switch cfg.Encoding {
	case JSONEncoding:
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	level := zap.NewAtomicLevelAt(cfg.Level.zapLevel())
	core := zapcore.NewCore(enc, zapcore.AddSync(out), level)

	opts := make([]zap.Option, 0, 3)
	if !cfg.DisableCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	if len(cfg.InitialFields) > 0 {
		fields := make([]zap.Field, 0, len(cfg.InitialFields))
		for k, v := range cfg.InitialFields {
			fields = append(fields, zap.Any(k, v))
		}
		opts = append(opts, zap.Fields(fields...))
	}

	zl := zap.New(core, opts...)
	return &Logger{l: zl, s: zl.Sugar(), level: level}, nil
}

// Nop 返回丢弃所有输出的 Logger，测试和默认注入用。
func Nop() *Logger {
	zl := zap.NewNop()
	return &Logger{l: zl, s: zl.Sugar(), level: zap.NewAtomicLevel()}
}

func (l *Logger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }

// Printf logs at info level. 兼容只认 Printf 的库。
func (l *Logger) Printf(format string, args ...any) { l.s.Infof(format, args...) }

func (l *Logger) Debugw(msg string, keysAndValues ...any) { l.s.Debugw(msg, keysAndValues...) }
func (l *Logger) Infow(msg string, keysAndValues ...any)  { l.s.Infow(msg, keysAndValues...) }
func (l *Logger) Warnw(msg string, keysAndValues ...any)  { l.s.Warnw(msg, keysAndValues...) }
func (l *Logger) Errorw(msg string, keysAndValues ...any) { l.s.Errorw(msg, keysAndValues...) }

func (l *Logger) DebugContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.s.Debugw(msg, append(keysAndValues, traceContextFields(ctx)...)...)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.s.Infow(msg, append(keysAndValues, traceContextFields(ctx)...)...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.s.Warnw(msg, append(keysAndValues, traceContextFields(ctx)...)...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, traceContextFields(ctx)...)...)
}

// With 返回带附加字段的子 Logger。
func (l *Logger) With(keysAndValues ...any) *Logger {
	s := l.s.With(keysAndValues...)
	return &Logger{l: s.Desugar(), s: s, level: l.level}
}

// SetLevel 动态调整级别。
func (l *Logger) SetLevel(lvl Level) {
	l.level.SetLevel(lvl.zapLevel())
}

func (l *Logger) Sync() error {
	return l.l.Sync()
}

// Zap 暴露底层 zap.Logger，给需要原生接口的地方用。
func (l *Logger) Zap() *zap.Logger {
	return l.l
}

// traceContextFields 从活动 span 提取 trace_id/span_id。
func traceContextFields(ctx context.Context) []any {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return []any{
		"trace_id", span.SpanContext().TraceID().String(),
		"span_id", span.SpanContext().SpanID().String(),
	}
}

var defaultLogger atomic.Pointer[Logger]

var defaultOnce sync.Once

// Default 返回进程级默认 Logger，首次调用时按默认配置创建。
func Default() *Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	defaultOnce.Do(func() {
		l, err := New(nil)
		if err != nil {
			l = Nop()
		}
		defaultLogger.CompareAndSwap(nil, l)
	})
	return defaultLogger.Load()
}

// SetDefault 替换进程级默认 Logger。
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger.Store(l)
	}
}

// L 是 Default 的简写。
func L() *Logger {
	return Default()
}
