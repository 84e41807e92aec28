package logger

import (
	"context"

	"go.uber.org/zap"
)

type traceIDKey struct{}

// WithTraceID 将 trace_id 写入 context，日志自动携带
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// CtxZapLogger Context-Aware 的 Zap Logger 包装器
// 创建时绑定模块名，使用时只需传递 ctx
type CtxZapLogger struct {
	base    *zap.Logger
	module  string
	appName string
}

// DebugCtx 记录 Debug 级别日志（自动提取 TraceID）
func (l *CtxZapLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Debug(msg, l.enrichFields(ctx, fields)...)
}

// Debug 不需要 context 的便捷方法
func (l *CtxZapLogger) Debug(msg string, fields ...zap.Field) {
	l.DebugCtx(context.Background(), msg, fields...)
}

// InfoCtx 记录 Info 级别日志（自动提取 TraceID）
func (l *CtxZapLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Info(msg, l.enrichFields(ctx, fields)...)
}

// Info 不需要 context 的便捷方法
func (l *CtxZapLogger) Info(msg string, fields ...zap.Field) {
	l.InfoCtx(context.Background(), msg, fields...)
}

// WarnCtx 记录 Warn 级别日志
func (l *CtxZapLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Warn(msg, l.enrichFields(ctx, fields)...)
}

// Warn 不需要 context 的便捷方法
func (l *CtxZapLogger) Warn(msg string, fields ...zap.Field) {
	l.WarnCtx(context.Background(), msg, fields...)
}

// ErrorCtx 记录 Error 级别日志
func (l *CtxZapLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Error(msg, l.enrichFields(ctx, fields)...)
}

// Error 不需要 context 的便捷方法
func (l *CtxZapLogger) Error(msg string, fields ...zap.Field) {
	l.ErrorCtx(context.Background(), msg, fields...)
}

// With 返回带有预设字段的新 Logger（支持链式调用）
func (l *CtxZapLogger) With(fields ...zap.Field) *CtxZapLogger {
	return &CtxZapLogger{
		base:    l.base.With(fields...),
		module:  l.module,
		appName: l.appName,
	}
}

// GetZapLogger 获取底层的 *zap.Logger（用于第三方库集成）
func (l *CtxZapLogger) GetZapLogger() *zap.Logger {
	return l.base
}

// enrichFields 自动添加 app_name 和 trace_id
func (l *CtxZapLogger) enrichFields(ctx context.Context, fields []zap.Field) []zap.Field {
	enriched := make([]zap.Field, 0, len(fields)+2)

	if l.appName != "" {
		enriched = append(enriched, zap.String("app_name", l.appName))
	}

	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok && traceID != "" {
		enriched = append(enriched, zap.String("trace_id", traceID))
	}

	return append(enriched, fields...)
}
