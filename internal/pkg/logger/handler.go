package logger

import (
	"context"
	log "log/slog"
)

// TeeHandler 将日志同时分发到多个 Handler
type TeeHandler struct {
	handlers []log.Handler
}

func (t *TeeHandler) Enabled(ctx context.Context, level log.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *TeeHandler) Handle(ctx context.Context, r log.Record) error {
	var firstErr error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *TeeHandler) WithAttrs(attrs []log.Attr) log.Handler {
	next := make([]log.Handler, len(t.handlers))
	for i, h := range t.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &TeeHandler{handlers: next}
}

func (t *TeeHandler) WithGroup(name string) log.Handler {
	next := make([]log.Handler, len(t.handlers))
	for i, h := range t.handlers {
		next[i] = h.WithGroup(name)
	}
	return &TeeHandler{handlers: next}
}

// RemoteFilterHandler 只把带有 trace_id 的日志上报到远程
type RemoteFilterHandler struct {
	next log.Handler
}

func (f *RemoteFilterHandler) Enabled(ctx context.Context, level log.Level) bool {
	return f.next.Enabled(ctx, level)
}

func (f *RemoteFilterHandler) Handle(ctx context.Context, r log.Record) error {
	hasTraceID := false
	r.Attrs(func(a log.Attr) bool {
		if a.Key == TraceIDKey && a.Value.String() != "" {
			hasTraceID = true
			return false
		}
		return true
	})

	// 没有 trace_id 的日志（启动日志、后台输出等）不上报
	if !hasTraceID {
		return nil
	}

	return f.next.Handle(ctx, r)
}

func (f *RemoteFilterHandler) WithAttrs(attrs []log.Attr) log.Handler {
	return &RemoteFilterHandler{next: f.next.WithAttrs(attrs)}
}

func (f *RemoteFilterHandler) WithGroup(name string) log.Handler {
	return &RemoteFilterHandler{next: f.next.WithGroup(name)}
}
