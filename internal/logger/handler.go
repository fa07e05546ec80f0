package logger

import (
	"context"
	"errors"
	"log/slog"
)

// fanout sends each record to every handler that accepts its level.
type fanout struct {
	handlers []slog.Handler
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanout{handlers: next}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanout{handlers: next}
}

// levelRouter picks the file handler by record level. Debug goes to info.log.
type levelRouter struct {
	info    slog.Handler
	warning slog.Handler
	error   slog.Handler
}

func (r *levelRouter) pick(level slog.Level) slog.Handler {
	switch {
	case level >= slog.LevelError:
		return r.error
	case level >= slog.LevelWarn:
		return r.warning
	default:
		return r.info
	}
}

func (r *levelRouter) Enabled(ctx context.Context, level slog.Level) bool {
	return r.pick(level).Enabled(ctx, level)
}

func (r *levelRouter) Handle(ctx context.Context, rec slog.Record) error {
	return r.pick(rec.Level).Handle(ctx, rec)
}

func (r *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		info:    r.info.WithAttrs(attrs),
		warning: r.warning.WithAttrs(attrs),
		error:   r.error.WithAttrs(attrs),
	}
}

func (r *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		info:    r.info.WithGroup(name),
		warning: r.warning.WithGroup(name),
		error:   r.error.WithGroup(name),
	}
}
