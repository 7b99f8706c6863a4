// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// slogHandler feeds slog records into zerolog. The supervisor's sutureslog
// hook is its only caller, so it keeps to what suture emits: flat
// attributes, the occasional group and a task ID taken from the context.
type slogHandler struct {
	logger zerolog.Logger
	prefix string
	fields []slogField
}

type slogField struct {
	key   string
	value slog.Value
}

// NewSlogLogger returns an slog.Logger writing to the global logger with a
// component field.
//
//	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger("supervisor")}
func NewSlogLogger(component string) *slog.Logger {
	return slog.New(&slogHandler{logger: Logger().With().Str("component", component).Logger()})
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return zerologLevel(level) >= h.logger.GetLevel()
}

//nolint:gocritic // slog.Record is passed by value per slog.Handler interface
func (h *slogHandler) Handle(ctx context.Context, record slog.Record) error {
	event := h.logger.WithLevel(zerologLevel(record.Level))
	if event == nil {
		return nil
	}
	if id := taskIDFromContext(ctx); id != "" {
		event = event.Str("task_id", id)
	}
	for _, f := range h.fields {
		event = addValue(event, f.key, f.value)
	}
	record.Attrs(func(a slog.Attr) bool {
		flatten(h.prefix, a, func(key string, v slog.Value) {
			event = addValue(event, key, v)
		})
		return true
	})
	event.Msg(record.Message)
	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &slogHandler{logger: h.logger, prefix: h.prefix}
	next.fields = append(next.fields, h.fields...)
	for _, a := range attrs {
		flatten(h.prefix, a, func(key string, v slog.Value) {
			next.fields = append(next.fields, slogField{key: key, value: v})
		})
	}
	return next
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &slogHandler{logger: h.logger, prefix: h.prefix + name + ".", fields: h.fields}
}

// flatten emits a as dotted keys under prefix. Empty keys are dropped
// except for inline groups.
func flatten(prefix string, a slog.Attr, emit func(key string, v slog.Value)) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(prefix, ga, emit)
		}
		return
	}
	if a.Key == "" {
		return
	}
	emit(prefix+a.Key, v)
}

func addValue(event *zerolog.Event, key string, v slog.Value) *zerolog.Event {
	switch v.Kind() {
	case slog.KindString:
		return event.Str(key, v.String())
	case slog.KindInt64:
		return event.Int64(key, v.Int64())
	case slog.KindUint64:
		return event.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, v.Float64())
	case slog.KindBool:
		return event.Bool(key, v.Bool())
	case slog.KindDuration:
		return event.Dur(key, v.Duration())
	case slog.KindTime:
		return event.Time(key, v.Time())
	default:
		if err, ok := v.Any().(error); ok {
			return event.AnErr(key, err)
		}
		return event.Interface(key, v.Any())
	}
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
