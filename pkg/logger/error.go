package logger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors/errbase"
	"github.com/universal-brc20/indexer/pkg/logger/slogx"
	"github.com/universal-brc20/indexer/pkg/logger/stacktrace"
)

// errorAttrReplacer renders error attribute values as their message string.
func errorAttrReplacer(groups []string, attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindAny {
		if err, ok := attr.Value.Any().(error); ok && err != nil {
			attr.Value = slog.StringValue(err.Error())
		}
	}
	return attr
}

// middlewareErrorStackTrace attaches the verbose rendering and stack trace of
// error attributes to the record.
func middlewareErrorStackTrace() middleware {
	return func(next handleFunc) handleFunc {
		return func(ctx context.Context, rec slog.Record) error {
			rec.Attrs(func(attr slog.Attr) bool {
				if attr.Key == slogx.ErrorKey || attr.Key == "err" {
					err := attr.Value.Any()
					if err, ok := err.(error); ok && err != nil {
						rec.AddAttrs(slog.String(ErrorVerboseKey, fmt.Sprintf("%+v", err)))
						if x, ok := err.(errbase.StackTraceProvider); ok {
							trace := stacktrace.StackTrace(x.StackTrace())
							rec.AddAttrs(slog.Any(ErrorStackTraceKey, trace.TraceFramesStrings()))
						}
					}
				}
				return false
			})

			return next(ctx, rec)
		}
	}
}
