package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/universal-brc20/indexer/pkg/logger/slogx"
)

func TestErrorAttrReplacer(t *testing.T) {
	t.Run("renders_error_message", func(t *testing.T) {
		attr := errorAttrReplacer(nil, slogx.Error(errors.New("boom")))
		assert.Equal(t, slogx.ErrorKey, attr.Key)
		assert.Equal(t, "boom", attr.Value.String())
	})

	t.Run("leaves_other_attrs_untouched", func(t *testing.T) {
		attr := errorAttrReplacer(nil, slog.String("key", "value"))
		assert.Equal(t, "key", attr.Key)
		assert.Equal(t, "value", attr.Value.String())
	})
}

func TestMiddlewareErrorStackTrace(t *testing.T) {
	var buf bytes.Buffer
	handler := newChainHandlers(slog.NewJSONHandler(&buf, nil), middlewareErrorStackTrace())
	log := slog.New(handler)

	log.Error("something failed", slogx.Error(errors.New("boom")))

	output := buf.String()
	assert.Contains(t, output, ErrorVerboseKey)
	assert.Contains(t, output, ErrorStackTraceKey)
	assert.Contains(t, output, "boom")
}

func TestGCPSeverityMapping(t *testing.T) {
	assert.Equal(t, "DEBUG", gcpSeverityMapping(slog.LevelDebug))
	assert.Equal(t, "INFO", gcpSeverityMapping(slog.LevelInfo))
	assert.Equal(t, "WARNING", gcpSeverityMapping(slog.LevelWarn))
	assert.Equal(t, "ERROR", gcpSeverityMapping(slog.LevelError))
	assert.Equal(t, "CRITICAL", gcpSeverityMapping(LevelCritical))
	assert.Equal(t, "ALERT", gcpSeverityMapping(LevelPanic))
	assert.Equal(t, "EMERGENCY", gcpSeverityMapping(LevelFatal))
}
