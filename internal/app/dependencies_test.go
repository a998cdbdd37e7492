package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/FACorreiaa/poker-ledger/internal/domain/categorization"
	"github.com/FACorreiaa/poker-ledger/pkg/config"
	"github.com/FACorreiaa/poker-ledger/pkg/tracing"
)

func TestNewCategorizer(t *testing.T) {
	t.Run("embedded rules", func(t *testing.T) {
		c, err := NewCategorizer(config.ImportConfig{TierScheme: "extended"})
		require.NoError(t, err)
		assert.Equal(t, categorization.ExtendedTiers.Name(), c.TierScheme().Name())
	})

	t.Run("unknown scheme", func(t *testing.T) {
		_, err := NewCategorizer(config.ImportConfig{TierScheme: "huge"})
		assert.ErrorIs(t, err, categorization.ErrUnknownTierScheme)
	})

	t.Run("rules file", func(t *testing.T) {
		rs, err := categorization.DefaultRules()
		require.NoError(t, err)
		require.NotNil(t, rs)

		data, err := os.ReadFile(filepath.Join("..", "domain", "categorization", "rules.yaml"))
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, data, 0o644))

		c, err := NewCategorizer(config.ImportConfig{RulesFile: path})
		require.NoError(t, err)
		assert.Equal(t, categorization.StandardTiers.Name(), c.TierScheme().Name())
	})

	t.Run("missing rules file", func(t *testing.T) {
		_, err := NewCategorizer(config.ImportConfig{RulesFile: filepath.Join(t.TempDir(), "nope.yaml")})
		assert.Error(t, err)
	})
}

func TestInitTracing(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	newDeps := func(exporter string) *Dependencies {
		cfg := &config.Config{Observability: config.ObservabilityConfig{TracingExporter: exporter, TracingSampleRatio: 1}}
		return &Dependencies{Config: cfg, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	}

	t.Run("stdout installs an sdk provider", func(t *testing.T) {
		d := newDeps("stdout")
		require.NoError(t, d.initTracing())
		assert.IsType(t, &sdktrace.TracerProvider{}, d.Tracing.TracerProvider)
		assert.Same(t, d.Tracing.TracerProvider, otel.GetTracerProvider())
		d.Cleanup()
	})

	t.Run("unknown exporter", func(t *testing.T) {
		err := newDeps("jaeger").initTracing()
		assert.ErrorIs(t, err, tracing.ErrUnknownExporter)
	})
}
