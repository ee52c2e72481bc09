package logging

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[LogLevel]zerolog.Level{
		LevelTrace:       zerolog.TraceLevel,
		LevelDebug:       zerolog.DebugLevel,
		LevelWarn:        zerolog.WarnLevel,
		LevelError:       zerolog.ErrorLevel,
		LogLevel("loud"): zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestFileWriterUsesConfiguredPath(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.LogDir = t.TempDir()
	cfg.LogFileName = "run.log"

	w, ok := newFileWriter(cfg).(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(cfg.LogDir, "run.log"), w.Filename)
	assert.Equal(t, 50, w.MaxSize)
	require.NoError(t, w.Close())
}
